package auditoria

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
)

var base = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc         *Service
	rec         *Recorder
	store       *repo.MemoryStore
	professor   authz.Actor
	coordenador authz.Actor
	diretor     authz.Actor
	ensino      authz.Actor
}

// newFixture grava cinco entradas, uma por hora a partir de base.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemoryStore()
	f := &fixture{
		svc:         NewService(store),
		rec:         NewRecorder(store),
		store:       store,
		professor:   authz.Actor{ID: uuid.New(), Role: authz.RoleProfessor},
		coordenador: authz.Actor{ID: uuid.New(), Role: authz.RoleCoordenador},
		diretor:     authz.Actor{ID: uuid.New(), Role: authz.RoleDiretor},
		ensino:      authz.Actor{ID: uuid.New(), Role: authz.RoleDiretorEnsino},
	}
	passo := 0
	f.rec.now = func() time.Time {
		m := base.Add(time.Duration(passo) * time.Hour)
		passo++
		return m
	}

	ctx := ComMetadados(context.Background(), Metadados{IP: "10.0.0.7", Cliente: "teste", RequestID: "req-1"})
	ok := func(context.Context, repo.Querier, *Evento) error { return nil }

	require.NoError(t, f.rec.Executar(ctx, Evento{
		Ator: f.coordenador, Acao: "aprovar_justificativa",
		Categoria: repo.CategoriaJustificativa, Tipo: repo.AcaoApprove,
	}, ok))

	causa := apperr.ReferentialIntegrity("possui registros de frequência")
	err := f.rec.Falha(ctx, Evento{
		Ator: f.professor, Acao: "excluir_usuario",
		Categoria: repo.CategoriaUsuario, Tipo: repo.AcaoDelete,
		Descricao: "Tentativa de excluir usuário",
	}, causa)
	require.ErrorIs(t, err, apperr.ErrReferentialIntegrity)

	err = f.rec.Executar(ctx, Evento{
		Ator: f.ensino, Acao: "editar_registro",
		Categoria: repo.CategoriaFrequencia, Tipo: repo.AcaoUpdate,
	}, func(context.Context, repo.Querier, *Evento) error { return apperr.NotFound("registro") })
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.rec.Executar(ctx, Evento{
		Ator: f.ensino, Acao: "criar_permissao",
		Categoria: repo.CategoriaAuditoriaPermissao, Tipo: repo.AcaoCreate,
	}, ok))

	require.NoError(t, f.rec.Executar(ctx, Evento{
		Acao: "salvar_configuracao", Categoria: repo.CategoriaSistema, Tipo: repo.AcaoUpdate,
	}, ok))
	return f
}

func acoes(entradas []repo.EntradaAuditoria) []string {
	out := make([]string, 0, len(entradas))
	for _, e := range entradas {
		out = append(out, e.Acao)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestListarExigeCanViewAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, actor := range []authz.Actor{f.professor, f.coordenador, {ID: uuid.New(), Role: "visitante"}} {
		_, err := f.svc.Listar(ctx, actor, repo.AuditoriaFilter{})
		require.ErrorIs(t, err, apperr.ErrUnauthorized, string(actor.Role))
	}

	for _, actor := range []authz.Actor{f.diretor, f.ensino} {
		entradas, err := f.svc.Listar(ctx, actor, repo.AuditoriaFilter{})
		require.NoError(t, err, string(actor.Role))
		assert.Len(t, entradas, 5)
	}
}

func TestListarMaisRecentesPrimeiro(t *testing.T) {
	f := newFixture(t)

	entradas, err := f.svc.Listar(context.Background(), f.ensino, repo.AuditoriaFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"salvar_configuracao", "criar_permissao", "editar_registro", "excluir_usuario", "aprovar_justificativa",
	}, acoes(entradas))
	for i := 1; i < len(entradas); i++ {
		assert.True(t, entradas[i-1].Momento.After(entradas[i].Momento))
		assert.Greater(t, entradas[i-1].ID, entradas[i].ID)
	}
}

func TestListarFiltros(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		filter repo.AuditoriaFilter
		want   []string
	}{
		{"categoria", repo.AuditoriaFilter{Categoria: ptr(repo.CategoriaFrequencia)}, []string{"editar_registro"}},
		{"tipo", repo.AuditoriaFilter{Tipo: ptr(repo.AcaoUpdate)}, []string{"salvar_configuracao", "editar_registro"}},
		{"status", repo.AuditoriaFilter{Status: ptr(repo.AuditoriaErro)}, []string{"editar_registro", "excluir_usuario"}},
		{"ator", repo.AuditoriaFilter{AtorID: ptr(f.ensino.ID)}, []string{"criar_permissao", "editar_registro"}},
		{"periodo", repo.AuditoriaFilter{
			Inicio: ptr(base.Add(90 * time.Minute)),
			Fim:    ptr(base.Add(3 * time.Hour)),
		}, []string{"criar_permissao", "editar_registro"}},
		{"combinados", repo.AuditoriaFilter{
			AtorID: ptr(f.ensino.ID),
			Status: ptr(repo.AuditoriaSucesso),
		}, []string{"criar_permissao"}},
		{"sem resultado", repo.AuditoriaFilter{Categoria: ptr(repo.CategoriaUsuario), Status: ptr(repo.AuditoriaSucesso)}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entradas, err := f.svc.Listar(context.Background(), f.diretor, tc.filter)
			require.NoError(t, err)
			require.NotNil(t, entradas)
			assert.Equal(t, tc.want, acoes(entradas))
		})
	}
}

func TestListarPaginacao(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pagina := func(limit, offset int) []string {
		entradas, err := f.svc.Listar(ctx, f.ensino, repo.AuditoriaFilter{Limit: limit, Offset: offset})
		require.NoError(t, err)
		return acoes(entradas)
	}

	assert.Equal(t, []string{"salvar_configuracao", "criar_permissao"}, pagina(2, 0))
	assert.Equal(t, []string{"editar_registro", "excluir_usuario"}, pagina(2, 2))
	assert.Equal(t, []string{"aprovar_justificativa"}, pagina(2, 4))
	assert.Empty(t, pagina(2, 10))
}

func TestListarPeriodoInvalido(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Listar(context.Background(), f.ensino, repo.AuditoriaFilter{
		Inicio: ptr(base.Add(2 * time.Hour)),
		Fim:    ptr(base),
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.FieldsOf(err), "fim")
}

func TestRecorderEntradas(t *testing.T) {
	f := newFixture(t)

	entradas, err := f.svc.Listar(context.Background(), f.ensino, repo.AuditoriaFilter{})
	require.NoError(t, err)
	porAcao := map[string]repo.EntradaAuditoria{}
	for _, e := range entradas {
		porAcao[e.Acao] = e
	}

	aprovada := porAcao["aprovar_justificativa"]
	assert.Equal(t, repo.AuditoriaSucesso, aprovada.Status)
	require.NotNil(t, aprovada.AtorID)
	assert.Equal(t, f.coordenador.ID, *aprovada.AtorID)
	assert.Equal(t, string(authz.RoleCoordenador), aprovada.AtorPapel)
	assert.Equal(t, "10.0.0.7", aprovada.IP)
	assert.Equal(t, "teste", aprovada.Cliente)
	assert.Equal(t, "req-1", aprovada.RequestID)
	assert.Equal(t, base, aprovada.Momento)

	falha := porAcao["excluir_usuario"]
	assert.Equal(t, repo.AuditoriaErro, falha.Status)
	assert.Equal(t, "Tentativa de excluir usuário: possui registros de frequência", falha.Descricao)

	sistema := porAcao["salvar_configuracao"]
	assert.Nil(t, sistema.AtorID)
	assert.Empty(t, sistema.AtorPapel)
}

func TestMensagemFalhaOcultaErroInterno(t *testing.T) {
	assert.Equal(t, "erro interno", mensagemFalha(errors.New("pq: connection reset")))
	assert.Equal(t, "", mensagemFalha(nil))
}

func TestMiddleware(t *testing.T) {
	var got Metadados
	h := chimiddleware.RequestID(Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = MetadadosDe(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/frequencia/entrada", nil)
	req.RemoteAddr = "10.1.2.3:54321"
	req.Header.Set("User-Agent", "Mozilla/5.0 (teste)")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "10.1.2.3", got.IP)
	assert.Equal(t, "Mozilla/5.0 (teste)", got.Cliente)
	assert.NotEmpty(t, got.RequestID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.4"
	req.Header.Set(chimiddleware.RequestIDHeader, "req-externo")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "10.1.2.4", got.IP)
	assert.Equal(t, "req-externo", got.RequestID)
}

func TestMetadadosAusentes(t *testing.T) {
	assert.Equal(t, Metadados{}, MetadadosDe(context.Background()))
}
