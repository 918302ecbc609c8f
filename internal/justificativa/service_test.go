package justificativa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/notify"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/storage"
	"github.com/gestaozabele/frequencia/internal/util"
)

type publicador struct {
	mu      sync.Mutex
	eventos []notify.Evento
}

func (p *publicador) Publish(_ context.Context, ev notify.Evento) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventos = append(p.eventos, ev)
}

type fixture struct {
	svc         *Service
	store       *repo.MemoryStore
	pub         *publicador
	arquivos    *storage.Memoria
	professor   repo.Usuario
	colega      repo.Usuario
	coordenador repo.Usuario
	diretor     repo.Usuario
	ensino      repo.Usuario
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    repo.NewMemoryStore(),
		pub:      &publicador{},
		arquivos: &storage.Memoria{BaseURL: "mem://anexos"},
	}
	f.coordenador = f.usuario(t, "Carla", authz.RoleCoordenador, nil)
	f.professor = f.usuario(t, "Paulo", authz.RoleProfessor, &f.coordenador.ID)
	f.colega = f.usuario(t, "Pedro", authz.RoleProfessor, &f.coordenador.ID)
	f.diretor = f.usuario(t, "Diana", authz.RoleDiretor, nil)
	f.ensino = f.usuario(t, "Edson", authz.RoleDiretorEnsino, nil)

	f.svc = NewService(f.store, auditoria.NewRecorder(f.store), util.NewValidator("ifce.edu.br"), f.arquivos, f.pub)
	return f
}

func (f *fixture) usuario(t *testing.T, nome string, papel authz.Role, coordenador *uuid.UUID) repo.Usuario {
	t.Helper()
	u := repo.Usuario{
		ID:            uuid.New(),
		Nome:          nome,
		Email:         strings.ToLower(nome) + "@ifce.edu.br",
		Papel:         papel,
		Campus:        "Fortaleza",
		Setor:         "Informática",
		CoordenadorID: coordenador,
		Ativo:         true,
	}
	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, q repo.Querier) error {
		return q.InsertUsuario(ctx, u)
	}))
	return u
}

func (f *fixture) registro(t *testing.T, u repo.Usuario, data string, status repo.StatusFrequencia) repo.RegistroFrequencia {
	t.Helper()
	dia, err := time.Parse(dataFormato, data)
	require.NoError(t, err)
	entrada := dia.Add(8*time.Hour + 30*time.Minute)
	r := repo.RegistroFrequencia{
		ID:        uuid.New(),
		UsuarioID: u.ID,
		Data:      dia,
		Entrada:   &entrada,
		Status:    status,
		Metodos:   []repo.MetodoVerificacao{repo.MetodoQRCode},
		CriadoEm:  entrada,
	}
	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, q repo.Querier) error {
		return q.InsertRegistro(ctx, r)
	}))
	return r
}

func (f *fixture) buscarRegistro(t *testing.T, id uuid.UUID) repo.RegistroFrequencia {
	t.Helper()
	var r repo.RegistroFrequencia
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, q repo.Querier) error {
		var err error
		r, err = q.GetRegistro(ctx, id)
		return err
	}))
	return r
}

func (f *fixture) auditoria(t *testing.T) []repo.EntradaAuditoria {
	t.Helper()
	var out []repo.EntradaAuditoria
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, q repo.Querier) error {
		var err error
		out, err = q.ListAuditoria(ctx, repo.AuditoriaFilter{})
		return err
	}))
	return out
}

func (f *fixture) criar(t *testing.T, u repo.Usuario, inicio, fim string) repo.Justificativa {
	t.Helper()
	j, err := f.svc.Criar(context.Background(), u.Actor(), CriarInput{
		DataInicio: inicio,
		DataFim:    fim,
		Tipo:       repo.TipoAtestado,
		Descricao:  "Atestado médico de dois dias",
	})
	require.NoError(t, err)
	return j
}

func TestCriar(t *testing.T) {
	f := newFixture(t)

	j := f.criar(t, f.professor, "2026-03-02", "2026-03-03")
	assert.Equal(t, repo.JustificativaPendente, j.Status)
	assert.Equal(t, 1, j.Versao)
	assert.Equal(t, f.professor.ID, j.SolicitanteID)

	entradas := f.auditoria(t)
	require.Len(t, entradas, 1)
	assert.Equal(t, repo.AcaoCreate, entradas[0].Tipo)
	assert.Equal(t, repo.AuditoriaSucesso, entradas[0].Status)
	assert.Equal(t, j.ID.String(), entradas[0].AlvoID)

	require.Len(t, f.pub.eventos, 1)
	ev := f.pub.eventos[0]
	assert.Equal(t, notify.TipoJustificativaCriada, ev.Tipo)
	emails := make([]string, 0, len(ev.Destinatarios))
	for _, d := range ev.Destinatarios {
		emails = append(emails, d.Email)
	}
	assert.ElementsMatch(t, []string{"edson@ifce.edu.br", "carla@ifce.edu.br"}, emails)
}

func TestCriarValidacao(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CriarInput
		campo string
	}{
		{"data fim anterior", CriarInput{DataInicio: "2026-03-05", DataFim: "2026-03-02", Tipo: repo.TipoFalta, Descricao: "Consulta com especialista"}, "data_fim"},
		{"tipo desconhecido", CriarInput{DataInicio: "2026-03-05", Tipo: "folga", Descricao: "Consulta com especialista"}, "tipo"},
		{"sem descrição", CriarInput{DataInicio: "2026-03-05", Tipo: repo.TipoFalta, Descricao: "   "}, "descricao"},
		{"data malformada", CriarInput{DataInicio: "05/03/2026", Tipo: repo.TipoFalta, Descricao: "Consulta com especialista"}, "data_inicio"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Criar(ctx, f.professor.Actor(), tc.input)
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, apperr.FieldsOf(err), tc.campo)
		})
	}

	entradas := f.auditoria(t)
	require.Len(t, entradas, len(cases))
	for _, e := range entradas {
		assert.Equal(t, repo.AuditoriaErro, e.Status)
	}
	assert.Empty(t, f.pub.eventos)
}

func TestAprovarJustificaRegistrosDoPeriodo(t *testing.T) {
	f := newFixture(t)
	dentro1 := f.registro(t, f.professor, "2026-03-02", repo.StatusAtrasado)
	dentro2 := f.registro(t, f.professor, "2026-03-03", repo.StatusAusente)
	fora := f.registro(t, f.professor, "2026-03-04", repo.StatusAtrasado)
	outro := f.registro(t, f.colega, "2026-03-02", repo.StatusAtrasado)
	j := f.criar(t, f.professor, "2026-03-02", "2026-03-03")

	decisao := time.Date(2026, time.March, 5, 10, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return decisao }
	aprovada, err := f.svc.Aprovar(context.Background(), f.coordenador.Actor(), j.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, repo.JustificativaAprovada, aprovada.Status)
	require.NotNil(t, aprovada.DecididoPor)
	assert.Equal(t, f.coordenador.ID, *aprovada.DecididoPor)
	assert.NotNil(t, aprovada.DecididoEm)
	assert.Equal(t, 2, aprovada.Versao)

	assert.Equal(t, repo.StatusJustificado, f.buscarRegistro(t, dentro1.ID).Status)
	assert.Equal(t, repo.StatusJustificado, f.buscarRegistro(t, dentro2.ID).Status)
	assert.Equal(t, decisao, f.buscarRegistro(t, dentro1.ID).AtualizadoEm)
	assert.Equal(t, decisao, *aprovada.DecididoEm)
	assert.Equal(t, repo.StatusAtrasado, f.buscarRegistro(t, fora.ID).Status)
	assert.Equal(t, repo.StatusAtrasado, f.buscarRegistro(t, outro.ID).Status)

	entradas := f.auditoria(t)
	require.Len(t, entradas, 2)
	ap := entradas[0]
	assert.Equal(t, repo.AcaoApprove, ap.Tipo)
	assert.Equal(t, repo.AuditoriaSucesso, ap.Status)
	assert.Contains(t, ap.Alteracoes, repo.Alteracao{Campo: "status", Antes: "pendente", Depois: "aprovado"})
	assert.Contains(t, ap.Alteracoes, repo.Alteracao{Campo: "registro[2026-03-02].status", Antes: "atrasado", Depois: "justificado"})
	assert.Contains(t, ap.Alteracoes, repo.Alteracao{Campo: "registro[2026-03-03].status", Antes: "ausente", Depois: "justificado"})
	assert.Len(t, ap.Alteracoes, 3)

	require.Len(t, f.pub.eventos, 2)
	assert.Equal(t, notify.TipoJustificativaAprovada, f.pub.eventos[1].Tipo)
	assert.Equal(t, []notify.Destinatario{{Nome: "Paulo", Email: "paulo@ifce.edu.br"}}, f.pub.eventos[1].Destinatarios)
}

func TestAprovarSemPermissaoGeraAuditoriaDeErro(t *testing.T) {
	f := newFixture(t)
	j := f.criar(t, f.professor, "2026-03-02", "")

	for _, u := range []repo.Usuario{f.colega, f.diretor} {
		_, err := f.svc.Aprovar(context.Background(), u.Actor(), j.ID, "")
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	}

	entradas := f.auditoria(t)
	require.Len(t, entradas, 3)
	for _, e := range entradas[:2] {
		assert.Equal(t, repo.AuditoriaErro, e.Status)
		assert.Equal(t, repo.AcaoApprove, e.Tipo)
		assert.Equal(t, j.ID.String(), e.AlvoID)
	}

	atual, err := f.svc.Obter(context.Background(), f.professor.Actor(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.JustificativaPendente, atual.Status)
}

func TestRejeitar(t *testing.T) {
	f := newFixture(t)
	j := f.criar(t, f.professor, "2026-03-02", "")
	reg := f.registro(t, f.professor, "2026-03-02", repo.StatusAtrasado)
	ctx := context.Background()

	_, err := f.svc.Rejeitar(ctx, f.ensino.Actor(), j.ID, "  ")
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "motivo obrigatório", apperr.Message(err))

	rejeitada, err := f.svc.Rejeitar(ctx, f.ensino.Actor(), j.ID, "documento ilegível")
	require.NoError(t, err)
	assert.Equal(t, repo.JustificativaRejeitada, rejeitada.Status)
	assert.Equal(t, "documento ilegível", rejeitada.Motivo)
	assert.Equal(t, repo.StatusAtrasado, f.buscarRegistro(t, reg.ID).Status)

	entradas := f.auditoria(t)
	require.Len(t, entradas, 3)
	assert.Equal(t, repo.AcaoReject, entradas[0].Tipo)
	assert.Equal(t, repo.AuditoriaSucesso, entradas[0].Status)
	assert.Contains(t, entradas[0].Descricao, "documento ilegível")
	assert.Equal(t, repo.AuditoriaErro, entradas[1].Status)

	last := f.pub.eventos[len(f.pub.eventos)-1]
	assert.Equal(t, notify.TipoJustificativaRejeitada, last.Tipo)
	assert.Contains(t, last.Mensagem, "documento ilegível")
}

func TestDecisaoForaDePendente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	aprovada := f.criar(t, f.professor, "2026-03-02", "")
	_, err := f.svc.Aprovar(ctx, f.ensino.Actor(), aprovada.ID, "")
	require.NoError(t, err)

	rejeitada := f.criar(t, f.professor, "2026-03-03", "")
	_, err = f.svc.Rejeitar(ctx, f.ensino.Actor(), rejeitada.ID, "sem comprovante")
	require.NoError(t, err)

	cases := []struct {
		name string
		fn   func() error
	}{
		{"aprovar aprovada", func() error { _, err := f.svc.Aprovar(ctx, f.ensino.Actor(), aprovada.ID, ""); return err }},
		{"rejeitar aprovada", func() error { _, err := f.svc.Rejeitar(ctx, f.ensino.Actor(), aprovada.ID, "x"); return err }},
		{"aprovar rejeitada", func() error { _, err := f.svc.Aprovar(ctx, f.ensino.Actor(), rejeitada.ID, ""); return err }},
		{"rejeitar rejeitada", func() error { _, err := f.svc.Rejeitar(ctx, f.ensino.Actor(), rejeitada.ID, "x"); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
		})
	}

	entradas := f.auditoria(t)
	for _, e := range entradas[:len(cases)] {
		assert.Equal(t, repo.AuditoriaErro, e.Status)
	}
}

func TestAprovacaoConcorrente(t *testing.T) {
	f := newFixture(t)
	j := f.criar(t, f.professor, "2026-03-02", "")

	const n = 8
	var wg sync.WaitGroup
	erros := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			aprovador := f.ensino
			if i%2 == 0 {
				aprovador = f.coordenador
			}
			_, err := f.svc.Aprovar(context.Background(), aprovador.Actor(), j.ID, "")
			erros <- err
		}(i)
	}
	wg.Wait()
	close(erros)

	var sucesso, invalidas int
	for err := range erros {
		switch {
		case err == nil:
			sucesso++
		case errors.Is(err, apperr.ErrInvalidStateTransition):
			invalidas++
		default:
			t.Fatalf("erro inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, sucesso)
	assert.Equal(t, n-1, invalidas)

	var aprovacoes int
	for _, e := range f.auditoria(t) {
		if e.Tipo == repo.AcaoApprove && e.Status == repo.AuditoriaSucesso {
			aprovacoes++
		}
	}
	assert.Equal(t, 1, aprovacoes)
}

func TestAnexarArquivo(t *testing.T) {
	f := newFixture(t)
	j := f.criar(t, f.professor, "2026-03-02", "")
	ctx := context.Background()
	pdf := Anexo{Nome: "atestado.pdf", TipoConteudo: "application/pdf", Conteudo: []byte("%PDF-1.4")}

	_, err := f.svc.AnexarArquivo(ctx, f.colega.Actor(), j.ID, pdf)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.AnexarArquivo(ctx, f.professor.Actor(), j.ID, Anexo{Nome: "x.exe", TipoConteudo: "application/x-msdownload", Conteudo: []byte("MZ")})
	require.ErrorIs(t, err, apperr.ErrValidation)

	atualizada, err := f.svc.AnexarArquivo(ctx, f.professor.Actor(), j.ID, pdf)
	require.NoError(t, err)
	require.Len(t, atualizada.Anexos, 1)
	assert.True(t, strings.HasPrefix(atualizada.Anexos[0], "mem://anexos/justificativas/"+j.ID.String()+"/"))
	assert.Equal(t, 2, atualizada.Versao)

	chave := strings.TrimPrefix(atualizada.Anexos[0], "mem://anexos/")
	obj, ok := f.arquivos.Objeto(chave)
	require.True(t, ok)
	assert.Equal(t, pdf.Conteudo, obj.Conteudo)

	_, err = f.svc.Aprovar(ctx, f.ensino.Actor(), j.ID, "")
	require.NoError(t, err)
	_, err = f.svc.AnexarArquivo(ctx, f.professor.Actor(), j.ID, pdf)
	require.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestAnexarSemStorage(t *testing.T) {
	f := newFixture(t)
	f.svc.uploader = storage.NoopUploader{}
	j := f.criar(t, f.professor, "2026-03-02", "")

	_, err := f.svc.AnexarArquivo(context.Background(), f.professor.Actor(), j.ID,
		Anexo{Nome: "a.png", TipoConteudo: "image/png", Conteudo: []byte{0x89, 'P', 'N', 'G'}})
	require.ErrorIs(t, err, storage.ErrNaoConfigurado)

	entradas := f.auditoria(t)
	assert.Equal(t, repo.AuditoriaErro, entradas[0].Status)
}

func TestListarEObterEscopo(t *testing.T) {
	f := newFixture(t)
	minha := f.criar(t, f.professor, "2026-03-02", "")
	f.criar(t, f.colega, "2026-03-02", "")
	ctx := context.Background()

	lista, err := f.svc.Listar(ctx, f.professor.Actor(), Filtro{})
	require.NoError(t, err)
	require.Len(t, lista, 1)
	assert.Equal(t, minha.ID, lista[0].ID)

	for _, u := range []repo.Usuario{f.coordenador, f.diretor, f.ensino} {
		lista, err = f.svc.Listar(ctx, u.Actor(), Filtro{})
		require.NoError(t, err)
		assert.Len(t, lista, 2, u.Papel)
	}

	lista, err = f.svc.Listar(ctx, f.ensino.Actor(), Filtro{Status: []repo.StatusJustificativa{repo.JustificativaAprovada}})
	require.NoError(t, err)
	assert.Empty(t, lista)

	_, err = f.svc.Obter(ctx, f.colega.Actor(), minha.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Obter(ctx, f.diretor.Actor(), minha.ID)
	require.NoError(t, err)

	_, err = f.svc.Obter(ctx, f.diretor.Actor(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
