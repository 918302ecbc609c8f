package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/authz"
)

// MemoryStore mantém os dados em memória. Transações são serializadas por um
// mutex e aplicadas sobre uma cópia do estado, descartada em caso de erro.
// Usado em testes e no modo de demonstração.
type MemoryStore struct {
	mu sync.RWMutex
	st *memState
}

type memState struct {
	usuarios       map[uuid.UUID]Usuario
	registros      map[uuid.UUID]RegistroFrequencia
	justificativas map[uuid.UUID]Justificativa
	auditoria      []EntradaAuditoria
	permissoes     map[uuid.UUID]Permissao
	config         *ConfigFrequencia
}

// NewMemoryStore cria um store vazio.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memState{
		usuarios:       make(map[uuid.UUID]Usuario),
		registros:      make(map[uuid.UUID]RegistroFrequencia),
		justificativas: make(map[uuid.UUID]Justificativa),
		permissoes:     make(map[uuid.UUID]Permissao),
	}}
}

// View executa fn com acesso somente leitura.
func (m *MemoryStore) View(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(ctx, &memQuerier{st: m.st, readOnly: true})
}

// WithTx executa fn de forma exclusiva; o estado só é substituído se fn não falhar.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.st.clone()
	if err := fn(ctx, &memQuerier{st: draft}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.st = draft
	return nil
}

func (s *memState) clone() *memState {
	c := &memState{
		usuarios:       make(map[uuid.UUID]Usuario, len(s.usuarios)),
		registros:      make(map[uuid.UUID]RegistroFrequencia, len(s.registros)),
		justificativas: make(map[uuid.UUID]Justificativa, len(s.justificativas)),
		auditoria:      make([]EntradaAuditoria, len(s.auditoria)),
		permissoes:     make(map[uuid.UUID]Permissao, len(s.permissoes)),
	}
	for k, v := range s.usuarios {
		c.usuarios[k] = v
	}
	for k, v := range s.registros {
		c.registros[k] = v
	}
	for k, v := range s.justificativas {
		c.justificativas[k] = v
	}
	copy(c.auditoria, s.auditoria)
	for k, v := range s.permissoes {
		c.permissoes[k] = v
	}
	if s.config != nil {
		cfg := copyConfig(*s.config)
		c.config = &cfg
	}
	return c
}

type memQuerier struct {
	st       *memState
	readOnly bool
}

func (q *memQuerier) writable() error {
	if q.readOnly {
		return ErrSomenteLeitura
	}
	return nil
}

func (q *memQuerier) GetUsuario(ctx context.Context, id uuid.UUID) (Usuario, error) {
	u, ok := q.st.usuarios[id]
	if !ok {
		return Usuario{}, ErrNotFound
	}
	return u, nil
}

func (q *memQuerier) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range q.st.usuarios {
		if u.Email == email {
			return u, nil
		}
	}
	return Usuario{}, ErrNotFound
}

func (q *memQuerier) ListUsuarios(ctx context.Context, filter UsuarioFilter) ([]Usuario, error) {
	busca := strings.ToLower(strings.TrimSpace(filter.Busca))
	out := make([]Usuario, 0, len(q.st.usuarios))
	for _, u := range q.st.usuarios {
		if filter.Papel != nil && u.Papel != *filter.Papel {
			continue
		}
		if filter.Campus != "" && !strings.EqualFold(u.Campus, filter.Campus) {
			continue
		}
		if filter.Setor != "" && !strings.EqualFold(u.Setor, filter.Setor) {
			continue
		}
		if busca != "" && !strings.Contains(strings.ToLower(u.Nome), busca) && !strings.Contains(u.Email, busca) &&
			!strings.Contains(strings.ToLower(u.Matricula), busca) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nome < out[j].Nome })
	return page(out, filter.Limit, filter.Offset), nil
}

func (q *memQuerier) ListUsuariosByPapel(ctx context.Context, papeis []authz.Role) ([]Usuario, error) {
	want := make(map[authz.Role]struct{}, len(papeis))
	for _, p := range papeis {
		want[p] = struct{}{}
	}
	var out []Usuario
	for _, u := range q.st.usuarios {
		if _, ok := want[u.Papel]; ok && u.Ativo {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nome < out[j].Nome })
	return out, nil
}

func (q *memQuerier) InsertUsuario(ctx context.Context, u Usuario) error {
	if err := q.writable(); err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, err := q.GetUsuarioByEmail(ctx, u.Email); err == nil {
		return ErrEmailEmUso
	}
	q.st.usuarios[u.ID] = u
	return nil
}

func (q *memQuerier) UpdateUsuario(ctx context.Context, u Usuario) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.usuarios[u.ID]; !ok {
		return ErrNotFound
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if other, err := q.GetUsuarioByEmail(ctx, u.Email); err == nil && other.ID != u.ID {
		return ErrEmailEmUso
	}
	q.st.usuarios[u.ID] = u
	return nil
}

func (q *memQuerier) DeleteUsuario(ctx context.Context, id uuid.UUID) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.usuarios[id]; !ok {
		return ErrNotFound
	}
	delete(q.st.usuarios, id)
	return nil
}

func (q *memQuerier) CountRegistrosByUsuario(ctx context.Context, usuarioID uuid.UUID) (int, error) {
	var n int
	for _, r := range q.st.registros {
		if r.UsuarioID == usuarioID {
			n++
		}
	}
	return n, nil
}

func (q *memQuerier) GetRegistro(ctx context.Context, id uuid.UUID) (RegistroFrequencia, error) {
	r, ok := q.st.registros[id]
	if !ok {
		return RegistroFrequencia{}, ErrNotFound
	}
	return copyRegistro(r), nil
}

func (q *memQuerier) GetRegistroAberto(ctx context.Context, usuarioID uuid.UUID, data time.Time) (RegistroFrequencia, error) {
	day := DateOnly(data)
	var found *RegistroFrequencia
	for _, r := range q.st.registros {
		if r.UsuarioID != usuarioID || !r.Data.Equal(day) || r.Entrada == nil || r.Saida != nil {
			continue
		}
		if found == nil || r.Entrada.After(*found.Entrada) {
			cp := copyRegistro(r)
			found = &cp
		}
	}
	if found == nil {
		return RegistroFrequencia{}, ErrNotFound
	}
	return *found, nil
}

func (q *memQuerier) ListRegistros(ctx context.Context, filter RegistroFilter) ([]RegistroFrequencia, error) {
	out := make([]RegistroFrequencia, 0)
	for _, r := range q.st.registros {
		if filter.UsuarioID != nil && r.UsuarioID != *filter.UsuarioID {
			continue
		}
		if filter.Setor != "" {
			u, ok := q.st.usuarios[r.UsuarioID]
			if !ok || !strings.EqualFold(u.Setor, filter.Setor) {
				continue
			}
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, r.Status) {
			continue
		}
		if filter.Inicio != nil && r.Data.Before(DateOnly(*filter.Inicio)) {
			continue
		}
		if filter.Fim != nil && r.Data.After(DateOnly(*filter.Fim)) {
			continue
		}
		out = append(out, copyRegistro(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Data.Equal(out[j].Data) {
			return out[i].Data.After(out[j].Data)
		}
		return out[i].CriadoEm.After(out[j].CriadoEm)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (q *memQuerier) InsertRegistro(ctx context.Context, r RegistroFrequencia) error {
	if err := q.writable(); err != nil {
		return err
	}
	r.Data = DateOnly(r.Data)
	q.st.registros[r.ID] = copyRegistro(r)
	return nil
}

func (q *memQuerier) UpdateRegistro(ctx context.Context, r RegistroFrequencia) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.registros[r.ID]; !ok {
		return ErrNotFound
	}
	q.st.registros[r.ID] = copyRegistro(r)
	return nil
}

func (q *memQuerier) GetJustificativaForUpdate(ctx context.Context, id uuid.UUID) (Justificativa, error) {
	return q.GetJustificativa(ctx, id)
}

func (q *memQuerier) GetJustificativa(ctx context.Context, id uuid.UUID) (Justificativa, error) {
	j, ok := q.st.justificativas[id]
	if !ok {
		return Justificativa{}, ErrNotFound
	}
	return copyJustificativa(j), nil
}

func (q *memQuerier) ListJustificativas(ctx context.Context, filter JustificativaFilter) ([]Justificativa, error) {
	out := make([]Justificativa, 0)
	for _, j := range q.st.justificativas {
		if filter.SolicitanteID != nil && j.SolicitanteID != *filter.SolicitanteID {
			continue
		}
		if len(filter.Status) > 0 {
			var match bool
			for _, s := range filter.Status {
				if s == j.Status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if filter.Tipo != nil && j.Tipo != *filter.Tipo {
			continue
		}
		if filter.Inicio != nil && j.Fim().Before(DateOnly(*filter.Inicio)) {
			continue
		}
		if filter.Fim != nil && j.DataInicio.After(DateOnly(*filter.Fim)) {
			continue
		}
		out = append(out, copyJustificativa(j))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CriadoEm.After(out[j].CriadoEm) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (q *memQuerier) InsertJustificativa(ctx context.Context, j Justificativa) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.justificativas[j.ID] = copyJustificativa(j)
	return nil
}

func (q *memQuerier) UpdateJustificativa(ctx context.Context, j Justificativa, expected int) error {
	if err := q.writable(); err != nil {
		return err
	}
	stored, ok := q.st.justificativas[j.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Versao != expected {
		return ErrConflict
	}
	j.Versao = expected + 1
	q.st.justificativas[j.ID] = copyJustificativa(j)
	return nil
}

func (q *memQuerier) AppendAuditoria(ctx context.Context, e EntradaAuditoria) error {
	if err := q.writable(); err != nil {
		return err
	}
	e.Alteracoes = append([]Alteracao(nil), e.Alteracoes...)
	q.st.auditoria = append(q.st.auditoria, e)
	return nil
}

func (q *memQuerier) ListAuditoria(ctx context.Context, filter AuditoriaFilter) ([]EntradaAuditoria, error) {
	out := make([]EntradaAuditoria, 0)
	for i := len(q.st.auditoria) - 1; i >= 0; i-- {
		e := q.st.auditoria[i]
		if filter.AtorID != nil && (e.AtorID == nil || *e.AtorID != *filter.AtorID) {
			continue
		}
		if filter.Categoria != nil && e.Categoria != *filter.Categoria {
			continue
		}
		if filter.Tipo != nil && e.Tipo != *filter.Tipo {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.Inicio != nil && e.Momento.Before(*filter.Inicio) {
			continue
		}
		if filter.Fim != nil && e.Momento.After(*filter.Fim) {
			continue
		}
		e.Alteracoes = append([]Alteracao(nil), e.Alteracoes...)
		out = append(out, e)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

func (q *memQuerier) ListPermissoes(ctx context.Context) ([]Permissao, error) {
	out := make([]Permissao, 0, len(q.st.permissoes))
	for _, p := range q.st.permissoes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Categoria != out[j].Categoria {
			return out[i].Categoria < out[j].Categoria
		}
		return out[i].Nome < out[j].Nome
	})
	return out, nil
}

func (q *memQuerier) GetPermissao(ctx context.Context, id uuid.UUID) (Permissao, error) {
	p, ok := q.st.permissoes[id]
	if !ok {
		return Permissao{}, ErrNotFound
	}
	return p, nil
}

func (q *memQuerier) InsertPermissao(ctx context.Context, p Permissao) error {
	if err := q.writable(); err != nil {
		return err
	}
	q.st.permissoes[p.ID] = p
	return nil
}

func (q *memQuerier) DeletePermissao(ctx context.Context, id uuid.UUID) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.permissoes[id]; !ok {
		return ErrNotFound
	}
	delete(q.st.permissoes, id)
	return nil
}

func (q *memQuerier) GetConfig(ctx context.Context) (ConfigFrequencia, error) {
	if q.st.config == nil {
		return ConfigFrequencia{}, ErrNotFound
	}
	return copyConfig(*q.st.config), nil
}

func (q *memQuerier) SaveConfig(ctx context.Context, cfg ConfigFrequencia) error {
	if err := q.writable(); err != nil {
		return err
	}
	cp := copyConfig(cfg)
	q.st.config = &cp
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = normalizeLimit(limit, offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func containsStatus(list []StatusFrequencia, s StatusFrequencia) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func copyRegistro(r RegistroFrequencia) RegistroFrequencia {
	r.Metodos = append([]MetodoVerificacao(nil), r.Metodos...)
	if r.Localizacao != nil {
		loc := *r.Localizacao
		r.Localizacao = &loc
	}
	return r
}

func copyJustificativa(j Justificativa) Justificativa {
	j.Anexos = append([]string(nil), j.Anexos...)
	return j
}

func copyConfig(c ConfigFrequencia) ConfigFrequencia {
	c.Turnos = append([]TurnoDiario(nil), c.Turnos...)
	c.TurnosNoturnos = append([]TurnoNoturno(nil), c.TurnosNoturnos...)
	c.Geofences = append([]Geofence(nil), c.Geofences...)
	c.RedesWiFi = append([]string(nil), c.RedesWiFi...)
	return c
}
