package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/db"
)

const dbTimeout = 3 * time.Second

// DBTX é satisfeito tanto por *pgxpool.Pool quanto por pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries implementa Querier sobre Postgres.
type Queries struct {
	db DBTX
}

// New cria Queries sobre uma conexão ou transação.
func New(conn DBTX) *Queries {
	return &Queries{db: conn}
}

// PgStore abre leituras no pool e transações explícitas.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore cria o store Postgres.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// View executa fn com consultas diretas ao pool.
func (s *PgStore) View(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return fn(ctx, New(s.pool))
}

// WithTx executa fn dentro de uma transação; qualquer erro faz rollback.
func (s *PgStore) WithTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, New(tx))
	})
}

const usuarioColumns = `id, nome, email, papel, campus, setor, matricula, telefone, coordenador_id,
        carga_horaria, turno_noturno_id, ativo, senha_hash, criado_em, atualizado_em`

func (q *Queries) GetUsuario(ctx context.Context, id uuid.UUID) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := q.db.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, id)
	return scanUsuario(row)
}

func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	normalized := strings.ToLower(strings.TrimSpace(email))
	row := q.db.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE email = $1`, normalized)
	return scanUsuario(row)
}

func (q *Queries) ListUsuarios(ctx context.Context, filter UsuarioFilter) ([]Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	w := newWhere()
	if filter.Papel != nil {
		w.add("papel = $%d", string(*filter.Papel))
	}
	if filter.Campus != "" {
		w.add("lower(campus) = lower($%d)", filter.Campus)
	}
	if filter.Setor != "" {
		w.add("lower(setor) = lower($%d)", filter.Setor)
	}
	if busca := strings.TrimSpace(filter.Busca); busca != "" {
		w.add("(nome ILIKE $%[1]d OR email ILIKE $%[1]d OR matricula ILIKE $%[1]d)", "%"+busca+"%")
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	query := `SELECT ` + usuarioColumns + ` FROM usuarios` + w.sql() +
		fmt.Sprintf(" ORDER BY nome ASC LIMIT %d OFFSET %d", limit, offset)

	rows, err := q.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *Queries) ListUsuariosByPapel(ctx context.Context, papeis []authz.Role) ([]Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	values := make([]string, len(papeis))
	for i, p := range papeis {
		values[i] = string(p)
	}

	rows, err := q.db.Query(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE ativo AND papel = ANY($1) ORDER BY nome`, values)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *Queries) InsertUsuario(ctx context.Context, u Usuario) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        INSERT INTO usuarios (id, nome, email, papel, campus, setor, matricula, telefone, coordenador_id,
            carga_horaria, turno_noturno_id, ativo, senha_hash, criado_em, atualizado_em)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `
	_, err := q.db.Exec(ctx, query,
		u.ID, u.Nome, strings.ToLower(strings.TrimSpace(u.Email)), string(u.Papel), u.Campus, u.Setor,
		u.Matricula, u.Telefone, u.CoordenadorID, u.CargaHoraria, u.TurnoNoturnoID, u.Ativo,
		u.SenhaHash, u.CriadoEm, u.AtualizadoEm,
	)
	return mapPgError(err)
}

func (q *Queries) UpdateUsuario(ctx context.Context, u Usuario) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        UPDATE usuarios SET nome = $2, email = $3, campus = $4, setor = $5, matricula = $6, telefone = $7,
            coordenador_id = $8, carga_horaria = $9, turno_noturno_id = $10, ativo = $11, senha_hash = $12,
            atualizado_em = $13
        WHERE id = $1
    `
	tag, err := q.db.Exec(ctx, query,
		u.ID, u.Nome, strings.ToLower(strings.TrimSpace(u.Email)), u.Campus, u.Setor, u.Matricula,
		u.Telefone, u.CoordenadorID, u.CargaHoraria, u.TurnoNoturnoID, u.Ativo, u.SenhaHash, u.AtualizadoEm,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteUsuario(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := q.db.Exec(ctx, `DELETE FROM usuarios WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) CountRegistrosByUsuario(ctx context.Context, usuarioID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM registros_frequencia WHERE usuario_id = $1`, usuarioID).Scan(&n)
	return n, err
}

const registroColumns = `r.id, r.usuario_id, r.data, r.entrada, r.saida, r.status, r.status_manual, r.metodos,
        r.lat, r.lng, r.observacao, r.criado_em, r.atualizado_em`

func (q *Queries) GetRegistro(ctx context.Context, id uuid.UUID) (RegistroFrequencia, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := q.db.QueryRow(ctx, `SELECT `+registroColumns+` FROM registros_frequencia r WHERE r.id = $1`, id)
	return scanRegistro(row)
}

func (q *Queries) GetRegistroAberto(ctx context.Context, usuarioID uuid.UUID, data time.Time) (RegistroFrequencia, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `SELECT ` + registroColumns + `
        FROM registros_frequencia r
        WHERE r.usuario_id = $1 AND r.data = $2 AND r.entrada IS NOT NULL AND r.saida IS NULL
        ORDER BY r.entrada DESC
        LIMIT 1
        FOR UPDATE`
	row := q.db.QueryRow(ctx, query, usuarioID, DateOnly(data))
	return scanRegistro(row)
}

func (q *Queries) ListRegistros(ctx context.Context, filter RegistroFilter) ([]RegistroFrequencia, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	w := newWhere()
	if filter.UsuarioID != nil {
		w.add("r.usuario_id = $%d", *filter.UsuarioID)
	}
	if filter.Setor != "" {
		w.add("lower(u.setor) = lower($%d)", filter.Setor)
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		w.add("r.status = ANY($%d)", values)
	}
	if filter.Inicio != nil {
		w.add("r.data >= $%d", DateOnly(*filter.Inicio))
	}
	if filter.Fim != nil {
		w.add("r.data <= $%d", DateOnly(*filter.Fim))
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	query := `SELECT ` + registroColumns + `
        FROM registros_frequencia r
        JOIN usuarios u ON u.id = r.usuario_id` + w.sql() +
		fmt.Sprintf(" ORDER BY r.data DESC, r.criado_em DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := q.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RegistroFrequencia
	for rows.Next() {
		r, err := scanRegistro(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) InsertRegistro(ctx context.Context, r RegistroFrequencia) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	lat, lng := latLng(r.Localizacao)
	const query = `
        INSERT INTO registros_frequencia (id, usuario_id, data, entrada, saida, status, status_manual, metodos,
            lat, lng, observacao, criado_em, atualizado_em)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `
	_, err := q.db.Exec(ctx, query,
		r.ID, r.UsuarioID, DateOnly(r.Data), r.Entrada, r.Saida, string(r.Status), r.StatusManual,
		metodosToStrings(r.Metodos), lat, lng, r.Observacao, r.CriadoEm, r.AtualizadoEm,
	)
	return mapPgError(err)
}

func (q *Queries) UpdateRegistro(ctx context.Context, r RegistroFrequencia) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	lat, lng := latLng(r.Localizacao)
	const query = `
        UPDATE registros_frequencia SET entrada = $2, saida = $3, status = $4, status_manual = $5, metodos = $6,
            lat = $7, lng = $8, observacao = $9, atualizado_em = $10
        WHERE id = $1
    `
	tag, err := q.db.Exec(ctx, query,
		r.ID, r.Entrada, r.Saida, string(r.Status), r.StatusManual, metodosToStrings(r.Metodos),
		lat, lng, r.Observacao, r.AtualizadoEm,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const justificativaColumns = `id, solicitante_id, data_inicio, data_fim, tipo, descricao, anexos, status,
        decidido_por, decidido_em, motivo, versao, criado_em`

func (q *Queries) GetJustificativaForUpdate(ctx context.Context, id uuid.UUID) (Justificativa, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := q.db.QueryRow(ctx, `SELECT `+justificativaColumns+` FROM justificativas WHERE id = $1 FOR UPDATE`, id)
	return scanJustificativa(row)
}

func (q *Queries) GetJustificativa(ctx context.Context, id uuid.UUID) (Justificativa, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := q.db.QueryRow(ctx, `SELECT `+justificativaColumns+` FROM justificativas WHERE id = $1`, id)
	return scanJustificativa(row)
}

func (q *Queries) ListJustificativas(ctx context.Context, filter JustificativaFilter) ([]Justificativa, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	w := newWhere()
	if filter.SolicitanteID != nil {
		w.add("solicitante_id = $%d", *filter.SolicitanteID)
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		w.add("status = ANY($%d)", values)
	}
	if filter.Tipo != nil {
		w.add("tipo = $%d", string(*filter.Tipo))
	}
	if filter.Inicio != nil {
		w.add("COALESCE(data_fim, data_inicio) >= $%d", DateOnly(*filter.Inicio))
	}
	if filter.Fim != nil {
		w.add("data_inicio <= $%d", DateOnly(*filter.Fim))
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	query := `SELECT ` + justificativaColumns + ` FROM justificativas` + w.sql() +
		fmt.Sprintf(" ORDER BY criado_em DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := q.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Justificativa
	for rows.Next() {
		j, err := scanJustificativa(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (q *Queries) InsertJustificativa(ctx context.Context, j Justificativa) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	anexos := j.Anexos
	if anexos == nil {
		anexos = []string{}
	}
	const query = `
        INSERT INTO justificativas (id, solicitante_id, data_inicio, data_fim, tipo, descricao, anexos, status,
            decidido_por, decidido_em, motivo, versao, criado_em)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `
	_, err := q.db.Exec(ctx, query,
		j.ID, j.SolicitanteID, DateOnly(j.DataInicio), dateOnlyPtr(j.DataFim), string(j.Tipo), j.Descricao, anexos,
		string(j.Status), j.DecididoPor, j.DecididoEm, j.Motivo, j.Versao, j.CriadoEm,
	)
	return mapPgError(err)
}

func (q *Queries) UpdateJustificativa(ctx context.Context, j Justificativa, expected int) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	anexos := j.Anexos
	if anexos == nil {
		anexos = []string{}
	}
	const query = `
        UPDATE justificativas SET anexos = $2, status = $3, decidido_por = $4, decidido_em = $5, motivo = $6,
            versao = versao + 1
        WHERE id = $1 AND versao = $7
    `
	tag, err := q.db.Exec(ctx, query, j.ID, anexos, string(j.Status), j.DecididoPor, j.DecididoEm, j.Motivo, expected)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (q *Queries) AppendAuditoria(ctx context.Context, e EntradaAuditoria) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	alteracoes, err := json.Marshal(e.Alteracoes)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO auditoria (id, momento, ator_id, ator_papel, acao, categoria, tipo, status, descricao,
            alteracoes, alvo_id, ip, cliente, request_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `
	_, err = q.db.Exec(ctx, query,
		e.ID, e.Momento, e.AtorID, e.AtorPapel, e.Acao, string(e.Categoria), string(e.Tipo), string(e.Status),
		e.Descricao, alteracoes, e.AlvoID, e.IP, e.Cliente, e.RequestID,
	)
	return err
}

func (q *Queries) ListAuditoria(ctx context.Context, filter AuditoriaFilter) ([]EntradaAuditoria, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	w := newWhere()
	if filter.AtorID != nil {
		w.add("ator_id = $%d", *filter.AtorID)
	}
	if filter.Categoria != nil {
		w.add("categoria = $%d", string(*filter.Categoria))
	}
	if filter.Tipo != nil {
		w.add("tipo = $%d", string(*filter.Tipo))
	}
	if filter.Status != nil {
		w.add("status = $%d", string(*filter.Status))
	}
	if filter.Inicio != nil {
		w.add("momento >= $%d", *filter.Inicio)
	}
	if filter.Fim != nil {
		w.add("momento <= $%d", *filter.Fim)
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	query := `SELECT id, momento, ator_id, ator_papel, acao, categoria, tipo, status, descricao, alteracoes,
            alvo_id, ip, cliente, request_id
        FROM auditoria` + w.sql() +
		fmt.Sprintf(" ORDER BY id DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := q.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntradaAuditoria
	for rows.Next() {
		var (
			e          EntradaAuditoria
			categoria  string
			tipo       string
			status     string
			alteracoes []byte
		)
		if err := rows.Scan(&e.ID, &e.Momento, &e.AtorID, &e.AtorPapel, &e.Acao, &categoria, &tipo, &status,
			&e.Descricao, &alteracoes, &e.AlvoID, &e.IP, &e.Cliente, &e.RequestID); err != nil {
			return nil, err
		}
		e.Categoria = CategoriaAuditoria(categoria)
		e.Tipo = TipoAcao(tipo)
		e.Status = StatusAuditoria(status)
		if len(alteracoes) > 0 {
			if err := json.Unmarshal(alteracoes, &e.Alteracoes); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) ListPermissoes(ctx context.Context) ([]Permissao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := q.db.Query(ctx, `SELECT id, nome, papel, categoria, descricao, sistema, criado_em
        FROM permissoes ORDER BY categoria, nome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Permissao
	for rows.Next() {
		p, err := scanPermissao(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) GetPermissao(ctx context.Context, id uuid.UUID) (Permissao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := q.db.QueryRow(ctx, `SELECT id, nome, papel, categoria, descricao, sistema, criado_em
        FROM permissoes WHERE id = $1`, id)
	return scanPermissao(row)
}

func (q *Queries) InsertPermissao(ctx context.Context, p Permissao) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := q.db.Exec(ctx, `INSERT INTO permissoes (id, nome, papel, categoria, descricao, sistema, criado_em)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Nome, string(p.Papel), string(p.Categoria), p.Descricao, p.Sistema, p.CriadoEm)
	return mapPgError(err)
}

func (q *Queries) DeletePermissao(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := q.db.Exec(ctx, `DELETE FROM permissoes WHERE id = $1 AND NOT sistema`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) GetConfig(ctx context.Context) (ConfigFrequencia, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		payload []byte
		cfg     ConfigFrequencia
	)
	err := q.db.QueryRow(ctx, `SELECT dados, atualizado_em, atualizado_por FROM configuracoes WHERE singleton = TRUE`).
		Scan(&payload, &cfg.AtualizadoEm, &cfg.AtualizadoPor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConfigFrequencia{}, ErrNotFound
		}
		return ConfigFrequencia{}, err
	}

	atualizadoEm, atualizadoPor := cfg.AtualizadoEm, cfg.AtualizadoPor
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return ConfigFrequencia{}, err
	}
	cfg.AtualizadoEm, cfg.AtualizadoPor = atualizadoEm, atualizadoPor
	return cfg, nil
}

func (q *Queries) SaveConfig(ctx context.Context, cfg ConfigFrequencia) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO configuracoes (singleton, dados, atualizado_em, atualizado_por)
        VALUES (TRUE, $1, $2, $3)
        ON CONFLICT (singleton)
        DO UPDATE SET dados = EXCLUDED.dados, atualizado_em = EXCLUDED.atualizado_em, atualizado_por = EXCLUDED.atualizado_por
    `
	_, err = q.db.Exec(ctx, query, payload, cfg.AtualizadoEm, cfg.AtualizadoPor)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsuario(row rowScanner) (Usuario, error) {
	var (
		u     Usuario
		papel string
	)
	err := row.Scan(&u.ID, &u.Nome, &u.Email, &papel, &u.Campus, &u.Setor, &u.Matricula, &u.Telefone,
		&u.CoordenadorID, &u.CargaHoraria, &u.TurnoNoturnoID, &u.Ativo, &u.SenhaHash, &u.CriadoEm, &u.AtualizadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	u.Papel = authz.Role(papel)
	return u, nil
}

func scanRegistro(row rowScanner) (RegistroFrequencia, error) {
	var (
		r        RegistroFrequencia
		status   string
		metodos  []string
		lat, lng *float64
	)
	err := row.Scan(&r.ID, &r.UsuarioID, &r.Data, &r.Entrada, &r.Saida, &status, &r.StatusManual, &metodos,
		&lat, &lng, &r.Observacao, &r.CriadoEm, &r.AtualizadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RegistroFrequencia{}, ErrNotFound
		}
		return RegistroFrequencia{}, err
	}
	r.Status = StatusFrequencia(status)
	for _, m := range metodos {
		r.Metodos = append(r.Metodos, MetodoVerificacao(m))
	}
	if lat != nil && lng != nil {
		r.Localizacao = &Localizacao{Lat: *lat, Lng: *lng}
	}
	return r, nil
}

func scanJustificativa(row rowScanner) (Justificativa, error) {
	var (
		j      Justificativa
		tipo   string
		status string
	)
	err := row.Scan(&j.ID, &j.SolicitanteID, &j.DataInicio, &j.DataFim, &tipo, &j.Descricao, &j.Anexos, &status,
		&j.DecididoPor, &j.DecididoEm, &j.Motivo, &j.Versao, &j.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Justificativa{}, ErrNotFound
		}
		return Justificativa{}, err
	}
	j.Tipo = TipoJustificativa(tipo)
	j.Status = StatusJustificativa(status)
	return j, nil
}

func scanPermissao(row rowScanner) (Permissao, error) {
	var (
		p         Permissao
		papel     string
		categoria string
	)
	err := row.Scan(&p.ID, &p.Nome, &papel, &categoria, &p.Descricao, &p.Sistema, &p.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permissao{}, ErrNotFound
		}
		return Permissao{}, err
	}
	p.Papel = authz.Role(papel)
	p.Categoria = CategoriaPermissao(categoria)
	return p, nil
}

// mapPgError traduz violações de constraint para erros de domínio.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if strings.Contains(pgErr.ConstraintName, "email") {
				return ErrEmailEmUso
			}
			return apperr.Validation("registro duplicado")
		case "23503":
			return apperr.ReferentialIntegrity("registro possui dependências")
		}
	}
	return err
}

func metodosToStrings(metodos []MetodoVerificacao) []string {
	out := make([]string, len(metodos))
	for i, m := range metodos {
		out[i] = string(m)
	}
	return out
}

func latLng(loc *Localizacao) (*float64, *float64) {
	if loc == nil {
		return nil, nil
	}
	lat, lng := loc.Lat, loc.Lng
	return &lat, &lng
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := DateOnly(*t)
	return &d
}

// where acumula cláusulas numerando os placeholders na ordem de inclusão.
type where struct {
	clauses []string
	args    []any
}

func newWhere() *where {
	return &where{}
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
