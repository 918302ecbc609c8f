package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/authz"
)

// UsuarioFilter restringe a listagem de usuários.
type UsuarioFilter struct {
	Papel  *authz.Role
	Campus string
	Setor  string
	Busca  string
	Limit  int
	Offset int
}

// RegistroFilter restringe consultas de frequência.
type RegistroFilter struct {
	UsuarioID *uuid.UUID
	Setor     string
	Status    []StatusFrequencia
	Inicio    *time.Time
	Fim       *time.Time
	Limit     int
	Offset    int
}

// JustificativaFilter restringe consultas de justificativas.
type JustificativaFilter struct {
	SolicitanteID *uuid.UUID
	Status        []StatusJustificativa
	Tipo          *TipoJustificativa
	Inicio        *time.Time
	Fim           *time.Time
	Limit         int
	Offset        int
}

// AuditoriaFilter restringe consultas ao log de auditoria.
type AuditoriaFilter struct {
	AtorID    *uuid.UUID
	Categoria *CategoriaAuditoria
	Tipo      *TipoAcao
	Status    *StatusAuditoria
	Inicio    *time.Time
	Fim       *time.Time
	Limit     int
	Offset    int
}

// Querier reúne as operações de persistência usadas pelos serviços. As
// implementações executam tudo dentro da transação (ou leitura) corrente.
type Querier interface {
	GetUsuario(ctx context.Context, id uuid.UUID) (Usuario, error)
	GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error)
	ListUsuarios(ctx context.Context, filter UsuarioFilter) ([]Usuario, error)
	ListUsuariosByPapel(ctx context.Context, papeis []authz.Role) ([]Usuario, error)
	InsertUsuario(ctx context.Context, u Usuario) error
	UpdateUsuario(ctx context.Context, u Usuario) error
	DeleteUsuario(ctx context.Context, id uuid.UUID) error
	CountRegistrosByUsuario(ctx context.Context, usuarioID uuid.UUID) (int, error)

	GetRegistro(ctx context.Context, id uuid.UUID) (RegistroFrequencia, error)
	GetRegistroAberto(ctx context.Context, usuarioID uuid.UUID, data time.Time) (RegistroFrequencia, error)
	ListRegistros(ctx context.Context, filter RegistroFilter) ([]RegistroFrequencia, error)
	InsertRegistro(ctx context.Context, r RegistroFrequencia) error
	UpdateRegistro(ctx context.Context, r RegistroFrequencia) error

	GetJustificativaForUpdate(ctx context.Context, id uuid.UUID) (Justificativa, error)
	GetJustificativa(ctx context.Context, id uuid.UUID) (Justificativa, error)
	ListJustificativas(ctx context.Context, filter JustificativaFilter) ([]Justificativa, error)
	InsertJustificativa(ctx context.Context, j Justificativa) error
	// UpdateJustificativa grava se a versão armazenada for igual a expected e
	// incrementa a versão; caso contrário devolve ErrConflict.
	UpdateJustificativa(ctx context.Context, j Justificativa, expected int) error

	AppendAuditoria(ctx context.Context, e EntradaAuditoria) error
	ListAuditoria(ctx context.Context, filter AuditoriaFilter) ([]EntradaAuditoria, error)

	ListPermissoes(ctx context.Context) ([]Permissao, error)
	GetPermissao(ctx context.Context, id uuid.UUID) (Permissao, error)
	InsertPermissao(ctx context.Context, p Permissao) error
	DeletePermissao(ctx context.Context, id uuid.UUID) error

	// GetConfig devolve ErrNotFound enquanto nenhuma configuração foi salva.
	GetConfig(ctx context.Context) (ConfigFrequencia, error)
	SaveConfig(ctx context.Context, cfg ConfigFrequencia) error
}

// Store abre leituras e transações sobre o Querier.
type Store interface {
	View(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
	WithTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
