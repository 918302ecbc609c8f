package auditoria

import (
	"context"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
)

// Service expõe a consulta ao log. Não há operações de alteração ou exclusão.
type Service struct {
	store repo.Store
}

// NewService cria o serviço de consulta.
func NewService(store repo.Store) *Service {
	return &Service{store: store}
}

// Listar devolve entradas mais recentes primeiro; exige canViewAudit.
func (s *Service) Listar(ctx context.Context, actor authz.Actor, filter repo.AuditoriaFilter) ([]repo.EntradaAuditoria, error) {
	if !authz.Authorize(actor, authz.CanViewAudit) {
		return nil, apperr.Unauthorized(authz.CanViewAudit)
	}
	if filter.Inicio != nil && filter.Fim != nil && filter.Fim.Before(*filter.Inicio) {
		return nil, apperr.ValidationFields("período inválido", map[string]string{"fim": "deve ser posterior ao início"})
	}

	var out []repo.EntradaAuditoria
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		out, err = q.ListAuditoria(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []repo.EntradaAuditoria{}
	}
	return out, nil
}
