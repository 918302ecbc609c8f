// Package permissao mantém as permissões nomeadas exibidas nas configurações.
// Permissões de sistema vêm das seeds e não podem ser removidas.
package permissao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

type Service struct {
	store     repo.Store
	recorder  *auditoria.Recorder
	validator *util.Validator
	now       func() time.Time
}

func NewService(store repo.Store, recorder *auditoria.Recorder, validator *util.Validator) *Service {
	return &Service{store: store, recorder: recorder, validator: validator, now: util.Now}
}

// CriarInput descreve uma permissão customizada.
type CriarInput struct {
	Nome      string                  `json:"nome" validate:"required,min=3,max=80"`
	Papel     authz.Role              `json:"papel" validate:"required,oneof=diretor diretor_ensino coordenador professor"`
	Categoria repo.CategoriaPermissao `json:"categoria" validate:"required,oneof=usuarios frequencia relatorios sistema"`
	Descricao string                  `json:"descricao" validate:"max=500"`
}

// Listar exige canViewSettings.
func (s *Service) Listar(ctx context.Context, actor authz.Actor) ([]repo.Permissao, error) {
	if !authz.Authorize(actor, authz.CanViewSettings) {
		return nil, apperr.Unauthorized(authz.CanViewSettings)
	}
	var out []repo.Permissao
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		out, err = q.ListPermissoes(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Criar exige canManageSettings. Nome repetido para o mesmo papel é recusado.
func (s *Service) Criar(ctx context.Context, actor authz.Actor, input CriarInput) (repo.Permissao, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Criar permissão",
		Categoria: repo.CategoriaAuditoriaPermissao,
		Tipo:      repo.AcaoCreate,
		Descricao: "Permissão criada",
	}
	if !authz.Authorize(actor, authz.CanManageSettings) {
		return repo.Permissao{}, s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanManageSettings))
	}

	var criada repo.Permissao
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		input.Nome = strings.TrimSpace(input.Nome)
		input.Descricao = strings.TrimSpace(input.Descricao)
		if err := s.validator.Struct(input); err != nil {
			return err
		}
		existentes, err := q.ListPermissoes(ctx)
		if err != nil {
			return err
		}
		for _, p := range existentes {
			if p.Papel == input.Papel && strings.EqualFold(p.Nome, input.Nome) {
				return apperr.ValidationFields("dados inválidos", map[string]string{"nome": "já existe para este papel"})
			}
		}

		p := repo.Permissao{
			ID:        uuid.New(),
			Nome:      input.Nome,
			Papel:     input.Papel,
			Categoria: input.Categoria,
			Descricao: input.Descricao,
			CriadoEm:  s.now(),
		}
		if err := q.InsertPermissao(ctx, p); err != nil {
			return err
		}
		ev.AlvoID = p.ID.String()
		ev.Descricao = fmt.Sprintf("Permissão %q criada para %s", p.Nome, p.Papel)
		criada = p
		return nil
	})
	if err != nil {
		return repo.Permissao{}, err
	}
	return criada, nil
}

// Remover exige canManageSettings e recusa permissões de sistema.
func (s *Service) Remover(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Remover permissão",
		Categoria: repo.CategoriaAuditoriaPermissao,
		Tipo:      repo.AcaoDelete,
		Descricao: "Tentativa de remover permissão falhou",
		AlvoID:    id.String(),
	}
	if !authz.Authorize(actor, authz.CanManageSettings) {
		return s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanManageSettings))
	}

	return s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		p, err := q.GetPermissao(ctx, id)
		if err != nil {
			return err
		}
		if p.Sistema {
			return apperr.Validation("permissão de sistema não pode ser removida")
		}
		if err := q.DeletePermissao(ctx, id); err != nil {
			return err
		}
		ev.Descricao = fmt.Sprintf("Permissão %q removida de %s", p.Nome, p.Papel)
		return nil
	})
}
