// Package usuario mantém o cadastro de servidores.
package usuario

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

const pageSize = 500

// Service aplica as regras de cadastro.
type Service struct {
	store     repo.Store
	recorder  *auditoria.Recorder
	validator *util.Validator
	now       func() time.Time
}

// NewService cria o serviço de usuários.
func NewService(store repo.Store, recorder *auditoria.Recorder, validator *util.Validator) *Service {
	return &Service{store: store, recorder: recorder, validator: validator, now: util.Now}
}

// CriarInput são os dados de um novo servidor.
type CriarInput struct {
	Nome           string     `json:"nome" validate:"required,min=3,max=120"`
	Email          string     `json:"email" validate:"required,institucional"`
	Papel          authz.Role `json:"papel" validate:"required,oneof=diretor diretor_ensino coordenador professor"`
	Campus         string     `json:"campus" validate:"required,max=80"`
	Setor          string     `json:"setor" validate:"required,max=80"`
	Matricula      string     `json:"matricula" validate:"required,max=30"`
	Telefone       string     `json:"telefone" validate:"omitempty,max=20"`
	CoordenadorID  *uuid.UUID `json:"coordenador_id" validate:"required_if=Papel professor"`
	CargaHoraria   int        `json:"carga_horaria" validate:"gte=0,lte=60"`
	TurnoNoturnoID *uuid.UUID `json:"turno_noturno_id"`
	Senha          string     `json:"senha" validate:"required"`
}

// Criar cadastra um servidor; exige canManageUsers.
func (s *Service) Criar(ctx context.Context, actor authz.Actor, input CriarInput) (repo.Usuario, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Criar usuário",
		Categoria: repo.CategoriaUsuario,
		Tipo:      repo.AcaoCreate,
		Descricao: "Usuário criado",
	}
	if !authz.Authorize(actor, authz.CanManageUsers) {
		return repo.Usuario{}, s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanManageUsers))
	}

	var criado repo.Usuario
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		input.Nome = strings.TrimSpace(input.Nome)
		input.Email = strings.ToLower(strings.TrimSpace(input.Email))
		input.Matricula = strings.TrimSpace(input.Matricula)
		if err := s.validator.Struct(input); err != nil {
			return err
		}
		if err := auth.CheckPolicy(input.Senha); err != nil {
			return apperr.ValidationFields("dados inválidos", map[string]string{"senha": err.Error()})
		}
		if err := validarVinculos(ctx, q, input.CoordenadorID, input.TurnoNoturnoID); err != nil {
			return err
		}

		hash, err := auth.Hash(input.Senha)
		if err != nil {
			return err
		}
		agora := s.now()
		u := repo.Usuario{
			ID:             uuid.New(),
			Nome:           input.Nome,
			Email:          input.Email,
			Papel:          input.Papel,
			Campus:         strings.TrimSpace(input.Campus),
			Setor:          strings.TrimSpace(input.Setor),
			Matricula:      input.Matricula,
			Telefone:       strings.TrimSpace(input.Telefone),
			CoordenadorID:  input.CoordenadorID,
			CargaHoraria:   input.CargaHoraria,
			TurnoNoturnoID: input.TurnoNoturnoID,
			Ativo:          true,
			SenhaHash:      hash,
			CriadoEm:       agora,
			AtualizadoEm:   agora,
		}
		if err := q.InsertUsuario(ctx, u); err != nil {
			return err
		}

		ev.AlvoID = u.ID.String()
		ev.Descricao = fmt.Sprintf("Usuário %s (%s) criado como %s", u.Nome, u.Email, u.Papel)
		criado = u
		return nil
	})
	if err != nil {
		return repo.Usuario{}, err
	}
	return criado, nil
}

// validarVinculos confere o coordenador e o turno noturno referenciados.
func validarVinculos(ctx context.Context, q repo.Querier, coordenadorID, turnoID *uuid.UUID) error {
	if coordenadorID != nil {
		coord, err := q.GetUsuario(ctx, *coordenadorID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && coord.Papel != authz.RoleCoordenador) {
			return apperr.ValidationFields("dados inválidos", map[string]string{"coordenador_id": "coordenador inexistente"})
		}
		if err != nil {
			return err
		}
	}
	if turnoID != nil {
		cfg, err := q.GetConfig(ctx)
		if errors.Is(err, repo.ErrNotFound) {
			cfg, err = repo.DefaultConfig(), nil
		}
		if err != nil {
			return err
		}
		if _, ok := cfg.TurnoNoturnoPorID(*turnoID); !ok {
			return apperr.ValidationFields("dados inválidos", map[string]string{"turno_noturno_id": "turno noturno inexistente"})
		}
	}
	return nil
}

// AtualizarInput traz apenas os campos a alterar. Papel existe só para
// rejeitar mudanças de papel explicitamente.
type AtualizarInput struct {
	Nome           *string     `json:"nome" validate:"omitempty,min=3,max=120"`
	Email          *string     `json:"email" validate:"omitempty,institucional"`
	Papel          *authz.Role `json:"papel"`
	Campus         *string     `json:"campus" validate:"omitempty,max=80"`
	Setor          *string     `json:"setor" validate:"omitempty,max=80"`
	Matricula      *string     `json:"matricula" validate:"omitempty,max=30"`
	Telefone       *string     `json:"telefone" validate:"omitempty,max=20"`
	CoordenadorID  *uuid.UUID  `json:"coordenador_id"`
	CargaHoraria   *int        `json:"carga_horaria" validate:"omitempty,gte=0,lte=60"`
	TurnoNoturnoID *uuid.UUID  `json:"turno_noturno_id"`
	Ativo          *bool       `json:"ativo"`
}

func (in AtualizarInput) somenteDadosPessoais() bool {
	return in.Email == nil && in.Papel == nil && in.Campus == nil && in.Setor == nil && in.Matricula == nil &&
		in.CoordenadorID == nil && in.CargaHoraria == nil && in.TurnoNoturnoID == nil && in.Ativo == nil
}

// Atualizar altera o cadastro. Gestores alteram tudo exceto o papel; o próprio
// servidor altera apenas nome e telefone.
func (s *Service) Atualizar(ctx context.Context, actor authz.Actor, id uuid.UUID, input AtualizarInput) (repo.Usuario, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Atualizar usuário",
		Categoria: repo.CategoriaUsuario,
		Tipo:      repo.AcaoUpdate,
		Descricao: "Usuário atualizado",
		AlvoID:    id.String(),
	}
	proprio := actor.ID == id && input.somenteDadosPessoais()
	if !proprio && !authz.Authorize(actor, authz.CanManageUsers) {
		return repo.Usuario{}, s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanManageUsers))
	}

	var atualizado repo.Usuario
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		if err := s.validator.Struct(input); err != nil {
			return err
		}
		u, err := q.GetUsuario(ctx, id)
		if err != nil {
			return err
		}
		if input.Papel != nil && *input.Papel != u.Papel {
			return apperr.ValidationFields("papel é imutável", map[string]string{"papel": "o papel não pode ser alterado após a criação"})
		}
		if input.CoordenadorID != nil && *input.CoordenadorID == u.ID {
			return apperr.ValidationFields("dados inválidos", map[string]string{"coordenador_id": "usuário não pode coordenar a si mesmo"})
		}
		if err := validarVinculos(ctx, q, input.CoordenadorID, input.TurnoNoturnoID); err != nil {
			return err
		}

		var d auditoria.Diff
		setString(&d, "nome", &u.Nome, input.Nome)
		if input.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*input.Email))
			setString(&d, "email", &u.Email, &email)
		}
		setString(&d, "campus", &u.Campus, input.Campus)
		setString(&d, "setor", &u.Setor, input.Setor)
		setString(&d, "matricula", &u.Matricula, input.Matricula)
		setString(&d, "telefone", &u.Telefone, input.Telefone)
		if input.CoordenadorID != nil {
			d.Campo("coordenador_id", uuidString(u.CoordenadorID), input.CoordenadorID.String())
			u.CoordenadorID = input.CoordenadorID
		}
		if input.TurnoNoturnoID != nil {
			d.Campo("turno_noturno_id", uuidString(u.TurnoNoturnoID), input.TurnoNoturnoID.String())
			u.TurnoNoturnoID = input.TurnoNoturnoID
		}
		if input.CargaHoraria != nil {
			d.Campo("carga_horaria", strconv.Itoa(u.CargaHoraria), strconv.Itoa(*input.CargaHoraria))
			u.CargaHoraria = *input.CargaHoraria
		}
		if input.Ativo != nil {
			if !*input.Ativo && u.ID == actor.ID {
				return apperr.ValidationFields("dados inválidos", map[string]string{"ativo": "não é possível desativar a própria conta"})
			}
			d.Campo("ativo", strconv.FormatBool(u.Ativo), strconv.FormatBool(*input.Ativo))
			u.Ativo = *input.Ativo
		}
		if u.Papel == authz.RoleProfessor && u.CoordenadorID == nil {
			return apperr.ValidationFields("dados inválidos", map[string]string{"coordenador_id": "obrigatório"})
		}

		u.AtualizadoEm = s.now()
		if err := q.UpdateUsuario(ctx, u); err != nil {
			return err
		}
		ev.Descricao = fmt.Sprintf("Usuário %s atualizado", u.Nome)
		ev.Alteracoes = d.Lista()
		atualizado = u
		return nil
	})
	if err != nil {
		return repo.Usuario{}, err
	}
	return atualizado, nil
}

func setString(d *auditoria.Diff, campo string, dst *string, v *string) {
	if v == nil {
		return
	}
	novo := strings.TrimSpace(*v)
	d.Campo(campo, *dst, novo)
	*dst = novo
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// Excluir remove o servidor. Servidores com frequência registrada ou que
// coordenam outros não podem ser removidos.
func (s *Service) Excluir(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Excluir usuário",
		Categoria: repo.CategoriaUsuario,
		Tipo:      repo.AcaoDelete,
		Descricao: "Tentativa de deletar usuário falhou",
		AlvoID:    id.String(),
	}
	if !authz.Authorize(actor, authz.CanManageUsers) {
		return s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanManageUsers))
	}

	return s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		if id == actor.ID {
			return apperr.Validation("não é possível excluir a própria conta")
		}
		u, err := q.GetUsuario(ctx, id)
		if err != nil {
			return err
		}

		n, err := q.CountRegistrosByUsuario(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.ReferentialIntegrity("possui registros de frequência")
		}
		coordenados, err := contarCoordenados(ctx, q, id)
		if err != nil {
			return err
		}
		if coordenados > 0 {
			return apperr.ReferentialIntegrity("coordena outros servidores")
		}

		if err := q.DeleteUsuario(ctx, id); err != nil {
			return err
		}
		ev.Descricao = fmt.Sprintf("Usuário %s (%s) excluído", u.Nome, u.Email)
		ev.Alteracoes = []repo.Alteracao{{Campo: "email", Antes: u.Email}}
		return nil
	})
}

func contarCoordenados(ctx context.Context, q repo.Querier, coordenadorID uuid.UUID) (int, error) {
	var n int
	for offset := 0; ; offset += pageSize {
		page, err := q.ListUsuarios(ctx, repo.UsuarioFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return 0, err
		}
		for _, u := range page {
			if u.CoordenadorID != nil && *u.CoordenadorID == coordenadorID {
				n++
			}
		}
		if len(page) < pageSize {
			return n, nil
		}
	}
}

// Obter devolve o cadastro ao próprio servidor, ao seu coordenador ou a quem
// pode ver todos os usuários.
func (s *Service) Obter(ctx context.Context, actor authz.Actor, id uuid.UUID) (repo.Usuario, error) {
	var u repo.Usuario
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		u, err = q.GetUsuario(ctx, id)
		return err
	})
	if err != nil {
		return repo.Usuario{}, err
	}
	coordenador := u.CoordenadorID != nil && *u.CoordenadorID == actor.ID
	if u.ID != actor.ID && !coordenador && !authz.Authorize(actor, authz.CanViewAllUsers) {
		return repo.Usuario{}, apperr.Unauthorized(authz.CanViewAllUsers)
	}
	return u, nil
}

// Listar devolve todos os usuários (canViewAllUsers) ou os do próprio setor
// (canViewFrequency).
func (s *Service) Listar(ctx context.Context, actor authz.Actor, filtro repo.UsuarioFilter) ([]repo.Usuario, error) {
	var out []repo.Usuario
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		switch {
		case authz.Authorize(actor, authz.CanViewAllUsers):
		case authz.Authorize(actor, authz.CanViewFrequency):
			eu, err := q.GetUsuario(ctx, actor.ID)
			if err != nil {
				return err
			}
			filtro.Setor = eu.Setor
		default:
			return apperr.Unauthorized(authz.CanViewAllUsers)
		}
		var err error
		out, err = q.ListUsuarios(ctx, filtro)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SenhaInput troca a senha do próprio usuário.
type SenhaInput struct {
	Atual string `json:"senha_atual" validate:"required"`
	Nova  string `json:"nova_senha" validate:"required"`
}

// ErrSenhaIncorreta indica senha atual divergente.
var ErrSenhaIncorreta = apperr.ValidationFields("senha atual incorreta", map[string]string{"senha_atual": "incorreta"})

// AlterarSenha troca a senha do próprio ator.
func (s *Service) AlterarSenha(ctx context.Context, actor authz.Actor, input SenhaInput) error {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Alterar senha",
		Categoria: repo.CategoriaUsuario,
		Tipo:      repo.AcaoUpdate,
		Descricao: "Senha alterada",
		AlvoID:    actor.ID.String(),
	}
	return s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		if err := s.validator.Struct(input); err != nil {
			return err
		}
		u, err := q.GetUsuario(ctx, actor.ID)
		if err != nil {
			return err
		}
		ok, err := auth.Verify(input.Atual, u.SenhaHash)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSenhaIncorreta
		}
		if err := auth.CheckPolicy(input.Nova); err != nil {
			return apperr.ValidationFields("dados inválidos", map[string]string{"nova_senha": err.Error()})
		}
		if input.Nova == input.Atual {
			return apperr.ValidationFields("dados inválidos", map[string]string{"nova_senha": "deve ser diferente da atual"})
		}

		hash, err := auth.Hash(input.Nova)
		if err != nil {
			return err
		}
		u.SenhaHash = hash
		u.AtualizadoEm = s.now()
		if err := q.UpdateUsuario(ctx, u); err != nil {
			return err
		}
		ev.Alteracoes = []repo.Alteracao{{Campo: "senha", Antes: "***", Depois: "***"}}
		return nil
	})
}
