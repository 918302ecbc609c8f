package main

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

// ErrJaInicializado indica que já existe um diretor de ensino cadastrado.
var ErrJaInicializado = errors.New("bootstrap: já existe diretor de ensino")

// BootstrapInput descreve o primeiro administrador.
type BootstrapInput struct {
	Nome      string `json:"nome" validate:"required,min=3,max=120"`
	Email     string `json:"email" validate:"required,institucional"`
	Senha     string `json:"senha" validate:"required"`
	Campus    string `json:"campus" validate:"required"`
	Setor     string `json:"setor" validate:"required"`
	Matricula string `json:"matricula" validate:"required"`
}

// Bootstrap cria o primeiro diretor de ensino. A criação é auditada como
// evento de sistema, sem ator.
func Bootstrap(ctx context.Context, store repo.Store, recorder *auditoria.Recorder, validator *util.Validator, in BootstrapInput) (repo.Usuario, error) {
	if err := validator.Struct(in); err != nil {
		return repo.Usuario{}, err
	}
	if err := auth.CheckPolicy(in.Senha); err != nil {
		return repo.Usuario{}, err
	}
	hash, err := auth.Hash(in.Senha)
	if err != nil {
		return repo.Usuario{}, err
	}

	agora := util.Now()
	u := repo.Usuario{
		ID:           uuid.New(),
		Nome:         in.Nome,
		Email:        in.Email,
		Papel:        authz.RoleDiretorEnsino,
		Campus:       in.Campus,
		Setor:        in.Setor,
		Matricula:    in.Matricula,
		Ativo:        true,
		SenhaHash:    hash,
		CriadoEm:     agora,
		AtualizadoEm: agora,
	}

	ev := auditoria.Evento{
		Acao:      "bootstrap",
		Categoria: repo.CategoriaSistema,
		Tipo:      repo.AcaoCreate,
		Descricao: "Diretor de ensino inicial " + u.Nome + " (" + u.Email + ") criado",
		AlvoID:    u.ID.String(),
	}
	err = recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, _ *auditoria.Evento) error {
		existentes, err := q.ListUsuariosByPapel(ctx, []authz.Role{authz.RoleDiretorEnsino})
		if err != nil {
			return err
		}
		if len(existentes) > 0 {
			return ErrJaInicializado
		}
		return q.InsertUsuario(ctx, u)
	})
	if err != nil {
		return repo.Usuario{}, err
	}
	return u, nil
}
