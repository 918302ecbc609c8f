package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore()
	recorder := auditoria.NewRecorder(store)
	validator := util.NewValidator("ifce.edu.br")

	in := BootstrapInput{
		Nome:      "Edson Lima",
		Email:     "edson@ifce.edu.br",
		Senha:     "SenhaForte123",
		Campus:    "Fortaleza",
		Setor:     "Direção de Ensino",
		Matricula: "1234567",
	}
	u, err := Bootstrap(ctx, store, recorder, validator, in)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleDiretorEnsino, u.Papel)

	ok, err := auth.Verify(in.Senha, u.SenhaHash)
	require.NoError(t, err)
	assert.True(t, ok)

	in.Email = "outro@ifce.edu.br"
	_, err = Bootstrap(ctx, store, recorder, validator, in)
	assert.ErrorIs(t, err, ErrJaInicializado)

	var entradas []repo.EntradaAuditoria
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		entradas, err = q.ListAuditoria(ctx, repo.AuditoriaFilter{})
		return err
	}))
	require.Len(t, entradas, 2)
	assert.Equal(t, repo.AuditoriaErro, entradas[0].Status)
	assert.Equal(t, repo.AuditoriaSucesso, entradas[1].Status)
}

func TestBootstrapRejectsForeignDomain(t *testing.T) {
	store := repo.NewMemoryStore()
	_, err := Bootstrap(context.Background(), store, auditoria.NewRecorder(store), util.NewValidator("ifce.edu.br"), BootstrapInput{
		Nome: "Fulano", Email: "fulano@gmail.com", Senha: "SenhaForte123",
		Campus: "Fortaleza", Setor: "Direção", Matricula: "1",
	})
	assert.Error(t, err)
}
