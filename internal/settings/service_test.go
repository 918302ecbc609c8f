package settings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
)

type stubRedis struct {
	store map[string]string
	dels  int
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	switch v := value.(type) {
	case []byte:
		s.store[key] = string(v)
	default:
		s.store[key] = fmt.Sprint(v)
	}
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	s.dels++
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func newTestService(t *testing.T) (*Service, *repo.MemoryStore, *stubRedis) {
	t.Helper()
	store := repo.NewMemoryStore()
	cache := &stubRedis{}
	return NewService(store, cache, auditoria.NewRecorder(store)), store, cache
}

func auditEntries(t *testing.T, store repo.Store) []repo.EntradaAuditoria {
	t.Helper()
	var out []repo.EntradaAuditoria
	require.NoError(t, store.View(context.Background(), func(ctx context.Context, q repo.Querier) error {
		var err error
		out, err = q.ListAuditoria(ctx, repo.AuditoriaFilter{})
		return err
	}))
	return out
}

func intPtr(v int) *int { return &v }

func TestAtualUsesDefaultsAndCache(t *testing.T) {
	svc, _, cache := newTestService(t)

	cfg, err := svc.Atual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.ToleranciaMinutos)
	assert.Equal(t, "America/Fortaleza", cfg.FusoHorario)
	_, ativo := cfg.TurnoDoDia(time.Saturday)
	assert.False(t, ativo)
	assert.Contains(t, cache.store, cacheKey)

	cached, err := svc.Atual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.ToleranciaMinutos, cached.ToleranciaMinutos)
}

func TestObterRequiresCapability(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Obter(context.Background(), authz.Actor{ID: uuid.New(), Role: authz.RoleCoordenador})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Obter(context.Background(), authz.Actor{ID: uuid.New(), Role: authz.RoleDiretor})
	assert.NoError(t, err)
}

func TestAtualizarUnauthorizedIsAudited(t *testing.T) {
	svc, store, _ := newTestService(t)
	diretor := authz.Actor{ID: uuid.New(), Role: authz.RoleDiretor}

	_, err := svc.Atualizar(context.Background(), diretor, AtualizarInput{ToleranciaMinutos: intPtr(5)})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	entries := auditEntries(t, store)
	require.Len(t, entries, 1)
	assert.Equal(t, repo.AuditoriaErro, entries[0].Status)
	assert.Equal(t, repo.CategoriaSistema, entries[0].Categoria)
}

func TestAtualizarSavesDiffAndInvalidatesCache(t *testing.T) {
	svc, store, cache := newTestService(t)
	ctx := context.Background()
	_, err := svc.Atual(ctx)
	require.NoError(t, err)

	editor := authz.Actor{ID: uuid.New(), Role: authz.RoleDiretorEnsino}
	cfg, err := svc.Atualizar(ctx, editor, AtualizarInput{ToleranciaMinutos: intPtr(10), RedesWiFi: []string{" IFCE-Campus ", ""}})
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ToleranciaMinutos)
	assert.Equal(t, []string{"IFCE-Campus"}, cfg.RedesWiFi)
	assert.NotContains(t, cache.store, cacheKey)

	atual, err := svc.Atual(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, atual.ToleranciaMinutos)

	entries := auditEntries(t, store)
	require.Len(t, entries, 1)
	assert.Equal(t, repo.AuditoriaSucesso, entries[0].Status)
	assert.Contains(t, entries[0].Alteracoes, repo.Alteracao{Campo: "tolerancia_minutos", Antes: "15", Depois: "10"})
	assert.Equal(t, editor.ID, *entries[0].AtorID)
}

func TestAtualizarRejectsInvalidTolerance(t *testing.T) {
	svc, store, _ := newTestService(t)
	editor := authz.Actor{ID: uuid.New(), Role: authz.RoleDiretorEnsino}

	_, err := svc.Atualizar(context.Background(), editor, AtualizarInput{ToleranciaMinutos: intPtr(20)})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.FieldsOf(err), "tolerancia_minutos")

	atual, err := svc.Atual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, atual.ToleranciaMinutos)

	entries := auditEntries(t, store)
	require.Len(t, entries, 1)
	assert.Equal(t, repo.AuditoriaErro, entries[0].Status)
}

func TestValidar(t *testing.T) {
	cfg := repo.DefaultConfig()
	cfg.TurnosNoturnos = []repo.TurnoNoturno{{ID: uuid.New(), Nome: "Noite - Turno 1", Inicio: "22:00", Fim: "06:00"}}
	cfg.Geofences = []repo.Geofence{{Campus: "Fortaleza", Lat: -3.74, Lng: -38.54, RaioMetros: 150}}
	assert.NoError(t, Validar(cfg))

	bad := repo.DefaultConfig()
	bad.FusoHorario = "Marte/Base"
	bad.ModoRegistro = "pombo"
	bad.Turnos[1].Inicio = "8h"
	bad.Geofences = []repo.Geofence{{Campus: "Fortaleza", RaioMetros: 0}}
	err := Validar(bad)
	require.ErrorIs(t, err, apperr.ErrValidation)
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "fuso_horario")
	assert.Contains(t, fields, "modo_registro")
	assert.Contains(t, fields, "turnos[1]")
	assert.Contains(t, fields, "geofences[0]")
}
