package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
)

type stubAuthRepo struct {
	user repo.Usuario
}

func (s *stubAuthRepo) GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error) {
	if strings.EqualFold(email, s.user.Email) {
		return s.user, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	if id == s.user.ID {
		return s.user, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

type stubRedis struct {
	store map[string]string
	ttl   map[string]time.Duration
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
		s.ttl = make(map[string]time.Duration)
	}
	s.store[key] = toString(value)
	s.ttl[key] = expiration
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

func toString(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}

func newAuthService(t *testing.T, papel authz.Role, ativo bool) (*AuthService, *stubRedis, repo.Usuario, string) {
	t.Helper()
	password := "SenhaForte123"
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := repo.Usuario{
		ID:        uuid.New(),
		Nome:      "Carla Coordenadora",
		Email:     "carla@ifce.edu.br",
		Papel:     papel,
		SenhaHash: hash,
		Ativo:     ativo,
	}
	rdb := &stubRedis{}
	svc := &AuthService{
		repo:       &stubAuthRepo{user: user},
		redis:      rdb,
		jwt:        auth.NewJWTManager(strings.Repeat("a", 32), time.Minute),
		refreshTTL: time.Hour,
		now:        time.Now,
	}
	return svc, rdb, user, password
}

func TestLoginIssuesTokenWithRole(t *testing.T) {
	svc, rdb, user, password := newAuthService(t, authz.RoleCoordenador, true)

	result, err := svc.Login(context.Background(), "Carla@IFCE.edu.br", password)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	claims, err := svc.JWT().ParseAndValidate(result.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != "coordenador" || claims.Subject != user.ID.String() {
		t.Fatalf("unexpected claims: role=%s subject=%s", claims.Role, claims.Subject)
	}

	key := auth.RefreshRedisKey(auth.HashRefreshToken(result.RefreshToken))
	if _, ok := rdb.store[key]; !ok {
		t.Fatalf("refresh token not stored under %s", key)
	}
	if rdb.ttl[key] != time.Hour {
		t.Fatalf("expected refresh ttl 1h, got %s", rdb.ttl[key])
	}
}

func TestLoginRejectsInvalidCredentials(t *testing.T) {
	svc, _, _, _ := newAuthService(t, authz.RoleProfessor, true)

	if _, err := svc.Login(context.Background(), "carla@ifce.edu.br", "errada123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ninguem@ifce.edu.br", "SenhaForte123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	svc, _, _, password := newAuthService(t, authz.RoleProfessor, false)

	if _, err := svc.Login(context.Background(), "carla@ifce.edu.br", password); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, rdb, _, password := newAuthService(t, authz.RoleDiretor, true)
	ctx := context.Background()

	first, err := svc.Login(ctx, "carla@ifce.edu.br", password)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if _, ok := rdb.store[auth.RefreshRedisKey(auth.HashRefreshToken(first.RefreshToken))]; ok {
		t.Fatal("old refresh token still stored")
	}

	if _, err := svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected reuse to fail, got %v", err)
	}
	if _, err := svc.Refresh(ctx, ""); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected empty token to fail, got %v", err)
	}
	if _, err := svc.Refresh(ctx, "token-forjado"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected malformed token to fail, got %v", err)
	}
}

func TestRefreshRejectsExpiredRecord(t *testing.T) {
	svc, _, _, password := newAuthService(t, authz.RoleDiretor, true)
	ctx := context.Background()

	result, err := svc.Login(ctx, "carla@ifce.edu.br", password)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := svc.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected expired refresh to fail, got %v", err)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	svc, _, _, password := newAuthService(t, authz.RoleDiretor, true)
	ctx := context.Background()

	result, err := svc.Login(ctx, "carla@ifce.edu.br", password)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := svc.Logout(ctx, result.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := svc.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestMeFiltersNavigationByRole(t *testing.T) {
	svc, _, user, _ := newAuthService(t, authz.RoleProfessor, true)

	perfil, err := svc.Me(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("me failed: %v", err)
	}
	if len(perfil.Capacidades) != 0 {
		t.Fatalf("professor should have no capabilities, got %v", perfil.Capacidades)
	}
	for _, item := range perfil.Navegacao {
		if item.Requires != "" {
			t.Fatalf("professor sees gated item %q", item.Title)
		}
	}
	if len(perfil.Navegacao) != 3 {
		t.Fatalf("expected 3 self-service items, got %d", len(perfil.Navegacao))
	}
}
