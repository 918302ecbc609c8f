package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = auth.ErrInvalidRefresh
)

type authRepository interface {
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// storeUsuarios adapta o repo.Store às leituras de login.
type storeUsuarios struct {
	store repo.Store
}

func (s storeUsuarios) GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error) {
	var u repo.Usuario
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		u, err = q.GetUsuarioByEmail(ctx, email)
		return err
	})
	return u, err
}

func (s storeUsuarios) GetUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	var u repo.Usuario
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		u, err = q.GetUsuario(ctx, id)
		return err
	})
	return u, err
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService cria novo serviço.
func NewAuthService(store repo.Store, redisClient redisCommander, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		repo:       storeUsuarios{store: store},
		redis:      redisClient,
		jwt:        jwtMgr,
		refreshTTL: refreshTTL,
		now:        util.Now,
	}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
	Usuario       repo.Usuario
}

// Perfil é a resposta de /me: dados, capacidades e menu liberado.
type Perfil struct {
	Usuario     repo.Usuario       `json:"usuario"`
	Capacidades []authz.Capability `json:"capacidades"`
	Navegacao   []authz.NavItem    `json:"navegacao"`
}

// Login autentica servidores por e-mail institucional e senha.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.GetUsuarioByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Str("usuario_id", user.ID.String()).Msg("login: senha inválida")
		return nil, ErrInvalidCredentials
	}

	return s.emitir(ctx, user)
}

// Refresh troca refresh token por novos tokens. O token usado é revogado.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if err := auth.CheckRefreshFormat(rawToken); err != nil {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	redisKey := auth.RefreshRedisKey(hash)
	raw, err := s.redis.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}

	var record repo.TokenRefresh
	if err := json.Unmarshal([]byte(raw), &record); err != nil || record.TokenHash != hash {
		return nil, ErrRefreshInvalid
	}
	if s.now().After(record.Expiracao) {
		return nil, ErrRefreshInvalid
	}

	// Quem remover a chave primeiro vence; um segundo uso do mesmo token falha.
	removed, err := s.redis.Del(ctx, redisKey).Result()
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return nil, ErrRefreshInvalid
	}

	user, err := s.repo.GetUsuario(ctx, record.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	return s.emitir(ctx, user)
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if auth.CheckRefreshFormat(rawToken) != nil {
		return nil
	}
	redisKey := auth.RefreshRedisKey(auth.HashRefreshToken(rawToken))
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Me retorna perfil completo do ator autenticado.
func (s *AuthService) Me(ctx context.Context, subject uuid.UUID) (*Perfil, error) {
	user, err := s.repo.GetUsuario(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}
	actor := user.Actor()
	return &Perfil{
		Usuario:     user,
		Capacidades: authz.Granted(actor.Role),
		Navegacao:   authz.FilterNav(actor, authz.DefaultNav),
	}, nil
}

func (s *AuthService) emitir(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}
	if !user.Papel.Valid() {
		log.Error().Str("usuario_id", user.ID.String()).Str("papel", string(user.Papel)).Msg("login: papel desconhecido")
		return nil, authz.ErrUnknownRole
	}

	token, accessExp, err := s.jwt.GenerateAccessToken(user.ID, string(user.Papel))
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		AccessExpiry:  accessExp,
		RefreshToken:  rawRefresh,
		RefreshExpiry: expires,
		Usuario:       user,
	}, nil
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, hash string, expires time.Time) error {
	payload, err := json.Marshal(repo.TokenRefresh{Subject: subject, TokenHash: hash, Expiracao: expires})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, auth.RefreshRedisKey(hash), payload, s.refreshTTL).Err()
}
