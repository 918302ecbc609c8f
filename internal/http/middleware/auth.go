package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/http/render"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyRole    contextKey = "role"
)

// Auth valida JWT de acesso e injeta subject e papel no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				render.WriteError(w, http.StatusUnauthorized, "AUTH", "token ausente", nil)
				return
			}

			claims, err := jwtManager.ParseAndValidate(strings.TrimSpace(parts[1]))
			if err != nil {
				render.WriteError(w, http.StatusUnauthorized, "AUTH", "token inválido", nil)
				return
			}

			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
				return
			}
			role, err := authz.ParseRole(claims.Role)
			if err != nil {
				render.WriteError(w, http.StatusUnauthorized, "AUTH", "papel inválido", nil)
				return
			}

			ctx := WithActor(r.Context(), authz.Actor{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithActor injeta o ator autenticado no contexto.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	ctx = context.WithValue(ctx, ContextKeySubject, actor.ID.String())
	return context.WithValue(ctx, ContextKeyRole, actor.Role)
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetRole recupera o papel do contexto.
func GetRole(ctx context.Context) authz.Role {
	val, _ := ctx.Value(ContextKeyRole).(authz.Role)
	return val
}

// ActorFrom monta o ator a partir do contexto autenticado.
func ActorFrom(ctx context.Context) (authz.Actor, bool) {
	id, err := uuid.Parse(GetSubject(ctx))
	if err != nil {
		return authz.Actor{}, false
	}
	role := GetRole(ctx)
	if !role.Valid() {
		return authz.Actor{}, false
	}
	return authz.Actor{ID: id, Role: role}, true
}

// RequireCapability barra cedo requisições sem a capacidade. Os serviços
// verificam de novo; este filtro só evita trabalho desnecessário.
func RequireCapability(capability authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
				return
			}
			if !authz.Authorize(actor, capability) {
				render.WriteError(w, http.StatusForbidden, "FORBIDDEN", "acesso negado: requer "+string(capability), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTotemKey protege as rotas do totem com chave compartilhada.
func RequireTotemKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Totem-Key")
			if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				render.WriteError(w, http.StatusUnauthorized, "AUTH", "chave do totem inválida", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
