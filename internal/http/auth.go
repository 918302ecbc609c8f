package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gestaozabele/frequencia/internal/authz"
	httpmiddleware "github.com/gestaozabele/frequencia/internal/http/middleware"
	"github.com/gestaozabele/frequencia/internal/http/render"
	"github.com/gestaozabele/frequencia/internal/service"
)

const refreshCookie = "frequencia_refresh"

// Login autentica servidores por e-mail e senha.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Senha string `json:"senha"`
	}
	if err := render.DecodeJSON(r, &payload); err != nil {
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Senha) == "" {
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", "email e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), payload.Email, payload.Senha)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

// Refresh rotaciona o refresh token (cookie ou corpo) e emite novo acesso.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := getRefreshFromRequest(r)
	if token == "" {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := getRefreshFromRequest(r); token != "" {
		_ = h.authService.Logout(r.Context(), token)
	}
	h.clearRefreshCookie(w)
	render.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna usuário, capacidades e menu do ator autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	perfil, err := h.authService.Me(r.Context(), actor.ID)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, perfil)
}

func (h *Handler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrRefreshInvalid):
		render.WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, service.ErrAccountDisabled):
		render.WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, authz.ErrUnknownRole):
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "papel inválido", nil)
	default:
		render.WriteDomainError(w, r, err)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, result *service.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)

	render.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token":  result.AccessToken,
		"expires_at":    result.AccessExpiry,
		"refresh_token": result.RefreshToken,
		"usuario":       result.Usuario,
	})
}

func getRefreshFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if r.ContentLength == 0 {
		return ""
	}
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := render.DecodeJSON(r, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.RefreshToken)
}

func (h *Handler) cookie(value string) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   !h.devCookies,
		SameSite: sameSite,
	}
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	c := h.cookie(token)
	c.Expires = expires
	http.SetCookie(w, c)
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	c := h.cookie("")
	c.MaxAge = -1
	http.SetCookie(w, c)
}
