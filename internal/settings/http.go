package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/gestaozabele/frequencia/internal/http/middleware"
	"github.com/gestaozabele/frequencia/internal/http/render"
)

// Handler expõe /configuracoes.
type Handler struct {
	service *Service
}

// NewHandler cria o handler de configurações.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/configuracoes", h.handleGet)
	r.Put("/configuracoes", h.handleUpdate)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	cfg, err := h.service.Obter(r.Context(), actor)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{
		"configuracao":           cfg,
		"tolerancias_permitidas": ToleranciasPermitidas,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	var input AtualizarInput
	if err := render.DecodeJSON(r, &input); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	cfg, err := h.service.Atualizar(r.Context(), actor, input)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"configuracao": cfg})
}
