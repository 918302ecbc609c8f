package permissao

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/gestaozabele/frequencia/internal/http/middleware"
	"github.com/gestaozabele/frequencia/internal/http/render"
)

// Handler expõe /permissoes.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/permissoes", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	lista, err := h.service.Listar(r.Context(), actor)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"permissoes": lista})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	var input CriarInput
	if err := render.DecodeJSON(r, &input); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	p, err := h.service.Criar(r.Context(), actor, input)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, map[string]any{"permissao": p})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	if err := h.service.Remover(r.Context(), actor, id); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
