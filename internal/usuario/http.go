package usuario

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/authz"
	httpmiddleware "github.com/gestaozabele/frequencia/internal/http/middleware"
	"github.com/gestaozabele/frequencia/internal/http/render"
	"github.com/gestaozabele/frequencia/internal/repo"
)

// Handler expõe /usuarios.
type Handler struct {
	service *Service
}

// NewHandler cria o handler de usuários.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/usuarios", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Put("/me/senha", h.handleSenha)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	q := r.URL.Query()
	filtro := repo.UsuarioFilter{
		Campus: q.Get("campus"),
		Setor:  q.Get("setor"),
		Busca:  strings.TrimSpace(q.Get("q")),
	}
	if raw := q.Get("papel"); raw != "" {
		papel, err := authz.ParseRole(raw)
		if err != nil {
			render.WriteDomainError(w, r, apperr.ValidationFields("parâmetro inválido", map[string]string{"papel": "papel desconhecido"}))
			return
		}
		filtro.Papel = &papel
	}
	var err error
	if filtro.Limit, err = render.QueryInt(r, "limit", 100); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	if filtro.Offset, err = render.QueryInt(r, "offset", 0); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}

	lista, err := h.service.Listar(r.Context(), actor, filtro)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"usuarios": lista})
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
	u, err := h.service.Criar(r.Context(), actor, input)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, map[string]any{"usuario": u})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	u, err := h.service.Obter(r.Context(), actor, id)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"usuario": u})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var input AtualizarInput
	if err := render.DecodeJSON(r, &input); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	u, err := h.service.Atualizar(r.Context(), actor, id, input)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"usuario": u})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Excluir(r.Context(), actor, id); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSenha(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	var input SenhaInput
	if err := render.DecodeJSON(r, &input); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	if err := h.service.AlterarSenha(r.Context(), actor, input); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorAndID(w http.ResponseWriter, r *http.Request) (authz.Actor, uuid.UUID, bool) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return authz.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return authz.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
