package auditoria

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/authz"
	httpmiddleware "github.com/gestaozabele/frequencia/internal/http/middleware"
	"github.com/gestaozabele/frequencia/internal/http/render"
	"github.com/gestaozabele/frequencia/internal/repo"
)

// Handler expõe GET /auditoria.
type Handler struct {
	service *Service
}

// NewHandler cria o handler de auditoria.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(httpmiddleware.RequireCapability(authz.CanViewAudit)).Get("/auditoria", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}

	entradas, err := h.service.Listar(r.Context(), actor, filter)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"entradas": entradas})
}

func parseFilter(r *http.Request) (repo.AuditoriaFilter, error) {
	q := r.URL.Query()
	var filter repo.AuditoriaFilter

	if raw := q.Get("ator"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, apperr.ValidationFields("parâmetro inválido", map[string]string{"ator": "uuid inválido"})
		}
		filter.AtorID = &id
	}
	if raw := q.Get("categoria"); raw != "" {
		c := repo.CategoriaAuditoria(raw)
		filter.Categoria = &c
	}
	if raw := q.Get("tipo"); raw != "" {
		t := repo.TipoAcao(raw)
		filter.Tipo = &t
	}
	if raw := q.Get("status"); raw != "" {
		s := repo.StatusAuditoria(raw)
		filter.Status = &s
	}

	inicio, err := render.QueryDate(r, "inicio")
	if err != nil {
		return filter, err
	}
	fim, err := render.QueryDate(r, "fim")
	if err != nil {
		return filter, err
	}
	filter.Inicio = inicio
	if fim != nil {
		end := fim.Add(24*time.Hour - time.Nanosecond)
		filter.Fim = &end
	}

	if filter.Limit, err = render.QueryInt(r, "limit", 50); err != nil {
		return filter, err
	}
	if filter.Offset, err = render.QueryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}
