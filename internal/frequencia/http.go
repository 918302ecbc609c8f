package frequencia

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/apperr"
	httpmiddleware "github.com/gestaozabele/frequencia/internal/http/middleware"
	"github.com/gestaozabele/frequencia/internal/http/render"
	"github.com/gestaozabele/frequencia/internal/repo"
)

// Handler expõe registro de ponto, consultas e relatórios.
type Handler struct {
	service *Service
}

// NewHandler cria o handler de frequência.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/frequencia/entrada", h.handleEntrada)
	r.Post("/frequencia/saida", h.handleSaida)
	r.Get("/frequencia", h.handleList)
	r.Patch("/frequencia/{id}/status", h.handleEditarStatus)
	r.Get("/relatorios/frequencia", h.handleRelatorio)
}

// RegisterTotemRoutes registra as rotas do totem; o chamador aplica a
// verificação da chave do totem.
func (h *Handler) RegisterTotemRoutes(r chi.Router) {
	r.Get("/totem/qrcode", h.handleQRCode)
}

func (h *Handler) handleQRCode(w http.ResponseWriter, r *http.Request) {
	qr, err := h.service.EmitirQRCode(r.Context(), r.URL.Query().Get("campus"))
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	render.WriteJSON(w, http.StatusOK, qr)
}

func (h *Handler) handleEntrada(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	var input EntradaInput
	if err := render.DecodeJSON(r, &input); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	reg, err := h.service.RegistrarEntrada(r.Context(), actor, input)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, map[string]any{"registro": reg})
}

func (h *Handler) handleSaida(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	reg, err := h.service.RegistrarSaida(r.Context(), actor)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"registro": reg})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	filtro, err := parseFiltro(r)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	registros, err := h.service.Listar(r.Context(), actor, filtro)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	if registros == nil {
		registros = []repo.RegistroFrequencia{}
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"registros": registros})
}

func parseFiltro(r *http.Request) (Filtro, error) {
	q := r.URL.Query()
	var filtro Filtro

	if raw := q.Get("usuario"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filtro, apperr.ValidationFields("parâmetro inválido", map[string]string{"usuario": "uuid inválido"})
		}
		filtro.UsuarioID = &id
	}
	filtro.Setor = strings.TrimSpace(q.Get("setor"))
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := repo.StatusFrequencia(strings.TrimSpace(part))
			if !st.Valid() {
				return filtro, apperr.ValidationFields("parâmetro inválido", map[string]string{"status": "status desconhecido"})
			}
			filtro.Status = append(filtro.Status, st)
		}
	}

	var err error
	if filtro.Inicio, err = render.QueryDate(r, "inicio"); err != nil {
		return filtro, err
	}
	if filtro.Fim, err = render.QueryDate(r, "fim"); err != nil {
		return filtro, err
	}
	if filtro.Limit, err = render.QueryInt(r, "limit", 100); err != nil {
		return filtro, err
	}
	if filtro.Offset, err = render.QueryInt(r, "offset", 0); err != nil {
		return filtro, err
	}
	return filtro, nil
}

type editarStatusRequest struct {
	Status     repo.StatusFrequencia `json:"status"`
	Observacao string                `json:"observacao"`
}

func (h *Handler) handleEditarStatus(w http.ResponseWriter, r *http.Request) {
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
	var req editarStatusRequest
	if err := render.DecodeJSON(r, &req); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	reg, err := h.service.EditarStatus(r.Context(), actor, id, req.Status, strings.TrimSpace(req.Observacao))
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"registro": reg})
}

func (h *Handler) handleRelatorio(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpmiddleware.ActorFrom(r.Context())
	if !ok {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	inicio, err := render.QueryDate(r, "inicio")
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	fim, err := render.QueryDate(r, "fim")
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	input := RelatorioInput{Setor: strings.TrimSpace(r.URL.Query().Get("setor"))}
	if inicio != nil {
		input.Inicio = *inicio
	}
	if fim != nil {
		input.Fim = *fim
	}

	rel, err := h.service.Relatorio(r.Context(), actor, input)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, rel)
}
