package justificativa

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/authz"
	httpmiddleware "github.com/gestaozabele/frequencia/internal/http/middleware"
	"github.com/gestaozabele/frequencia/internal/http/render"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/storage"
)

// Handler expõe /justificativas.
type Handler struct {
	service *Service
}

// NewHandler cria o handler de justificativas.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/justificativas", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/anexos", h.handleAnexo)
		r.Post("/{id}/aprovar", h.handleAprovar)
		r.Post("/{id}/rejeitar", h.handleRejeitar)
	})
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
	j, err := h.service.Criar(r.Context(), actor, input)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, map[string]any{"justificativa": j})
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
	lista, err := h.service.Listar(r.Context(), actor, filtro)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"justificativas": lista})
}

func parseFiltro(r *http.Request) (Filtro, error) {
	q := r.URL.Query()
	var filtro Filtro

	if raw := q.Get("solicitante"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filtro, apperr.ValidationFields("parâmetro inválido", map[string]string{"solicitante": "uuid inválido"})
		}
		filtro.SolicitanteID = &id
	}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			filtro.Status = append(filtro.Status, repo.StatusJustificativa(strings.TrimSpace(part)))
		}
	}
	if raw := q.Get("tipo"); raw != "" {
		tipo := repo.TipoJustificativa(raw)
		if !tipo.Valid() {
			return filtro, apperr.ValidationFields("parâmetro inválido", map[string]string{"tipo": "tipo desconhecido"})
		}
		filtro.Tipo = &tipo
	}

	var err error
	if filtro.Inicio, err = render.QueryDate(r, "inicio"); err != nil {
		return filtro, err
	}
	if filtro.Fim, err = render.QueryDate(r, "fim"); err != nil {
		return filtro, err
	}
	if filtro.Limit, err = render.QueryInt(r, "limit", 50); err != nil {
		return filtro, err
	}
	if filtro.Offset, err = render.QueryInt(r, "offset", 0); err != nil {
		return filtro, err
	}
	return filtro, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	j, err := h.service.Obter(r.Context(), actor, id)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"justificativa": j})
}

func (h *Handler) handleAnexo(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxTamanhoAnexo+1<<20)
	if err := r.ParseMultipartForm(storage.MaxTamanhoAnexo); err != nil {
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", "envie o arquivo no campo 'arquivo' (até 5 MiB)", nil)
		return
	}
	file, header, err := r.FormFile("arquivo")
	if err != nil {
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", "campo 'arquivo' obrigatório", nil)
		return
	}
	defer file.Close()

	conteudo, err := io.ReadAll(io.LimitReader(file, storage.MaxTamanhoAnexo+1))
	if err != nil {
		render.WriteInternalError(w, r, err)
		return
	}

	j, err := h.service.AnexarArquivo(r.Context(), actor, id, Anexo{
		Nome:         header.Filename,
		TipoConteudo: http.DetectContentType(conteudo),
		Conteudo:     conteudo,
	})
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"justificativa": j})
}

type decisaoRequest struct {
	Comentario string `json:"comentario"`
	Motivo     string `json:"motivo"`
}

func (h *Handler) handleAprovar(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req decisaoRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r, &req); err != nil {
			render.WriteDomainError(w, r, err)
			return
		}
	}
	j, err := h.service.Aprovar(r.Context(), actor, id, req.Comentario)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"justificativa": j})
}

func (h *Handler) handleRejeitar(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req decisaoRequest
	if err := render.DecodeJSON(r, &req); err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	j, err := h.service.Rejeitar(r.Context(), actor, id, req.Motivo)
	if err != nil {
		render.WriteDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{"justificativa": j})
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
