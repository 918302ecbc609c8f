// Package render padroniza o envelope JSON das respostas e a tradução dos
// erros de domínio para HTTP.
package render

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/apperr"
)

const maxBodyBytes = 1 << 20

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// WriteDomainError traduz erros de serviço para status e código do envelope.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var details any
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		details = fields
	}
	msg := apperr.Message(err)

	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", msg, nil)
	case errors.Is(err, apperr.ErrUnknownRole), errors.Is(err, apperr.ErrValidation):
		WriteError(w, http.StatusBadRequest, "VALIDATION", msg, details)
	case errors.Is(err, apperr.ErrInvalidStateTransition):
		WriteError(w, http.StatusConflict, "INVALID_STATE", msg, nil)
	case errors.Is(err, apperr.ErrReferentialIntegrity):
		WriteError(w, http.StatusConflict, "INTEGRITY", msg, nil)
	case errors.Is(err, apperr.ErrConflict):
		WriteError(w, http.StatusConflict, "CONFLICT", msg, nil)
	case errors.Is(err, apperr.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", msg, nil)
	default:
		WriteInternalError(w, r, err)
	}
}

// WriteInternalError registra o erro e devolve mensagem genérica.
func WriteInternalError(w http.ResponseWriter, r *http.Request, err error) {
	event := log.Error().Err(err)
	if r != nil {
		event = event.Str("path", r.URL.Path).Str("request_id", chimiddleware.GetReqID(r.Context()))
	}
	event.Msg("erro interno")
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
}

// DecodeJSON lê o corpo (até 1 MiB) rejeitando campos desconhecidos.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("JSON inválido")
	}
	return nil
}

// QueryDate lê parâmetro AAAA-MM-DD opcional.
func QueryDate(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.ValidationFields("parâmetro inválido", map[string]string{key: "use o formato AAAA-MM-DD"})
	}
	return &t, nil
}

// QueryInt lê inteiro opcional; ausência devolve def.
func QueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.ValidationFields("parâmetro inválido", map[string]string{key: "inteiro não negativo"})
	}
	return n, nil
}
