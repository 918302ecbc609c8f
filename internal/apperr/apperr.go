// Package apperr define os tipos de erro de domínio devolvidos pelos serviços
// e traduzidos pela camada HTTP.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gestaozabele/frequencia/internal/authz"
)

var (
	// ErrValidation indica campo obrigatório ausente ou inválido.
	ErrValidation = errors.New("dados inválidos")
	// ErrUnauthorized indica que o ator não possui a capacidade exigida.
	ErrUnauthorized = errors.New("acesso negado")
	// ErrInvalidStateTransition indica violação do ciclo de vida.
	ErrInvalidStateTransition = errors.New("transição de estado inválida")
	// ErrReferentialIntegrity indica operação bloqueada por dados dependentes.
	ErrReferentialIntegrity = errors.New("integridade referencial")
	// ErrUnknownRole reaproveita o sentinel do pacote authz.
	ErrUnknownRole = authz.ErrUnknownRole
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrConflict indica escrita concorrente perdida (versão divergente).
	ErrConflict = errors.New("conflito de versão")
)

// Error carrega o tipo do erro, mensagem legível e detalhes opcionais por campo.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

// Unwrap permite errors.Is(err, apperr.ErrValidation) etc.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Validation cria um erro de validação.
func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

// ValidationFields cria um erro de validação com detalhes por campo.
func ValidationFields(message string, fields map[string]string) error {
	return &Error{Kind: ErrValidation, Message: message, Fields: fields}
}

// Unauthorized cria um erro de acesso negado citando a capacidade.
func Unauthorized(capability authz.Capability) error {
	return &Error{Kind: ErrUnauthorized, Message: fmt.Sprintf("acesso negado: requer %s", capability)}
}

// InvalidTransition cria erro de transição a partir do estado atual.
func InvalidTransition(from, to string) error {
	return &Error{Kind: ErrInvalidStateTransition, Message: fmt.Sprintf("transição inválida: %s -> %s", from, to)}
}

// ReferentialIntegrity cria erro de integridade com mensagem própria.
func ReferentialIntegrity(message string) error {
	return &Error{Kind: ErrReferentialIntegrity, Message: message}
}

// NotFound cria erro de registro ausente para a entidade informada.
func NotFound(entity string) error {
	return &Error{Kind: ErrNotFound, Message: entity + " não encontrado(a)"}
}

// FieldsOf devolve os detalhes de campo, se houver.
func FieldsOf(err error) map[string]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}

// Message devolve a mensagem amigável de um erro de domínio.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
