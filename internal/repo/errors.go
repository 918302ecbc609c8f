package repo

import (
	"errors"

	"github.com/gestaozabele/frequencia/internal/apperr"
)

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = apperr.ErrNotFound
	// ErrConflict indica que a versão gravada mudou desde a leitura.
	ErrConflict = apperr.ErrConflict
	// ErrEmailEmUso indica violação de unicidade do e-mail.
	ErrEmailEmUso = apperr.Validation("email já cadastrado")
	// ErrSomenteLeitura indica escrita dentro de uma leitura (View).
	ErrSomenteLeitura = errors.New("escrita em transação somente leitura")
)
