package auth

import (
	"errors"
	"unicode"

	"github.com/alexedwards/argon2id"
)

var params = &argon2id.Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ErrSenhaFraca indica senha fora da política mínima.
var ErrSenhaFraca = errors.New("senha deve ter ao menos 8 caracteres com letras e números")

// Hash gera um hash Argon2id (inclui os parâmetros dentro do próprio hash).
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, params)
}

// Verify compara a senha com o hash Argon2id (lendo parâmetros do próprio hash).
// Hash vazio nunca confere.
func Verify(password, encodedHash string) (bool, error) {
	if encodedHash == "" {
		return false, nil
	}
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}

// CheckPolicy exige tamanho mínimo e mistura de letras e dígitos.
func CheckPolicy(password string) error {
	if len(password) < 8 {
		return ErrSenhaFraca
	}
	var letra, digito bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letra = true
		case unicode.IsDigit(r):
			digito = true
		}
	}
	if !letra || !digito {
		return ErrSenhaFraca
	}
	return nil
}
