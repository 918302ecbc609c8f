package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	refreshBytes     = 32
	refreshKeyPrefix = "frequencia:refresh:"
)

// ErrInvalidRefresh cobre token malformado, expirado, revogado ou já trocado.
var ErrInvalidRefresh = errors.New("refresh token inválido")

// GenerateRefreshToken sorteia o token entregue ao servidor e o hash que vai
// para o Redis. O valor cru nunca é persistido.
func GenerateRefreshToken() (raw string, hashed string, err error) {
	buf := make([]byte, refreshBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashRefreshToken(raw), nil
}

// CheckRefreshFormat rejeita tokens que GenerateRefreshToken não poderia ter
// emitido, sem consultar o Redis.
func CheckRefreshFormat(raw string) error {
	buf, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(buf) != refreshBytes {
		return ErrInvalidRefresh
	}
	return nil
}

// HashRefreshToken é o SHA-256 do token em base64 url-safe.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshRedisKey é a chave da sessão de refresh; o TTL da chave acompanha a
// expiração do token.
func RefreshRedisKey(hash string) string {
	return refreshKeyPrefix + hash
}
