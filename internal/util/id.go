package util

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewULID gera identificador ordenável por tempo (usado na auditoria).
func NewULID() string {
	return NewULIDAt(time.Now())
}

// NewULIDAt gera o ULID com o timestamp informado. Dentro do mesmo
// milissegundo os valores são monotônicos.
func NewULIDAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Now devolve o instante atual em UTC.
func Now() time.Time {
	return time.Now().UTC()
}
