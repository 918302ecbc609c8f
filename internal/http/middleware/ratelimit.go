package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gestaozabele/frequencia/internal/http/render"
	"github.com/gestaozabele/frequencia/internal/obs"
)

const (
	limiterTTL       = 10 * time.Minute
	limiterVarredura = time.Minute
)

// RateLimiter guarda um token bucket por chave (IP ou usuário). Chaves ociosas
// por mais de limiterTTL são descartadas na varredura seguinte.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	varridoEm time.Time
}

type bucket struct {
	limiter *rate.Limiter
	usadoEm time.Time
}

// NewRateLimiter cria o limitador com reqPerSec sustentado e rajada burst.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(reqPerSec),
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// reservar devolve quanto tempo a chave precisa esperar; zero libera a requisição.
func (r *RateLimiter) reservar(key string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	agora := r.now()
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.usadoEm = agora

	if agora.Sub(r.varridoEm) > limiterVarredura {
		for k, v := range r.buckets {
			if agora.Sub(v.usadoEm) > limiterTTL {
				delete(r.buckets, k)
			}
		}
		r.varridoEm = agora
	}

	res := b.limiter.ReserveN(agora, 1)
	if !res.OK() {
		return time.Second
	}
	if delay := res.DelayFrom(agora); delay > 0 {
		res.CancelAt(agora)
		return delay
	}
	return 0
}

func (r *RateLimiter) middleware(escopo string, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := keyFunc(req)
			if key == "" {
				next.ServeHTTP(w, req)
				return
			}
			if espera := r.reservar(key); espera > 0 {
				obs.RateLimited.WithLabelValues(escopo).Inc()
				writeRateLimitError(w, espera)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// IPRateLimit limita por IP de origem. Depende de chi RealIP ter reescrito
// RemoteAddr quando há proxy na frente.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware("ip", realIPFromRequest)
}

// UserRateLimit limita pelo subject do token; sem ator a requisição passa.
func UserRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware("usuario", func(r *http.Request) string {
		return GetSubject(r.Context())
	})
}

// realIPFromRequest tira a porta de RemoteAddr, já reescrito por chi RealIP.
func realIPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimitError(w http.ResponseWriter, retry time.Duration) {
	seconds := int(math.Ceil(retry.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	render.WriteError(w, http.StatusTooManyRequests, "RATE_LIMIT", "limite de requisições excedido", nil)
}
