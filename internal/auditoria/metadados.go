package auditoria

import (
	"context"
	"net"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Metadados identifica a origem da requisição que gerou a entrada.
type Metadados struct {
	IP        string
	Cliente   string
	RequestID string
}

type metadadosKey struct{}

// ComMetadados anexa os metadados ao contexto.
func ComMetadados(ctx context.Context, m Metadados) context.Context {
	return context.WithValue(ctx, metadadosKey{}, m)
}

// MetadadosDe recupera os metadados; ausentes viram valores vazios.
func MetadadosDe(ctx context.Context) Metadados {
	m, _ := ctx.Value(metadadosKey{}).(Metadados)
	return m
}

// Middleware injeta IP, User-Agent e request id. Deve rodar depois de
// chimiddleware.RequestID e chimiddleware.RealIP.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := ComMetadados(r.Context(), Metadados{
			IP:        ip,
			Cliente:   r.UserAgent(),
			RequestID: chimiddleware.GetReqID(r.Context()),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
