package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// originPolicy guarda as origens exatas e os sufixos de subdomínio (*.ifce.edu.br).
type originPolicy struct {
	exatas  map[string]bool
	sufixos []string
}

func newOriginPolicy(entradas []string) originPolicy {
	p := originPolicy{exatas: make(map[string]bool, len(entradas))}
	for _, e := range entradas {
		e = strings.TrimSpace(e)
		switch {
		case e == "":
		case strings.HasPrefix(e, "*."):
			p.sufixos = append(p.sufixos, strings.ToLower(e[1:]))
		default:
			p.exatas[e] = true
		}
	}
	return p
}

// permite exige subdomínio próprio nos curingas: *.ifce.edu.br não libera ifce.edu.br.
func (p originPolicy) permite(origin string) bool {
	if origin == "" {
		return false
	}
	if p.exatas[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suf := range p.sufixos {
		if strings.HasSuffix(host, suf) && len(host) > len(suf) {
			return true
		}
	}
	return false
}

// CORS libera credenciais apenas para as origens de ALLOW_ORIGINS. Preflight
// (OPTIONS) é respondido aqui com 204.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")
			if policy.permite(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Totem-Key, X-Requested-With")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				h.Set("Access-Control-Expose-Headers", "X-Request-Id, Retry-After")
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders aplica os cabeçalhos de endurecimento em toda resposta da API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
