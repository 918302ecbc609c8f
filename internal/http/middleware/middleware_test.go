package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/authz"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestAuth_InjectsActor(t *testing.T) {
	mgr := auth.NewJWTManager(testSecret, time.Minute)
	id := uuid.New()
	token, _, err := mgr.GenerateAccessToken(id, "coordenador")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var got authz.Actor
	h := Auth(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if got.ID != id || got.Role != authz.RoleCoordenador {
		t.Fatalf("unexpected actor %+v", got)
	}
}

func TestAuth_RejectsMissingAndUnknownRole(t *testing.T) {
	mgr := auth.NewJWTManager(testSecret, time.Minute)
	token, _, err := mgr.GenerateAccessToken(uuid.New(), "reitor")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	h := Auth(mgr)(http.HandlerFunc(okHandler))

	for name, header := range map[string]string{"ausente": "", "papel desconhecido": "Bearer " + token, "lixo": "Bearer abc"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, res.Code)
		}
	}
}

func TestRequireCapability(t *testing.T) {
	h := RequireCapability(authz.CanViewAudit)(http.HandlerFunc(okHandler))

	cases := []struct {
		role authz.Role
		want int
	}{
		{authz.RoleDiretor, http.StatusNoContent},
		{authz.RoleDiretorEnsino, http.StatusNoContent},
		{authz.RoleCoordenador, http.StatusForbidden},
		{authz.RoleProfessor, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/auditoria", nil)
		req = req.WithContext(WithActor(req.Context(), authz.Actor{ID: uuid.New(), Role: tc.role}))
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		if res.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.role, tc.want, res.Code)
		}
	}

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auditoria", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor, got %d", res.Code)
	}
}

func TestRequireTotemKey(t *testing.T) {
	h := RequireTotemKey("segredo")(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/totem/qrcode", nil)
	req.Header.Set("X-Totem-Key", "segredo")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}

	req.Header.Set("X-Totem-Key", "errado")
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}

	open := RequireTotemKey("")(http.HandlerFunc(okHandler))
	res = httptest.NewRecorder()
	open.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/totem/qrcode", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when key is not configured, got %d", res.Code)
	}
}

func TestIPRateLimit(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	h := IPRateLimit(limiter)(http.HandlerFunc(okHandler))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("other IP should not be limited, got %d", res.Code)
	}
}

func TestUserRateLimit(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	h := UserRateLimit(limiter)(http.HandlerFunc(okHandler))

	paulo := authz.Actor{ID: uuid.New(), Role: authz.RoleProfessor}
	serve := func(actor *authz.Actor) int {
		req := httptest.NewRequest(http.MethodGet, "/frequencia", nil)
		if actor != nil {
			req = req.WithContext(WithActor(req.Context(), *actor))
		}
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		return res.Code
	}

	if code := serve(&paulo); code != http.StatusNoContent {
		t.Fatalf("first request: expected 204, got %d", code)
	}
	if code := serve(&paulo); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", code)
	}
	if code := serve(&authz.Actor{ID: uuid.New(), Role: authz.RoleProfessor}); code != http.StatusNoContent {
		t.Fatalf("other user should not be limited, got %d", code)
	}
	if code := serve(nil); code != http.StatusNoContent {
		t.Fatalf("anonymous request should pass through, got %d", code)
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://frequencia.ifce.edu.br", "*.ifce.edu.br"})(http.HandlerFunc(okHandler))

	cases := []struct {
		origin string
		allow  bool
	}{
		{"https://frequencia.ifce.edu.br", true},
		{"https://maracanau.ifce.edu.br", true},
		{"https://ifce.edu.br", false},
		{"https://evil-ifce.edu.br", false},
		{"", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		if res.Code != http.StatusNoContent {
			t.Fatalf("%q: preflight expected 204, got %d", tc.origin, res.Code)
		}
		got := res.Header().Get("Access-Control-Allow-Origin") == tc.origin && tc.origin != ""
		if got != tc.allow {
			t.Fatalf("%q: allowed=%v, want %v", tc.origin, got, tc.allow)
		}
	}
}
