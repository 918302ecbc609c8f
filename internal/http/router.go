package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/config"
	"github.com/gestaozabele/frequencia/internal/frequencia"
	"github.com/gestaozabele/frequencia/internal/health"
	httpmiddleware "github.com/gestaozabele/frequencia/internal/http/middleware"
	"github.com/gestaozabele/frequencia/internal/justificativa"
	"github.com/gestaozabele/frequencia/internal/notify"
	"github.com/gestaozabele/frequencia/internal/obs"
	"github.com/gestaozabele/frequencia/internal/permissao"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/service"
	"github.com/gestaozabele/frequencia/internal/settings"
	"github.com/gestaozabele/frequencia/internal/storage"
	"github.com/gestaozabele/frequencia/internal/usuario"
	"github.com/gestaozabele/frequencia/internal/util"
)

// Deps reúne o que o roteador precisa receber já construído.
type Deps struct {
	Store     repo.Store
	Recorder  *auditoria.Recorder
	Auth      *service.AuthService
	Settings  *settings.Service
	Publisher notify.Publisher
	Uploader  storage.Uploader
	Health    *health.Checker
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Handler struct {
	cfg           *config.Config
	authService   *service.AuthService
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Deps) (http.Handler, error) {
	if deps.Store == nil || deps.Recorder == nil || deps.Auth == nil || deps.Settings == nil {
		return nil, errors.New("router: store, recorder, auth e settings são obrigatórios")
	}
	if deps.Publisher == nil {
		deps.Publisher = notify.Noop{}
	}
	if deps.Uploader == nil {
		deps.Uploader = storage.NoopUploader{}
	}
	if deps.Health == nil {
		deps.Health = health.NewChecker(2 * time.Second)
	}

	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	h := &Handler{
		cfg:           cfg,
		authService:   deps.Auth,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	validator := util.NewValidator(cfg.InstitutionalDomain)
	frequenciaService := frequencia.NewService(deps.Store, deps.Recorder, deps.Settings, deps.Auth.JWT(),
		frequencia.WithTotemTTL(cfg.TotemTokenTTL),
		frequencia.WithSimulacao(cfg.CheckinSimulacao),
	)
	frequenciaHandler := frequencia.NewHandler(frequenciaService)

	handlers := []routeRegistrar{
		usuario.NewHandler(usuario.NewService(deps.Store, deps.Recorder, validator)),
		frequenciaHandler,
		justificativa.NewHandler(justificativa.NewService(deps.Store, deps.Recorder, validator, deps.Uploader, deps.Publisher)),
		auditoria.NewHandler(auditoria.NewService(deps.Store)),
		permissao.NewHandler(permissao.NewService(deps.Store, deps.Recorder, validator)),
		settings.NewHandler(deps.Settings),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(auditoria.Middleware)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))
	r.Use(httpmiddleware.SecurityHeaders)
	r.Use(obs.Instrument)

	r.Handle("/metrics", obs.Handler())

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", deps.Health.Health)
		public.Get("/ready", deps.Health.Ready)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})
	})

	r.Group(func(totem chi.Router) {
		totem.Use(httpmiddleware.RequireTotemKey(cfg.TotemAPIKey))
		totem.Use(httpmiddleware.IPRateLimit(h.publicLimiter))
		frequenciaHandler.RegisterTotemRoutes(totem)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(deps.Auth.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		for _, handler := range handlers {
			handler.RegisterRoutes(private)
		}
	})

	return r, nil
}
