// Package obs registra as métricas Prometheus da API.
package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "frequencia",
		Name:      "http_in_flight_requests",
		Help:      "Requisições HTTP em andamento.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frequencia",
			Name:      "http_requests_total",
			Help:      "Total de requisições HTTP.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "frequencia",
			Name:      "http_request_duration_seconds",
			Help:      "Latência das requisições HTTP em segundos.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// AuditEntries conta entradas de auditoria gravadas por status.
	AuditEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frequencia",
			Name:      "audit_entries_total",
			Help:      "Entradas de auditoria gravadas.",
		},
		[]string{"categoria", "status"},
	)

	// JustificationDecisions conta aprovações e rejeições concluídas.
	JustificationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frequencia",
			Name:      "justification_decisions_total",
			Help:      "Decisões sobre justificativas.",
		},
		[]string{"decisao"},
	)

	// Checkins conta registros de entrada pelo status derivado.
	Checkins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frequencia",
			Name:      "checkins_total",
			Help:      "Registros de entrada por status.",
		},
		[]string{"status"},
	)

	// Notifications conta entregas de notificações por canal e resultado.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frequencia",
			Name:      "notifications_total",
			Help:      "Notificações processadas.",
		},
		[]string{"canal", "resultado"},
	)

	// RateLimited conta requisições barradas pelo limitador, por escopo.
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frequencia",
			Name:      "rate_limited_total",
			Help:      "Requisições recusadas com 429.",
		},
		[]string{"escopo"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "frequencia",
		Name:      "ready",
		Help:      "1 quando Postgres e Redis respondem.",
	})

	initOnce sync.Once
)

// Init registra as métricas no registro padrão. Pode ser chamado mais de uma vez.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			AuditEntries, JustificationDecisions, Checkins, Notifications, RateLimited, ready,
		)
	})
}

// SetReady publica o resultado da última checagem de prontidão.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Handler expõe /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument mede RPS, latência e requisições em andamento. O rótulo path usa
// o padrão da rota do chi para manter a cardinalidade baixa.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := "desconhecida"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		labels := []string{r.Method, path, strconv.Itoa(status)}
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}
