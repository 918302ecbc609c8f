// Package health responde às sondas de vida e prontidão por HTTP e gRPC.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gestaozabele/frequencia/internal/http/render"
	"github.com/gestaozabele/frequencia/internal/obs"
)

// ServiceName é o nome registrado no serviço grpc.health.v1.
const ServiceName = "frequencia"

// Probe testa uma dependência (Postgres, Redis).
type Probe func(ctx context.Context) error

type namedProbe struct {
	name  string
	probe Probe
}

// Checker agrega as sondas de prontidão.
type Checker struct {
	probes  []namedProbe
	timeout time.Duration
}

// NewChecker cria um agregador; timeout limita cada rodada de checagem.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Add registra uma sonda. Sondas nil são ignoradas.
func (c *Checker) Add(name string, probe Probe) *Checker {
	if probe != nil {
		c.probes = append(c.probes, namedProbe{name: name, probe: probe})
	}
	return c
}

// Check roda todas as sondas e devolve o erro de cada uma ("" quando ok).
func (c *Checker) Check(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := make(map[string]string, len(c.probes))
	var errs []error
	for _, p := range c.probes {
		if err := p.probe(ctx); err != nil {
			out[p.name] = err.Error()
			errs = append(errs, err)
			continue
		}
		out[p.name] = ""
	}
	err := errors.Join(errs...)
	obs.SetReady(err == nil)
	return out, err
}

// Health responde status simples.
func (c *Checker) Health(w http.ResponseWriter, r *http.Request) {
	render.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	detalhes, err := c.Check(r.Context())
	if err != nil {
		render.WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", detalhes)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

// NewGRPCServer cria o servidor gRPC com grpc.health.v1 registrado.
func NewGRPCServer(opts ...grpc.ServerOption) (*grpc.Server, *grpchealth.Server) {
	srv := grpc.NewServer(opts...)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// Watch atualiza o status gRPC a cada intervalo até ctx ser cancelado. No
// encerramento todos os serviços passam a NOT_SERVING.
func (c *Checker) Watch(ctx context.Context, hs *grpchealth.Server, interval time.Duration) {
	c.atualizar(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			c.atualizar(ctx, hs)
		}
	}
}

func (c *Checker) atualizar(ctx context.Context, hs *grpchealth.Server) {
	status := healthpb.HealthCheckResponse_SERVING
	if _, err := c.Check(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("component", "health").Msg("dependências indisponíveis")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}
