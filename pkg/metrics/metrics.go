// Package metrics exposes the Prometheus collectors registered by the other
// packages. Collectors are defined next to the code that updates them
// (client, ratelimit, pipeline) via promauto.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the registerer all collectors are attached to.
var Registry = prometheus.DefaultRegisterer

// Handler returns a router serving /metrics and /health.
func Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

// Server serves Handler on a TCP address until its context ends.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr (e.g. ":9090" or "127.0.0.1:0").
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		srv: &http.Server{
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln: ln,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()

	log.Info().Str("component", "metrics").Str("addr", s.Addr()).Msg("Metrics server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - validator_ratelimit_remaining (Gauge): last X-RateLimit-Remaining seen
//   - validator_ratelimit_blocks_total (Counter): waits until the window reset
//   - validator_ratelimit_throttles_total (Counter): throttle delays applied
//   - validator_ratelimit_wait_seconds (Histogram): time spent waiting for the limiter
//
// Request Metrics (pkg/client):
//   - validator_requests_total{endpoint, status} (Counter)
//   - validator_request_duration_seconds{endpoint} (Histogram)
//   - validator_errors_total{class} (Counter)
//   - validator_credential_acquisitions_total{reason} (Counter)
//
// Retry Metrics (pkg/client):
//   - validator_retries_total{error_class} (Counter)
//   - validator_retry_backoff_seconds{error_class} (Histogram)
//   - validator_retry_exhausted_total{error_class} (Counter)
//
// Pipeline Metrics (pkg/pipeline):
//   - validator_outcomes_total{kind, code} (Counter)
//   - validator_records_inflight (Gauge)
//   - validator_batches_completed_total (Counter)
//   - validator_pipeline_duration_seconds (Histogram)
//
// Example Prometheus Queries:
//
//   # Invalid rate
//   sum(rate(validator_outcomes_total{kind="invalid"}[5m])) /
//   sum(rate(validator_outcomes_total[5m]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(validator_request_duration_seconds_bucket[5m]))
