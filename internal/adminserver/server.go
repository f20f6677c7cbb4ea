// Package adminserver exposes an operational HTTP surface alongside the
// Worker: liveness, Prometheus metrics, and a queue-depth snapshot. It is
// entirely ambient — no core Store/Producer/Worker operation depends on
// it being mounted.
package adminserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/taskqueue/internal/config"
	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// statsProvider is implemented by store.sqlite.Store. It is not part of
// domain.Store because stats are an operational concern, not core
// queue semantics.
type statsProvider interface {
	Stats(ctx context.Context) (map[string]int64, error)
}

// Server is the admin HTTP surface. Construct with New and run with
// ListenAndServe / Shutdown like any *http.Server-backed component.
type Server struct {
	httpServer *http.Server
}

// New builds the chi router and wraps it in an *http.Server bound to
// cfg.AdminAddr. store is used for the /stats route when it implements
// statsProvider; otherwise /stats reports an empty snapshot.
func New(cfg config.Config, store domain.Store) *Server {
	r := chi.NewRouter()
	r.Use(recoverer, accessLog, securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	if cfg.AdminRateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.AdminRateLimitRPS, time.Second))
	}

	r.Get("/healthz", healthzHandler)
	r.Handle("/metrics", promhttp.Handler())

	statsHandler := newStatsHandler(store)
	if cfg.AdminEnabled() {
		r.With(basicAuth(cfg)).Get("/stats", statsHandler)
	} else {
		r.Get("/stats", statsHandler)
	}

	return &Server{httpServer: &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func newStatsHandler(store domain.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		sp, ok := store.(statsProvider)
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]int64{})
			return
		}
		counts, err := sp.Stats(r.Context())
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(counts)
	}
}

// ListenAndServe starts the admin HTTP server. Blocks until Shutdown is
// called or the listener fails.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the admin HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
