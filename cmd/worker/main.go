// Package main provides the worker process entry point: it wires the
// SQLite Store, the registered-handler codec, the Worker scheduler, and
// the optional admin HTTP surface, then runs until a shutdown signal.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/taskqueue/internal/adapter/observability"
	"github.com/fairyhunter13/taskqueue/internal/adminserver"
	"github.com/fairyhunter13/taskqueue/internal/codec"
	"github.com/fairyhunter13/taskqueue/internal/config"
	"github.com/fairyhunter13/taskqueue/internal/domain"
	"github.com/fairyhunter13/taskqueue/internal/store/sqlite"
	"github.com/fairyhunter13/taskqueue/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv), slog.String("store_path", cfg.StorePath))

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("store open failed", slog.Any("error", err))
		os.Exit(1)
	}
	// This process is the sole owner of store: Worker.Stop and the admin
	// server never close it themselves (they may not be the only holder),
	// so main closes it last, after every component built on it has
	// stopped.
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("store close error", slog.Any("error", err))
		}
	}()

	registry := codec.NewRegistry()
	registerBuiltinHandlers(registry)

	w, err := worker.New(worker.Config{
		Store:          store,
		Codec:          codec.JSON{},
		Registry:       registry,
		MaxConcurrency: cfg.MaxConcurrency,
		PollInterval:   cfg.PollInterval,
		BatchSize:      cfg.BatchSize,
	})
	if err != nil {
		slog.Error("worker construction failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		slog.Error("worker start failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("worker started", slog.String("worker_id", w.ID()), slog.Int("max_concurrency", cfg.MaxConcurrency))

	var admin *adminserver.Server
	if cfg.AdminAddr != "" {
		admin = adminserver.New(cfg, store)
		go func() {
			if err := admin.ListenAndServe(); err != nil {
				slog.Error("admin server error", slog.Any("error", err))
			}
		}()
		slog.Info("admin server listening", slog.String("addr", cfg.AdminAddr))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			slog.Error("admin server shutdown error", slog.Any("error", err))
		}
	}
	if err := w.Stop(shutdownCtx); err != nil {
		slog.Error("worker stop error", slog.Any("error", err))
	}
	slog.Info("worker stopped")
}

func openStore(cfg config.Config) (domain.Store, error) {
	opts := []sqlite.Option{}
	if cfg.LeaseHorizon > 0 {
		opts = append(opts, sqlite.WithLeaseHorizon(cfg.LeaseHorizon))
	}
	if cfg.StorePath == ":memory:" {
		return sqlite.OpenMemory(opts...)
	}
	return sqlite.OpenFile(cfg.StorePath, opts...)
}

// registerBuiltinHandlers registers the handlers shipped with this
// process. Embedding applications extend or replace this registry
// before constructing their own worker.Worker.
func registerBuiltinHandlers(registry *codec.Registry) {
	registry.Register("echo", func(_ context.Context, args []domain.RawValue, _ []byte) (any, error) {
		var s string
		if len(args) > 0 {
			if err := (codec.JSON{}).DecodeValue(args[0], &s); err != nil {
				return nil, err
			}
		}
		return s, nil
	})
}
