package observability

import (
	"log/slog"
	"os"

	"github.com/fairyhunter13/taskqueue/internal/config"
)

// SetupLogger configures a JSON slog logger with environment and
// store-identity fields. store_path lets log lines from several workers
// sharing one host be correlated to the Store file they poll, which
// matters once spec §5's multi-worker-per-store deployments are in play.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	// In dev, show debug level; in prod, default to info
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
		slog.String("store_path", cfg.StorePath),
	)
	return logger
}

// TaskLogger scopes base with the worker and task identifiers that every
// dispatch-path log line needs, so internal/worker doesn't hand-roll the
// same two slog.String attrs at every call site.
func TaskLogger(base *slog.Logger, workerID, taskID string) *slog.Logger {
	return base.With(
		slog.String("worker_id", workerID),
		slog.String("task_id", taskID),
	)
}
