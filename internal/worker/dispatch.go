package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/taskqueue/internal/adapter/observability"
	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// dispatch decodes, executes, and records the outcome of a single
// reserved task. It always releases its semaphore permit and decrements
// wg, and it never lets a handler panic escape into the polling loop
// (spec §4.3's dispatch contract).
func (w *Worker) dispatch(ctx context.Context, task domain.ReservedTask) {
	defer func() {
		w.sem.Release(1)
		n := atomic.AddInt64(&w.inFlightN, -1)
		observability.WorkerInFlight.WithLabelValues(w.id).Set(float64(n))
		w.wg.Done()
	}()

	log := observability.TaskLogger(slog.Default(), w.id, task.ID)
	value, execErr, traceback := w.execute(ctx, task)
	finishedAt := time.Now().UTC()

	if execErr == nil {
		if _, err := w.store.MarkSuccess(ctx, task.ID, value, finishedAt); err != nil {
			log.Error("dispatch: mark_success failed", slog.Any("error", err))
		}
		return
	}

	if _, err := w.store.MarkFailure(ctx, task.ID, execErr.Error(), traceback, finishedAt); err != nil {
		log.Error("dispatch: mark_failure failed", slog.Any("error", err))
	}
}

// execute decodes the envelope, looks up its handler, and runs it under
// panic recovery. A decode failure, an unknown handler, a handler error,
// and a handler panic are all captured as a failed outcome rather than
// propagated, per spec §4.3.
func (w *Worker) execute(ctx context.Context, task domain.ReservedTask) (value []byte, execErr error, traceback string) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.TaskLogger(slog.Default(), w.id, task.ID).Error("dispatch: handler panicked", slog.Any("recover", rec))
			execErr = fmt.Errorf("handler panic: %v", rec)
			traceback = string(debug.Stack())
		}
	}()

	env, err := w.codec.DecodeEnvelope(task.Payload)
	if err != nil {
		return nil, fmt.Errorf("op=dispatch.decode: %w", err), ""
	}

	fn, ok := w.registry.Lookup(env.Handler)
	if !ok {
		return nil, fmt.Errorf("op=dispatch.lookup: %w: handler %q is not registered", domain.ErrNotFound, env.Handler), ""
	}

	result, err := fn(ctx, env.Args, env.Context)
	if err != nil {
		return nil, err, ""
	}

	encoded, err := w.codec.EncodeValue(result)
	if err != nil {
		return nil, fmt.Errorf("op=dispatch.encode_result: %w", err), ""
	}
	return encoded, nil, ""
}
