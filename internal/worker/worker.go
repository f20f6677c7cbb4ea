// Package worker implements the Worker scheduler described in spec §4.3:
// a polling loop with a strict global concurrency bound, a dispatcher
// that decodes and executes reserved tasks, and deterministic graceful
// shutdown.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/fairyhunter13/taskqueue/internal/adapter/observability"
	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// state is the Worker's own lifecycle, distinct from any individual
// task's Status.
type state int32

const (
	stateIdle state = iota
	stateRunning
	stateDraining
	stateStopped
)

// Config configures a Worker. Store, Codec, and Registry are required.
type Config struct {
	Store    domain.Store
	Codec    domain.Codec
	Registry domain.HandlerRegistry

	// MaxConcurrency is the strict upper bound on simultaneous
	// dispatches. Must be > 0; default 1.
	MaxConcurrency int
	// PollInterval is the backoff between polls when Reserve returns
	// empty, the Worker is at capacity, or a Store error occurred.
	// Default 1s.
	PollInterval time.Duration
	// BatchSize bounds tasks requested per Reserve call. Default 10.
	BatchSize int
}

// Worker pulls eligible tasks from the Store, decodes them via Codec and
// Registry, executes them under a bounded concurrency permit pool, and
// records outcomes.
type Worker struct {
	id       string
	store    domain.Store
	codec    domain.Codec
	registry domain.HandlerRegistry

	maxConcurrency int
	pollInterval   time.Duration
	batchSize      int

	sem       *semaphore.Weighted
	inFlightN int64

	mu       sync.Mutex
	st       state
	drain    chan struct{}
	wg       sync.WaitGroup
	loopDone chan struct{}
}

// New validates cfg and constructs a Worker in the idle state.
func New(cfg Config) (*Worker, error) {
	if cfg.Store == nil || cfg.Codec == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("op=worker.new: %w: store, codec, and registry are required", domain.ErrValidation)
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency == 0 {
		maxConcurrency = 1
	}
	if maxConcurrency < 0 {
		return nil, fmt.Errorf("op=worker.new: %w: max_concurrency must be positive", domain.ErrValidation)
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 10
	}
	return &Worker{
		id:             uuid.New().String(),
		store:          cfg.Store,
		codec:          cfg.Codec,
		registry:       cfg.Registry,
		maxConcurrency: maxConcurrency,
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		sem:            semaphore.NewWeighted(int64(maxConcurrency)),
		st:             stateIdle,
	}, nil
}

// ID returns the Worker's unique identifier, used in logs, traces, and to
// attribute dispatches in multi-worker deployments (spec §8 scenario S6).
func (w *Worker) ID() string { return w.id }

// Start transitions idle -> running and launches the polling loop in a
// new goroutine. Calling Start on anything but an idle Worker is an
// error.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.st != stateIdle {
		w.mu.Unlock()
		return fmt.Errorf("op=worker.start: %w: worker is not idle", domain.ErrValidation)
	}
	w.st = stateRunning
	w.drain = make(chan struct{})
	w.loopDone = make(chan struct{})
	w.mu.Unlock()

	if err := w.store.Connect(ctx); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

func (w *Worker) isDraining() bool {
	select {
	case <-w.drain:
		return true
	default:
		return false
	}
}

// loop is the polling loop contract of spec §4.3.
func (w *Worker) loop(ctx context.Context) {
	defer close(w.loopDone)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.pollInterval
	bo.MaxInterval = w.pollInterval
	bo.MaxElapsedTime = 0

	for {
		if w.isDraining() {
			return
		}

		capacity := w.maxConcurrency - int(w.inFlight())
		if capacity <= 0 {
			if !w.sleep(ctx, w.pollInterval) {
				return
			}
			continue
		}

		n := capacity
		if n > w.batchSize {
			n = w.batchSize
		}
		reserved, err := w.store.Reserve(ctx, n, time.Now().UTC())
		if err != nil {
			slog.Error("worker poll: reserve failed", slog.String("worker_id", w.id), slog.Any("error", err))
			if !w.sleep(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}
		bo.Reset()

		for _, task := range reserved {
			waitStart := time.Now()
			if err := w.sem.Acquire(ctx, 1); err != nil {
				// Context cancelled while waiting for a permit; the
				// reserved task stays in_progress for lease recovery.
				return
			}
			observability.PermitWaitDuration.WithLabelValues(w.id).Observe(time.Since(waitStart).Seconds())
			n := atomic.AddInt64(&w.inFlightN, 1)
			observability.WorkerInFlight.WithLabelValues(w.id).Set(float64(n))
			w.wg.Add(1)
			go w.dispatch(ctx, task)
		}

		if len(reserved) == 0 {
			if !w.sleep(ctx, w.pollInterval) {
				return
			}
		}
		// Non-empty but possibly short batch: loop again immediately
		// (backpressure relief, spec §4.3 step 4).

		if w.isDraining() {
			return
		}
	}
}

func (w *Worker) inFlight() int64 {
	return atomic.LoadInt64(&w.inFlightN)
}

// sleep waits for d, the context, or the drain signal, whichever comes
// first. Returns false if the caller should stop the loop.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.drain:
		return false
	}
}

// Stop transitions running -> draining -> stopped: it stops new
// reservations and awaits every in-flight dispatch. Idempotent.
//
// Stop never closes the Store. Per spec §4.3's shutdown contract, the
// Store is only closed "if owned by the worker", and a Worker never owns
// the Store it's handed, since spec §5 allows multiple Workers (and a
// Producer) to share one Store file in the same process. Whoever opened
// the Store is responsible for closing it once every Worker and Producer
// built on top of it has stopped.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	switch w.st {
	case stateStopped:
		w.mu.Unlock()
		return nil
	case stateDraining:
		loopDone := w.loopDone
		w.mu.Unlock()
		<-loopDone
		w.wg.Wait()
		return nil
	case stateIdle:
		w.st = stateStopped
		w.mu.Unlock()
		return nil
	}
	w.st = stateDraining
	close(w.drain)
	loopDone := w.loopDone
	w.mu.Unlock()

	<-loopDone
	w.wg.Wait()

	w.mu.Lock()
	w.st = stateStopped
	w.mu.Unlock()

	return nil
}
