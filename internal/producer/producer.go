// Package producer implements the TaskQueue producer described in spec
// §4.2: submission, identifier assignment, envelope encoding, and
// result rendezvous.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/taskqueue/internal/codec"
	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// Config configures a Producer. Store is required; a nil Codec defaults
// to codec.JSON{}, and everything else has a documented default.
type Config struct {
	Store domain.Store
	Codec domain.Codec
	// DefaultResultTimeout is used by GetResultDefault. A nil pointer
	// (the zero value of this field) means "unset": GetResultDefault
	// polls indefinitely. A pointer to a zero duration is an explicit
	// single probe, same as passing timeout=0 to GetResult directly
	// (spec §9 Open Question #4). time.Duration itself can't represent
	// this distinction since its own zero value is ambiguous between
	// "unset" and "explicitly zero".
	DefaultResultTimeout *time.Duration
}

// TaskQueue is the Producer side of the task queue: Enqueue assigns a
// fresh id and persists an Envelope; GetResult polls the Store for a
// terminal outcome.
type TaskQueue struct {
	store                domain.Store
	codec                domain.Codec
	defaultResultTimeout *time.Duration
	connected            bool
}

// New constructs a TaskQueue. If cfg.Codec is nil, codec.JSON{} is used.
func New(cfg Config) (*TaskQueue, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("op=producer.new: %w: store is required", domain.ErrValidation)
	}
	c := cfg.Codec
	if c == nil {
		c = codec.JSON{}
	}
	return &TaskQueue{
		store:                cfg.Store,
		codec:                c,
		defaultResultTimeout: cfg.DefaultResultTimeout,
	}, nil
}

// Connect ensures the underlying Store is connected. Idempotent.
func (q *TaskQueue) Connect(ctx context.Context) error {
	if q.connected {
		return nil
	}
	if err := q.store.Connect(ctx); err != nil {
		return err
	}
	q.connected = true
	return nil
}

// Close releases the underlying Store. Idempotent. Intended to be used
// with defer immediately after a successful Connect, mirroring the
// scoped-resource pattern of spec §4.2.
func (q *TaskQueue) Close() error {
	return q.store.Close()
}

// EnqueueInput is the submission described in spec §4.2.
type EnqueueInput struct {
	// Handler names a registered unit of work (spec §9's re-architecture
	// of "passing callables as payloads").
	Handler string
	// Args are pre-encoded positional arguments; build them with
	// codec.EncodeArg or the configured Codec's equivalent.
	Args []domain.RawValue
	// Context is an opaque blob persisted alongside the envelope but
	// never interpreted by the core.
	Context []byte
	// ETA, if set, must be non-zero and is used verbatim as
	// available_at. A zero value means "eligible immediately".
	ETA time.Time
}

// Enqueue validates the input, assigns a fresh task id, encodes the
// envelope, and persists it. Returns the assigned task id.
func (q *TaskQueue) Enqueue(ctx context.Context, in EnqueueInput) (string, error) {
	if in.Handler == "" {
		return "", fmt.Errorf("op=producer.enqueue: %w: handler is required", domain.ErrValidation)
	}

	id := ulid.Make().String()
	availableAt := time.Now().UTC()
	if !in.ETA.IsZero() {
		availableAt = in.ETA.UTC()
	}

	env := domain.Envelope{Handler: in.Handler, Args: in.Args, Context: in.Context}
	payload, err := q.codec.EncodeEnvelope(env)
	if err != nil {
		return "", fmt.Errorf("op=producer.enqueue.encode: %w", err)
	}

	if err := q.store.Enqueue(ctx, id, payload, availableAt); err != nil {
		return "", fmt.Errorf("op=producer.enqueue.store: %w", err)
	}
	return id, nil
}

// GetResult polls the Store until a terminal Result is returned or
// timeout elapses. timeout=0 is an explicit single probe (spec §9 Open
// Question #4). It never returns a timeout error: a timeout is signaled
// by (Result{}, false, nil).
func (q *TaskQueue) GetResult(ctx context.Context, taskID string, timeout time.Duration) (domain.Result, bool, error) {
	if timeout == 0 {
		return q.probe(ctx, taskID)
	}
	deadline := time.Now().Add(timeout)
	return q.poll(ctx, taskID, &deadline)
}

// GetResultDefault calls GetResult using Config.DefaultResultTimeout. If
// DefaultResultTimeout was never set (nil), this polls indefinitely
// rather than treating the unset field like an explicit timeout=0 probe.
func (q *TaskQueue) GetResultDefault(ctx context.Context, taskID string) (domain.Result, bool, error) {
	if q.defaultResultTimeout == nil {
		return q.poll(ctx, taskID, nil)
	}
	return q.GetResult(ctx, taskID, *q.defaultResultTimeout)
}

// probe checks the Store exactly once, with no polling.
func (q *TaskQueue) probe(ctx context.Context, taskID string) (domain.Result, bool, error) {
	res, found, err := q.store.GetResult(ctx, taskID)
	if err != nil {
		return domain.Result{}, false, err
	}
	return res, found, nil
}

// poll checks the Store, then backs off and retries until a terminal
// Result appears, ctx is cancelled, or deadline passes. A nil deadline
// means poll forever.
func (q *TaskQueue) poll(ctx context.Context, taskID string, deadline *time.Time) (domain.Result, bool, error) {
	res, found, err := q.store.GetResult(ctx, taskID)
	if err != nil {
		return domain.Result{}, false, err
	}
	if found {
		return res, true, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	bo.Multiplier = 1.5
	bo.MaxElapsedTime = 0 // we track the deadline ourselves, if any

	for {
		wait := bo.NextBackOff()
		if deadline != nil {
			remaining := time.Until(*deadline)
			if remaining <= 0 {
				return domain.Result{}, false, nil
			}
			if wait > remaining {
				wait = remaining
			}
		}
		select {
		case <-ctx.Done():
			return domain.Result{}, false, ctx.Err()
		case <-time.After(wait):
		}

		res, found, err := q.store.GetResult(ctx, taskID)
		if err != nil {
			return domain.Result{}, false, err
		}
		if found {
			return res, true, nil
		}
		if deadline != nil && time.Now().After(*deadline) {
			return domain.Result{}, false, nil
		}
	}
}

// DeserializeResult decodes res.Value via the configured Codec into out.
func (q *TaskQueue) DeserializeResult(res domain.Result, out any) error {
	if err := q.codec.DecodeValue(res.Value, out); err != nil {
		slog.Warn("failed to deserialize result value", slog.String("task_id", res.TaskID), slog.Any("error", err))
		return err
	}
	return nil
}
