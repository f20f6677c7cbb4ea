package domain

import (
	"context"
	"time"
)

// Store is the durable persistence port described in spec §4.1. Every
// method executes as a single serializable transaction against the
// underlying engine. Implementations live under internal/store/.
type Store interface {
	// Connect establishes the connection and creates the schema if
	// absent. Idempotent; safe to call more than once.
	Connect(ctx context.Context) error
	// Close releases resources. Idempotent. After Close, every other
	// method returns an error wrapping ErrStoreClosed.
	Close() error

	// Enqueue inserts one pending row. Returns an error wrapping
	// ErrDuplicateTask if id already exists.
	Enqueue(ctx context.Context, id string, payload []byte, availableAt time.Time) error

	// Reserve atomically moves up to maxItems eligible pending rows to
	// in_progress and returns them. Eligible means status=pending and
	// available_at<=now. Tie-break: available_at asc, enqueued_at asc,
	// insertion order. Returns an empty slice, never nil, when no rows
	// qualify.
	Reserve(ctx context.Context, maxItems int, now time.Time) ([]ReservedTask, error)

	// MarkSuccess transitions id from in_progress to success. Returns
	// applied=false, nil error if the row was not in_progress (no-op).
	MarkSuccess(ctx context.Context, id string, value []byte, finishedAt time.Time) (applied bool, err error)
	// MarkFailure is the failure-path symmetric to MarkSuccess.
	MarkFailure(ctx context.Context, id string, errMsg, traceback string, finishedAt time.Time) (applied bool, err error)

	// GetResult returns (Result, true) only for a terminal row. It
	// returns (Result{}, false) both when no row exists and when the row
	// is pending or in_progress — callers cannot distinguish "no such
	// task" from "not finished yet" through this method alone.
	GetResult(ctx context.Context, id string) (Result, bool, error)
}

// Codec converts handler invocations and return values to and from
// opaque bytes. The core never inspects payload contents — only the
// shape described here. See spec §6 and §9 for the registered-handler
// re-architecture this interface embodies.
type Codec interface {
	// EncodeEnvelope produces the opaque payload persisted by Enqueue.
	EncodeEnvelope(env Envelope) ([]byte, error)
	// DecodeEnvelope is the inverse of EncodeEnvelope. It returns an
	// error wrapping ErrCodec on corruption or an unrecognized shape.
	DecodeEnvelope(b []byte) (Envelope, error)
	// EncodeValue serializes a handler's return value. Must round-trip
	// nil faithfully.
	EncodeValue(v any) ([]byte, error)
	// DecodeValue is the inverse of EncodeValue.
	DecodeValue(b []byte, out any) error
}

// HandlerFunc is a registered unit of work. It receives its positional
// arguments still encoded (each one a RawValue for the handler to decode
// with the Codec) and an optional opaque context blob, and returns
// a value to be encoded via Codec.EncodeValue, or an error.
type HandlerFunc func(ctx context.Context, args []RawValue, taskCtx []byte) (any, error)

// HandlerRegistry resolves a stable handler identifier to executable Go
// code. It is the process-local substitute spec §9 calls for in place of
// serializing arbitrary callables.
type HandlerRegistry interface {
	Register(name string, fn HandlerFunc)
	Lookup(name string) (HandlerFunc, bool)
}
