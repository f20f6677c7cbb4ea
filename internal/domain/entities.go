package domain

import "time"

// Status is the lifecycle state of a TaskRecord.
type Status string

// Lifecycle states. Transitions form the DAG pending -> in_progress ->
// {success, failed}; stranded in_progress rows MAY return to pending via
// Store lease recovery, never to any other state.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// TaskRecord is the persistent row owned exclusively by the Store.
//
// Invariants (enforced by every Store implementation):
//  1. Pending rows have nil StartedAt, FinishedAt, Value, Error, Traceback.
//  2. InProgress rows have non-nil StartedAt and nil FinishedAt.
//  3. Success rows have non-nil FinishedAt, nil Error and Traceback.
//  4. Failed rows have non-nil FinishedAt and a non-empty Error or Traceback.
type TaskRecord struct {
	ID          string
	Status      Status
	Payload     []byte
	AvailableAt time.Time
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Value       []byte
	Error       *string
	Traceback   *string
}

// ReservedTask is the transient handle returned by Store.Reserve.
type ReservedTask struct {
	ID        string
	Payload   []byte
	StartedAt time.Time
}

// Result is the transient terminal outcome returned by Store.GetResult and
// Producer.GetResult. Value holds encoded bytes; decoding is a separate
// step so callers can inspect Status/Error without paying codec cost.
type Result struct {
	TaskID     string
	Status     Status // success | failed
	Value      []byte
	Error      *string
	Traceback  *string
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Envelope is the opaque unit of work persisted as TaskRecord.Payload. It
// names a registered handler rather than carrying a serialized callable
// (see Registry), plus its arguments and an optional opaque context blob.
type Envelope struct {
	Handler string
	Args    []RawValue
	Context []byte
}

// RawValue is an already-encoded argument or return value. The core never
// interprets its contents; only the Codec does.
type RawValue []byte
