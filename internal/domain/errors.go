// Package domain defines the core entities, ports, and error taxonomy
// shared by the Store, Producer, and Worker scheduler.
package domain

import "errors"

// Error taxonomy (sentinels). Callers compare with errors.Is; the core
// always wraps these with fmt.Errorf("op=...: %w", ...) before returning
// them so logs retain the failing operation name.
var (
	// ErrValidation marks an input precondition violation raised at a
	// Producer or Worker public boundary (nil handler, naive timestamp,
	// non-positive concurrency, and similar).
	ErrValidation = errors.New("validation error")
	// ErrCodec marks an envelope or value encode/decode failure.
	ErrCodec = errors.New("codec error")
	// ErrStoreConnect marks a failure to establish the Store's underlying
	// connection or schema.
	ErrStoreConnect = errors.New("store connect error")
	// ErrStoreClosed marks an operation attempted after Close.
	ErrStoreClosed = errors.New("store closed")
	// ErrStoreIO marks a persistence failure other than connect/closed.
	ErrStoreIO = errors.New("store io error")
	// ErrDuplicateTask marks an Enqueue call whose task id already exists.
	ErrDuplicateTask = errors.New("duplicate task id")
	// ErrNotFound marks a lookup that found nothing, such as a handler
	// name with no registration. Store.GetResult does not use it; it
	// reports a missing row as found=false.
	ErrNotFound = errors.New("not found")
)
