package codec

import (
	"sync"

	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// Registry is the reference domain.HandlerRegistry: a process-local map
// from a stable handler name to executable Go code, guarded by a mutex
// since Register typically runs at startup and Lookup runs concurrently
// from every Worker dispatch goroutine.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]domain.HandlerFunc
}

var _ domain.HandlerRegistry = (*Registry)(nil)

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]domain.HandlerFunc)}
}

// Register binds name to fn, overwriting any prior binding. Intended to
// be called during application startup before any Worker is started.
func (r *Registry) Register(name string, fn domain.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Lookup resolves name to a HandlerFunc.
func (r *Registry) Lookup(name string) (domain.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}
