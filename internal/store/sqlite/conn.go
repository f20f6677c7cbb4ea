// Package sqlite is the reference durable Store from spec §4.1: a
// single-file relational store with WAL-style concurrency, exposed both
// as a file-path variant and an in-process ("memory") variant that share
// all of their transactional logic.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// Store is the reference domain.Store implementation backed by SQLite.
//
// The in-memory variant (OpenMemory) keeps db.SetMaxOpenConns(1) so every
// operation reuses the same connection — SQLite's ":memory:"/"file::memory:"
// DSNs create an isolated database per connection, so a pool would
// silently fragment the data (spec §4.1). That single connection is
// additionally serialized with mu because database/sql still allows
// concurrent callers to queue for it from multiple goroutines, and
// SQLite's in-process engine is not safe for concurrent statement
// execution on one connection.
type Store struct {
	db           *sql.DB
	mu           *sync.Mutex // non-nil only for the memory variant
	leaseHorizon time.Duration
	closed       bool
	closedMu     sync.RWMutex
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLeaseHorizon enables stranded in_progress recovery on Connect: rows
// started more than horizon ago are swept back to pending. Zero (the
// default) disables recovery, matching the reference store's documented
// behavior (spec §4.1, Open Question #1 — decision recorded in
// DESIGN.md).
func WithLeaseHorizon(horizon time.Duration) Option {
	return func(s *Store) { s.leaseHorizon = horizon }
}

// OpenFile opens or creates a SQLite database at path. Connections are
// pooled modestly; SQLite serializes writers regardless of pool size.
func OpenFile(path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("op=sqlite.open_file: %w: %w", domain.ErrStoreConnect, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OpenMemory opens an in-process database backed by a single shared
// connection (spec §4.1). The DSN uses SQLite's shared cache, so every
// Store opened with OpenMemory in the same process sees the same
// database while any of them is open. Intended for tests and embedding
// applications that do not need durability across process restarts; the
// reference spec positions this variant as a testing tool, not a
// production path (spec §9).
func OpenMemory(opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("op=sqlite.open_memory: %w: %w", domain.ErrStoreConnect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s := &Store{db: db, mu: &sync.Mutex{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// lock serializes access for the memory variant; it is a no-op for the
// file variant, which relies on SQLite's own writer serialization plus
// database/sql's connection pool.
func (s *Store) lock() {
	if s.mu != nil {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if s.mu != nil {
		s.mu.Unlock()
	}
}

func (s *Store) checkOpen() error {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	if s.closed {
		return fmt.Errorf("op=sqlite.check_open: %w", domain.ErrStoreClosed)
	}
	return nil
}

// Connect creates the schema if absent and, when a lease horizon is
// configured, sweeps stranded in_progress rows back to pending.
// Idempotent: calling it again just re-runs CREATE TABLE IF NOT EXISTS
// and the sweep.
func (s *Store) Connect(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.lock()
	defer s.unlock()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("op=sqlite.connect.ping: %w: %w", domain.ErrStoreConnect, err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("op=sqlite.connect.schema: %w: %w", domain.ErrStoreConnect, err)
	}
	if s.leaseHorizon > 0 {
		if err := s.recoverStranded(ctx); err != nil {
			return fmt.Errorf("op=sqlite.connect.recover: %w: %w", domain.ErrStoreConnect, err)
		}
	}
	return nil
}

// recoverStranded implements spec §4.1's optional recovery sweep. Caller
// must hold s.mu for the memory variant.
func (s *Store) recoverStranded(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.leaseHorizon).Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status='pending', started_at=NULL WHERE status='in_progress' AND started_at < ?`,
		cutoff,
	)
	return err
}

// Close releases the underlying connection(s). Idempotent.
func (s *Store) Close() error {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
