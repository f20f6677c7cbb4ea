package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/taskqueue/internal/adapter/observability"
	"github.com/fairyhunter13/taskqueue/internal/domain"
)

var tracer = otel.Tracer("store.tasks")

var _ domain.Store = (*Store)(nil)

func span(ctx context.Context, op string) (context.Context, func()) {
	ctx, sp := tracer.Start(ctx, "store.tasks."+op)
	sp.SetAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", "tasks"),
	)
	start := time.Now()
	return ctx, func() {
		observability.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		sp.End()
	}
}

// Enqueue implements domain.Store.
func (s *Store) Enqueue(ctx context.Context, id string, payload []byte, availableAt time.Time) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, end := span(ctx, "enqueue")
	defer end()

	s.lock()
	defer s.unlock()

	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, status, payload, available_at, enqueued_at) VALUES (?, 'pending', ?, ?, ?)`,
		id, payload, availableAt.UTC().Format(timeLayout), now,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("op=sqlite.enqueue: %w", domain.ErrDuplicateTask)
		}
		return fmt.Errorf("op=sqlite.enqueue: %w: %w", domain.ErrStoreIO, err)
	}
	observability.TasksEnqueuedTotal.Inc()
	return nil
}

func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Reserve implements domain.Store. The pending->in_progress transition is
// one transaction opened with SQLite's BEGIN IMMEDIATE semantics (the
// connection DSN carries _txlock=immediate), which acquires the reserved
// lock up front: two concurrent Reserve calls against the same file (or,
// for the memory variant, the serialization in lock()/unlock()) can never
// both select the same pending row — the second writer blocks until the
// first commits and sees the rows already flipped to in_progress.
func (s *Store) Reserve(ctx context.Context, maxItems int, now time.Time) ([]domain.ReservedTask, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if maxItems <= 0 {
		return []domain.ReservedTask{}, nil
	}
	ctx, end := span(ctx, "reserve")
	defer end()

	s.lock()
	defer s.unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("op=sqlite.reserve.begin: %w: %w", domain.ErrStoreIO, err)
	}
	defer tx.Rollback() //nolint:errcheck

	nowStr := now.UTC().Format(timeLayout)
	rows, err := tx.QueryContext(ctx,
		`SELECT id, payload FROM tasks
		 WHERE status='pending' AND available_at <= ?
		 ORDER BY available_at ASC, enqueued_at ASC, rowid ASC
		 LIMIT ?`,
		nowStr, maxItems,
	)
	if err != nil {
		return nil, fmt.Errorf("op=sqlite.reserve.select: %w: %w", domain.ErrStoreIO, err)
	}
	type cand struct {
		id      string
		payload []byte
	}
	var cands []cand
	for rows.Next() {
		var c cand
		if err := rows.Scan(&c.id, &c.payload); err != nil {
			rows.Close()
			return nil, fmt.Errorf("op=sqlite.reserve.scan: %w: %w", domain.ErrStoreIO, err)
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("op=sqlite.reserve.rows: %w: %w", domain.ErrStoreIO, err)
	}
	rows.Close()

	if len(cands) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("op=sqlite.reserve.commit_empty: %w: %w", domain.ErrStoreIO, err)
		}
		return []domain.ReservedTask{}, nil
	}

	out := make([]domain.ReservedTask, 0, len(cands))
	for _, c := range cands {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status='in_progress', started_at=? WHERE id=? AND status='pending'`,
			nowStr, c.id,
		)
		if err != nil {
			return nil, fmt.Errorf("op=sqlite.reserve.update: %w: %w", domain.ErrStoreIO, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			// Lost a race to another transaction between SELECT and
			// UPDATE; skip it rather than double-reserve.
			continue
		}
		out = append(out, domain.ReservedTask{ID: c.id, Payload: c.payload, StartedAt: now})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("op=sqlite.reserve.commit: %w: %w", domain.ErrStoreIO, err)
	}
	observability.TasksReservedTotal.Add(float64(len(out)))
	return out, nil
}

// MarkSuccess implements domain.Store.
func (s *Store) MarkSuccess(ctx context.Context, id string, value []byte, finishedAt time.Time) (bool, error) {
	return s.markTerminal(ctx, id, domain.StatusSuccess, value, nil, nil, finishedAt)
}

// MarkFailure implements domain.Store.
func (s *Store) MarkFailure(ctx context.Context, id string, errMsg, traceback string, finishedAt time.Time) (bool, error) {
	return s.markTerminal(ctx, id, domain.StatusFailed, nil, &errMsg, &traceback, finishedAt)
}

func (s *Store) markTerminal(ctx context.Context, id string, status domain.Status, value []byte, errMsg, traceback *string, finishedAt time.Time) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	op := "mark_success"
	if status == domain.StatusFailed {
		op = "mark_failure"
	}
	ctx, end := span(ctx, op)
	defer end()

	s.lock()
	defer s.unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status=?, value=?, error=?, traceback=?, finished_at=?
		 WHERE id=? AND status='in_progress'`,
		string(status), value, errMsg, traceback, finishedAt.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return false, fmt.Errorf("op=sqlite.%s: %w: %w", op, domain.ErrStoreIO, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("op=sqlite.%s.rows_affected: %w: %w", op, domain.ErrStoreIO, err)
	}
	if n == 0 {
		slog.Warn("terminal mark ignored: task not in_progress",
			slog.String("task_id", id), slog.String("attempted_status", string(status)))
		return false, nil
	}
	observability.TasksCompletedTotal.WithLabelValues(string(status)).Inc()
	return true, nil
}

// GetResult implements domain.Store.
func (s *Store) GetResult(ctx context.Context, id string) (domain.Result, bool, error) {
	if err := s.checkOpen(); err != nil {
		return domain.Result{}, false, err
	}
	ctx, end := span(ctx, "get_result")
	defer end()

	s.lock()
	defer s.unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT status, value, error, traceback, enqueued_at, started_at, finished_at
		 FROM tasks WHERE id=?`, id,
	)
	var (
		status                             string
		value                              []byte
		errMsg, traceback                  sql.NullString
		enqueuedAtStr                      string
		startedAtStr, finishedAtStr        sql.NullString
	)
	if err := row.Scan(&status, &value, &errMsg, &traceback, &enqueuedAtStr, &startedAtStr, &finishedAtStr); err != nil {
		if err == sql.ErrNoRows {
			return domain.Result{}, false, nil
		}
		return domain.Result{}, false, fmt.Errorf("op=sqlite.get_result: %w: %w", domain.ErrStoreIO, err)
	}
	if status != string(domain.StatusSuccess) && status != string(domain.StatusFailed) {
		return domain.Result{}, false, nil
	}
	enqueuedAt, _ := time.Parse(timeLayout, enqueuedAtStr)
	var startedAt, finishedAt time.Time
	if startedAtStr.Valid {
		startedAt, _ = time.Parse(timeLayout, startedAtStr.String)
	}
	if finishedAtStr.Valid {
		finishedAt, _ = time.Parse(timeLayout, finishedAtStr.String)
	}
	res := domain.Result{
		TaskID:     id,
		Status:     domain.Status(status),
		Value:      value,
		EnqueuedAt: enqueuedAt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if errMsg.Valid {
		res.Error = &errMsg.String
	}
	if traceback.Valid {
		res.Traceback = &traceback.String
	}
	return res, true, nil
}

// Stats reports the number of tasks in each lifecycle status. It is not
// part of domain.Store; internal/adminserver type-asserts for it to back
// the /stats route.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	ctx, end := span(ctx, "stats")
	defer end()

	s.lock()
	defer s.unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("op=sqlite.stats: %w: %w", domain.ErrStoreIO, err)
	}
	defer rows.Close()

	out := map[string]int64{
		string(domain.StatusPending):    0,
		string(domain.StatusInProgress): 0,
		string(domain.StatusSuccess):    0,
		string(domain.StatusFailed):     0,
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("op=sqlite.stats.scan: %w: %w", domain.ErrStoreIO, err)
		}
		out[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=sqlite.stats.rows: %w: %w", domain.ErrStoreIO, err)
	}
	return out, nil
}
