package deadletter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteQueue persists failure records to SQLite.
// It is suitable for single-process production use.
type SQLiteQueue struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteQueue opens (or creates) a SQLite dead-letter queue.
// The path should be a file path (e.g., "./deadletter.db") or ":memory:" for testing.
func NewSQLiteQueue(path string) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letters (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			occurrence_id TEXT NOT NULL UNIQUE,
			logic TEXT NOT NULL,
			stage TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_data BLOB,
			error TEXT NOT NULL,
			failed_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dead_letters_event_type
		ON dead_letters(event_type)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteQueue{db: db}, nil
}

// Enqueue implements Queue.
func (q *SQLiteQueue) Enqueue(ctx context.Context, rec *Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO dead_letters
			(occurrence_id, logic, stage, event_id, event_type, event_data, error, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(occurrence_id) DO UPDATE SET
			logic = excluded.logic,
			stage = excluded.stage,
			event_id = excluded.event_id,
			event_type = excluded.event_type,
			event_data = excluded.event_data,
			error = excluded.error,
			failed_at = excluded.failed_at
	`, rec.OccurrenceID, rec.Logic, rec.Stage, rec.EventID, rec.EventType, rec.EventData,
		rec.Error, rec.FailedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("enqueue dead letter: %w", err)
	}
	return nil
}

// List implements Queue.
func (q *SQLiteQueue) List(ctx context.Context, limit int) ([]*Record, error) {
	return q.query(ctx, `
		SELECT occurrence_id, logic, stage, event_id, event_type, event_data, error, failed_at
		FROM dead_letters
		ORDER BY seq
		LIMIT ?
	`, sqlLimit(limit))
}

// ListByType implements Queue.
func (q *SQLiteQueue) ListByType(ctx context.Context, eventType string, limit int) ([]*Record, error) {
	return q.query(ctx, `
		SELECT occurrence_id, logic, stage, event_id, event_type, event_data, error, failed_at
		FROM dead_letters
		WHERE event_type = ?
		ORDER BY seq
		LIMIT ?
	`, eventType, sqlLimit(limit))
}

func (q *SQLiteQueue) query(ctx context.Context, stmt string, args ...any) ([]*Record, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var failedAt string
		if err := rows.Scan(&rec.OccurrenceID, &rec.Logic, &rec.Stage, &rec.EventID,
			&rec.EventType, &rec.EventData, &rec.Error, &failedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		rec.FailedAt, _ = time.Parse(time.RFC3339Nano, failedAt)
		out = append(out, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}

// Acknowledge implements Queue.
func (q *SQLiteQueue) Acknowledge(ctx context.Context, occurrenceID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	res, err := q.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE occurrence_id = ?`, occurrenceID)
	if err != nil {
		return fmt.Errorf("acknowledge dead letter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acknowledge dead letter: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count implements Queue.
func (q *SQLiteQueue) Count(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

// CountByLogic implements Queue.
func (q *SQLiteQueue) CountByLogic(ctx context.Context) (map[string]int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	rows, err := q.db.QueryContext(ctx, `SELECT logic, COUNT(*) FROM dead_letters GROUP BY logic`)
	if err != nil {
		return nil, fmt.Errorf("count dead letters by logic: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var logic string
		var n int
		if err := rows.Scan(&logic, &n); err != nil {
			return nil, fmt.Errorf("scan dead letter count: %w", err)
		}
		counts[logic] = n
	}
	return counts, rows.Err()
}

// Close implements Queue.
func (q *SQLiteQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	return q.db.Close()
}

// sqlLimit maps "no limit" onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
