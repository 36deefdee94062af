// Package deadletter stores reports of occurrences whose stages failed.
//
// A pipeline never retries a failed occurrence. Instead, when a dead-letter
// queue is configured, each failure is recorded here so the host can inspect,
// replay or discard it out of band.
package deadletter

import (
	"context"
	"errors"
	"time"
)

// Queue persists failure records. Implementations must be safe for
// concurrent use.
type Queue interface {
	// Enqueue stores a failure record. Records are keyed by OccurrenceID;
	// enqueueing the same occurrence twice overwrites the first record.
	Enqueue(ctx context.Context, rec *Record) error

	// List returns up to limit records in failure order (oldest first).
	// A limit <= 0 returns every record.
	List(ctx context.Context, limit int) ([]*Record, error)

	// ListByType returns records whose event has the given type.
	ListByType(ctx context.Context, eventType string, limit int) ([]*Record, error)

	// Acknowledge removes a record once the host has dealt with it.
	// Returns ErrNotFound if the record does not exist.
	Acknowledge(ctx context.Context, occurrenceID string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// CountByLogic returns record counts grouped by logic name.
	CountByLogic(ctx context.Context) (map[string]int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Record describes one failed occurrence.
type Record struct {
	OccurrenceID string    `json:"occurrence_id"`
	Logic        string    `json:"logic"`
	Stage        string    `json:"stage"`
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventData    []byte    `json:"event_data,omitempty"`
	Error        string    `json:"error"`
	FailedAt     time.Time `json:"failed_at"`
}

// Sentinel errors for queue operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("dead-letter record not found")

	// ErrQueueClosed indicates the queue has been closed.
	ErrQueueClosed = errors.New("dead-letter queue closed")

	// ErrQueueFull indicates a bounded queue reached its capacity.
	ErrQueueFull = errors.New("dead-letter queue full")
)
