package deadletter

import (
	"context"
	"slices"
	"sync"
)

// DefaultMaxSize bounds a MemoryQueue created with a non-positive size.
const DefaultMaxSize = 10000

// MemoryQueue is an in-memory Queue. Records are lost when the process exits.
type MemoryQueue struct {
	mu      sync.RWMutex
	order   []string           // occurrence IDs, oldest first
	records map[string]*Record // keyed by occurrence ID
	maxSize int
	closed  bool
}

// NewMemoryQueue creates an in-memory queue holding at most maxSize records.
func NewMemoryQueue(maxSize int) *MemoryQueue {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &MemoryQueue{
		records: make(map[string]*Record),
		maxSize: maxSize,
	}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(_ context.Context, rec *Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	stored := *rec
	stored.EventData = slices.Clone(rec.EventData)

	if _, exists := q.records[rec.OccurrenceID]; exists {
		q.records[rec.OccurrenceID] = &stored
		return nil
	}

	if len(q.order) >= q.maxSize {
		return ErrQueueFull
	}

	q.order = append(q.order, rec.OccurrenceID)
	q.records[rec.OccurrenceID] = &stored
	return nil
}

// List implements Queue.
func (q *MemoryQueue) List(_ context.Context, limit int) ([]*Record, error) {
	return q.collect(limit, func(*Record) bool { return true })
}

// ListByType implements Queue.
func (q *MemoryQueue) ListByType(_ context.Context, eventType string, limit int) ([]*Record, error) {
	return q.collect(limit, func(r *Record) bool { return r.EventType == eventType })
}

func (q *MemoryQueue) collect(limit int, keep func(*Record) bool) ([]*Record, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var out []*Record
	for _, id := range q.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec := q.records[id]
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Acknowledge implements Queue.
func (q *MemoryQueue) Acknowledge(_ context.Context, occurrenceID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.records[occurrenceID]; !ok {
		return ErrNotFound
	}

	delete(q.records, occurrenceID)
	q.order = slices.DeleteFunc(q.order, func(id string) bool { return id == occurrenceID })
	return nil
}

// Count implements Queue.
func (q *MemoryQueue) Count(_ context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}
	return len(q.records), nil
}

// CountByLogic implements Queue.
func (q *MemoryQueue) CountByLogic(_ context.Context) (map[string]int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	counts := make(map[string]int)
	for _, rec := range q.records {
		counts[rec.Logic]++
	}
	return counts, nil
}

// Close implements Queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
