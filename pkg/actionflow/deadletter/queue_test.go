package deadletter_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/actionflow/pkg/actionflow/deadletter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueFactories lets every behavioral test run against each implementation.
func queueFactories(t *testing.T) map[string]func() deadletter.Queue {
	t.Helper()
	return map[string]func() deadletter.Queue{
		"memory": func() deadletter.Queue {
			return deadletter.NewMemoryQueue(0)
		},
		"sqlite": func() deadletter.Queue {
			q, err := deadletter.NewSQLiteQueue(":memory:")
			require.NoError(t, err)
			return q
		},
	}
}

func record(occ, logic, eventType string) *deadletter.Record {
	return &deadletter.Record{
		OccurrenceID: occ,
		Logic:        logic,
		Stage:        "process",
		EventID:      "evt-" + occ,
		EventType:    eventType,
		EventData:    []byte(`{"id":1}`),
		Error:        "boom",
		FailedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestQueue_EnqueueAndList(t *testing.T) {
	ctx := context.Background()
	for name, newQueue := range queueFactories(t) {
		t.Run(name, func(t *testing.T) {
			q := newQueue()
			defer q.Close()

			require.NoError(t, q.Enqueue(ctx, record("o1", "fetch", "FOO")))
			require.NoError(t, q.Enqueue(ctx, record("o2", "fetch", "BAR")))
			require.NoError(t, q.Enqueue(ctx, record("o3", "audit", "FOO")))

			all, err := q.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "o1", all[0].OccurrenceID)
			assert.Equal(t, "o3", all[2].OccurrenceID)
			assert.Equal(t, []byte(`{"id":1}`), all[0].EventData)
			assert.True(t, all[0].FailedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

			limited, err := q.List(ctx, 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			foos, err := q.ListByType(ctx, "FOO", 0)
			require.NoError(t, err)
			require.Len(t, foos, 2)
			assert.Equal(t, "o1", foos[0].OccurrenceID)
			assert.Equal(t, "o3", foos[1].OccurrenceID)

			n, err := q.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			byLogic, err := q.CountByLogic(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]int{"fetch": 2, "audit": 1}, byLogic)
		})
	}
}

func TestQueue_EnqueueOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, newQueue := range queueFactories(t) {
		t.Run(name, func(t *testing.T) {
			q := newQueue()
			defer q.Close()

			require.NoError(t, q.Enqueue(ctx, record("o1", "fetch", "FOO")))
			updated := record("o1", "fetch", "FOO")
			updated.Error = "second failure"
			require.NoError(t, q.Enqueue(ctx, updated))

			all, err := q.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "second failure", all[0].Error)
		})
	}
}

func TestQueue_Acknowledge(t *testing.T) {
	ctx := context.Background()
	for name, newQueue := range queueFactories(t) {
		t.Run(name, func(t *testing.T) {
			q := newQueue()
			defer q.Close()

			require.NoError(t, q.Enqueue(ctx, record("o1", "fetch", "FOO")))
			require.NoError(t, q.Acknowledge(ctx, "o1"))

			n, err := q.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			assert.ErrorIs(t, q.Acknowledge(ctx, "o1"), deadletter.ErrNotFound)
		})
	}
}

func TestQueue_Closed(t *testing.T) {
	ctx := context.Background()
	for name, newQueue := range queueFactories(t) {
		t.Run(name, func(t *testing.T) {
			q := newQueue()

			// Close multiple times should be safe
			assert.NoError(t, q.Close())
			assert.NoError(t, q.Close())

			assert.ErrorIs(t, q.Enqueue(ctx, record("o1", "fetch", "FOO")), deadletter.ErrQueueClosed)
			_, err := q.List(ctx, 0)
			assert.ErrorIs(t, err, deadletter.ErrQueueClosed)
			_, err = q.Count(ctx)
			assert.ErrorIs(t, err, deadletter.ErrQueueClosed)
		})
	}
}

func TestQueue_Concurrent(t *testing.T) {
	ctx := context.Background()
	for name, newQueue := range queueFactories(t) {
		t.Run(name, func(t *testing.T) {
			q := newQueue()
			defer q.Close()

			const numGoroutines = 20
			const numOps = 10

			var wg sync.WaitGroup
			wg.Add(numGoroutines)
			for i := range numGoroutines {
				go func(id int) {
					defer wg.Done()
					for j := range numOps {
						occ := fmt.Sprintf("occ-%d-%d", id, j)
						_ = q.Enqueue(ctx, record(occ, "fetch", "FOO"))
						_, _ = q.List(ctx, 5)
					}
				}(i)
			}
			wg.Wait()

			n, err := q.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, numGoroutines*numOps, n)
		})
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	ctx := context.Background()
	q := deadletter.NewMemoryQueue(1)

	require.NoError(t, q.Enqueue(ctx, record("o1", "fetch", "FOO")))
	assert.ErrorIs(t, q.Enqueue(ctx, record("o2", "fetch", "FOO")), deadletter.ErrQueueFull)

	// Overwriting an existing record does not need extra room
	assert.NoError(t, q.Enqueue(ctx, record("o1", "fetch", "FOO")))
}

func TestMemoryQueue_CopiesRecords(t *testing.T) {
	ctx := context.Background()
	q := deadletter.NewMemoryQueue(0)

	rec := record("o1", "fetch", "FOO")
	require.NoError(t, q.Enqueue(ctx, rec))
	rec.EventData[0] = 'X'
	rec.Error = "mutated"

	all, err := q.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":1}`), all[0].EventData)
	assert.Equal(t, "boom", all[0].Error)
}

func TestSQLiteQueue_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "deadletter.db")

	q1, err := deadletter.NewSQLiteQueue(dbPath)
	require.NoError(t, err)
	require.NoError(t, q1.Enqueue(ctx, record("o1", "fetch", "FOO")))
	require.NoError(t, q1.Close())

	// Reopening the database keeps the record
	q2, err := deadletter.NewSQLiteQueue(dbPath)
	require.NoError(t, err)
	defer q2.Close()

	all, err := q2.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "fetch", all[0].Logic)
	assert.Equal(t, "process", all[0].Stage)
}

func TestSQLiteQueue_InvalidPath(t *testing.T) {
	_, err := deadletter.NewSQLiteQueue("/nonexistent/path/deadletter.db")
	assert.Error(t, err)
}
