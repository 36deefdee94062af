package actionflow

import (
	"sync"

	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
)

type deliveryKind int

const (
	deliverForward deliveryKind = iota
	deliverEmit
)

func (k deliveryKind) String() string {
	if k == deliverForward {
		return "forward"
	}
	return "emit"
}

// delivery is one result bound for the host.
type delivery struct {
	kind         deliveryKind
	event        event.Event
	logic        string // empty for events no logic matched
	occurrenceID string
	pos          uint64
}

// sink funnels every delivery through a single consumer goroutine, in the
// order enqueue was called. enqueue never blocks.
type sink struct {
	mu       sync.Mutex
	queue    []delivery
	closed   bool
	signal   chan struct{}
	finished chan struct{}
	deliver  func(delivery)
}

func newSink(deliver func(delivery)) *sink {
	return &sink{
		signal:   make(chan struct{}, 1),
		finished: make(chan struct{}),
		deliver:  deliver,
	}
}

// enqueue appends d. It reports false once the sink is closed.
func (s *sink) enqueue(d delivery) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, d)
	s.mu.Unlock()

	s.wake()
	return true
}

// close stops intake. Queued deliveries are still delivered.
func (s *sink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *sink) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// run is the consumer loop. It returns after close once the queue is empty.
func (s *sink) run() {
	defer close(s.finished)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.signal
			s.mu.Lock()
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, d := range batch {
			s.deliver(d)
		}
	}
}

// pending returns the number of deliveries not yet handed to the host.
func (s *sink) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
