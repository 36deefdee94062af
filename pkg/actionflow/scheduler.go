package actionflow

import "sync"

// scheduler tracks live occurrences and enforces latest-only admission.
// Its maps are the only state shared between occurrences.
//
// Lock order: scheduler.mu before occurrence.mu.
type scheduler struct {
	mu     sync.Mutex
	slots  map[string]*slot
	live   map[*occurrence]struct{}
	closed bool

	// gen numbers latest-only admissions across all keys. It never repeats,
	// so a slot deleted and created again cannot hand out a generation an
	// older occurrence still holds.
	gen uint64
}

// slot holds the live occurrence of a latest-only key and the generation it
// was admitted with.
type slot struct {
	gen uint64
	occ *occurrence
}

func newScheduler() *scheduler {
	return &scheduler{
		slots: make(map[string]*slot),
		live:  make(map[*occurrence]struct{}),
	}
}

// admit registers o. For a latest-only logic the occurrence currently live
// under the same key is cancelled before o is registered, and returned so the
// caller can settle it. ok is false once the scheduler has been drained.
func (s *scheduler) admit(o *occurrence) (superseded *occurrence, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}
	s.live[o] = struct{}{}

	if !o.logic.Latest {
		return nil, true
	}

	sl := s.slots[o.key]
	if sl == nil {
		sl = &slot{}
		s.slots[o.key] = sl
	}
	if sl.occ != nil && sl.occ.stop(ErrSuperseded) {
		superseded = sl.occ
	}
	s.gen++
	sl.gen = s.gen
	o.gen = s.gen
	sl.occ = o
	return superseded, true
}

// release forgets a terminal occurrence. A stale generation leaves the slot
// to the occurrence that superseded it.
func (s *scheduler) release(o *occurrence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.live, o)
	if sl, ok := s.slots[o.key]; ok && o.logic.Latest && sl.gen == o.gen && sl.occ == o {
		delete(s.slots, o.key)
	}
}

// drain refuses further admissions and returns every live occurrence.
func (s *scheduler) drain() []*occurrence {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	out := make([]*occurrence, 0, len(s.live))
	for o := range s.live {
		out = append(out, o)
	}
	return out
}

// liveCount returns the number of registered occurrences for key whose
// state is not terminal.
func (s *scheduler) liveCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for o := range s.live {
		if o.key != key {
			continue
		}
		if state, _ := o.snapshot(); !state.Terminal() {
			n++
		}
	}
	return n
}
