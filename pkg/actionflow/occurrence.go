package actionflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
	"github.com/randalmurphal/actionflow/pkg/actionflow/observability"
)

// State is the lifecycle position of an occurrence.
type State int

const (
	StateCreated State = iota
	StateValidating
	StateTransforming
	StateProcessing
	StateCompleted
	StateRejected
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateValidating:
		return "validating"
	case StateTransforming:
		return "transforming"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateRejected:
		return "rejected"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// stageState is the only state in which notifications from stage apply.
func stageState(stage Stage) State {
	switch stage {
	case StageValidate:
		return StateValidating
	case StageTransform:
		return StateTransforming
	case StageProcess:
		return StateProcessing
	default:
		return -1
	}
}

// occurrence is one run of a logic against one event.
//
// All transitions happen under mu. Stage code never runs under mu: a
// transition computes what to do next, unlocks, and then calls out. Results
// bound for the host are enqueued while mu is held, so a result is either
// ready before a cancellation or discarded after it, never both.
type occurrence struct {
	p        *Pipeline
	logic    *Logic
	index    int
	id       string
	seq      uint64
	key      string
	input    event.Event
	admitted time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	sctx   *occurrenceContext
	span   trace.Span

	// gen is the key generation captured at admission. Set by the
	// scheduler before start and read only under its lock afterwards.
	gen uint64

	mu      sync.Mutex
	state   State
	current event.Event
	pos     uint64
	warn    *time.Timer
	failure *StageError
}

func newOccurrence(p *Pipeline, index int, evt event.Event, key string) *occurrence {
	l := &p.logics[index]
	o := &occurrence{
		p:        p,
		logic:    l,
		index:    index,
		id:       uuid.New().String(),
		seq:      p.seq.Add(1),
		key:      key,
		input:    evt,
		current:  evt,
		admitted: time.Now(),
	}

	spanCtx, span := p.spans.StartOccurrenceSpan(p.ctx, l.Name, o.id, evt.Type())
	o.span = span
	o.ctx, o.cancel = context.WithCancelCause(spanCtx)
	o.sctx = &occurrenceContext{
		Context: o.ctx,
		logger:  observability.EnrichLogger(p.logger, l.Name, o.id, o.seq),
		logic:   l.Name,
		id:      o.id,
		seq:     o.seq,
	}
	return o
}

// start moves a freshly admitted occurrence into validation.
func (o *occurrence) start() {
	o.mu.Lock()
	if o.state != StateCreated {
		o.mu.Unlock()
		return
	}
	o.state = StateValidating
	if d := o.logic.WarnTimeout; d > 0 {
		o.warn = time.AfterFunc(d, o.warnTimeout)
	}
	o.mu.Unlock()

	if o.logic.Validate == nil {
		o.notify(notification{kind: notifyAccept, stage: StageValidate})
		return
	}
	o.invoke(StageValidate, func(ctx Context) error {
		return o.logic.Validate(ctx, o.input, Verdict{o: o})
	})
}

func (o *occurrence) transform(evt event.Event) {
	if o.logic.Transform == nil {
		o.notify(notification{kind: notifyForward, stage: StageTransform})
		return
	}
	o.invoke(StageTransform, func(ctx Context) error {
		return o.logic.Transform(ctx, evt, Next{o: o})
	})
}

func (o *occurrence) process(evt event.Event) {
	o.invoke(StageProcess, func(ctx Context) error {
		return o.logic.Process(ctx, evt, Dispatch{o: o})
	})
}

// notify applies one notification. Notifications addressed to a stage the
// occurrence is no longer in (late, duplicate, or after cancellation) are
// discarded.
func (o *occurrence) notify(n notification) {
	o.mu.Lock()
	if o.state != stageState(n.stage) {
		o.mu.Unlock()
		o.p.discard(o, n)
		return
	}
	o.pos++

	var next func()
	switch n.kind {
	case notifyAccept:
		if n.event != nil {
			o.current = n.event
		}
		o.state = StateTransforming
		evt := o.current
		next = func() { o.transform(evt) }

	case notifyReject:
		var handOn func()
		if n.event != nil {
			var err error
			if handOn, err = o.handOnLocked(n.event); err != nil {
				o.failLocked(StageMatch, n.event, err)
				break
			}
		}
		o.finishLocked(StateRejected, nil)
		next = handOn

	case notifyForward:
		if n.event != nil {
			o.current = n.event
		}
		evt := o.current
		handOn, err := o.handOnLocked(evt)
		if err != nil {
			o.failLocked(StageMatch, evt, err)
			break
		}
		o.state = StateProcessing
		if o.logic.Process == nil {
			o.finishLocked(StateCompleted, nil)
			next = handOn
			break
		}
		next = func() {
			if handOn != nil {
				handOn()
			}
			o.process(evt)
		}

	case notifyResult:
		if n.event == nil {
			o.failLocked(n.stage, o.current, ErrNilEvent)
			break
		}
		o.p.sink.enqueue(delivery{
			kind:         deliverEmit,
			event:        n.event,
			logic:        o.logic.Name,
			occurrenceID: o.id,
			pos:          o.pos,
		})
		if !n.more {
			o.finishLocked(StateCompleted, nil)
		}

	case notifyComplete:
		o.finishLocked(StateCompleted, nil)

	case notifyError:
		o.failLocked(n.stage, o.current, n.err)
	}
	terminal := o.state.Terminal()
	if next != nil {
		// o is not yet settled, so the pipeline's count is non-zero here.
		o.p.wg.Add(1)
	}
	o.mu.Unlock()

	if next != nil {
		next()
		o.p.wg.Done()
	}
	if terminal {
		o.p.settle(o)
	}
}

// handOnLocked passes evt to the next matching logic, or to the host when
// none is left. Host-bound events are enqueued immediately; admission into
// the next logic is returned as a func to run once mu is released. A
// panicking pattern is returned as an error and nothing is handed on.
func (o *occurrence) handOnLocked(evt event.Event) (func(), error) {
	next, err := safeNextMatch(evt, o.p.logics, o.index+1)
	if err != nil {
		return nil, err
	}
	o.p.spans.AddSpanEvent(o.ctx, "forwarded", attribute.String("event.type", evt.Type()))

	if next < 0 {
		o.p.sink.enqueue(delivery{
			kind:         deliverForward,
			event:        evt,
			logic:        o.logic.Name,
			occurrenceID: o.id,
			pos:          o.pos,
		})
		return nil, nil
	}
	return func() { o.p.enter(next, evt) }, nil
}

// failLocked records a stage failure and ends the occurrence.
func (o *occurrence) failLocked(stage Stage, evt event.Event, err error) {
	o.failure = &StageError{
		Logic:        o.logic.Name,
		Stage:        stage,
		OccurrenceID: o.id,
		Event:        evt,
		Err:          err,
	}
	o.finishLocked(StateFailed, o.failure)
}

// finishLocked enters a terminal state and releases owned handles.
func (o *occurrence) finishLocked(state State, cause error) {
	o.state = state
	if o.warn != nil {
		o.warn.Stop()
		o.warn = nil
	}
	o.cancel(cause)
}

// stop cancels a live occurrence. It reports false if the occurrence had
// already ended, in which case its own transition settles it.
func (o *occurrence) stop(cause error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		return false
	}
	o.finishLocked(StateCancelled, cause)
	return true
}

func (o *occurrence) warnTimeout() {
	o.mu.Lock()
	live := !o.state.Terminal()
	o.mu.Unlock()
	if live {
		observability.LogWarnTimeout(o.p.logger, o.logic.Name, o.id, o.logic.WarnTimeout)
	}
}

// snapshot returns the state and failure for bookkeeping after a transition.
func (o *occurrence) snapshot() (State, *StageError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.failure
}
