package actionflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/actionflow/pkg/actionflow/deadletter"
	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
	"github.com/randalmurphal/actionflow/pkg/actionflow/observability"
)

// Host receives what the pipeline produces. Both methods are called from a
// single goroutine, one event at a time, in the order results became ready.
type Host interface {
	// Forward receives an incoming event that was not rejected, after every
	// matching logic has had its turn. Called at most once per submitted
	// event.
	Forward(evt event.Event)

	// Emit receives an event derived by a process stage.
	Emit(evt event.Event)
}

// HostFuncs adapts a pair of functions to Host. Nil functions drop events.
type HostFuncs struct {
	OnForward func(event.Event)
	OnEmit    func(event.Event)
}

// Forward implements Host.
func (h HostFuncs) Forward(evt event.Event) {
	if h.OnForward != nil {
		h.OnForward(evt)
	}
}

// Emit implements Host.
func (h HostFuncs) Emit(evt event.Event) {
	if h.OnEmit != nil {
		h.OnEmit(evt)
	}
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Submitted uint64 // events accepted by Submit
	Admitted  uint64 // occurrences started
	Forwarded uint64 // events handed to Host.Forward
	Emitted   uint64 // events handed to Host.Emit
	Completed uint64
	Rejected  uint64
	Cancelled uint64
	Failed    uint64
	Discarded uint64 // notifications dropped as late or duplicate
}

type counters struct {
	submitted, admitted, forwarded, emitted      atomic.Uint64
	completed, rejected, cancelled, failed, drop atomic.Uint64
}

// Pipeline runs submitted events through the registered logics.
// It is safe for concurrent use.
type Pipeline struct {
	id     string
	logics []Logic
	host   Host

	logger         *slog.Logger
	onError        func(error)
	deadLetter     deadletter.Queue
	ownsDeadLetter bool
	registry       *event.Registry
	strict         bool
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager

	ctx    context.Context
	cancel context.CancelCauseFunc

	sched *scheduler
	sink  *sink
	seq   atomic.Uint64
	wg    sync.WaitGroup
	stats counters

	mu     sync.Mutex
	closed bool
}

// New builds a pipeline over logics, in registration order, and starts its
// delivery goroutine. Call Close to stop it.
//
// Example:
//
//	p, err := actionflow.New([]actionflow.Logic{{
//	    Name:   "fetch-user",
//	    Type:   actionflow.Type("USER_FETCH"),
//	    Latest: true,
//	    Process: fetchUser,
//	}}, host, actionflow.WithLogger(logger))
func New(logics []Logic, host Host, opts ...Option) (*Pipeline, error) {
	if host == nil {
		return nil, ErrNilHost
	}

	cfg := defaultPipelineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	compiled, err := compileLogics(logics, cfg.settings)
	if err != nil {
		return nil, err
	}

	strict := cfg.settings.StrictTypes
	if strict && cfg.registry == nil {
		return nil, ErrStrictWithoutRegistry
	}

	dl, owns := cfg.deadLetter, false
	if dl == nil && cfg.hasSettings {
		dl, err = cfg.settings.OpenDeadLetter()
		if err != nil {
			return nil, err
		}
		owns = dl != nil
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	p := &Pipeline{
		id:             uuid.New().String(),
		logics:         compiled,
		host:           host,
		logger:         cfg.logger,
		onError:        cfg.onError,
		deadLetter:     dl,
		ownsDeadLetter: owns,
		registry:       cfg.registry,
		strict:         strict,
		metrics:        cfg.metrics,
		spans:          cfg.spans,
		ctx:            ctx,
		cancel:         cancel,
		sched:          newScheduler(),
	}
	p.sink = newSink(p.deliver)
	go p.sink.run()

	p.logger.Debug("pipeline started",
		slog.String("pipeline_id", p.id),
		slog.Int("logics", len(compiled)))
	return p, nil
}

// Submit hands evt to the pipeline. It returns once the matching logics have
// been admitted and their synchronous stage work has run; asynchronous stage
// work continues in the background.
//
// Events no logic matches are forwarded to the host unchanged.
func (p *Pipeline) Submit(evt event.Event) error {
	if evt == nil {
		return ErrNilEvent
	}
	if err := p.validate(evt); err != nil {
		return fmt.Errorf("submit %s: %w", evt.Type(), err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	p.stats.submitted.Add(1)
	i, err := safeNextMatch(evt, p.logics, 0)
	if err != nil {
		return fmt.Errorf("submit %s: %w", evt.Type(), err)
	}
	if i >= 0 {
		p.enter(i, evt)
		return nil
	}
	p.sink.enqueue(delivery{kind: deliverForward, event: evt})
	return nil
}

func (p *Pipeline) validate(evt event.Event) error {
	if p.registry == nil {
		return nil
	}
	if p.strict {
		if _, ok := p.registry.Get(evt.Type()); !ok {
			return fmt.Errorf("%w: %s", event.ErrUnknownType, evt.Type())
		}
	}
	return p.registry.Validate(evt)
}

// enter admits evt into the logic at index and starts it.
func (p *Pipeline) enter(index int, evt event.Event) {
	l := &p.logics[index]

	key, err := l.cancellationKey(evt)
	if err != nil {
		p.stats.failed.Add(1)
		p.fail(&StageError{
			Logic:        l.Name,
			Stage:        StageKey,
			OccurrenceID: uuid.New().String(),
			Event:        evt,
			Err:          err,
		})
		return
	}

	o := newOccurrence(p, index, evt, key)
	p.wg.Add(1)
	superseded, ok := p.sched.admit(o)
	if !ok {
		o.cancel(ErrPipelineClosed)
		p.spans.EndSpanWithError(o.span, ErrPipelineClosed)
		p.wg.Done()
		return
	}

	p.stats.admitted.Add(1)
	p.metrics.RecordAdmission(p.ctx, l.Name)
	observability.LogOccurrenceStart(p.logger, l.Name, o.id, evt.Type())

	if superseded != nil {
		observability.LogSuperseded(p.logger, l.Name, superseded.id, o.id)
		p.spans.AddSpanEvent(superseded.ctx, "superseded", attribute.String("superseded_by", o.id))
		p.settle(superseded)
	}

	o.start()
}

// settle does the bookkeeping for an occurrence that just became terminal.
// It runs exactly once per admitted occurrence.
func (p *Pipeline) settle(o *occurrence) {
	p.sched.release(o)

	state, failure := o.snapshot()
	duration := time.Since(o.admitted)

	var spanErr error
	switch state {
	case StateCompleted:
		p.stats.completed.Add(1)
	case StateRejected:
		p.stats.rejected.Add(1)
	case StateCancelled:
		p.stats.cancelled.Add(1)
	case StateFailed:
		p.stats.failed.Add(1)
		spanErr = failure
		p.fail(failure)
	}

	observability.LogOccurrenceEnd(p.logger, o.logic.Name, o.id, state.String(),
		float64(duration.Microseconds())/1000)
	p.metrics.RecordOccurrence(p.ctx, o.logic.Name, state.String(), duration)
	p.spans.EndSpanWithError(o.span, spanErr)
	p.wg.Done()
}

// fail reports a stage failure out of band: log, callback, dead letter.
func (p *Pipeline) fail(serr *StageError) {
	observability.LogStageError(p.logger, serr.Logic, serr.OccurrenceID, string(serr.Stage), serr.Err)

	if p.deadLetter != nil {
		rec := &deadletter.Record{
			OccurrenceID: serr.OccurrenceID,
			Logic:        serr.Logic,
			Stage:        string(serr.Stage),
			EventID:      serr.Event.ID(),
			EventType:    serr.Event.Type(),
			EventData:    serr.Event.DataBytes(),
			Error:        serr.Err.Error(),
			FailedAt:     time.Now(),
		}
		if err := p.deadLetter.Enqueue(context.Background(), rec); err != nil {
			observability.LogDeadLetterError(p.logger, serr.OccurrenceID, err)
		}
	}

	if p.onError != nil {
		p.onError(serr)
	}
}

// discard accounts for a notification that arrived too late to matter.
func (p *Pipeline) discard(o *occurrence, n notification) {
	p.stats.drop.Add(1)
	p.metrics.RecordDiscard(p.ctx, o.logic.Name)
	observability.LogDiscarded(p.logger, o.logic.Name, o.id, n.kind.String())
}

// deliver is the sink consumer's view of the host.
func (p *Pipeline) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			herr := &HostError{Op: d.kind.String(), Event: d.event, Value: r, Stack: stack()}
			eventType := ""
			if d.event != nil {
				eventType = d.event.Type()
			}
			observability.LogHostError(p.logger, herr.Op, eventType, herr)
			if p.onError != nil {
				p.onError(herr)
			}
		}
	}()

	p.metrics.RecordEmission(p.ctx, d.logic, d.kind.String())
	switch d.kind {
	case deliverForward:
		p.stats.forwarded.Add(1)
		p.host.Forward(d.event)
	case deliverEmit:
		p.stats.emitted.Add(1)
		p.host.Emit(d.event)
	}
}

// Close stops intake and waits for live occurrences to end and for every
// ready result to reach the host. If ctx expires first, the remaining
// occurrences are cancelled with cause ErrPipelineClosed and Close returns
// ctx.Err() without waiting for delivery to finish.
//
// Close is idempotent; later calls wait for the first one to finish.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()

	if already {
		select {
		case <-p.sink.finished:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	idle := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(idle)
	}()

	var err error
	select {
	case <-idle:
	case <-ctx.Done():
		err = ctx.Err()
		p.abort()
	}

	p.sink.close()
	if err == nil {
		select {
		case <-p.sink.finished:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	p.cancel(ErrPipelineClosed)
	if p.ownsDeadLetter {
		if cerr := p.deadLetter.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close dead-letter queue: %w", cerr)
		}
	}

	p.logger.Debug("pipeline closed", slog.String("pipeline_id", p.id))
	return err
}

// abort cancels every live occurrence and refuses new admissions.
func (p *Pipeline) abort() {
	for _, o := range p.sched.drain() {
		if o.stop(ErrPipelineClosed) {
			p.settle(o)
		}
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted: p.stats.submitted.Load(),
		Admitted:  p.stats.admitted.Load(),
		Forwarded: p.stats.forwarded.Load(),
		Emitted:   p.stats.emitted.Load(),
		Completed: p.stats.completed.Load(),
		Rejected:  p.stats.rejected.Load(),
		Cancelled: p.stats.cancelled.Load(),
		Failed:    p.stats.failed.Load(),
		Discarded: p.stats.drop.Load(),
	}
}

// ID returns the pipeline's unique identifier.
func (p *Pipeline) ID() string {
	return p.id
}

// Logics returns the names of the registered logics in registration order,
// after settings have been applied.
func (p *Pipeline) Logics() []string {
	names := make([]string, len(p.logics))
	for i := range p.logics {
		names[i] = p.logics[i].Name
	}
	return names
}
