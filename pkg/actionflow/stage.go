package actionflow

import (
	"runtime/debug"

	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
)

// notificationKind enumerates what a stage can report.
type notificationKind int

const (
	notifyAccept notificationKind = iota
	notifyReject
	notifyForward
	notifyResult
	notifyComplete
	notifyError
)

func (k notificationKind) String() string {
	switch k {
	case notifyAccept:
		return "accept"
	case notifyReject:
		return "reject"
	case notifyForward:
		return "forward"
	case notifyResult:
		return "result"
	case notifyComplete:
		return "complete"
	case notifyError:
		return "error"
	default:
		return "unknown"
	}
}

// notification is the single currency between stage code and its occurrence.
// Sync returns, callbacks and streams all reduce to a sequence of these.
type notification struct {
	kind  notificationKind
	stage Stage

	// event is the substitute for accept, the pass-through for reject
	// (nil suppresses), the replacement for forward and the derived event
	// for result.
	event event.Event

	// more keeps the process stage open after a result.
	more bool

	err error
}

// Verdict resolves the validate stage. Exactly one resolution takes effect;
// later calls are ignored. Methods are safe to call from any goroutine.
type Verdict struct {
	o *occurrence
}

// Allow accepts the event. A non-nil evt replaces the event for the
// remaining stages.
func (v Verdict) Allow(evt event.Event) {
	v.o.notify(notification{kind: notifyAccept, stage: StageValidate, event: evt})
}

// Reject suppresses the event. Nothing is forwarded or emitted.
func (v Verdict) Reject() {
	v.o.notify(notification{kind: notifyReject, stage: StageValidate})
}

// RejectWith skips transform and process but still forwards evt, or the
// original event when evt is nil.
func (v Verdict) RejectWith(evt event.Event) {
	if evt == nil {
		evt = v.o.input
	}
	v.o.notify(notification{kind: notifyReject, stage: StageValidate, event: evt})
}

// AllowFrom resolves with the first value received from ch. A channel that
// closes without a value rejects. Values already buffered resolve before
// AllowFrom returns.
func (v Verdict) AllowFrom(ch <-chan event.Event) {
	take := func(evt event.Event, ok bool) {
		if !ok {
			v.Reject()
			return
		}
		v.Allow(evt)
	}

	select {
	case evt, ok := <-ch:
		take(evt, ok)
		return
	default:
	}

	go func() {
		select {
		case evt, ok := <-ch:
			take(evt, ok)
		case <-v.o.ctx.Done():
		}
	}()
}

// Fail fails the occurrence with err.
func (v Verdict) Fail(err error) {
	v.o.notify(notification{kind: notifyError, stage: StageValidate, err: err})
}

// Next resolves the transform stage.
type Next struct {
	o *occurrence
}

// Forward hands evt on, or the unchanged event when evt is nil.
func (n Next) Forward(evt event.Event) {
	n.o.notify(notification{kind: notifyForward, stage: StageTransform, event: evt})
}

// Fail fails the occurrence with err.
func (n Next) Fail(err error) {
	n.o.notify(notification{kind: notifyError, stage: StageTransform, err: err})
}

// Dispatch emits derived events from the process stage and signals its
// completion.
type Dispatch struct {
	o *occurrence
}

// Emit sends evt to the host and keeps the process open.
func (d Dispatch) Emit(evt event.Event) {
	d.o.notify(notification{kind: notifyResult, stage: StageProcess, event: evt, more: true})
}

// Result sends evt to the host and completes the process.
func (d Dispatch) Result(evt event.Event) {
	d.o.notify(notification{kind: notifyResult, stage: StageProcess, event: evt})
}

// Done completes the process without emitting.
func (d Dispatch) Done() {
	d.o.notify(notification{kind: notifyComplete, stage: StageProcess})
}

// Stream emits every value received from ch and completes when ch closes.
// Values already buffered are emitted before Stream returns; the rest are
// read on a separate goroutine until ch closes or the occurrence ends.
func (d Dispatch) Stream(ch <-chan event.Event) {
drain:
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				d.Done()
				return
			}
			d.Emit(evt)
		default:
			break drain
		}
	}

	go func() {
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					d.Done()
					return
				}
				d.Emit(evt)
			case <-d.o.ctx.Done():
				return
			}
		}
	}()
}

// Fail fails the occurrence with err.
func (d Dispatch) Fail(err error) {
	d.o.notify(notification{kind: notifyError, stage: StageProcess, err: err})
}

// invoke runs one stage function, turning a returned error or a panic into
// an error notification.
func (o *occurrence) invoke(stage Stage, fn func(Context) error) {
	defer func() {
		if r := recover(); r != nil {
			o.notify(notification{
				kind:  notifyError,
				stage: stage,
				err:   &PanicError{Logic: o.logic.Name, Stage: stage, Value: r, Stack: stack()},
			})
		}
	}()

	if err := fn(o.sctx); err != nil {
		o.notify(notification{kind: notifyError, stage: stage, err: err})
	}
}

func stack() string {
	return string(debug.Stack())
}
