package actionflow

import (
	"fmt"
	"time"

	"github.com/randalmurphal/actionflow/pkg/actionflow/config"
	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
)

// Stage names one of the three stages an occurrence runs through.
type Stage string

// Stages, in execution order. StageKey covers the cancellation key
// extractor, which runs before any stage. StageMatch covers the patterns
// consulted when an event is handed on.
const (
	StageMatch     Stage = "match"
	StageKey       Stage = "key"
	StageValidate  Stage = "validate"
	StageTransform Stage = "transform"
	StageProcess   Stage = "process"
)

// ValidateFunc screens an event. It must resolve v exactly once, before
// returning or later from any goroutine. Returning a non-nil error fails the
// occurrence.
type ValidateFunc func(ctx Context, evt event.Event, v Verdict) error

// TransformFunc substitutes the event used from here on. It must resolve n
// exactly once.
type TransformFunc func(ctx Context, evt event.Event, n Next) error

// ProcessFunc performs the logic's work, emitting zero or more derived events
// through d and signalling completion exactly once.
type ProcessFunc func(ctx Context, evt event.Event, d Dispatch) error

// Logic is a handler definition: a pattern plus up to three stage functions.
// A Logic is immutable once handed to New.
type Logic struct {
	// Name identifies the logic in logs, metrics and errors. It is the
	// default cancellation key and must be unique within a pipeline.
	// Empty names are replaced with "logic-<index>".
	Name string

	// Type selects the events this logic handles. Required.
	Type Pattern

	// Key narrows the cancellation key by event content, so that a
	// latest-only logic keeps one live occurrence per distinct key rather
	// than one overall.
	Key func(evt event.Event) string

	// Latest cancels the live occurrence under the same key whenever a
	// new matching event arrives.
	Latest bool

	// Validate screens the event. Nil accepts everything.
	Validate ValidateFunc

	// Transform substitutes the event. Nil passes it through unchanged.
	Transform TransformFunc

	// Process runs after the event has been forwarded. Nil completes
	// immediately after the forward.
	Process ProcessFunc

	// WarnTimeout logs a warning when an occurrence is still running after
	// this long. Zero uses the pipeline default; negative disables it.
	WarnTimeout time.Duration
}

// SyncTransform adapts a function that computes the replacement event
// directly.
func SyncTransform(fn func(ctx Context, evt event.Event) (event.Event, error)) TransformFunc {
	return func(ctx Context, evt event.Event, n Next) error {
		out, err := fn(ctx, evt)
		if err != nil {
			return err
		}
		n.Forward(out)
		return nil
	}
}

// SyncProcess adapts a function that returns its derived events directly.
// Each returned event is emitted in order, then the process completes.
func SyncProcess(fn func(ctx Context, evt event.Event) ([]event.Event, error)) ProcessFunc {
	return func(ctx Context, evt event.Event, d Dispatch) error {
		out, err := fn(ctx, evt)
		if err != nil {
			return err
		}
		for _, e := range out {
			d.Emit(e)
		}
		d.Done()
		return nil
	}
}

// compileLogics validates the registration list and applies settings.
// The result is never modified afterwards.
func compileLogics(logics []Logic, settings config.Settings) ([]Logic, error) {
	compiled := make([]Logic, 0, len(logics))
	seen := make(map[string]bool, len(logics))

	for i, l := range logics {
		if l.Name == "" {
			l.Name = fmt.Sprintf("logic-%d", i)
		}
		if l.Type == nil {
			return nil, fmt.Errorf("logic %s: %w", l.Name, ErrNoPattern)
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("logic %s: %w", l.Name, ErrDuplicateLogic)
		}
		seen[l.Name] = true

		if o, ok := settings.Logics[l.Name]; ok {
			if o.Disabled {
				continue
			}
			if o.Latest != nil {
				l.Latest = *o.Latest
			}
			if o.WarnTimeout != 0 {
				l.WarnTimeout = o.WarnTimeout
			}
			if o.When != nil {
				l.Type = All(l.Type, filterPattern{f: o.When})
			}
		}
		if l.WarnTimeout == 0 {
			l.WarnTimeout = settings.WarnTimeout
		}

		compiled = append(compiled, l)
	}
	return compiled, nil
}

// cancellationKey returns the key under which latest-only admission is
// decided. A panicking Key function is reported as an error.
func (l *Logic) cancellationKey(evt event.Event) (key string, err error) {
	if l.Key == nil {
		return l.Name, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Logic: l.Name, Stage: StageKey, Value: r, Stack: stack()}
		}
	}()
	return l.Name + "/" + l.Key(evt), nil
}
