package actionflow

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
)

// Sentinel errors for pipeline construction.
var (
	// ErrNilHost indicates New was called without a host.
	ErrNilHost = errors.New("host cannot be nil")

	// ErrNoPattern indicates a logic was registered without a Type pattern.
	ErrNoPattern = errors.New("logic has no type pattern")

	// ErrDuplicateLogic indicates two logics share a name.
	ErrDuplicateLogic = errors.New("duplicate logic name")

	// ErrStrictWithoutRegistry indicates strict type checking was requested
	// without an event registry to check against.
	ErrStrictWithoutRegistry = errors.New("strict types require an event registry")
)

// Sentinel errors for submission and cancellation.
var (
	// ErrPipelineClosed indicates Submit was called after Close.
	// It is also the cancellation cause of occurrences aborted by Close.
	ErrPipelineClosed = errors.New("pipeline closed")

	// ErrNilEvent indicates a nil event was submitted or emitted.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrSuperseded is the cancellation cause of an occurrence replaced by a
	// newer one under a latest-only logic. Stage code can observe it with
	// context.Cause(ctx).
	ErrSuperseded = errors.New("occurrence superseded")
)

// StageError reports a failed stage. The occurrence that owned the stage is
// terminal and produced nothing after the failure.
type StageError struct {
	// Logic is the name of the logic whose stage failed.
	Logic string
	// Stage is the stage that failed.
	Stage Stage
	// OccurrenceID identifies the failed occurrence.
	OccurrenceID string
	// Event is the event the stage was running against.
	Event event.Event
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("logic %s: %s: %v", e.Logic, e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a stage function.
// It includes the stack trace for debugging.
type PanicError struct {
	// Logic is the name of the logic that panicked.
	Logic string
	// Stage is the stage that panicked.
	Stage Stage
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("logic %s %s panicked: %v", e.Logic, e.Stage, e.Value)
}

// HostError captures a panic raised by the host while receiving an event.
// The sink recovers it and keeps delivering.
type HostError struct {
	// Op is "forward" or "emit".
	Op string
	// Event is the event being delivered.
	Event event.Event
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *HostError) Error() string {
	if e.Event == nil {
		return fmt.Sprintf("host %s of nil event panicked: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("host %s of %s panicked: %v", e.Op, e.Event.Type(), e.Value)
}
