// Package event defines the events that flow through an actionflow pipeline.
//
// An event is an immutable record with a discriminant (its type) and an
// arbitrary payload. Transform stages never mutate an event; they build a new
// one with WithData or Extend. Derived events produced by a process stage are
// built with NewFromParent so they carry the correlation chain of the event
// that caused them.
package event

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Event is the core interface for all events handled by a pipeline.
// Events are immutable once created - any modification creates a new event.
type Event interface {
	// Identity
	ID() string   // Unique event identifier
	Type() string // Discriminant used for matching (e.g., "order.created")

	// Correlation
	CorrelationID() string // Groups related events
	CausationID() string   // ID of event that directly caused this one

	// Metadata
	Timestamp() time.Time // When the event occurred
	Version() int         // Schema version

	// Payload
	Data() any         // Payload
	DataBytes() []byte // Serialized payload for persistence
}

// Fields is the conventional payload for loosely typed events.
type Fields map[string]any

// Metadata contains common event metadata fields.
type Metadata struct {
	EventID       string    `json:"id"`
	EventType     string    `json:"type"`
	CorrelationID string    `json:"correlation_id"`
	CausationID   string    `json:"causation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	SchemaVersion int       `json:"schema_version"`
}

// BaseEvent provides a generic event implementation.
// T is the payload type for type-safe access.
type BaseEvent[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`
}

// ID returns the unique event identifier.
func (e *BaseEvent[T]) ID() string {
	return e.Meta.EventID
}

// Type returns the event type.
func (e *BaseEvent[T]) Type() string {
	return e.Meta.EventType
}

// CorrelationID returns the correlation ID.
func (e *BaseEvent[T]) CorrelationID() string {
	return e.Meta.CorrelationID
}

// CausationID returns the ID of the event that caused this one.
func (e *BaseEvent[T]) CausationID() string {
	return e.Meta.CausationID
}

// Timestamp returns when the event occurred.
func (e *BaseEvent[T]) Timestamp() time.Time {
	return e.Meta.Timestamp
}

// Version returns the schema version.
func (e *BaseEvent[T]) Version() int {
	return e.Meta.SchemaVersion
}

// Data returns the event payload.
func (e *BaseEvent[T]) Data() any {
	return e.Payload
}

// TypedData returns the strongly-typed payload.
func (e *BaseEvent[T]) TypedData() T {
	return e.Payload
}

// DataBytes returns the JSON encoding of the payload, or nil if the payload
// cannot be encoded.
func (e *BaseEvent[T]) DataBytes() []byte {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return nil
	}
	return b
}

// EventOption configures event creation.
type EventOption func(*eventConfig)

type eventConfig struct {
	id            string
	correlationID string
	causationID   string
	timestamp     time.Time
	version       int
}

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithCorrelationID sets the correlation ID.
func WithCorrelationID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.correlationID = id
	}
}

// WithCausationID sets the ID of the causing event.
func WithCausationID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.causationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) EventOption {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// WithSchemaVersion sets the schema version.
func WithSchemaVersion(v int) EventOption {
	return func(cfg *eventConfig) {
		cfg.version = v
	}
}

// New creates a new event with the given type and payload.
func New[T any](eventType string, payload T, opts ...EventOption) *BaseEvent[T] {
	cfg := &eventConfig{
		id:        uuid.New().String(),
		timestamp: time.Now(),
		version:   1,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// Without a correlation ID the event roots its own chain
	if cfg.correlationID == "" {
		cfg.correlationID = cfg.id
	}

	return &BaseEvent[T]{
		Meta: Metadata{
			EventID:       cfg.id,
			EventType:     eventType,
			CorrelationID: cfg.correlationID,
			CausationID:   cfg.causationID,
			Timestamp:     cfg.timestamp,
			SchemaVersion: cfg.version,
		},
		Payload: payload,
	}
}

// NewFromParent creates a new event caused by a parent event.
// It inherits the parent's correlation ID and sets the causation ID.
func NewFromParent[T any](parent Event, eventType string, payload T, opts ...EventOption) *BaseEvent[T] {
	parentOpts := []EventOption{
		WithCorrelationID(parent.CorrelationID()),
		WithCausationID(parent.ID()),
	}
	return New(eventType, payload, append(parentOpts, opts...)...)
}

// NewAny creates a new event with an untyped payload.
func NewAny(eventType string, payload any, opts ...EventOption) *BaseEvent[any] {
	return New(eventType, payload, opts...)
}

// NewAnyFromParent creates a derived event with an untyped payload.
func NewAnyFromParent(parent Event, eventType string, payload any, opts ...EventOption) *BaseEvent[any] {
	return NewFromParent(parent, eventType, payload, opts...)
}

// WithData returns a copy of evt carrying payload instead of the original
// payload. Identity, correlation and type are preserved, which makes it the
// usual way for a transform stage to substitute an event.
func WithData(evt Event, payload any) *BaseEvent[any] {
	return &BaseEvent[any]{
		Meta:    metadataOf(evt),
		Payload: payload,
	}
}

// Extend returns a copy of evt whose Fields payload is merged with extra.
// Non-Fields payloads are replaced by extra. The original event is untouched.
func Extend(evt Event, extra Fields) *BaseEvent[any] {
	merged := Fields{}
	switch d := evt.Data().(type) {
	case Fields:
		maps.Copy(merged, d)
	case map[string]any:
		maps.Copy(merged, d)
	}
	maps.Copy(merged, extra)
	return WithData(evt, merged)
}

// metadataOf snapshots the metadata of any Event implementation.
func metadataOf(evt Event) Metadata {
	return Metadata{
		EventID:       evt.ID(),
		EventType:     evt.Type(),
		CorrelationID: evt.CorrelationID(),
		CausationID:   evt.CausationID(),
		Timestamp:     evt.Timestamp(),
		SchemaVersion: evt.Version(),
	}
}
