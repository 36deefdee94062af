package event

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// ErrUnknownType is returned by a strict Registry for unregistered types.
var ErrUnknownType = errors.New("unknown event type")

// Schema describes one event type accepted by a pipeline.
type Schema struct {
	// Type is the event type (e.g., "order.created").
	Type string

	// Version is the schema version number.
	Version int

	// Description explains the event's purpose.
	Description string

	// Validator is an optional payload check.
	Validator func(Event) error

	// Compatible lists older versions this schema can still read.
	Compatible []int
}

// IsCompatibleWith returns true if this schema can read events at the given version.
func (s *Schema) IsCompatibleWith(version int) bool {
	return version == s.Version || slices.Contains(s.Compatible, version)
}

// Validate checks if an event conforms to this schema.
func (s *Schema) Validate(evt Event) error {
	if evt.Type() != s.Type {
		return fmt.Errorf("event type mismatch: expected %s, got %s", s.Type, evt.Type())
	}

	if !s.IsCompatibleWith(evt.Version()) {
		return fmt.Errorf("incompatible version: schema %d, event %d", s.Version, evt.Version())
	}

	if s.Validator != nil {
		if err := s.Validator(evt); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	return nil
}

// Registry holds the schemas a pipeline checks incoming events against.
//
// A strict registry rejects event types it does not know; a lenient one lets
// them through unchecked.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
	strict  bool
}

// NewRegistry creates a lenient registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// NewStrictRegistry creates a registry that rejects unregistered types.
func NewStrictRegistry() *Registry {
	r := NewRegistry()
	r.strict = true
	return r
}

// Register adds a schema. A schema with a higher version replaces the current
// one for its type; a lower or equal version is ignored.
func (r *Registry) Register(schema *Schema) error {
	if schema.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if schema.Version <= 0 {
		return fmt.Errorf("version must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.schemas[schema.Type]; !ok || schema.Version > current.Version {
		r.schemas[schema.Type] = schema
	}
	return nil
}

// Get returns the schema registered for an event type.
func (r *Registry) Get(eventType string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[eventType]
	return schema, ok
}

// Validate checks an event against its registered schema.
func (r *Registry) Validate(evt Event) error {
	schema, ok := r.Get(evt.Type())
	if !ok {
		if r.strict {
			return fmt.Errorf("%w: %s", ErrUnknownType, evt.Type())
		}
		return nil
	}
	return schema.Validate(evt)
}

// Types returns all registered event types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
