package event_test

import (
	"errors"
	"testing"

	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
)

func TestRegistry(t *testing.T) {
	registry := event.NewRegistry()

	schema := &event.Schema{
		Type:        "order.created",
		Version:     1,
		Description: "Order was created",
	}

	if err := registry.Register(schema); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	retrieved, ok := registry.Get("order.created")
	if !ok {
		t.Fatal("expected schema to exist")
	}
	if retrieved.Description != "Order was created" {
		t.Errorf("expected description, got %s", retrieved.Description)
	}

	types := registry.Types()
	if len(types) != 1 || types[0] != "order.created" {
		t.Errorf("expected [order.created], got %v", types)
	}
}

func TestRegistry_RegisterErrors(t *testing.T) {
	registry := event.NewRegistry()

	if err := registry.Register(&event.Schema{Version: 1}); err == nil {
		t.Error("expected error for empty type")
	}
	if err := registry.Register(&event.Schema{Type: "x"}); err == nil {
		t.Error("expected error for zero version")
	}
}

func TestRegistry_Versioning(t *testing.T) {
	registry := event.NewRegistry()
	_ = registry.Register(&event.Schema{Type: "order.created", Version: 2, Compatible: []int{1}})
	_ = registry.Register(&event.Schema{Type: "order.created", Version: 1})

	got, _ := registry.Get("order.created")
	if got.Version != 2 {
		t.Errorf("lower version must not replace current, got v%d", got.Version)
	}

	v1 := event.NewAny("order.created", nil, event.WithSchemaVersion(1))
	if err := registry.Validate(v1); err != nil {
		t.Errorf("v1 should be compatible: %v", err)
	}

	v3 := event.NewAny("order.created", nil, event.WithSchemaVersion(3))
	if err := registry.Validate(v3); err == nil {
		t.Error("expected v3 to be incompatible")
	}
}

func TestRegistry_Validator(t *testing.T) {
	errMissingID := errors.New("missing id")
	registry := event.NewRegistry()
	_ = registry.Register(&event.Schema{
		Type:    "FOO",
		Version: 1,
		Validator: func(evt event.Event) error {
			if _, ok := evt.Data().(event.Fields)["id"]; !ok {
				return errMissingID
			}
			return nil
		},
	})

	if err := registry.Validate(event.NewAny("FOO", event.Fields{"id": 1})); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := registry.Validate(event.NewAny("FOO", event.Fields{}))
	if !errors.Is(err, errMissingID) {
		t.Errorf("expected wrapped errMissingID, got %v", err)
	}
}

func TestRegistry_Strictness(t *testing.T) {
	unknown := event.NewAny("never.registered", nil)

	if err := event.NewRegistry().Validate(unknown); err != nil {
		t.Errorf("lenient registry should accept unknown types: %v", err)
	}

	err := event.NewStrictRegistry().Validate(unknown)
	if !errors.Is(err, event.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}
