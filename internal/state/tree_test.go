package state

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
)

func testBus() *event.Bus {
	return event.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTree_Defaults(t *testing.T) {
	tree := New(testBus())

	if got := tree.GetFloat("viewport.zoom", 0); got != 1 {
		t.Errorf("viewport.zoom = %g, want 1", got)
	}
	if got := tree.GetInt("graph.nodes", -1); got != 0 {
		t.Errorf("graph.nodes = %d, want 0", got)
	}
	if got := tree.GetString("theme.name", ""); got != "default" {
		t.Errorf("theme.name = %q, want %q", got, "default")
	}
	if !tree.GetBool("validation.valid", false) {
		t.Error("validation.valid should default to true")
	}
}

func TestTree_SetEmitsStateChanged(t *testing.T) {
	bus := testBus()
	tree := New(bus)

	var got events.StateChanged
	var calls int
	bus.On(events.TopicStateChanged, func(evt event.Envelope) error {
		got = evt.Payload.(events.StateChanged)
		calls++
		return nil
	})

	if err := tree.Set("viewport.zoom", 2.0, SetOptions{Reason: "test"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if calls != 1 {
		t.Fatalf("state.changed fired %d times, want 1", calls)
	}
	if !reflect.DeepEqual(got.Paths, []string{"viewport.zoom"}) {
		t.Errorf("paths = %v, want [viewport.zoom]", got.Paths)
	}
	if got.Reason != "test" {
		t.Errorf("reason = %q, want %q", got.Reason, "test")
	}
	if v := tree.GetFloat("viewport.zoom", 0); v != 2 {
		t.Errorf("viewport.zoom = %g, want 2", v)
	}
}

func TestTree_SetEqualValueShortCircuits(t *testing.T) {
	bus := testBus()
	tree := New(bus)

	var calls int
	bus.On(events.TopicStateChanged, func(evt event.Envelope) error {
		calls++
		return nil
	})

	if err := tree.Set("viewport.zoom", 1.0, SetOptions{}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if calls != 0 {
		t.Errorf("writing the current value fired %d events, want 0", calls)
	}
	if n := len(tree.Changes()); n != 0 {
		t.Errorf("change log has %d entries, want 0", n)
	}
}

func TestTree_SetCreatesNewPath(t *testing.T) {
	tree := New(testBus())

	if err := tree.Set("canvas.grid.size", 16, SetOptions{}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if got := tree.GetInt("canvas.grid.size", 0); got != 16 {
		t.Errorf("canvas.grid.size = %d, want 16", got)
	}
}

func TestTree_SetSilent(t *testing.T) {
	bus := testBus()
	tree := New(bus)

	var calls int
	bus.On(events.TopicStateChanged, func(evt event.Envelope) error {
		calls++
		return nil
	})

	if err := tree.Set("viewport.zoom", 3.0, SetOptions{Silent: true}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if calls != 0 {
		t.Errorf("silent write fired %d events, want 0", calls)
	}
	// The change is still applied and logged.
	if v := tree.GetFloat("viewport.zoom", 0); v != 3 {
		t.Errorf("viewport.zoom = %g, want 3", v)
	}
	if n := len(tree.Changes()); n != 1 {
		t.Errorf("change log has %d entries, want 1", n)
	}
}

func TestTree_UpdateBatchesIntoOneEvent(t *testing.T) {
	bus := testBus()
	tree := New(bus)

	var got events.StateChanged
	var calls int
	bus.On(events.TopicStateChanged, func(evt event.Envelope) error {
		got = evt.Payload.(events.StateChanged)
		calls++
		return nil
	})

	err := tree.Update(map[string]any{
		"viewport.x":    100.0,
		"viewport.y":    50.0,
		"viewport.zoom": 2.0,
	}, SetOptions{Reason: "zoom-pan"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if calls != 1 {
		t.Fatalf("batched update fired %d events, want 1", calls)
	}
	want := []string{"viewport.x", "viewport.y", "viewport.zoom"}
	if !reflect.DeepEqual(got.Paths, want) {
		t.Errorf("paths = %v, want %v", got.Paths, want)
	}
}

func TestTree_UpdateOmitsUnchangedPaths(t *testing.T) {
	bus := testBus()
	tree := New(bus)

	var got events.StateChanged
	bus.On(events.TopicStateChanged, func(evt event.Envelope) error {
		got = evt.Payload.(events.StateChanged)
		return nil
	})

	err := tree.Update(map[string]any{
		"viewport.x":    25.0,
		"viewport.zoom": 1.0, // already the current value
	}, SetOptions{})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if !reflect.DeepEqual(got.Paths, []string{"viewport.x"}) {
		t.Errorf("paths = %v, want [viewport.x]", got.Paths)
	}
}

func TestTree_ChangeLog(t *testing.T) {
	tree := New(testBus())

	tree.Set("viewport.zoom", 2.0, SetOptions{Reason: "first"})
	tree.Set("viewport.zoom", 3.0, SetOptions{Reason: "second"})

	changes := tree.Changes()
	if len(changes) != 2 {
		t.Fatalf("change log has %d entries, want 2", len(changes))
	}
	if changes[0].Reason != "first" || changes[1].Reason != "second" {
		t.Errorf("changes out of order: %q, %q", changes[0].Reason, changes[1].Reason)
	}
	if changes[1].Old != "2" || changes[1].New != "3" {
		t.Errorf("second change old/new = %q/%q, want 2/3", changes[1].Old, changes[1].New)
	}
}

func TestTree_ChangeLogRingBuffer(t *testing.T) {
	tree := New(testBus(), WithChangeLogSize(3))

	for i := 0; i < 5; i++ {
		tree.Set("viewport.zoom", float64(i+2), SetOptions{})
	}

	changes := tree.Changes()
	if len(changes) != 3 {
		t.Fatalf("change log has %d entries, want 3", len(changes))
	}
	// Oldest entries dropped; survivors oldest first.
	if changes[0].New != "4" || changes[2].New != "6" {
		t.Errorf("surviving changes = %q..%q, want 4..6", changes[0].New, changes[2].New)
	}
}

func TestTree_RawIsACopy(t *testing.T) {
	tree := New(testBus())

	raw := tree.Raw()
	for i := range raw {
		raw[i] = 'x'
	}

	if got := tree.GetFloat("viewport.zoom", 0); got != 1 {
		t.Error("mutating the Raw() copy changed the tree")
	}
}
