package clipboard

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dshills/diagrid/internal/engine/edge"
	"github.com/dshills/diagrid/internal/engine/node"
	"github.com/dshills/diagrid/internal/engine/selection"
	"github.com/dshills/diagrid/internal/event"
)

type openCatalog struct{}

func (openCatalog) HasType(string) bool { return true }

type fixture struct {
	nodes *node.Store
	edges *edge.Store
	sel   *selection.Tracker
	clip  *Clipboard
}

func newFixture() *fixture {
	bus := event.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	nodes := node.NewStore(bus, openCatalog{}, nil)
	edges := edge.NewStore(bus, nodes, nil)
	sel := selection.NewTracker(bus)
	return &fixture{
		nodes: nodes,
		edges: edges,
		sel:   sel,
		clip:  New(nodes, edges, sel, nil),
	}
}

// triangle builds a -> b -> c with all three nodes at known positions.
func (f *fixture) triangle(t *testing.T) (a, b, c, ab, bc string) {
	t.Helper()
	var err error
	if a, err = f.nodes.Create(node.Spec{Type: "rect", X: 0, Y: 0, Width: 10, Height: 10}); err != nil {
		t.Fatal(err)
	}
	if b, err = f.nodes.Create(node.Spec{Type: "rect", X: 50, Y: 0, Width: 10, Height: 10}); err != nil {
		t.Fatal(err)
	}
	if c, err = f.nodes.Create(node.Spec{Type: "rect", X: 100, Y: 0, Width: 10, Height: 10}); err != nil {
		t.Fatal(err)
	}
	if ab, err = f.edges.Create(edge.Spec{SourceID: a, TargetID: b}); err != nil {
		t.Fatal(err)
	}
	if bc, err = f.edges.Create(edge.Spec{SourceID: b, TargetID: c}); err != nil {
		t.Fatal(err)
	}
	return a, b, c, ab, bc
}

func TestClipboard_CopyCapturesSelection(t *testing.T) {
	f := newFixture()
	a, b, _, ab, _ := f.triangle(t)

	f.sel.SelectMany(selection.KindNode, []string{a, b}, selection.ModeAdd)
	f.sel.Select(selection.KindEdge, ab, selection.ModeAdd)

	if got := f.clip.Copy(); got != 3 {
		t.Errorf("Copy() = %d entities, want 3", got)
	}
	if f.clip.IsEmpty() {
		t.Error("clipboard should not be empty after copy")
	}
	if f.clip.SnapshotID() == "" {
		t.Error("copy should assign a snapshot id")
	}
}

func TestClipboard_CopyDropsPartialSelectionEdges(t *testing.T) {
	f := newFixture()
	a, _, _, ab, _ := f.triangle(t)

	// Edge selected but only one endpoint node is.
	f.sel.Select(selection.KindNode, a, selection.ModeAdd)
	f.sel.Select(selection.KindEdge, ab, selection.ModeAdd)

	if got := f.clip.Copy(); got != 1 {
		t.Errorf("Copy() = %d entities, want 1 (edge dropped)", got)
	}
}

func TestClipboard_PasteRemapsIDs(t *testing.T) {
	f := newFixture()
	a, b, _, ab, _ := f.triangle(t)

	f.sel.SelectMany(selection.KindNode, []string{a, b}, selection.ModeAdd)
	f.sel.Select(selection.KindEdge, ab, selection.ModeAdd)
	f.clip.Copy()

	res, err := f.clip.Paste()
	if err != nil {
		t.Fatalf("Paste() failed: %v", err)
	}

	if len(res.NodeIDs) != 2 || len(res.EdgeIDs) != 1 || res.Skipped != 0 {
		t.Fatalf("paste result = %+v", res)
	}
	for _, id := range res.NodeIDs {
		if id == a || id == b {
			t.Errorf("pasted node reused original id %q", id)
		}
	}

	// The pasted edge must connect the pasted nodes, not the originals.
	e, _ := f.edges.Get(res.EdgeIDs[0])
	if e.SourceID == a || e.TargetID == b {
		t.Error("pasted edge still references original nodes")
	}
	if e.SourceID != res.NodeIDs[0] || e.TargetID != res.NodeIDs[1] {
		t.Errorf("pasted edge endpoints = %s->%s, want %s->%s",
			e.SourceID, e.TargetID, res.NodeIDs[0], res.NodeIDs[1])
	}
}

func TestClipboard_PasteOffsetMultiplies(t *testing.T) {
	f := newFixture()
	a, _, _, _, _ := f.triangle(t)

	f.sel.Select(selection.KindNode, a, selection.ModeReplace)
	f.clip.Copy()

	first, err := f.clip.Paste()
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.clip.Paste()
	if err != nil {
		t.Fatal(err)
	}

	n1, _ := f.nodes.Get(first.NodeIDs[0])
	n2, _ := f.nodes.Get(second.NodeIDs[0])

	if n1.X != DefaultOffsetX || n1.Y != DefaultOffsetY {
		t.Errorf("first paste at (%g,%g), want (%d,%d)", n1.X, n1.Y, DefaultOffsetX, DefaultOffsetY)
	}
	if n2.X != 2*DefaultOffsetX || n2.Y != 2*DefaultOffsetY {
		t.Errorf("second paste at (%g,%g), want (%d,%d)", n2.X, n2.Y, 2*DefaultOffsetX, 2*DefaultOffsetY)
	}
}

func TestClipboard_CopyResetsOffset(t *testing.T) {
	f := newFixture()
	a, _, _, _, _ := f.triangle(t)

	f.sel.Select(selection.KindNode, a, selection.ModeReplace)
	f.clip.Copy()
	f.clip.Paste()
	f.clip.Paste()

	// Recopying resets the paste fan-out.
	f.sel.Select(selection.KindNode, a, selection.ModeReplace)
	f.clip.Copy()
	res, err := f.clip.Paste()
	if err != nil {
		t.Fatal(err)
	}

	n, _ := f.nodes.Get(res.NodeIDs[0])
	if n.X != DefaultOffsetX {
		t.Errorf("first paste after recopy at x=%g, want %d", n.X, DefaultOffsetX)
	}
}

func TestClipboard_PasteSurvivesSourceDeletion(t *testing.T) {
	f := newFixture()
	a, b, _, ab, _ := f.triangle(t)

	f.sel.SelectMany(selection.KindNode, []string{a, b}, selection.ModeAdd)
	f.sel.Select(selection.KindEdge, ab, selection.ModeAdd)
	f.clip.Copy()

	// Delete the originals; the clipboard snapshot is independent.
	f.edges.Delete(ab)
	f.nodes.Delete(a)
	f.nodes.Delete(b)

	res, err := f.clip.Paste()
	if err != nil {
		t.Fatalf("Paste() after source deletion failed: %v", err)
	}
	if len(res.NodeIDs) != 2 || len(res.EdgeIDs) != 1 {
		t.Errorf("paste result = %+v", res)
	}
}

func TestClipboard_SetOffset(t *testing.T) {
	f := newFixture()
	a, _, _, _, _ := f.triangle(t)

	f.clip.SetOffset(5, -5)
	f.sel.Select(selection.KindNode, a, selection.ModeReplace)
	f.clip.Copy()

	res, err := f.clip.Paste()
	if err != nil {
		t.Fatal(err)
	}
	n, _ := f.nodes.Get(res.NodeIDs[0])
	if n.X != 5 || n.Y != -5 {
		t.Errorf("paste at (%g,%g), want (5,-5)", n.X, n.Y)
	}
}

func TestClipboard_EmptyPaste(t *testing.T) {
	f := newFixture()

	res, err := f.clip.Paste()
	if err != nil {
		t.Fatalf("Paste() on empty clipboard failed: %v", err)
	}
	if len(res.NodeIDs) != 0 || len(res.EdgeIDs) != 0 {
		t.Errorf("empty paste created entities: %+v", res)
	}
}
