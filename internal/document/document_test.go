package document

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/dshills/diagrid/internal/config"
	"github.com/dshills/diagrid/internal/engine/edge"
	"github.com/dshills/diagrid/internal/engine/node"
	"github.com/dshills/diagrid/internal/engine/selection"
	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
)

type openCatalog struct{}

func (openCatalog) HasType(string) bool { return true }

func newTestDocument() *Document {
	return New(openCatalog{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func addNode(t *testing.T, d *Document, x, y float64) string {
	t.Helper()
	id, err := d.Nodes().Create(node.Spec{Type: "rect", X: x, Y: y, Width: 10, Height: 10})
	if err != nil {
		t.Fatalf("node create failed: %v", err)
	}
	return id
}

func addEdge(t *testing.T, d *Document, source, target string) string {
	t.Helper()
	id, err := d.Edges().Create(edge.Spec{SourceID: source, TargetID: target})
	if err != nil {
		t.Fatalf("edge create failed: %v", err)
	}
	return id
}

func TestDocument_NodeDeleteCascade(t *testing.T) {
	d := newTestDocument()
	a := addNode(t, d, 0, 0)
	b := addNode(t, d, 50, 0)
	c := addNode(t, d, 100, 0)
	ab := addEdge(t, d, a, b)
	bc := addEdge(t, d, b, c)
	d.Selection().SelectMany(selection.KindNode, []string{a, b}, selection.ModeAdd)
	d.Selection().Select(selection.KindEdge, ab, selection.ModeAdd)

	d.Nodes().Delete(b)

	// Edges touching b are gone, the untouched graph survives.
	if d.Edges().Has(ab) || d.Edges().Has(bc) {
		t.Error("edges touching the deleted node survived")
	}
	if !d.Nodes().Has(a) || !d.Nodes().Has(c) {
		t.Error("cascade deleted unrelated nodes")
	}

	// Selection no longer references anything dead.
	snap := d.Selection().Selection()
	if !reflect.DeepEqual(snap.Nodes, []string{a}) {
		t.Errorf("selected nodes = %v, want [%s]", snap.Nodes, a)
	}
	if len(snap.Edges) != 0 {
		t.Errorf("selected edges = %v, want empty", snap.Edges)
	}

	// No stale z-index row.
	if _, ok := d.Layers().ZIndexOf(b); ok {
		t.Error("deleted node still has a z-index row")
	}

	// State tree counts follow.
	if got := d.State().GetInt("graph.nodes", -1); got != 2 {
		t.Errorf("graph.nodes = %d, want 2", got)
	}
	if got := d.State().GetInt("graph.edges", -1); got != 0 {
		t.Errorf("graph.edges = %d, want 0", got)
	}
}

func TestDocument_CreatedNodesStackUpward(t *testing.T) {
	d := newTestDocument()
	first := addNode(t, d, 0, 0)
	second := addNode(t, d, 0, 0)

	n1, _ := d.Nodes().Get(first)
	n2, _ := d.Nodes().Get(second)
	if n2.ZIndex <= n1.ZIndex {
		t.Errorf("z-indices = %d, %d; later node should stack above", n1.ZIndex, n2.ZIndex)
	}
}

func TestDocument_CreateNodeCommandRedoKeepsID(t *testing.T) {
	d := newTestDocument()

	cmd := NewCreateNode(d.Nodes(), node.Spec{Type: "rect", Width: 10, Height: 10})
	if err := d.History().Execute(cmd); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	id := cmd.NodeID()

	if err := d.History().Undo(); err != nil {
		t.Fatalf("Undo() failed: %v", err)
	}
	if d.Nodes().Has(id) {
		t.Fatal("undo did not remove the node")
	}

	if err := d.History().Redo(); err != nil {
		t.Fatalf("Redo() failed: %v", err)
	}
	if !d.Nodes().Has(id) {
		t.Errorf("redo recreated the node under a different id")
	}
}

func TestDocument_DeleteNodeCommandRestoresEdges(t *testing.T) {
	d := newTestDocument()
	a := addNode(t, d, 0, 0)
	b := addNode(t, d, 50, 0)
	c := addNode(t, d, 100, 0)
	ab := addEdge(t, d, a, b)
	bc := addEdge(t, d, b, c)

	if err := d.History().Execute(NewDeleteNode(d.Nodes(), d.Edges(), b)); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if d.Nodes().Has(b) || d.Edges().Has(ab) || d.Edges().Has(bc) {
		t.Fatal("delete did not cascade")
	}

	if err := d.History().Undo(); err != nil {
		t.Fatalf("Undo() failed: %v", err)
	}

	// Node and both edges are back under their original ids.
	if !d.Nodes().Has(b) {
		t.Error("undo did not restore the node")
	}
	if !d.Edges().Has(ab) || !d.Edges().Has(bc) {
		t.Error("undo did not restore the cascaded edges")
	}

	// And redo deletes the whole neighborhood again.
	if err := d.History().Redo(); err != nil {
		t.Fatalf("Redo() failed: %v", err)
	}
	if d.Nodes().Has(b) || d.Edges().Has(ab) {
		t.Error("redo did not repeat the cascade")
	}
}

func TestDocument_MoveCommandIsInverse(t *testing.T) {
	d := newTestDocument()
	id := addNode(t, d, 10, 20)

	if err := d.History().Execute(NewMoveNode(d.Nodes(), id, 100, 200)); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	d.History().Undo()

	n, _ := d.Nodes().Get(id)
	if n.X != 10 || n.Y != 20 {
		t.Errorf("position after undo = (%g,%g), want (10,20)", n.X, n.Y)
	}
}

func TestDocument_UpdateCommandInverseTouchesOnlyChangedFields(t *testing.T) {
	d := newTestDocument()
	id := addNode(t, d, 0, 0)
	label := "original"
	d.Nodes().Update(id, node.Update{Label: &label})

	renamed := "renamed"
	if err := d.History().Execute(NewUpdateNode(d.Nodes(), id, node.Update{Label: &renamed})); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	// An unrelated change between do and undo survives the undo.
	d.Nodes().Move(id, 75, 0)

	d.History().Undo()

	n, _ := d.Nodes().Get(id)
	if n.Label != "original" {
		t.Errorf("label after undo = %q, want original", n.Label)
	}
	if n.X != 75 {
		t.Errorf("undo reverted an untouched field: x = %g, want 75", n.X)
	}
}

func TestDocument_DeleteSelectionIsAtomic(t *testing.T) {
	d := newTestDocument()
	a := addNode(t, d, 0, 0)
	b := addNode(t, d, 50, 0)
	ab := addEdge(t, d, a, b)
	d.Selection().SelectMany(selection.KindNode, []string{a, b}, selection.ModeAdd)
	d.Selection().Select(selection.KindEdge, ab, selection.ModeAdd)

	if err := d.DeleteSelection(); err != nil {
		t.Fatalf("DeleteSelection() failed: %v", err)
	}
	if d.Nodes().Count() != 0 || d.Edges().Count() != 0 {
		t.Fatal("selection not fully deleted")
	}
	if d.History().UndoCount() != 1 {
		t.Fatalf("undo count = %d, want 1 atomic entry", d.History().UndoCount())
	}

	if err := d.History().Undo(); err != nil {
		t.Fatalf("Undo() failed: %v", err)
	}
	if !d.Nodes().Has(a) || !d.Nodes().Has(b) || !d.Edges().Has(ab) {
		t.Error("single undo did not restore the whole selection")
	}
}

func TestDocument_DeleteSelectionEmptyIsNoOp(t *testing.T) {
	d := newTestDocument()

	if err := d.DeleteSelection(); err != nil {
		t.Fatalf("DeleteSelection() on empty selection failed: %v", err)
	}
	if d.History().CanUndo() {
		t.Error("empty delete recorded history")
	}
}

func TestDocument_SerializeRestoreRoundTrip(t *testing.T) {
	d := newTestDocument()
	a := addNode(t, d, 0, 0)
	b := addNode(t, d, 50, 0)
	addEdge(t, d, a, b)
	d.Layers().BringToFront(a)

	snap := d.Serialize()

	restored := newTestDocument()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	if !reflect.DeepEqual(restored.Serialize(), snap) {
		t.Error("round trip did not preserve the graph")
	}

	// Z-indices survive through the snapshot.
	na, _ := restored.Nodes().Get(a)
	nb, _ := restored.Nodes().Get(b)
	if na.ZIndex <= nb.ZIndex {
		t.Errorf("restacked node lost its z-index: a=%d b=%d", na.ZIndex, nb.ZIndex)
	}

	// History does not span a restore.
	if restored.History().CanUndo() {
		t.Error("restore left history behind")
	}
}

func TestDocument_SendToBackSurvivesRoundTrip(t *testing.T) {
	d := newTestDocument()
	a := addNode(t, d, 0, 0)
	b := addNode(t, d, 50, 0)
	if err := d.Layers().SendToBack(b); err != nil {
		t.Fatalf("SendToBack() failed: %v", err)
	}

	// SendToBack from {1,2} lands on 0, a legitimate stacking value.
	nb, _ := d.Nodes().Get(b)
	if nb.ZIndex != 0 {
		t.Fatalf("z-index after SendToBack = %d, want 0", nb.ZIndex)
	}

	restored := newTestDocument()
	if err := restored.Restore(d.Serialize()); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	ra, _ := restored.Nodes().Get(a)
	rb, _ := restored.Nodes().Get(b)
	if rb.ZIndex != 0 || ra.ZIndex != 1 {
		t.Errorf("restored z-indices a=%d b=%d, want a=1 b=0", ra.ZIndex, rb.ZIndex)
	}
	if z, ok := restored.Layers().ZIndexOf(b); !ok || z != 0 {
		t.Errorf("registry z-index for b = %d (tracked=%v), want 0", z, ok)
	}

	// A node created after the restore still stacks on top.
	c := addNode(t, restored, 100, 0)
	nc, _ := restored.Nodes().Get(c)
	if nc.ZIndex <= ra.ZIndex {
		t.Errorf("post-restore node z-index = %d, want above %d", nc.ZIndex, ra.ZIndex)
	}
}

func TestDocument_DeleteUndoKeepsSendToBackStacking(t *testing.T) {
	d := newTestDocument()
	addNode(t, d, 0, 0)
	b := addNode(t, d, 50, 0)
	if err := d.Layers().SendToBack(b); err != nil {
		t.Fatalf("SendToBack() failed: %v", err)
	}

	if err := d.History().Execute(NewDeleteNode(d.Nodes(), d.Edges(), b)); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if err := d.History().Undo(); err != nil {
		t.Fatalf("Undo() failed: %v", err)
	}

	nb, _ := d.Nodes().Get(b)
	if nb.ZIndex != 0 {
		t.Errorf("z-index after delete/undo = %d, want 0", nb.ZIndex)
	}
	if z, ok := d.Layers().ZIndexOf(b); !ok || z != 0 {
		t.Errorf("registry z-index after delete/undo = %d (tracked=%v), want 0", z, ok)
	}
}

func TestDocument_RestoreReplacesContents(t *testing.T) {
	d := newTestDocument()
	addNode(t, d, 0, 0)
	snap := d.Serialize()

	other := newTestDocument()
	stale := addNode(t, other, 99, 99)
	if err := other.Restore(snap); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	if other.Nodes().Has(stale) {
		t.Error("restore kept pre-existing nodes")
	}
	if other.Nodes().Count() != 1 {
		t.Errorf("node count after restore = %d, want 1", other.Nodes().Count())
	}
}

func TestDocument_SetViewport(t *testing.T) {
	d := newTestDocument()

	var stateEvents int
	var viewport events.ViewportChanged
	d.Bus().On(events.TopicStateChanged, func(evt event.Envelope) error {
		stateEvents++
		return nil
	})
	d.Bus().On(events.TopicViewportChanged, func(evt event.Envelope) error {
		viewport = evt.Payload.(events.ViewportChanged)
		return nil
	})

	if err := d.SetViewport(100, 50, 2); err != nil {
		t.Fatalf("SetViewport() failed: %v", err)
	}

	if stateEvents != 1 {
		t.Errorf("zoom+pan fired %d state events, want 1", stateEvents)
	}
	if viewport.X != 100 || viewport.Y != 50 || viewport.Zoom != 2 {
		t.Errorf("viewport.changed = %+v", viewport)
	}
	if got := d.State().GetFloat("viewport.zoom", 0); got != 2 {
		t.Errorf("viewport.zoom in tree = %g, want 2", got)
	}
}

func TestDocument_AutoValidation(t *testing.T) {
	cfg := config.Default()
	cfg.Validation.Auto = true
	d := New(openCatalog{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConfig(cfg))

	var runs int
	d.Bus().On(events.TopicValidationComplete, func(evt event.Envelope) error {
		runs++
		return nil
	})

	a := addNode(t, d, 0, 0)
	b := addNode(t, d, 50, 0)
	addEdge(t, d, a, b)

	if runs != 3 {
		t.Errorf("auto-validation ran %d times, want 3", runs)
	}
	if !d.State().GetBool("validation.valid", false) {
		t.Error("valid graph flagged invalid")
	}
}

func TestDocument_ApplyConfig(t *testing.T) {
	d := newTestDocument()

	cfg := config.Default()
	cfg.History.MaxEntries = 7
	cfg.Validation.Auto = true
	d.ApplyConfig(cfg)

	if d.History().MaxSize() != 7 {
		t.Errorf("history max size = %d, want 7", d.History().MaxSize())
	}
	if !d.Validation().Auto() {
		t.Error("auto-validation not applied")
	}
}

func TestDocument_HistoryStateMirroredInTree(t *testing.T) {
	d := newTestDocument()

	if d.State().GetBool("history.canUndo", true) {
		t.Error("history.canUndo should start false")
	}

	d.History().Execute(NewCreateNode(d.Nodes(), node.Spec{Type: "rect", Width: 10, Height: 10}))

	if !d.State().GetBool("history.canUndo", false) {
		t.Error("history.canUndo not mirrored after execute")
	}
}
