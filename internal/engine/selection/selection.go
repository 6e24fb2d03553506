// Package selection maintains the currently selected node and edge id sets.
// Selection is transient UI state: it is never persisted, and ids are purged
// automatically when their entities are deleted (the document wires the
// purge to node.deleted and edge.deleted at construction).
package selection

import (
	"sort"
	"sync"

	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
)

// Kind identifies which entity set a selection operation targets.
type Kind uint8

const (
	// KindNode targets the node id set.
	KindNode Kind = iota
	// KindEdge targets the edge id set.
	KindEdge
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// Mode controls how a select call combines with the current selection.
type Mode uint8

const (
	// ModeReplace wipes both sets and selects only the given ids.
	ModeReplace Mode = iota
	// ModeAdd unions the given ids into the set.
	ModeAdd
	// ModeToggle takes the symmetric difference with the given ids.
	ModeToggle
	// ModeSubtract removes the given ids from the set.
	ModeSubtract
)

// Snapshot is the full selection at a point in time, sorted.
type Snapshot struct {
	Nodes []string
	Edges []string
}

// Tracker maintains the selected id sets.
type Tracker struct {
	mu    sync.Mutex
	nodes map[string]struct{}
	edges map[string]struct{}
	bus   *event.Bus
}

// NewTracker creates an empty selection tracker.
func NewTracker(bus *event.Bus) *Tracker {
	return &Tracker{
		nodes: make(map[string]struct{}),
		edges: make(map[string]struct{}),
		bus:   bus,
	}
}

// Select applies one id with the given mode. Equivalent to SelectMany with
// a single-element slice.
func (t *Tracker) Select(kind Kind, id string, mode Mode) {
	t.SelectMany(kind, []string{id}, mode)
}

// SelectMany applies ids with the given mode and emits selection.changed
// carrying added/removed diffs relative to the pre-call snapshot. A call
// that changes nothing emits no event.
func (t *Tracker) SelectMany(kind Kind, ids []string, mode Mode) {
	t.mu.Lock()
	beforeNodes := copySet(t.nodes)
	beforeEdges := copySet(t.edges)

	target := t.set(kind)
	switch mode {
	case ModeReplace:
		t.nodes = make(map[string]struct{})
		t.edges = make(map[string]struct{})
		target = t.set(kind)
		for _, id := range ids {
			target[id] = struct{}{}
		}
	case ModeAdd:
		for _, id := range ids {
			target[id] = struct{}{}
		}
	case ModeToggle:
		for _, id := range ids {
			if _, ok := target[id]; ok {
				delete(target, id)
			} else {
				target[id] = struct{}{}
			}
		}
	case ModeSubtract:
		for _, id := range ids {
			delete(target, id)
		}
	}

	t.finish(beforeNodes, beforeEdges)
}

// Deselect removes one id from the given set.
func (t *Tracker) Deselect(kind Kind, id string) {
	t.SelectMany(kind, []string{id}, ModeSubtract)
}

// Clear empties both sets.
func (t *Tracker) Clear() {
	t.mu.Lock()
	beforeNodes := copySet(t.nodes)
	beforeEdges := copySet(t.edges)
	t.nodes = make(map[string]struct{})
	t.edges = make(map[string]struct{})
	t.finish(beforeNodes, beforeEdges)
}

// Purge removes a dead entity id from the selection. Wired to node.deleted
// and edge.deleted by the document.
func (t *Tracker) Purge(kind Kind, id string) {
	t.Deselect(kind, id)
}

// Selection returns the current selection, sorted.
func (t *Tracker) Selection() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Nodes: sortedKeys(t.nodes),
		Edges: sortedKeys(t.edges),
	}
}

// IsSelected reports whether an id is in the given set.
func (t *Tracker) IsSelected(kind Kind, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.set(kind)[id]
	return ok
}

// Count returns the total number of selected entities.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes) + len(t.edges)
}

// set returns the map for a kind. Caller holds the lock.
func (t *Tracker) set(kind Kind) map[string]struct{} {
	if kind == KindEdge {
		return t.edges
	}
	return t.nodes
}

// finish diffs against the pre-call snapshot, releases the lock, and emits
// selection.changed when anything moved. Caller holds the lock.
func (t *Tracker) finish(beforeNodes, beforeEdges map[string]struct{}) {
	nodeDiff := diff(beforeNodes, t.nodes)
	edgeDiff := diff(beforeEdges, t.edges)
	payload := events.SelectionChanged{
		Nodes:   nodeDiff,
		Edges:   edgeDiff,
		NodeIDs: sortedKeys(t.nodes),
		EdgeIDs: sortedKeys(t.edges),
	}
	t.mu.Unlock()

	if len(nodeDiff.Added) == 0 && len(nodeDiff.Removed) == 0 &&
		len(edgeDiff.Added) == 0 && len(edgeDiff.Removed) == 0 {
		return
	}
	if t.bus != nil {
		t.bus.Emit(events.TopicSelectionChanged, payload)
	}
}

func diff(before, after map[string]struct{}) events.SelectionDiff {
	var d events.SelectionDiff
	for id := range after {
		if _, ok := before[id]; !ok {
			d.Added = append(d.Added, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	return d
}

func copySet(m map[string]struct{}) map[string]struct{} {
	c := make(map[string]struct{}, len(m))
	for k := range m {
		c[k] = struct{}{}
	}
	return c
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
