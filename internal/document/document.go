// Package document provides the aggregate that owns every engine component
// (stores, selection, history, validation, layers, clipboard, state tree)
// and wires their cross-subscriptions once at construction. There is no
// ambient state: everything reachable from a Document belongs to it.
//
// Cascade order on node deletion is fixed by subscription order and
// auditable in wire():
//
//	store delete -> edge cascade -> selection purge -> layer/z purge ->
//	state refresh -> auto-validation
package document

import (
	"fmt"
	"log/slog"

	"github.com/dshills/diagrid/internal/config"
	"github.com/dshills/diagrid/internal/engine/clipboard"
	"github.com/dshills/diagrid/internal/engine/edge"
	"github.com/dshills/diagrid/internal/engine/entity"
	"github.com/dshills/diagrid/internal/engine/history"
	"github.com/dshills/diagrid/internal/engine/layer"
	"github.com/dshills/diagrid/internal/engine/node"
	"github.com/dshills/diagrid/internal/engine/selection"
	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
	"github.com/dshills/diagrid/internal/event/topic"
	"github.com/dshills/diagrid/internal/state"
	"github.com/dshills/diagrid/internal/validate"
)

// Document aggregates the engine components over one shared event bus.
type Document struct {
	bus        *event.Bus
	tree       *state.Tree
	nodes      *node.Store
	edges      *edge.Store
	sel        *selection.Tracker
	history    *history.Engine
	validation *validate.Engine
	layers     *layer.Registry
	clip       *clipboard.Clipboard
	logger     *slog.Logger
}

// Option configures a Document.
type Option func(*settings)

type settings struct {
	cfg    config.Config
	logger *slog.Logger
}

// WithConfig applies an engine configuration.
func WithConfig(cfg config.Config) Option {
	return func(s *settings) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a document whose node creation is gated by the given shape
// catalog.
func New(catalog node.Catalog, opts ...Option) *Document {
	s := settings{cfg: config.Default(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	bus := event.NewBus(s.logger)
	tree := state.New(bus,
		state.WithChangeLogSize(s.cfg.State.ChangeLogSize),
		state.WithLogger(s.logger))
	nodes := node.NewStore(bus, catalog, s.logger)
	edges := edge.NewStore(bus, nodes, s.logger)
	sel := selection.NewTracker(bus)
	hist := history.NewEngine(bus, s.cfg.History.MaxEntries, s.logger)
	layers := layer.NewRegistry(bus, nodes, s.logger)
	clip := clipboard.New(nodes, edges, sel, s.logger)
	clip.SetOffset(s.cfg.Clipboard.OffsetX, s.cfg.Clipboard.OffsetY)

	d := &Document{
		bus:     bus,
		tree:    tree,
		nodes:   nodes,
		edges:   edges,
		sel:     sel,
		history: hist,
		layers:  layers,
		clip:    clip,
		logger:  s.logger,
	}
	d.validation = validate.NewEngine(d.graphSnapshot, tree, bus, s.logger)
	d.validation.SetAuto(s.cfg.Validation.Auto)

	d.wire()
	return d
}

// wire registers every cross-component subscription. Handlers for the same
// topic run in the order they appear here.
func (d *Document) wire() {
	// 1. Edge cascade: a deleted node takes its edges with it,
	//    synchronously, before anything else reacts.
	d.bus.On(events.TopicNodeDeleted, func(evt event.Envelope) error {
		p := evt.Payload.(events.NodeDeleted)
		d.edges.DeleteForNode(p.Node.ID)
		return nil
	})

	// 2. Selection purge: dead ids leave the selection.
	d.bus.On(events.TopicNodeDeleted, func(evt event.Envelope) error {
		p := evt.Payload.(events.NodeDeleted)
		d.sel.Purge(selection.KindNode, p.Node.ID)
		return nil
	})
	d.bus.On(events.TopicEdgeDeleted, func(evt event.Envelope) error {
		p := evt.Payload.(events.EdgeDeleted)
		d.sel.Purge(selection.KindEdge, p.Edge.ID)
		return nil
	})

	// 3. Layer and z-index purge: no stale rows survive a node delete.
	d.bus.On(events.TopicNodeDeleted, func(evt event.Envelope) error {
		p := evt.Payload.(events.NodeDeleted)
		d.layers.Purge(p.Node.ID)
		return nil
	})

	// Stacking: new nodes get the next z-index; restored nodes keep the
	// one they were serialized with. The Restored flag decides, not the
	// index value: zero and negative indices are reachable via
	// SendToBack/SendBackward and must survive a restore verbatim.
	d.bus.On(events.TopicNodeCreated, func(evt event.Envelope) error {
		p := evt.Payload.(events.NodeCreated)
		if p.Restored {
			d.layers.Adopt(p.Node.ID, p.Node.ZIndex)
		} else {
			d.layers.Assign(p.Node.ID)
		}
		return nil
	})

	// Edge re-routing: endpoint moves invalidate routed paths.
	d.bus.On(events.TopicNodeMoved, func(evt event.Envelope) error {
		p := evt.Payload.(events.NodeMoved)
		d.edges.NotifyNodeMoved(p.Node.ID)
		return nil
	})

	// 4. State tree refresh.
	for _, t := range []topic.Topic{
		events.TopicNodeCreated,
		events.TopicNodeDeleted,
		events.TopicEdgeCreated,
		events.TopicEdgeDeleted,
	} {
		d.bus.On(t, func(evt event.Envelope) error {
			return d.tree.Update(map[string]any{
				"graph.nodes": d.nodes.Count(),
				"graph.edges": d.edges.Count(),
			}, state.SetOptions{Reason: evt.Topic.String()})
		})
	}
	d.bus.On(events.TopicSelectionChanged, func(evt event.Envelope) error {
		p := evt.Payload.(events.SelectionChanged)
		return d.tree.Update(map[string]any{
			"selection.nodes": len(p.NodeIDs),
			"selection.edges": len(p.EdgeIDs),
		}, state.SetOptions{Reason: evt.Topic.String()})
	})
	d.bus.On(events.TopicHistoryChanged, func(evt event.Envelope) error {
		p := evt.Payload.(events.HistoryChanged)
		return d.tree.Update(map[string]any{
			"history.canUndo": p.CanUndo,
			"history.canRedo": p.CanRedo,
		}, state.SetOptions{Reason: evt.Topic.String()})
	})

	// 5. Auto-validation re-runs on structural events. Graphs here are
	// small, so no incremental validation is attempted.
	for _, t := range []topic.Topic{
		events.TopicNodeCreated,
		events.TopicNodeDeleted,
		events.TopicNodeUpdated,
		events.TopicEdgeCreated,
		events.TopicEdgeDeleted,
	} {
		d.bus.On(t, func(evt event.Envelope) error {
			if d.validation.Auto() {
				d.validation.Validate()
			}
			return nil
		})
	}
}

// graphSnapshot builds the minimal view the validation rules evaluate.
func (d *Document) graphSnapshot() validate.Snapshot {
	nodes := d.nodes.GetAll()
	edges := d.edges.GetAll()

	snap := validate.Snapshot{
		Nodes: make([]validate.NodeRef, len(nodes)),
		Edges: make([]validate.EdgeRef, len(edges)),
	}
	for i, n := range nodes {
		snap.Nodes[i] = validate.NodeRef{ID: n.ID}
	}
	for i, e := range edges {
		snap.Edges[i] = validate.EdgeRef{ID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID}
	}
	return snap
}

// Bus returns the shared event bus.
func (d *Document) Bus() *event.Bus { return d.bus }

// State returns the state tree.
func (d *Document) State() *state.Tree { return d.tree }

// Nodes returns the node store.
func (d *Document) Nodes() *node.Store { return d.nodes }

// Edges returns the edge store.
func (d *Document) Edges() *edge.Store { return d.edges }

// Selection returns the selection tracker.
func (d *Document) Selection() *selection.Tracker { return d.sel }

// History returns the undo/redo engine.
func (d *Document) History() *history.Engine { return d.history }

// Validation returns the validation engine.
func (d *Document) Validation() *validate.Engine { return d.validation }

// Layers returns the layer registry.
func (d *Document) Layers() *layer.Registry { return d.layers }

// Clipboard returns the clipboard.
func (d *Document) Clipboard() *clipboard.Clipboard { return d.clip }

// ApplyConfig re-applies tunable settings. Used by the config watcher for
// live reload.
func (d *Document) ApplyConfig(cfg config.Config) {
	d.history.SetMaxSize(cfg.History.MaxEntries)
	d.clip.SetOffset(cfg.Clipboard.OffsetX, cfg.Clipboard.OffsetY)
	d.validation.SetAuto(cfg.Validation.Auto)
}

// SetViewport updates pan and zoom as one batched state write and emits a
// single viewport.changed, so zoom+pan never causes intermediate
// re-renders.
func (d *Document) SetViewport(x, y, zoom float64) error {
	err := d.tree.Update(map[string]any{
		"viewport.x":    x,
		"viewport.y":    y,
		"viewport.zoom": zoom,
	}, state.SetOptions{Reason: "viewport"})
	if err != nil {
		return err
	}
	d.bus.Emit(events.TopicViewportChanged, events.ViewportChanged{X: x, Y: y, Zoom: zoom})
	return nil
}

// DeleteSelection deletes every selected entity as one atomic undo step.
func (d *Document) DeleteSelection() error {
	snap := d.sel.Selection()
	if len(snap.Nodes) == 0 && len(snap.Edges) == 0 {
		return nil
	}

	return d.history.Transaction("Delete selection", func() error {
		// Node deletions cascade their edges; delete explicit edges
		// first so a selected edge is not deleted twice.
		for _, id := range snap.Edges {
			if !d.edges.Has(id) {
				continue
			}
			if err := d.history.Execute(NewDeleteEdge(d.edges, id)); err != nil {
				return err
			}
		}
		for _, id := range snap.Nodes {
			if err := d.history.Execute(NewDeleteNode(d.nodes, d.edges, id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot is the serialized form of a document's graph.
type Snapshot struct {
	Nodes []entity.Node `json:"nodes"`
	Edges []entity.Edge `json:"edges"`
}

// Serialize returns plain snapshots of the whole graph.
func (d *Document) Serialize() Snapshot {
	return Snapshot{
		Nodes: d.nodes.Serialize(),
		Edges: d.edges.Serialize(),
	}
}

// Restore replaces the document contents with a snapshot. History is
// cleared: undoing across a restore would replay against entities that no
// longer exist. Deserializing through the stores re-fires creation events,
// so layers and z-indices rebuild and validation sees the new graph.
func (d *Document) Restore(s Snapshot) error {
	d.edges.Clear()
	d.nodes.Clear()
	d.sel.Clear()
	d.history.Clear()

	if err := d.nodes.Deserialize(s.Nodes); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := d.edges.Deserialize(s.Edges); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}
