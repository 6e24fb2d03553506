// Package clipboard implements copy/paste over the current selection with
// id remapping. Copy serializes the selected nodes plus only those selected
// edges whose both endpoints are also selected; partial-selection edges are
// dropped deliberately. Paste recreates nodes with fresh ids, then recreates
// edges through an old->new remap table, skipping any edge whose endpoint
// failed to remap.
package clipboard

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/diagrid/internal/engine/edge"
	"github.com/dshills/diagrid/internal/engine/entity"
	"github.com/dshills/diagrid/internal/engine/node"
	"github.com/dshills/diagrid/internal/engine/selection"
)

// DefaultOffsetX and DefaultOffsetY are the positional delta applied to the
// first paste; successive pastes without an intervening copy multiply it so
// copies fan out rather than stack.
const (
	DefaultOffsetX = 20
	DefaultOffsetY = 20
)

// PasteResult reports what a paste created.
type PasteResult struct {
	// NodeIDs are the freshly created node ids, in creation order.
	NodeIDs []string

	// EdgeIDs are the freshly created edge ids, in creation order.
	EdgeIDs []string

	// Skipped counts edges dropped because an endpoint failed to remap.
	Skipped int
}

// Clipboard holds a captured snapshot of the selection.
type Clipboard struct {
	mu sync.Mutex

	snapshotID string
	nodes      []entity.Node
	edges      []entity.Edge
	pasteCount int
	offsetX    float64
	offsetY    float64

	nodeStore *node.Store
	edgeStore *edge.Store
	sel       *selection.Tracker
	logger    *slog.Logger
}

// New creates a clipboard over the given stores and selection.
func New(nodes *node.Store, edges *edge.Store, sel *selection.Tracker, logger *slog.Logger) *Clipboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Clipboard{
		offsetX:   DefaultOffsetX,
		offsetY:   DefaultOffsetY,
		nodeStore: nodes,
		edgeStore: edges,
		sel:       sel,
		logger:    logger,
	}
}

// SetOffset changes the per-paste positional delta.
func (c *Clipboard) SetOffset(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsetX, c.offsetY = dx, dy
}

// Copy captures the current selection and resets the paste fan-out.
// Returns the number of entities captured.
func (c *Clipboard) Copy() int {
	snap := c.sel.Selection()

	selected := make(map[string]struct{}, len(snap.Nodes))
	var nodes []entity.Node
	for _, id := range snap.Nodes {
		n, ok := c.nodeStore.Get(id)
		if !ok {
			continue
		}
		selected[id] = struct{}{}
		nodes = append(nodes, n)
	}

	var edges []entity.Edge
	for _, id := range snap.Edges {
		e, ok := c.edgeStore.Get(id)
		if !ok {
			continue
		}
		// Both endpoints must be in the copied node set.
		if _, ok := selected[e.SourceID]; !ok {
			continue
		}
		if _, ok := selected[e.TargetID]; !ok {
			continue
		}
		edges = append(edges, e)
	}

	c.mu.Lock()
	c.snapshotID = uuid.NewString()
	c.nodes = nodes
	c.edges = edges
	c.pasteCount = 0
	c.mu.Unlock()

	return len(nodes) + len(edges)
}

// IsEmpty reports whether the clipboard holds nothing.
func (c *Clipboard) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes) == 0
}

// SnapshotID identifies the captured snapshot; it changes on every Copy.
func (c *Clipboard) SnapshotID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotID
}

// Paste recreates the captured entities. Each paste without an intervening
// copy offsets positions by one more multiple of the configured delta.
func (c *Clipboard) Paste() (PasteResult, error) {
	c.mu.Lock()
	nodes := make([]entity.Node, len(c.nodes))
	copy(nodes, c.nodes)
	edges := make([]entity.Edge, len(c.edges))
	copy(edges, c.edges)
	c.pasteCount++
	dx := c.offsetX * float64(c.pasteCount)
	dy := c.offsetY * float64(c.pasteCount)
	c.mu.Unlock()

	var res PasteResult
	remap := make(map[string]string, len(nodes))
	for _, n := range nodes {
		id, err := c.nodeStore.Create(node.Spec{
			Type:     n.Type,
			X:        n.X + dx,
			Y:        n.Y + dy,
			Width:    n.Width,
			Height:   n.Height,
			Rotation: n.Rotation,
			Label:    n.Label,
			Style:    n.Style,
			Data:     n.Data,
			Locked:   n.Locked,
			Hidden:   !n.Visible,
		})
		if err != nil {
			return res, err
		}
		remap[n.ID] = id
		res.NodeIDs = append(res.NodeIDs, id)
	}

	for _, e := range edges {
		src, okSrc := remap[e.SourceID]
		tgt, okTgt := remap[e.TargetID]
		if !okSrc || !okTgt {
			res.Skipped++
			continue
		}
		id, err := c.edgeStore.Create(edge.Spec{
			SourceID: src,
			TargetID: tgt,
			Type:     e.Type,
			Label:    e.Label,
			Style:    e.Style,
			Data:     e.Data,
		})
		if err != nil {
			// A connection rule added after the copy can reject the
			// pair; skip the edge rather than fail the paste.
			c.logger.Warn("clipboard: edge skipped on paste", "edge", e.ID, "error", err)
			res.Skipped++
			continue
		}
		res.EdgeIDs = append(res.EdgeIDs, id)
	}

	return res, nil
}
