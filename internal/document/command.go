package document

import (
	"fmt"

	"github.com/dshills/diagrid/internal/engine/edge"
	"github.com/dshills/diagrid/internal/engine/entity"
	"github.com/dshills/diagrid/internal/engine/node"
)

// Command implementations for the document's undoable operations. Each
// command captures the state it needs to invert itself during Execute, so
// Undo never has to query entities that may since have changed.

// CreateNode creates a node and remembers its assigned id, so redo
// recreates the node under the same id.
type CreateNode struct {
	nodes *node.Store
	spec  node.Spec
	id    string
}

// NewCreateNode returns a command that creates a node from spec.
func NewCreateNode(nodes *node.Store, spec node.Spec) *CreateNode {
	return &CreateNode{nodes: nodes, spec: spec}
}

// Execute creates the node. On redo the originally assigned id is reused.
func (c *CreateNode) Execute() error {
	spec := c.spec
	if c.id != "" {
		spec.ID = c.id
	}
	id, err := c.nodes.Create(spec)
	if err != nil {
		return err
	}
	c.id = id
	return nil
}

// Undo deletes the created node.
func (c *CreateNode) Undo() error {
	c.nodes.Delete(c.id)
	return nil
}

// NodeID returns the id assigned during Execute. Empty until executed.
func (c *CreateNode) NodeID() string { return c.id }

// Description implements Command.
func (c *CreateNode) Description() string {
	return fmt.Sprintf("Create %s node", c.spec.Type)
}

// DeleteNode deletes a node, capturing the node and every touching edge so
// Undo can restore the full neighborhood under the original ids.
type DeleteNode struct {
	nodes *node.Store
	edges *edge.Store
	id    string

	node     entity.Node
	cascaded []entity.Edge
	captured bool
}

// NewDeleteNode returns a command that deletes the node with id, cascading
// its edges.
func NewDeleteNode(nodes *node.Store, edges *edge.Store, id string) *DeleteNode {
	return &DeleteNode{nodes: nodes, edges: edges, id: id}
}

// Execute snapshots the node and its edges, then deletes the node. The
// store's deletion event cascades the edges.
func (c *DeleteNode) Execute() error {
	n, ok := c.nodes.Get(c.id)
	if !ok {
		return fmt.Errorf("delete node %s: %w", c.id, node.ErrNotFound)
	}
	if !c.captured {
		c.node = n
		c.cascaded = c.edges.EdgesFor(c.id)
		c.captured = true
	}
	c.nodes.Delete(c.id)
	return nil
}

// Undo restores the node verbatim, then recreates its edges under their
// original ids.
func (c *DeleteNode) Undo() error {
	if err := c.nodes.Restore(c.node); err != nil {
		return err
	}
	for _, e := range c.cascaded {
		spec := edge.Spec{
			ID:       e.ID,
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Type:     e.Type,
			Label:    e.Label,
			Style:    e.Style,
			Data:     e.Data,
		}
		if _, err := c.edges.Create(spec); err != nil {
			return fmt.Errorf("restore edge %s: %w", e.ID, err)
		}
	}
	return nil
}

// Description implements Command.
func (c *DeleteNode) Description() string {
	return fmt.Sprintf("Delete node %s", c.id)
}

// MoveNode moves a node to an absolute position.
type MoveNode struct {
	nodes *node.Store
	id    string
	x, y  float64

	prevX, prevY float64
	captured     bool
}

// NewMoveNode returns a command that moves the node with id to (x, y).
func NewMoveNode(nodes *node.Store, id string, x, y float64) *MoveNode {
	return &MoveNode{nodes: nodes, id: id, x: x, y: y}
}

// Execute records the current position on first run, then moves.
func (c *MoveNode) Execute() error {
	if !c.captured {
		n, ok := c.nodes.Get(c.id)
		if !ok {
			return fmt.Errorf("move node %s: %w", c.id, node.ErrNotFound)
		}
		c.prevX, c.prevY = n.X, n.Y
		c.captured = true
	}
	return c.nodes.Move(c.id, c.x, c.y)
}

// Undo moves the node back to its prior position.
func (c *MoveNode) Undo() error {
	return c.nodes.Move(c.id, c.prevX, c.prevY)
}

// Description implements Command.
func (c *MoveNode) Description() string {
	return fmt.Sprintf("Move node %s", c.id)
}

// ResizeNode resizes a node to absolute dimensions.
type ResizeNode struct {
	nodes         *node.Store
	id            string
	width, height float64

	prevW, prevH float64
	captured     bool
}

// NewResizeNode returns a command that resizes the node with id.
func NewResizeNode(nodes *node.Store, id string, width, height float64) *ResizeNode {
	return &ResizeNode{nodes: nodes, id: id, width: width, height: height}
}

// Execute records the current size on first run, then resizes.
func (c *ResizeNode) Execute() error {
	if !c.captured {
		n, ok := c.nodes.Get(c.id)
		if !ok {
			return fmt.Errorf("resize node %s: %w", c.id, node.ErrNotFound)
		}
		c.prevW, c.prevH = n.Width, n.Height
		c.captured = true
	}
	return c.nodes.Resize(c.id, c.width, c.height)
}

// Undo restores the prior size.
func (c *ResizeNode) Undo() error {
	return c.nodes.Resize(c.id, c.prevW, c.prevH)
}

// Description implements Command.
func (c *ResizeNode) Description() string {
	return fmt.Sprintf("Resize node %s", c.id)
}

// UpdateNode applies a partial node update. Undo applies the inverse
// update built from a pre-change snapshot, touching only the fields the
// forward update touched.
type UpdateNode struct {
	nodes   *node.Store
	id      string
	changes node.Update

	inverse  node.Update
	captured bool
}

// NewUpdateNode returns a command that applies changes to the node with id.
func NewUpdateNode(nodes *node.Store, id string, changes node.Update) *UpdateNode {
	return &UpdateNode{nodes: nodes, id: id, changes: changes}
}

// Execute snapshots the fields about to change, then applies the update.
func (c *UpdateNode) Execute() error {
	if !c.captured {
		n, ok := c.nodes.Get(c.id)
		if !ok {
			return fmt.Errorf("update node %s: %w", c.id, node.ErrNotFound)
		}
		c.inverse = inverseUpdate(n, c.changes)
		c.captured = true
	}
	return c.nodes.Update(c.id, c.changes)
}

// Undo applies the inverse update.
func (c *UpdateNode) Undo() error {
	return c.nodes.Update(c.id, c.inverse)
}

// Description implements Command.
func (c *UpdateNode) Description() string {
	return fmt.Sprintf("Update node %s", c.id)
}

// inverseUpdate builds the update that restores prev for exactly the
// fields u touches. A nil map in prev inverts to an empty map, which
// replaces the forward update's map with nothing.
func inverseUpdate(prev entity.Node, u node.Update) node.Update {
	inv := node.Update{Reason: "undo"}
	if u.Type != nil {
		v := prev.Type
		inv.Type = &v
	}
	if u.X != nil {
		v := prev.X
		inv.X = &v
	}
	if u.Y != nil {
		v := prev.Y
		inv.Y = &v
	}
	if u.Width != nil {
		v := prev.Width
		inv.Width = &v
	}
	if u.Height != nil {
		v := prev.Height
		inv.Height = &v
	}
	if u.Rotation != nil {
		v := prev.Rotation
		inv.Rotation = &v
	}
	if u.Label != nil {
		v := prev.Label
		inv.Label = &v
	}
	if u.Style != nil {
		inv.Style = prev.Style
		if inv.Style == nil {
			inv.Style = map[string]string{}
		}
	}
	if u.Data != nil {
		inv.Data = prev.Data
		if inv.Data == nil {
			inv.Data = map[string]any{}
		}
	}
	if u.Locked != nil {
		v := prev.Locked
		inv.Locked = &v
	}
	if u.Visible != nil {
		v := prev.Visible
		inv.Visible = &v
	}
	return inv
}

// CreateEdge creates an edge and remembers its assigned id for redo.
type CreateEdge struct {
	edges *edge.Store
	spec  edge.Spec
	id    string
}

// NewCreateEdge returns a command that creates an edge from spec.
func NewCreateEdge(edges *edge.Store, spec edge.Spec) *CreateEdge {
	return &CreateEdge{edges: edges, spec: spec}
}

// Execute creates the edge. On redo the originally assigned id is reused.
func (c *CreateEdge) Execute() error {
	spec := c.spec
	if c.id != "" {
		spec.ID = c.id
	}
	id, err := c.edges.Create(spec)
	if err != nil {
		return err
	}
	c.id = id
	return nil
}

// Undo deletes the created edge.
func (c *CreateEdge) Undo() error {
	c.edges.Delete(c.id)
	return nil
}

// EdgeID returns the id assigned during Execute. Empty until executed.
func (c *CreateEdge) EdgeID() string { return c.id }

// Description implements Command.
func (c *CreateEdge) Description() string {
	return fmt.Sprintf("Connect %s to %s", c.spec.SourceID, c.spec.TargetID)
}

// DeleteEdge deletes an edge, capturing a snapshot so Undo can recreate it
// under the original id.
type DeleteEdge struct {
	edges *edge.Store
	id    string

	edge     entity.Edge
	captured bool
}

// NewDeleteEdge returns a command that deletes the edge with id.
func NewDeleteEdge(edges *edge.Store, id string) *DeleteEdge {
	return &DeleteEdge{edges: edges, id: id}
}

// Execute snapshots the edge, then deletes it.
func (c *DeleteEdge) Execute() error {
	e, ok := c.edges.Get(c.id)
	if !ok {
		return fmt.Errorf("delete edge %s: %w", c.id, edge.ErrNotFound)
	}
	if !c.captured {
		c.edge = e
		c.captured = true
	}
	c.edges.Delete(c.id)
	return nil
}

// Undo recreates the edge under its original id.
func (c *DeleteEdge) Undo() error {
	_, err := c.edges.Create(edge.Spec{
		ID:       c.edge.ID,
		SourceID: c.edge.SourceID,
		TargetID: c.edge.TargetID,
		Type:     c.edge.Type,
		Label:    c.edge.Label,
		Style:    c.edge.Style,
		Data:     c.edge.Data,
	})
	return err
}

// Description implements Command.
func (c *DeleteEdge) Description() string {
	return fmt.Sprintf("Delete edge %s", c.id)
}

// UpdateEdge applies a partial edge update with an inverse built from a
// pre-change snapshot.
type UpdateEdge struct {
	edges   *edge.Store
	id      string
	changes edge.Update

	inverse  edge.Update
	captured bool
}

// NewUpdateEdge returns a command that applies changes to the edge with id.
func NewUpdateEdge(edges *edge.Store, id string, changes edge.Update) *UpdateEdge {
	return &UpdateEdge{edges: edges, id: id, changes: changes}
}

// Execute snapshots the fields about to change, then applies the update.
func (c *UpdateEdge) Execute() error {
	if !c.captured {
		e, ok := c.edges.Get(c.id)
		if !ok {
			return fmt.Errorf("update edge %s: %w", c.id, edge.ErrNotFound)
		}
		c.inverse = inverseEdgeUpdate(e, c.changes)
		c.captured = true
	}
	return c.edges.Update(c.id, c.changes)
}

// Undo applies the inverse update.
func (c *UpdateEdge) Undo() error {
	return c.edges.Update(c.id, c.inverse)
}

// Description implements Command.
func (c *UpdateEdge) Description() string {
	return fmt.Sprintf("Update edge %s", c.id)
}

func inverseEdgeUpdate(prev entity.Edge, u edge.Update) edge.Update {
	inv := edge.Update{Reason: "undo"}
	if u.Type != nil {
		v := prev.Type
		inv.Type = &v
	}
	if u.Label != nil {
		v := prev.Label
		inv.Label = &v
	}
	if u.Style != nil {
		inv.Style = prev.Style
		if inv.Style == nil {
			inv.Style = map[string]string{}
		}
	}
	if u.Data != nil {
		inv.Data = prev.Data
		if inv.Data == nil {
			inv.Data = map[string]any{}
		}
	}
	return inv
}
