// Package entity defines the graph document's entity types and geometry
// primitives. Nodes and edges are plain values; the stores in engine/node and
// engine/edge own the live instances, and everything handed out of a store is
// a deep copy so callers cannot mutate store state behind its back.
package entity

import "math"

// Point is a position in canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains returns true if the point lies within the rectangle.
// Edges are inclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// ContainsRect returns true if other lies entirely within the rectangle.
func (r Rect) ContainsRect(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.X+other.Width <= r.X+r.Width &&
		other.Y+other.Height <= r.Y+r.Height
}

// Intersects returns true if the two rectangles overlap.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.X+other.Width && r.X+r.Width > other.X &&
		r.Y < other.Y+other.Height && r.Y+r.Height > other.Y
}

// Node is a positioned, typed diagram entity.
type Node struct {
	// ID is globally unique, assigned at creation, immutable.
	ID string `json:"id"`

	// Type is a key into the external shape catalog. Opaque to the engine.
	Type string `json:"type"`

	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`

	// Label is display text, possibly empty.
	Label string `json:"label"`

	// Style is an open map of presentation hints. Opaque to the engine.
	Style map[string]string `json:"style,omitempty"`

	// Locked gates interaction; Visible gates rendering. Neither affects
	// data integrity.
	Locked  bool `json:"locked"`
	Visible bool `json:"visible"`

	// ZIndex is the stacking order, assigned by the layer registry.
	ZIndex int `json:"zIndex"`

	// Data is an open map for caller-defined metadata.
	Data map[string]any `json:"data,omitempty"`
}

// Bounds returns the node's bounding rectangle.
func (n Node) Bounds() Rect {
	return Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	c := n
	c.Style = cloneStringMap(n.Style)
	c.Data = cloneAnyMap(n.Data)
	return c
}

// ValidGeometry reports whether the node's geometry fields are finite and
// its width and height are positive.
func (n Node) ValidGeometry() bool {
	for _, v := range []float64{n.X, n.Y, n.Width, n.Height, n.Rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return n.Width > 0 && n.Height > 0
}

// EdgeType is an edge routing style tag.
type EdgeType string

// Built-in routing styles. The set is extensible; unknown tags route as
// straight lines.
const (
	EdgeStraight   EdgeType = "straight"
	EdgeBezier     EdgeType = "bezier"
	EdgeOrthogonal EdgeType = "orthogonal"
)

// Edge is a directed connection between two nodes. SourceID and TargetID
// always resolve to live nodes; the edge store deletes orphaned edges
// synchronously when a referenced node is deleted.
type Edge struct {
	// ID is globally unique, assigned at creation, immutable.
	ID string `json:"id"`

	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`

	// Type is the routing style tag.
	Type EdgeType `json:"type"`

	Label string            `json:"label"`
	Style map[string]string `json:"style,omitempty"`
	Data  map[string]any    `json:"data,omitempty"`
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	c := e
	c.Style = cloneStringMap(e.Style)
	c.Data = cloneAnyMap(e.Data)
	return c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// cloneAnyMap copies the top level only. Nested values are caller-defined
// metadata the engine never mutates.
func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
