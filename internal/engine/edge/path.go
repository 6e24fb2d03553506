package edge

import (
	"math"

	"github.com/dshills/diagrid/internal/engine/entity"
)

// bezierOffset is the fraction of the segment length the bezier control
// point is pushed perpendicular to the source->target vector.
const bezierOffset = 0.3

// Route computes the routed path for an edge type given the endpoint node
// bounding boxes. The result is a deterministic pure function of the two
// rectangles, reproducible bit-for-bit for the same inputs.
//
//   - straight: the two endpoint centers.
//   - bezier: start, one control point offset perpendicular to the
//     source->target vector by 30% of the segment length, end.
//   - orthogonal: one mid-column Manhattan bend.
//
// Unknown types route as straight.
func Route(t entity.EdgeType, source, target entity.Rect) []entity.Point {
	s := source.Center()
	e := target.Center()

	switch t {
	case entity.EdgeBezier:
		return []entity.Point{s, bezierControl(s, e), e}
	case entity.EdgeOrthogonal:
		midX := (s.X + e.X) / 2
		return []entity.Point{
			s,
			{X: midX, Y: s.Y},
			{X: midX, Y: e.Y},
			e,
		}
	default:
		return []entity.Point{s, e}
	}
}

// bezierControl returns the single control point for a bezier edge: the
// segment midpoint pushed perpendicular to the segment by bezierOffset of
// its length. Coincident endpoints collapse to the shared center.
func bezierControl(s, e entity.Point) entity.Point {
	dx := e.X - s.X
	dy := e.Y - s.Y
	if math.Hypot(dx, dy) == 0 {
		return s
	}

	// The unit perpendicular of (dx, dy) scaled by bezierOffset of the
	// segment length reduces to (-dy, dx) * bezierOffset.
	mid := entity.Point{X: (s.X + e.X) / 2, Y: (s.Y + e.Y) / 2}
	return entity.Point{
		X: mid.X - dy*bezierOffset,
		Y: mid.Y + dx*bezierOffset,
	}
}
