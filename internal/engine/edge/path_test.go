package edge

import (
	"reflect"
	"testing"

	"github.com/dshills/diagrid/internal/engine/entity"
)

func TestRoute_Straight(t *testing.T) {
	source := entity.Rect{X: 0, Y: 0, Width: 10, Height: 10}
	target := entity.Rect{X: 100, Y: 100, Width: 20, Height: 20}

	got := Route(entity.EdgeStraight, source, target)

	want := []entity.Point{{X: 5, Y: 5}, {X: 110, Y: 110}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route(straight) = %v, want %v", got, want)
	}
}

func TestRoute_UnknownTypeFallsBackToStraight(t *testing.T) {
	source := entity.Rect{X: 0, Y: 0, Width: 10, Height: 10}
	target := entity.Rect{X: 20, Y: 0, Width: 10, Height: 10}

	got := Route(entity.EdgeType("wiggly"), source, target)
	want := Route(entity.EdgeStraight, source, target)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unknown type routed %v, want straight %v", got, want)
	}
}

func TestRoute_Orthogonal(t *testing.T) {
	source := entity.Rect{X: 0, Y: 0, Width: 10, Height: 10}    // center (5,5)
	target := entity.Rect{X: 90, Y: 50, Width: 10, Height: 10}  // center (95,55)

	got := Route(entity.EdgeOrthogonal, source, target)

	want := []entity.Point{
		{X: 5, Y: 5},
		{X: 50, Y: 5},
		{X: 50, Y: 55},
		{X: 95, Y: 55},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route(orthogonal) = %v, want %v", got, want)
	}
}

func TestRoute_Bezier(t *testing.T) {
	// Horizontal segment of length 100: control point is the midpoint
	// pushed perpendicular by 30 units.
	source := entity.Rect{X: 0, Y: 0, Width: 0, Height: 0}
	target := entity.Rect{X: 100, Y: 0, Width: 0, Height: 0}

	got := Route(entity.EdgeBezier, source, target)

	want := []entity.Point{
		{X: 0, Y: 0},
		{X: 50, Y: 30},
		{X: 100, Y: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route(bezier) = %v, want %v", got, want)
	}
}

func TestRoute_BezierCoincidentEndpoints(t *testing.T) {
	r := entity.Rect{X: 10, Y: 10, Width: 10, Height: 10}

	got := Route(entity.EdgeBezier, r, r)

	center := entity.Point{X: 15, Y: 15}
	want := []entity.Point{center, center, center}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route(bezier, same rect) = %v, want %v", got, want)
	}
}

func TestRoute_Deterministic(t *testing.T) {
	source := entity.Rect{X: 3, Y: 7, Width: 11, Height: 13}
	target := entity.Rect{X: 101, Y: 41, Width: 17, Height: 19}

	for _, typ := range []entity.EdgeType{entity.EdgeStraight, entity.EdgeBezier, entity.EdgeOrthogonal} {
		first := Route(typ, source, target)
		second := Route(typ, source, target)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Route(%s) is not deterministic", typ)
		}
	}
}
