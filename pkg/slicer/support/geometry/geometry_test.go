package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(cx, cy, half float64) Polygon {
	return Polygon{
		{cx - half, cy - half},
		{cx + half, cy - half},
		{cx + half, cy + half},
		{cx - half, cy + half},
	}
}

func TestConvexHull_Square(t *testing.T) {
	pts := []Point{
		{0, 0}, {2, 0}, {2, 2}, {0, 2},
		{1, 1}, {0.5, 0.5}, // interior points must be dropped
		{0, 0}, // duplicate
	}
	hull := ConvexHull(pts)
	require.Len(t, hull, 4)
	assert.InDelta(t, 4.0, hull.Area(), 1e-9, "hull must be counterclockwise (positive area)")
}

func TestConvexHull_TooFewPoints(t *testing.T) {
	assert.Nil(t, ConvexHull(nil))
	assert.Nil(t, ConvexHull([]Point{{0, 0}, {1, 1}}))
	// Collinear points have no 2D hull.
	assert.Nil(t, ConvexHull([]Point{{0, 0}, {1, 1}, {2, 2}}))
}

func TestPolygon_TranslateRotate(t *testing.T) {
	p := square(0, 0, 1).Translate(Point{X: 10, Y: 5})
	assert.Equal(t, Point{9, 4}, p[0])

	r := Polygon{{1, 0}}.Rotate(math.Pi / 2)
	assert.InDelta(t, 0, r[0].X, 1e-12)
	assert.InDelta(t, 1, r[0].Y, 1e-12)
}

func TestPolygon_PerimeterArea(t *testing.T) {
	p := square(0, 0, 1)
	assert.InDelta(t, 8.0, p.Perimeter(), 1e-9)
	assert.InDelta(t, 4.0, p.Area(), 1e-9)
}

func TestOffsetConvexRound_GrowsPerimeter(t *testing.T) {
	p := square(0, 0, 1)
	off := OffsetConvexRound(p, 0.5, 0.05)
	require.GreaterOrEqual(t, len(off), 4)
	// The offset of a convex polygon by d adds 2*pi*d to the perimeter.
	assert.InDelta(t, p.Perimeter()+2*math.Pi*0.5, off.Perimeter(), 0.05)
	assert.Greater(t, off.Area(), p.Area())
}

func TestOffsetConvexRound_NonPositiveDelta(t *testing.T) {
	p := square(0, 0, 1)
	assert.Equal(t, p, OffsetConvexRound(p, 0, 0.05))
}

func TestSimplify_DropsNearCollinear(t *testing.T) {
	p := Polygon{
		{0, 0}, {1, 0.001}, {2, 0}, {2, 2}, {0, 2},
	}
	s := p.Simplify(0.01)
	assert.Len(t, s, 4)
}

func TestIntersectsConvex(t *testing.T) {
	a := square(0, 0, 1)
	assert.True(t, IntersectsConvex(a, square(1.5, 0, 1)), "overlapping squares")
	assert.False(t, IntersectsConvex(a, square(3, 0, 1)), "disjoint squares")
	assert.False(t, IntersectsConvex(a, square(2, 0, 1)), "touching edges are not a positive-area overlap")
}
