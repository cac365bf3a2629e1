package geometry

import "math"

// Polygon is a closed polygon given as an ordered vertex ring. The closing
// edge from the last vertex back to the first is implicit. Hull and offset
// results are counterclockwise.
type Polygon []Point

// Clone returns a deep copy of the polygon.
func (p Polygon) Clone() Polygon {
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Translate returns the polygon shifted by the given vector.
func (p Polygon) Translate(d Point) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = pt.Add(d)
	}
	return out
}

// Rotate returns the polygon rotated counterclockwise by angle radians about
// the origin.
func (p Polygon) Rotate(angle float64) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = pt.Rotate(angle)
	}
	return out
}

// Perimeter returns the total length of the closed ring.
func (p Polygon) Perimeter() float64 {
	if len(p) < 2 {
		return 0
	}
	total := 0.0
	for i := range p {
		total += p[i].Distance(p[(i+1)%len(p)])
	}
	return total
}

// Area returns the signed area of the ring. Counterclockwise rings have
// positive area.
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	a := 0.0
	for i := range p {
		a += p[i].Cross(p[(i+1)%len(p)])
	}
	return a / 2
}

// Simplify removes vertices that deviate from the line through their
// neighbors by less than tol. The ring keeps at least three vertices.
func (p Polygon) Simplify(tol float64) Polygon {
	if len(p) <= 3 || tol <= 0 {
		return p.Clone()
	}
	out := make(Polygon, 0, len(p))
	n := len(p)
	for i := 0; i < n; i++ {
		prev := p[(i-1+n)%n]
		cur := p[i]
		next := p[(i+1)%n]
		if len(out)+n-i <= 3 {
			// Never drop below a triangle.
			out = append(out, cur)
			continue
		}
		if pointLineDistance(cur, prev, next) < tol {
			continue
		}
		out = append(out, cur)
	}
	if len(out) < 3 {
		return p.Clone()
	}
	return out
}

// pointLineDistance returns the distance of pt from the infinite line through
// a and b. Coincident a and b degrade to the point distance.
func pointLineDistance(pt, a, b Point) float64 {
	ab := b.Sub(a)
	l := ab.Length()
	if l == 0 {
		return pt.Distance(a)
	}
	return math.Abs(ab.Cross(pt.Sub(a))) / l
}

// IntersectsConvex reports whether two convex polygons overlap with positive
// area, using the separating axis test. Rings that merely touch along an edge
// or vertex do not count as intersecting.
func IntersectsConvex(a, b Polygon) bool {
	if len(a) < 3 || len(b) < 3 {
		return false
	}
	return !hasSeparatingAxis(a, b) && !hasSeparatingAxis(b, a)
}

// hasSeparatingAxis checks the edge normals of polygon a for an axis on which
// the projections of a and b do not overlap.
func hasSeparatingAxis(a, b Polygon) bool {
	const eps = 1e-9
	for i := range a {
		edge := a[(i+1)%len(a)].Sub(a[i])
		axis := Point{X: -edge.Y, Y: edge.X}
		minA, maxA := projectOntoAxis(a, axis)
		minB, maxB := projectOntoAxis(b, axis)
		if maxA <= minB+eps || maxB <= minA+eps {
			return true
		}
	}
	return false
}

func projectOntoAxis(p Polygon, axis Point) (min, max float64) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, pt := range p {
		d := pt.Dot(axis)
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}
