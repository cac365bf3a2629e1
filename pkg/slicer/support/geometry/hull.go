package geometry

import (
	"math"
	"sort"
)

// ConvexHull computes the 2D convex hull of a point set using Andrew's
// monotone chain. The result is counterclockwise without a repeated closing
// vertex. Fewer than three distinct non-collinear points yield a nil polygon.
func ConvexHull(points []Point) Polygon {
	if len(points) < 3 {
		return nil
	}
	pts := make([]Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	// Drop duplicates so collinearity handling stays stable.
	uniq := pts[:1]
	for _, p := range pts[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return nil
	}

	var lower, upper []Point
	for _, p := range pts {
		for len(lower) >= 2 && cross3(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross3(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}
	return Polygon(hull)
}

// cross3 returns the cross product of (b-a) and (c-a).
func cross3(a, b, c Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// OffsetConvexRound offsets a convex counterclockwise polygon outward by
// delta, joining the displaced edges with arcs sampled so the chord deviation
// stays within arcTol (rounded joins). A non-positive delta returns a clone.
func OffsetConvexRound(p Polygon, delta, arcTol float64) Polygon {
	if len(p) < 3 || delta <= 0 {
		return p.Clone()
	}
	if arcTol <= 0 || arcTol >= delta {
		arcTol = delta / 10
	}
	// Maximum arc step keeping the chord within arcTol of the true circle.
	step := 2 * math.Acos(1-arcTol/delta)
	if step < math.Pi/64 {
		step = math.Pi / 64
	}

	n := len(p)
	out := make(Polygon, 0, n*3)
	for i := 0; i < n; i++ {
		prev := p[(i-1+n)%n]
		cur := p[i]
		next := p[(i+1)%n]

		// Outward normals of the incoming and outgoing edges. The ring is
		// counterclockwise, so outward is the right-hand side of each edge.
		nIn := outwardNormal(prev, cur)
		nOut := outwardNormal(cur, next)

		angIn := math.Atan2(nIn.Y, nIn.X)
		angOut := math.Atan2(nOut.Y, nOut.X)
		sweep := angOut - angIn
		for sweep < 0 {
			sweep += 2 * math.Pi
		}

		out = append(out, cur.Add(nIn.Mul(delta)))
		for a := step; a < sweep; a += step {
			out = append(out, cur.Add(Point{X: math.Cos(angIn + a), Y: math.Sin(angIn + a)}.Mul(delta)))
		}
		out = append(out, cur.Add(nOut.Mul(delta)))
	}
	return out
}

// outwardNormal returns the unit normal pointing outward from a
// counterclockwise ring for the edge a->b.
func outwardNormal(a, b Point) Point {
	e := b.Sub(a)
	return Point{X: e.Y, Y: -e.X}.Normalize()
}
