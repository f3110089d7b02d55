package main

import "math"

// Point is a position in playfield coordinates (origin top-left, y down).
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned box given by its top-left corner and size.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether p lies inside or on the edge of r
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Hit is the result of a swept paddle test.
type Hit struct {
	Point Point
	Slot  int
}

// PaddleBox is a paddle hit-box tagged with its slot index.
type PaddleBox struct {
	Slot int
	Rect Rect
}

// segmentIntersect solves p0 + t*(p1-p0) == q0 + u*(q1-q0) and accepts the
// solution only when both t and u lie in [0, 1]. Parallel segments never
// intersect here; the containment check in SweepRect covers overlap.
func segmentIntersect(p0, p1, q0, q1 Point) (Point, float64, bool) {
	rx, ry := p1.X-p0.X, p1.Y-p0.Y
	sx, sy := q1.X-q0.X, q1.Y-q0.Y
	denom := rx*sy - ry*sx
	if math.Abs(denom) < 1e-12 {
		return Point{}, 0, false
	}
	qpx, qpy := q0.X-p0.X, q0.Y-p0.Y
	t := (qpx*sy - qpy*sx) / denom
	u := (qpx*ry - qpy*rx) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Point{}, 0, false
	}
	return Point{X: p0.X + t*rx, Y: p0.Y + t*ry}, t, true
}

// SweepRect tests the motion segment p0->p1 against the four edges of r and
// returns the earliest crossing. If no edge is crossed but p1 already lies
// inside r, p1 itself is the hit point.
func SweepRect(p0, p1 Point, r Rect) (Point, bool) {
	tl := Point{r.X, r.Y}
	tr := Point{r.X + r.W, r.Y}
	br := Point{r.X + r.W, r.Y + r.H}
	bl := Point{r.X, r.Y + r.H}
	edges := [4][2]Point{{tl, tr}, {tr, br}, {br, bl}, {bl, tl}}

	best := math.Inf(1)
	var hit Point
	found := false
	for _, e := range edges {
		pt, t, ok := segmentIntersect(p0, p1, e[0], e[1])
		if ok && t < best {
			best = t
			hit = pt
			found = true
		}
	}
	if found {
		return hit, true
	}
	if r.Contains(p1) {
		return p1, true
	}
	return Point{}, false
}

// DetectPaddleHit runs the swept test against each box in order and returns
// the earliest hit along the motion segment.
func DetectPaddleHit(p0, p1 Point, boxes []PaddleBox) (Hit, bool) {
	var best Hit
	bestDist := math.Inf(1)
	found := false
	for _, b := range boxes {
		pt, ok := SweepRect(p0, p1, b.Rect)
		if !ok {
			continue
		}
		d := math.Hypot(pt.X-p0.X, pt.Y-p0.Y)
		if d < bestDist {
			bestDist = d
			best = Hit{Point: pt, Slot: b.Slot}
			found = true
		}
	}
	return best, found
}
