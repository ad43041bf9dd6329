package level

import (
	"math"

	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/physics"
)

// polygon is a convex polygon with counter-clockwise vertices.
type polygon struct {
	pts  []mathx.Vec2
	axes []mathx.Vec2
	aabb mathx.AABB
}

func newPolygon(pts []mathx.Vec2) polygon {
	p := polygon{pts: append([]mathx.Vec2(nil), pts...)}
	if signedArea(p.pts) < 0 {
		for i, j := 0, len(p.pts)-1; i < j; i, j = i+1, j-1 {
			p.pts[i], p.pts[j] = p.pts[j], p.pts[i]
		}
	}
	p.aabb = mathx.AABB{Min: p.pts[0], Max: p.pts[0]}
	for i, a := range p.pts {
		b := p.pts[(i+1)%len(p.pts)]
		e := b.Sub(a)
		// Outward normal of a CCW edge.
		p.axes = append(p.axes, mathx.Vec2{X: e.Y, Y: -e.X}.Normalized())
		p.aabb.Min.X = math.Min(p.aabb.Min.X, a.X)
		p.aabb.Min.Y = math.Min(p.aabb.Min.Y, a.Y)
		p.aabb.Max.X = math.Max(p.aabb.Max.X, a.X)
		p.aabb.Max.Y = math.Max(p.aabb.Max.Y, a.Y)
	}
	return p
}

func boxPolygon(b mathx.AABB) polygon {
	c := b.Corners()
	return newPolygon(c[:])
}

func signedArea(pts []mathx.Vec2) float64 {
	var a float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

func (p polygon) center() mathx.Vec2 { return p.aabb.Center() }

func project(pts []mathx.Vec2, axis mathx.Vec2) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range pts {
		d := v.Dot(axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

var boxAxes = [2]mathx.Vec2{{X: 1, Y: 0}, {X: 0, Y: 1}}

func (p polygon) separatingAxes() []mathx.Vec2 {
	return append(boxAxes[:], p.axes...)
}

// overlaps reports strict interior overlap between box and polygon.
func (p polygon) overlaps(box mathx.AABB) bool {
	if !p.aabb.Overlaps(box) {
		return false
	}
	corners := box.Corners()
	for _, axis := range p.separatingAxes() {
		blo, bhi := project(corners[:], axis)
		plo, phi := project(p.pts, axis)
		if bhi <= plo || blo >= phi {
			return false
		}
	}
	return true
}

const sweepEpsilon = 1e-12

// sweep casts box along dir (unit) for up to distance against p.
func (p polygon) sweep(box mathx.AABB, dir mathx.Vec2, distance float64) (physics.Hit, bool) {
	corners := box.Corners()
	enter, exit := math.Inf(-1), math.Inf(1)
	var normal mathx.Vec2

	for _, axis := range p.separatingAxes() {
		blo, bhi := project(corners[:], axis)
		plo, phi := project(p.pts, axis)
		v := dir.Dot(axis) * distance
		if math.Abs(v) < sweepEpsilon {
			if bhi <= plo || blo >= phi {
				return physics.Hit{}, false
			}
			continue
		}
		t0 := (plo - bhi) / v
		t1 := (phi - blo) / v
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > enter {
			enter = t0
			if v > 0 {
				normal = axis.Scale(-1)
			} else {
				normal = axis
			}
		}
		if t1 < exit {
			exit = t1
		}
		if enter > exit {
			return physics.Hit{}, false
		}
	}

	if exit <= 0 || enter > 1 {
		return physics.Hit{}, false
	}
	if enter >= 0 {
		return physics.Hit{Normal: normal, Distance: enter * distance}, true
	}

	// Already overlapping: report a zero-distance contact only when moving further in.
	n := p.penetrationNormal(box)
	if dir.Dot(n) < 0 {
		return physics.Hit{Normal: n, Distance: 0}, true
	}
	return physics.Hit{}, false
}

func (p polygon) penetrationNormal(box mathx.AABB) mathx.Vec2 {
	corners := box.Corners()
	toBox := box.Center().Sub(p.center())
	best := math.Inf(1)
	var n mathx.Vec2
	for _, axis := range p.separatingAxes() {
		blo, bhi := project(corners[:], axis)
		plo, phi := project(p.pts, axis)
		depth := math.Min(bhi-plo, phi-blo)
		if depth < best {
			best = depth
			n = axis
			if toBox.Dot(axis) < 0 {
				n = axis.Scale(-1)
			}
		}
	}
	return n
}
