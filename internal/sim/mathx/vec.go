package mathx

import "math"

// Vec2 is a 2D vector in world units (y up).
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var (
	Zero = Vec2{}
	Up   = Vec2{X: 0, Y: 1}
	One  = Vec2{X: 1, Y: 1}
)

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2        { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2        { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2   { return Vec2{X: v.X * s, Y: v.Y * s} }
func (v Vec2) Mul(o Vec2) Vec2        { return Vec2{X: v.X * o.X, Y: v.Y * o.Y} }
func (v Vec2) Dot(o Vec2) float64     { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Len() float64           { return math.Hypot(v.X, v.Y) }
func (v Vec2) IsZero() bool           { return v.X == 0 && v.Y == 0 }
func (v Vec2) Perp() Vec2             { return Vec2{X: -v.Y, Y: v.X} }
func (v Vec2) Dist(o Vec2) float64    { return v.Sub(o).Len() }
func (v Vec2) Equal(o Vec2) bool      { return v.X == o.X && v.Y == o.Y }
func (v Vec2) Near(o Vec2, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps
}

// Normalized returns the unit vector, or zero for a zero-length input.
func (v Vec2) Normalized() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

// Rotate90 turns v a quarter turn counter-clockwise (turns=1) or clockwise (turns=-1).
func (v Vec2) Rotate90(turns int) Vec2 {
	switch Mod(turns, 4) {
	case 1:
		return Vec2{X: -v.Y, Y: v.X}
	case 2:
		return Vec2{X: -v.X, Y: -v.Y}
	case 3:
		return Vec2{X: v.Y, Y: -v.X}
	}
	return v
}

// AABB is an axis-aligned box; Min is the lower-left corner.
type AABB struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

// BoxAt builds a box of the given size whose bottom edge is centred on feet.
func BoxAt(feet Vec2, size Vec2) AABB {
	return AABB{
		Min: Vec2{X: feet.X - size.X/2, Y: feet.Y},
		Max: Vec2{X: feet.X + size.X/2, Y: feet.Y + size.Y},
	}
}

func (b AABB) Size() Vec2   { return b.Max.Sub(b.Min) }
func (b AABB) Center() Vec2 { return b.Min.Add(b.Max).Scale(0.5) }
func (b AABB) Valid() bool  { return b.Max.X > b.Min.X && b.Max.Y > b.Min.Y }

func (b AABB) Translate(d Vec2) AABB { return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)} }

// Expand grows the box by m on every side (negative shrinks).
func (b AABB) Expand(m float64) AABB {
	return AABB{Min: Vec2{X: b.Min.X - m, Y: b.Min.Y - m}, Max: Vec2{X: b.Max.X + m, Y: b.Max.Y + m}}
}

// Overlaps reports strict interior overlap; touching edges do not count.
func (b AABB) Overlaps(o AABB) bool {
	return b.Min.X < o.Max.X && o.Min.X < b.Max.X && b.Min.Y < o.Max.Y && o.Min.Y < b.Max.Y
}

func (b AABB) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Corners returns the four corners counter-clockwise from Min.
func (b AABB) Corners() [4]Vec2 {
	return [4]Vec2{b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y}}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
