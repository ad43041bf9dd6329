// Package level holds static arena geometry and answers the shape-cast and overlap
// queries the simulation needs: solids, teleporters, death zones and spawn bounds.
package level

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/solarlune/resolv"

	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/physics"
	"tagarena.dev/internal/sim/rng"
)

const (
	tagSolid      = "solid"
	tagTeleporter = "teleporter"
	tagDeathZone  = "death"
	tagQuery      = "query"

	// World units are scaled into resolv space so one cell covers one unit.
	spaceScale = 16
	spaceCell  = 16
	spacePad   = 4.0
)

// Spec is the on-disk form of a level.
type Spec struct {
	ID              string           `yaml:"id" json:"id"`
	Bounds          mathx.AABB       `yaml:"bounds" json:"bounds"`
	Tokens          int              `yaml:"tokens" json:"tokens"`
	RespawnInterval float64          `yaml:"respawn_interval,omitempty" json:"respawn_interval,omitempty"`
	Solids          []SolidSpec      `yaml:"solids" json:"solids"`
	Teleporters     []TeleporterSpec `yaml:"teleporters,omitempty" json:"teleporters,omitempty"`
	DeathZones      []mathx.AABB     `yaml:"death_zones,omitempty" json:"death_zones,omitempty"`
}

// SolidSpec is either an axis-aligned box or a convex polygon.
type SolidSpec struct {
	Name    string       `yaml:"name,omitempty" json:"name,omitempty"`
	Box     *mathx.AABB  `yaml:"box,omitempty" json:"box,omitempty"`
	Polygon []mathx.Vec2 `yaml:"polygon,omitempty" json:"polygon,omitempty"`
}

type TeleporterSpec struct {
	Area        mathx.AABB  `yaml:"area" json:"area"`
	Destination mathx.Vec2  `yaml:"destination" json:"destination"`
	Multiplier  *mathx.Vec2 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
}

type Teleporter struct {
	Index       int
	Area        mathx.AABB
	Destination mathx.Vec2
	Multiplier  mathx.Vec2
}

type Level struct {
	spec        Spec
	solids      []polygon
	teleporters []Teleporter

	origin mathx.Vec2
	space  *resolv.Space
	query  *resolv.Object
}

// Build validates a spec and indexes its geometry.
func Build(spec Spec) (*Level, error) {
	if strings.TrimSpace(spec.ID) == "" {
		return nil, fmt.Errorf("level: empty id")
	}
	l := &Level{spec: spec}

	extent := spec.Bounds
	for i, s := range spec.Solids {
		var p polygon
		switch {
		case s.Box != nil && len(s.Polygon) == 0:
			if !s.Box.Valid() {
				return nil, fmt.Errorf("level %s: solid %d: empty box", spec.ID, i)
			}
			p = boxPolygon(*s.Box)
		case s.Box == nil && len(s.Polygon) >= 3:
			p = newPolygon(s.Polygon)
			if math.Abs(signedArea(p.pts)) == 0 {
				return nil, fmt.Errorf("level %s: solid %d: degenerate polygon", spec.ID, i)
			}
		default:
			return nil, fmt.Errorf("level %s: solid %d: need exactly one of box or polygon (>=3 points)", spec.ID, i)
		}
		l.solids = append(l.solids, p)
		extent = union(extent, p.aabb)
	}
	for i, t := range spec.Teleporters {
		mul := mathx.One
		if t.Multiplier != nil {
			mul = *t.Multiplier
		}
		l.teleporters = append(l.teleporters, Teleporter{Index: i, Area: t.Area, Destination: t.Destination, Multiplier: mul})
		extent = union(extent, t.Area)
	}
	for _, z := range spec.DeathZones {
		extent = union(extent, z)
	}
	if !extent.Valid() {
		return nil, fmt.Errorf("level %s: no geometry and no bounds", spec.ID)
	}
	l.index(extent.Expand(spacePad))
	return l, nil
}

func union(a, b mathx.AABB) mathx.AABB {
	if !a.Valid() {
		return b
	}
	if !b.Valid() {
		return a
	}
	return mathx.AABB{
		Min: mathx.V(math.Min(a.Min.X, b.Min.X), math.Min(a.Min.Y, b.Min.Y)),
		Max: mathx.V(math.Max(a.Max.X, b.Max.X), math.Max(a.Max.Y, b.Max.Y)),
	}
}

func (l *Level) index(extent mathx.AABB) {
	l.origin = extent.Min
	size := extent.Size()
	w := int(math.Ceil(size.X*spaceScale)) + spaceCell
	h := int(math.Ceil(size.Y*spaceScale)) + spaceCell
	l.space = resolv.NewSpace(w, h, spaceCell, spaceCell)

	for i, p := range l.solids {
		l.space.Add(l.object(p.aabb, i, tagSolid))
	}
	for i, t := range l.teleporters {
		l.space.Add(l.object(t.Area, i, tagTeleporter))
	}
	for i, z := range l.spec.DeathZones {
		l.space.Add(l.object(z, i, tagDeathZone))
	}
	l.query = l.object(mathx.AABB{Min: extent.Min, Max: extent.Min.Add(mathx.V(0.1, 0.1))}, -1, tagQuery)
	l.space.Add(l.query)
}

func (l *Level) object(b mathx.AABB, idx int, tag string) *resolv.Object {
	x, y := l.toSpace(b.Min)
	size := b.Size().Scale(spaceScale)
	obj := resolv.NewObject(x, y, size.X, size.Y, tag)
	obj.Data = idx
	return obj
}

func (l *Level) toSpace(p mathx.Vec2) (float64, float64) {
	s := p.Sub(l.origin).Scale(spaceScale)
	return s.X, s.Y
}

// candidates returns indexes of objects with tag whose cells touch area, ascending.
func (l *Level) candidates(area mathx.AABB, tag string) []int {
	x, y := l.toSpace(area.Min)
	size := area.Size().Scale(spaceScale)
	l.query.X, l.query.Y = x, y
	l.query.W, l.query.H = math.Max(size.X, 1e-6), math.Max(size.Y, 1e-6)
	l.query.Update()

	col := l.query.Check(0, 0, tag)
	if col == nil {
		return nil
	}
	seen := make(map[int]bool, len(col.Objects))
	var out []int
	for _, o := range col.Objects {
		idx, ok := o.Data.(int)
		if !ok || idx < 0 || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (l *Level) ID() string         { return l.spec.ID }
func (l *Level) Spec() Spec         { return l.spec }
func (l *Level) Bounds() mathx.AABB { return l.spec.Bounds }
func (l *Level) TokenCount() int    { return l.spec.Tokens }

// Cast implements physics.Caster against the level's solids.
func (l *Level) Cast(box mathx.AABB, dir mathx.Vec2, distance float64) []physics.Hit {
	if l == nil || distance <= 0 {
		return nil
	}
	swept := union(box, box.Translate(dir.Scale(distance)))
	var hits []physics.Hit
	for _, idx := range l.candidates(swept, tagSolid) {
		if h, ok := l.solids[idx].sweep(box, dir, distance); ok {
			hits = append(hits, h)
		}
	}
	return hits
}

// OverlapsSolid reports whether box intersects any static solid.
func (l *Level) OverlapsSolid(box mathx.AABB) bool {
	if l == nil {
		return false
	}
	for _, idx := range l.candidates(box, tagSolid) {
		if l.solids[idx].overlaps(box) {
			return true
		}
	}
	return false
}

// TeleporterAt returns the first teleporter whose area overlaps box.
func (l *Level) TeleporterAt(box mathx.AABB) (Teleporter, bool) {
	if l == nil {
		return Teleporter{}, false
	}
	for _, idx := range l.candidates(box, tagTeleporter) {
		if t := l.teleporters[idx]; t.Area.Overlaps(box) {
			return t, true
		}
	}
	return Teleporter{}, false
}

func (l *Level) DeathZoneAt(box mathx.AABB) bool {
	if l == nil {
		return false
	}
	for _, idx := range l.candidates(box, tagDeathZone) {
		if l.spec.DeathZones[idx].Overlaps(box) {
			return true
		}
	}
	return false
}

// RandomPoint samples a uniform point inside the arena bounds. ok is false when the
// level has no usable bounds.
func (l *Level) RandomPoint(r rng.Source) (mathx.Vec2, bool) {
	if l == nil || !l.spec.Bounds.Valid() || r == nil {
		return mathx.Vec2{}, false
	}
	b := l.spec.Bounds
	return mathx.V(r.NextFloat(b.Min.X, b.Max.X), r.NextFloat(b.Min.Y, b.Max.Y)), true
}

// Outlines returns every solid as a CCW point loop.
func (l *Level) Outlines() [][]mathx.Vec2 {
	out := make([][]mathx.Vec2, 0, len(l.solids))
	for _, p := range l.solids {
		out = append(out, append([]mathx.Vec2(nil), p.pts...))
	}
	return out
}

func (l *Level) Teleporters() []Teleporter { return l.teleporters }
func (l *Level) DeathZones() []mathx.AABB  { return l.spec.DeathZones }
