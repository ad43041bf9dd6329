// Package physics is the kinematic motion resolver: gravity integration, prescribed
// horizontal velocity and two-pass shape-cast collision against static geometry.
package physics

import (
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/tuning"
)

// Hit is one contact reported by a shape cast.
type Hit struct {
	Normal   mathx.Vec2
	Distance float64
}

// Caster sweeps a box along a unit direction for up to distance and reports every
// contact found on the way. Hits are not required to be sorted.
type Caster interface {
	Cast(box mathx.AABB, dir mathx.Vec2, distance float64) []Hit
}

type Config struct {
	Gravity          float64
	GravityModifier  float64
	MinGroundNormalY float64
	ShellRadius      float64
	MinMoveDistance  float64
}

func ConfigFrom(p tuning.Physics) Config {
	return Config{
		Gravity:          p.Gravity,
		GravityModifier:  p.GravityModifier,
		MinGroundNormalY: p.MinGroundNormalY,
		ShellRadius:      p.ShellRadius,
		MinMoveDistance:  p.MinMoveDistance,
	}
}

// Body is a kinematic box. Position is the bottom-centre of the box.
type Body struct {
	Position       mathx.Vec2
	Velocity       mathx.Vec2
	TargetVelocity mathx.Vec2
	GroundNormal   mathx.Vec2
	Size           mathx.Vec2

	grounded bool
}

func NewBody(pos, size mathx.Vec2) Body {
	return Body{Position: pos, Size: size, GroundNormal: mathx.Up}
}

// IsGrounded is the result of the last Advance.
func (b *Body) IsGrounded() bool { return b.grounded }

func (b *Body) Bounds() mathx.AABB { return mathx.BoxAt(b.Position, b.Size) }

// Advance runs one fixed physics step.
func (b *Body) Advance(dt float64, cfg Config, caster Caster) {
	// Falling uses the modified gravity, rising uses plain gravity.
	g := cfg.Gravity * dt
	if b.Velocity.Y < 0 {
		g *= cfg.GravityModifier
	}
	b.Velocity.Y += g
	b.Velocity.X = b.TargetVelocity.X

	b.grounded = false

	delta := b.Velocity.Scale(dt)
	alongGround := mathx.Vec2{X: b.GroundNormal.Y, Y: -b.GroundNormal.X}

	b.resolve(alongGround.Scale(delta.X), false, cfg, caster)
	b.resolve(mathx.Up.Scale(delta.Y), true, cfg, caster)
}

func (b *Body) resolve(move mathx.Vec2, vertical bool, cfg Config, caster Caster) {
	distance := move.Len()
	dir := move.Normalized()

	if distance > cfg.MinMoveDistance && caster != nil {
		for _, hit := range caster.Cast(b.Bounds(), dir, distance+cfg.ShellRadius) {
			n := hit.Normal
			if n.Y > cfg.MinGroundNormalY {
				b.grounded = true
				if vertical {
					b.GroundNormal = n
					n.X = 0
				}
			}
			if b.grounded {
				// Moving into the surface: drop the into-surface component (slide).
				if p := b.Velocity.Dot(n); p < 0 {
					b.Velocity = b.Velocity.Sub(n.Scale(p))
				}
			} else {
				b.Velocity.X = 0
			}
			if d := hit.Distance - cfg.ShellRadius; d < distance {
				distance = d
			}
		}
	}

	b.Position = b.Position.Add(dir.Scale(distance))
}

// Teleport moves the body and scales its velocity component-wise.
// A zero multiplier is a hard stop.
func (b *Body) Teleport(pos, multiplier mathx.Vec2) {
	b.Position = pos
	b.Velocity = b.Velocity.Mul(multiplier)
}

// State is the persisted form of a Body.
type State struct {
	Position       mathx.Vec2 `json:"position"`
	Velocity       mathx.Vec2 `json:"velocity"`
	TargetVelocity mathx.Vec2 `json:"target_velocity"`
	GroundNormal   mathx.Vec2 `json:"ground_normal"`
	Grounded       bool       `json:"grounded"`
}

func (b *Body) State() State {
	return State{
		Position:       b.Position,
		Velocity:       b.Velocity,
		TargetVelocity: b.TargetVelocity,
		GroundNormal:   b.GroundNormal,
		Grounded:       b.grounded,
	}
}

// Restore loads a persisted state; used by snapshot import only.
func (b *Body) Restore(s State) {
	b.Position = s.Position
	b.Velocity = s.Velocity
	b.TargetVelocity = s.TargetVelocity
	b.GroundNormal = s.GroundNormal
	b.grounded = s.Grounded
}
