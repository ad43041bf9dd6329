package physics

import (
	"math"
	"testing"

	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/tuning"
)

const dt = 0.02

type casterFunc func(box mathx.AABB, dir mathx.Vec2, distance float64) []Hit

func (f casterFunc) Cast(box mathx.AABB, dir mathx.Vec2, distance float64) []Hit {
	return f(box, dir, distance)
}

// floorAt reports a flat floor at height y for downward casts.
func floorAt(y float64) casterFunc {
	return func(box mathx.AABB, dir mathx.Vec2, distance float64) []Hit {
		if dir.Y >= 0 {
			return nil
		}
		gap := box.Min.Y - y
		if gap < 0 || gap > distance*-dir.Y {
			return nil
		}
		return []Hit{{Normal: mathx.Up, Distance: gap / -dir.Y}}
	}
}

func testConfig() Config { return ConfigFrom(tuning.Defaults().Physics) }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAdvance_FreeFall(t *testing.T) {
	cfg := testConfig()
	b := NewBody(mathx.V(0, 5), mathx.V(0.4, 0.6))
	b.Advance(dt, cfg, floorAt(-100))

	wantVy := cfg.Gravity * dt
	if !near(b.Velocity.Y, wantVy) {
		t.Fatalf("vy=%v want %v", b.Velocity.Y, wantVy)
	}
	if !near(b.Position.Y, 5+wantVy*dt) {
		t.Fatalf("y=%v", b.Position.Y)
	}
	if b.IsGrounded() {
		t.Fatalf("free fall must not be grounded")
	}
}

func TestAdvance_FallingUsesGravityModifier(t *testing.T) {
	cfg := testConfig()
	cfg.GravityModifier = 2
	b := NewBody(mathx.V(0, 5), mathx.V(0.4, 0.6))

	b.Velocity.Y = 1
	b.Advance(dt, cfg, nil)
	if !near(b.Velocity.Y, 1+cfg.Gravity*dt) {
		t.Fatalf("rising vy=%v", b.Velocity.Y)
	}

	b.Velocity.Y = -1
	b.Advance(dt, cfg, nil)
	if !near(b.Velocity.Y, -1+2*cfg.Gravity*dt) {
		t.Fatalf("falling vy=%v", b.Velocity.Y)
	}
}

func TestAdvance_LandsAndStaysGrounded(t *testing.T) {
	cfg := testConfig()
	b := NewBody(mathx.V(0, 0.05), mathx.V(0.4, 0.6))
	b.Velocity.Y = -3

	b.Advance(dt, cfg, floorAt(0))
	if !b.IsGrounded() {
		t.Fatalf("expected grounded after landing")
	}
	if !near(b.Position.Y, cfg.ShellRadius) {
		t.Fatalf("landing y=%v want shell %v", b.Position.Y, cfg.ShellRadius)
	}
	if b.Velocity.Y != 0 {
		t.Fatalf("landing should cancel vertical velocity, vy=%v", b.Velocity.Y)
	}

	for i := 0; i < 20; i++ {
		b.Advance(dt, cfg, floorAt(0))
		if !b.IsGrounded() {
			t.Fatalf("step %d: lost ground", i)
		}
	}
	if b.Position.Y < 0 || b.Position.Y > cfg.ShellRadius+1e-9 {
		t.Fatalf("resting y drifted: %v", b.Position.Y)
	}
}

func TestAdvance_NoContactMeansAirborne(t *testing.T) {
	cfg := testConfig()
	b := NewBody(mathx.V(0, 1), mathx.V(0.4, 0.6))
	b.Advance(dt, cfg, floorAt(0))
	b.Advance(dt, cfg, casterFunc(func(mathx.AABB, mathx.Vec2, float64) []Hit { return nil }))
	if b.IsGrounded() {
		t.Fatalf("grounded without any contact")
	}
}

func TestAdvance_AirborneWallBonkCancelsHorizontal(t *testing.T) {
	cfg := testConfig()
	b := NewBody(mathx.V(0, 3), mathx.V(0.4, 0.6))
	b.TargetVelocity.X = 3
	vyBefore := b.Velocity.Y

	wall := casterFunc(func(box mathx.AABB, dir mathx.Vec2, distance float64) []Hit {
		if dir.X > 0 {
			return []Hit{{Normal: mathx.V(-1, 0), Distance: 0.02}}
		}
		return nil
	})
	b.Advance(dt, cfg, wall)

	if b.Velocity.X != 0 {
		t.Fatalf("vx=%v want 0", b.Velocity.X)
	}
	if !near(b.Position.X, 0.02-cfg.ShellRadius) {
		t.Fatalf("x=%v", b.Position.X)
	}
	if !near(b.Velocity.Y, vyBefore+cfg.Gravity*dt) {
		t.Fatalf("vertical velocity should be untouched by a wall bonk, vy=%v", b.Velocity.Y)
	}
}

func TestAdvance_SteepSlopeIsNotGround(t *testing.T) {
	cfg := testConfig()
	b := NewBody(mathx.V(0, 0.02), mathx.V(0.4, 0.6))
	steep := mathx.V(-0.8, 0.6)
	b.Advance(dt, cfg, casterFunc(func(box mathx.AABB, dir mathx.Vec2, distance float64) []Hit {
		if dir.Y < 0 {
			return []Hit{{Normal: steep, Distance: 0.015}}
		}
		return nil
	}))
	if b.IsGrounded() {
		t.Fatalf("normal.y=0.6 is below min ground normal, must not ground")
	}
}

func TestAdvance_WalkableSlopeAdoptsGroundNormal(t *testing.T) {
	cfg := testConfig()
	b := NewBody(mathx.V(0, 0.02), mathx.V(0.4, 0.6))
	slope := mathx.V(-0.6, 0.8)
	b.Advance(dt, cfg, casterFunc(func(box mathx.AABB, dir mathx.Vec2, distance float64) []Hit {
		if dir.Y < 0 {
			return []Hit{{Normal: slope, Distance: 0.015}}
		}
		return nil
	}))
	if !b.IsGrounded() {
		t.Fatalf("expected grounded on walkable slope")
	}
	if !b.GroundNormal.Equal(slope) {
		t.Fatalf("ground normal=%+v", b.GroundNormal)
	}

	// Next horizontal move follows the slope tangent (n.y, -n.x) = (0.8, 0.6).
	b.TargetVelocity.X = 1
	start := b.Position
	b.Advance(dt, cfg, nil)
	moved := b.Position.Sub(start)
	if moved.X <= 0 {
		t.Fatalf("expected movement along +x, got %+v", moved)
	}
}

func TestTeleport_ScalesVelocity(t *testing.T) {
	b := NewBody(mathx.V(0, 0), mathx.V(0.4, 0.6))
	b.Velocity = mathx.V(2, -4)
	b.Teleport(mathx.V(5, 5), mathx.V(1, 0.5))
	if !b.Position.Equal(mathx.V(5, 5)) || !b.Velocity.Equal(mathx.V(2, -2)) {
		t.Fatalf("teleport: pos=%+v vel=%+v", b.Position, b.Velocity)
	}
	b.Teleport(mathx.V(1, 1), mathx.Zero)
	if !b.Velocity.IsZero() {
		t.Fatalf("zero multiplier must hard stop, vel=%+v", b.Velocity)
	}
}

func TestStateRoundTrip(t *testing.T) {
	b := NewBody(mathx.V(0, 0.05), mathx.V(0.4, 0.6))
	b.Velocity.Y = -3
	b.Advance(dt, testConfig(), floorAt(0))

	var c Body
	c.Size = b.Size
	c.Restore(b.State())
	if c.IsGrounded() != b.IsGrounded() || !c.Position.Equal(b.Position) {
		t.Fatalf("restore mismatch: %+v vs %+v", c.State(), b.State())
	}
}
