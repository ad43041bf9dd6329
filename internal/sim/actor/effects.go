package actor

import "tagarena.dev/internal/sim/mathx"

type Effect uint8

const (
	FlipControls Effect = iota
	Stun
	Slippery
)

func (e Effect) String() string {
	switch e {
	case FlipControls:
		return "flip_controls"
	case Stun:
		return "stun"
	case Slippery:
		return "slippery"
	}
	return "unknown"
}

// Manipulation is how raw axes are transformed while a control effect is active.
type Manipulation uint8

const (
	Normal Manipulation = iota
	Flipped
	RotateLeft
	RotateRight
)

func (m Manipulation) String() string {
	switch m {
	case Normal:
		return "normal"
	case Flipped:
		return "flipped"
	case RotateLeft:
		return "rotate_left"
	case RotateRight:
		return "rotate_right"
	}
	return "unknown"
}

// ApplyEffect sets the effect's expiry to now+duration. Re-applying overwrites the
// previous expiry, it never adds to it. variant is only read for FlipControls.
func (a *Actor) ApplyEffect(e Effect, variant Manipulation, now, duration float64) {
	until := now + duration
	switch e {
	case FlipControls:
		a.ControlManipulation = variant
		a.ControlManipulationUntil = until
	case Stun:
		a.StunnedUntil = until
	case Slippery:
		a.SlipperyUntil = until
	}
}

func (a *Actor) IsStunned(now float64) bool  { return now < a.StunnedUntil }
func (a *Actor) IsSlippery(now float64) bool { return now < a.SlipperyUntil }

// ActiveManipulation is Normal once the control effect has expired.
func (a *Actor) ActiveManipulation(now float64) Manipulation {
	if now < a.ControlManipulationUntil {
		return a.ControlManipulation
	}
	return Normal
}

// IsCatchable reports whether a regular catch may convert this actor.
func (a *Actor) IsCatchable(now float64) bool {
	return now >= a.CatchableAfter && !a.IsDropping
}

// IsCatchableByDrop ignores the actor's own drop, for ground-pound catches.
func (a *Actor) IsCatchableByDrop(now float64) bool {
	return now >= a.CatchableAfter
}

func (a *Actor) CanTeleport(now float64) bool { return now >= a.TeleportableAfter }

// ForgivesDropPenalty is true while another debuff is already slowing the player.
func (a *Actor) ForgivesDropPenalty(now float64) bool {
	return a.ActiveManipulation(now) != Normal || a.IsSlippery(now)
}

// ReadAxes turns raw input into the axes the logic tick acts on. Stun zeroes both
// axes; manipulation rotates or negates them; x is then quantised to -1, 0 or 1.
func (a *Actor) ReadAxes(in Input, now float64) (x, y float64) {
	if a.IsStunned(now) {
		return 0, 0
	}
	v := mathx.V(in.X, in.Y)
	switch a.ActiveManipulation(now) {
	case Flipped:
		v = v.Scale(-1)
	case RotateLeft:
		v = v.Rotate90(1)
	case RotateRight:
		v = v.Rotate90(-1)
	}
	dz := a.tun.Movement.InputDeadZone
	switch {
	case v.X < -dz:
		x = -1
	case v.X > dz:
		x = 1
	}
	return x, mathx.Clamp(v.Y, -1, 1)
}

// accel is the horizontal acceleration for this tick.
func (a *Actor) accel(now float64) float64 {
	acc := a.tun.Movement.HorizontalAccel
	if a.IsSlippery(now) {
		acc *= a.tun.Movement.SlipperyAccelFactor
	}
	return acc
}
