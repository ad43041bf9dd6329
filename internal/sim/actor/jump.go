package actor

import "math"

// Notice is a jump state transition worth telling observers about.
type Notice uint8

const (
	NoticeNone Notice = iota
	NoticeJumped
	NoticeLanded
	NoticeDropped
)

// CanJump applies the cooldown, the drop lock and the catcher's air-jump allowance.
func (a *Actor) CanJump(now float64) bool {
	if now < a.JumpableAfter || a.IsDropping {
		return false
	}
	if a.IsGrounded() {
		return true
	}
	return a.IsCatcher && a.JumpStepCount < a.tun.Jump.CatcherAirJumps
}

func (a *Actor) CanDrop(now float64) bool { return now >= a.DroppableAfter }

// LogicTick reads input, advances the jump state machine and writes the velocity
// the next physics step integrates. It runs once per frame before physics.
func (a *Actor) LogicTick(in Input, now, dt float64) []Notice {
	var notices []Notice
	dropped := false
	x, y := a.ReadAxes(in, now)
	a.updateIntent(x, now, dt)

	j := a.tun.Jump
	switch {
	case y > j.Threshold && a.CanJump(now):
		a.JumpState = PrepareToJump
	case y < -a.tun.Drop.Threshold && a.CanDrop(now):
		a.startDrop(now)
		dropped = true
		notices = append(notices, NoticeDropped)
	}
	if j.VariableHeight {
		held := y > j.Threshold
		if a.jumpHeld && !held && a.Velocity.Y > 0 {
			a.stopJump = true
		}
		a.jumpHeld = held
	}

	if n := a.updateJumpState(now); n != NoticeNone {
		notices = append(notices, n)
	}
	a.computeVelocity()
	if dropped {
		// Forward impulse for the frame the drop starts.
		a.TargetVelocity.X *= a.tun.Drop.HorizontalBoost
	}
	return notices
}

func (a *Actor) updateIntent(x, now, dt float64) {
	acc := a.accel(now)
	dz := a.tun.Movement.InputDeadZone
	if math.Abs(x) < dz {
		// Stopping decays faster than starting accelerates.
		stop := acc * a.tun.Movement.StopAccelFactor * dt
		switch {
		case a.move > dz:
			a.move = math.Max(0, a.move-stop)
		case a.move < -dz:
			a.move = math.Min(0, a.move+stop)
		default:
			a.move = 0
		}
		return
	}
	a.move += x * acc * dt
	a.move = math.Max(-1, math.Min(1, a.move))
}

func (a *Actor) startDrop(now float64) {
	d := a.tun.Drop
	a.IsDropping = true
	a.DroppableAfter = now + d.Lockout
	a.Velocity.Y = -d.SpeedFactor * a.tun.Jump.TakeoffSpeed * a.tun.Jump.JumpModifier
}

// EndDrop clears the ground-pound flag.
func (a *Actor) EndDrop() { a.IsDropping = false }

func (a *Actor) updateJumpState(now float64) Notice {
	a.jump = false
	switch a.JumpState {
	case PrepareToJump:
		a.JumpState = Jumping
		a.jump = true
		a.stopJump = false
		if a.IsGrounded() {
			a.JumpStepCount = 0
		}
		a.JumpStepCount++
		a.JumpableAfter = now + a.tun.Jump.Cooldown
	case Jumping:
		if !a.IsGrounded() {
			a.JumpState = InFlight
			return NoticeJumped
		}
	case InFlight:
		if a.IsGrounded() {
			a.JumpState = Landed
			return NoticeLanded
		}
	case Landed:
		a.JumpState = Grounded
		a.JumpStepCount = 0
	}
	return NoticeNone
}

func (a *Actor) computeVelocity() {
	j := a.tun.Jump
	if a.jump {
		a.Velocity.Y = j.TakeoffSpeed * j.JumpModifier
		a.jump = false
	} else if a.stopJump {
		a.stopJump = false
		if a.Velocity.Y > 0 {
			a.Velocity.Y *= j.JumpDeceleration
		}
	}
	a.TargetVelocity.X = a.move * a.MaxSpeed()
}
