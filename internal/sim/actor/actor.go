// Package actor is the per-player state of a round: the kinematic body, the jump
// state machine, horizontal intent and the timed effect fields.
package actor

import (
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/physics"
	"tagarena.dev/internal/sim/tuning"
)

type JumpState uint8

const (
	Grounded JumpState = iota
	PrepareToJump
	Jumping
	InFlight
	Landed
)

func (s JumpState) String() string {
	switch s {
	case Grounded:
		return "grounded"
	case PrepareToJump:
		return "prepare_to_jump"
	case Jumping:
		return "jumping"
	case InFlight:
		return "in_flight"
	case Landed:
		return "landed"
	}
	return "unknown"
}

// Input is one logic tick of analog axes, each in [-1,1].
type Input struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Actor struct {
	physics.Body

	Slot   int
	Active bool

	JumpState     JumpState
	IsCatcher     bool
	JumpStepCount int
	IsDropping    bool

	StunnedUntil             float64
	CatchableAfter           float64
	JumpableAfter            float64
	DroppableAfter           float64
	TeleportableAfter        float64
	SlipperyUntil            float64
	ControlManipulationUntil float64
	ControlManipulation      Manipulation
	CatcherLastOn            float64

	move     float64
	jump     bool
	stopJump bool
	jumpHeld bool

	tun *tuning.Tuning
}

func New(slot int, spawn mathx.Vec2, tun *tuning.Tuning) *Actor {
	a := &Actor{Slot: slot, tun: tun}
	a.Body = physics.NewBody(spawn, a.baseSize())
	return a
}

func (a *Actor) baseSize() mathx.Vec2 {
	return mathx.V(a.tun.Movement.BodyWidth, a.tun.Movement.BodyHeight)
}

// Reset returns the actor to its initial state at spawn. Every timestamp goes back
// to zero and the catcher role is cleared.
func (a *Actor) Reset(spawn mathx.Vec2) {
	slot, active, tun := a.Slot, a.Active, a.tun
	*a = Actor{Slot: slot, Active: active, tun: tun}
	a.Body = physics.NewBody(spawn, a.baseSize())
}

// MaxSpeed is the current horizontal speed cap including the catcher bonus.
func (a *Actor) MaxSpeed() float64 {
	if a.IsCatcher {
		return a.tun.Movement.MaxSpeed + a.tun.Movement.CatcherSpeedBonus
	}
	return a.tun.Movement.MaxSpeed
}

// Move is the accumulated horizontal intent in [-1,1].
func (a *Actor) Move() float64 { return a.move }

// MakeCatcher gives a the catcher role and unmakes previous, if any. The caller is
// responsible for relocating previous.
func (a *Actor) MakeCatcher(previous *Actor, now float64) {
	a.IsCatcher = true
	a.CatcherLastOn = now
	a.Size = a.baseSize().Scale(a.tun.Movement.CatcherScale)
	if previous != nil && previous != a {
		previous.UnmakeCatcher(now)
	}
}

// UnmakeCatcher drops the role and its perks and opens a short catch grace window.
func (a *Actor) UnmakeCatcher(now float64) {
	a.IsCatcher = false
	a.CatcherLastOn = now
	a.CatchableAfter = now + a.tun.Catch.GraceSeconds
	a.Size = a.baseSize()
}

// Teleport moves the actor and scales its velocity. Horizontal intent is kept so
// the player does not lose input continuity.
func (a *Actor) Teleport(pos, multiplier mathx.Vec2, now float64) {
	a.Body.Teleport(pos, multiplier)
	a.TeleportableAfter = now + a.tun.Teleport.Cooldown
}

// CatchBox is the catcher's catch sub-shape: the body inflated by a small margin.
func (a *Actor) CatchBox() mathx.AABB {
	return a.Bounds().Expand(a.tun.Catch.BoxMargin)
}

// DropBox is the ground-pound sub-shape straddling the feet.
func (a *Actor) DropBox() mathx.AABB {
	h := a.tun.Drop.BoxHeight
	half := a.Size.X / 2
	return mathx.AABB{
		Min: mathx.V(a.Position.X-half, a.Position.Y-h),
		Max: mathx.V(a.Position.X+half, a.Position.Y+h),
	}
}

// State is the persisted form of an Actor.
type State struct {
	Slot   int           `json:"slot"`
	Active bool          `json:"active"`
	Body   physics.State `json:"body"`
	Size   mathx.Vec2    `json:"size"`

	JumpState     JumpState `json:"jump_state"`
	IsCatcher     bool      `json:"is_catcher"`
	JumpStepCount int       `json:"jump_step_count"`
	IsDropping    bool      `json:"is_dropping"`

	StunnedUntil             float64      `json:"stunned_until"`
	CatchableAfter           float64      `json:"catchable_after"`
	JumpableAfter            float64      `json:"jumpable_after"`
	DroppableAfter           float64      `json:"droppable_after"`
	TeleportableAfter        float64      `json:"teleportable_after"`
	SlipperyUntil            float64      `json:"slippery_until"`
	ControlManipulationUntil float64      `json:"control_manipulation_until"`
	ControlManipulation      Manipulation `json:"control_manipulation"`
	CatcherLastOn            float64      `json:"catcher_last_on"`

	Move     float64 `json:"move"`
	JumpHeld bool    `json:"jump_held"`
}

func (a *Actor) State() State {
	return State{
		Slot:                     a.Slot,
		Active:                   a.Active,
		Body:                     a.Body.State(),
		Size:                     a.Size,
		JumpState:                a.JumpState,
		IsCatcher:                a.IsCatcher,
		JumpStepCount:            a.JumpStepCount,
		IsDropping:               a.IsDropping,
		StunnedUntil:             a.StunnedUntil,
		CatchableAfter:           a.CatchableAfter,
		JumpableAfter:            a.JumpableAfter,
		DroppableAfter:           a.DroppableAfter,
		TeleportableAfter:        a.TeleportableAfter,
		SlipperyUntil:            a.SlipperyUntil,
		ControlManipulationUntil: a.ControlManipulationUntil,
		ControlManipulation:      a.ControlManipulation,
		CatcherLastOn:            a.CatcherLastOn,
		Move:                     a.move,
		JumpHeld:                 a.jumpHeld,
	}
}

// Restore loads a persisted state. The tuning pointer is kept.
func (a *Actor) Restore(s State) {
	tun := a.tun
	*a = Actor{tun: tun}
	a.Slot = s.Slot
	a.Active = s.Active
	a.Body.Restore(s.Body)
	a.Size = s.Size
	a.JumpState = s.JumpState
	a.IsCatcher = s.IsCatcher
	a.JumpStepCount = s.JumpStepCount
	a.IsDropping = s.IsDropping
	a.StunnedUntil = s.StunnedUntil
	a.CatchableAfter = s.CatchableAfter
	a.JumpableAfter = s.JumpableAfter
	a.DroppableAfter = s.DroppableAfter
	a.TeleportableAfter = s.TeleportableAfter
	a.SlipperyUntil = s.SlipperyUntil
	a.ControlManipulationUntil = s.ControlManipulationUntil
	a.ControlManipulation = s.ControlManipulation
	a.CatcherLastOn = s.CatcherLastOn
	a.move = s.Move
	a.jumpHeld = s.JumpHeld
}
