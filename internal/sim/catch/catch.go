// Package catch resolves actor contacts: catcher hand-off, ground-pound impacts on
// other actors and ground-pounds that end on level geometry.
package catch

import (
	"math"

	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/tuning"
)

// Solids answers static geometry overlap; *level.Level satisfies it.
type Solids interface {
	OverlapsSolid(box mathx.AABB) bool
}

type Kind uint8

const (
	Caught Kind = iota + 1
	DropHit
	DropSelfStun
	DropForgiven
)

func (k Kind) String() string {
	switch k {
	case Caught:
		return "caught"
	case DropHit:
		return "drop_hit"
	case DropSelfStun:
		return "drop_self_stun"
	case DropForgiven:
		return "drop_forgiven"
	}
	return "unknown"
}

// Outcome is one resolved contact. Target is -1 for geometry contacts.
type Outcome struct {
	Kind   Kind
	Source int
	Target int
	ByDrop bool
	Until  float64
}

type Resolver struct {
	tun *tuning.Tuning

	// Handoff performs a catcher transfer from one actor to another. When nil the
	// target simply takes the role with actor.MakeCatcher.
	Handoff func(o Outcome, to, from *actor.Actor)
}

func NewResolver(tun *tuning.Tuning) *Resolver { return &Resolver{tun: tun} }

func (r *Resolver) handoff(o Outcome, to, from *actor.Actor, now float64) {
	if r.Handoff != nil {
		r.Handoff(o, to, from)
		return
	}
	to.MakeCatcher(from, now)
}

// Resolve evaluates every currently overlapping pair among active actors. actors
// must be in slot order; lower slots are evaluated first and win simultaneous
// transfers. At most one catcher hand-off happens per call.
func (r *Resolver) Resolve(actors []*actor.Actor, now float64, solids Solids) []Outcome {
	var out []Outcome
	transferred := false

	for _, a := range actors {
		if !a.Active {
			continue
		}
		for _, b := range actors {
			if b == a || !b.Active {
				continue
			}
			if !transferred && r.catchByContact(a, b, now) {
				o := Outcome{Kind: Caught, Source: a.Slot, Target: b.Slot}
				r.handoff(o, b, a, now)
				transferred = true
				out = append(out, o)
			}
			if a.IsDropping && a.DropBox().Overlaps(b.Bounds()) {
				out = append(out, r.dropImpact(a, b, now))
				if !transferred && a.IsCatcher && b.IsCatchableByDrop(now) {
					o := Outcome{Kind: Caught, Source: a.Slot, Target: b.Slot, ByDrop: true}
					r.handoff(o, b, a, now)
					transferred = true
					out = append(out, o)
				}
			}
		}
		if o, ok := r.dropIntoGeometry(a, now, solids); ok {
			out = append(out, o)
		}
	}
	return out
}

func (r *Resolver) catchByContact(catcher, other *actor.Actor, now float64) bool {
	if !catcher.IsCatcher || catcher.IsStunned(now) {
		return false
	}
	if !catcher.CatchBox().Overlaps(other.Bounds()) {
		return false
	}
	return other.IsCatchable(now)
}

// dropImpact ends the drop and stuns the actor landed on. The stun applies whether
// or not the dropper is the catcher.
func (r *Resolver) dropImpact(dropper, other *actor.Actor, now float64) Outcome {
	d := r.tun.Drop
	dropper.EndDrop()
	if other.IsStunned(now) {
		other.StunnedUntil = math.Max(other.StunnedUntil, now+d.RestunFactor*d.StunPeriod)
	} else {
		other.StunnedUntil = now + d.HitStunFactor*d.StunPeriod
	}
	return Outcome{Kind: DropHit, Source: dropper.Slot, Target: other.Slot, Until: other.StunnedUntil}
}

func (r *Resolver) dropIntoGeometry(a *actor.Actor, now float64, solids Solids) (Outcome, bool) {
	if !a.IsDropping || !a.IsGrounded() || solids == nil {
		return Outcome{}, false
	}
	if !solids.OverlapsSolid(a.DropBox()) {
		return Outcome{}, false
	}
	a.EndDrop()
	if a.ForgivesDropPenalty(now) {
		return Outcome{Kind: DropForgiven, Source: a.Slot, Target: -1}, true
	}
	d := r.tun.Drop
	a.StunnedUntil = now + d.SelfStunFactor*d.StunPeriod
	return Outcome{Kind: DropSelfStun, Source: a.Slot, Target: -1, Until: a.StunnedUntil}, true
}
