package catch

import (
	"testing"

	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/tuning"
)

type solidStub bool

func (s solidStub) OverlapsSolid(mathx.AABB) bool { return bool(s) }

func setup(t *testing.T, pos ...mathx.Vec2) ([]*actor.Actor, *tuning.Tuning) {
	t.Helper()
	tun := tuning.Defaults()
	var out []*actor.Actor
	for i, p := range pos {
		a := actor.New(i, p, &tun)
		a.Active = true
		out = append(out, a)
	}
	return out, &tun
}

func ground(a *actor.Actor) {
	s := a.Body.State()
	s.Grounded = true
	a.Body.Restore(s)
}

func countCaught(out []Outcome) int {
	n := 0
	for _, o := range out {
		if o.Kind == Caught {
			n++
		}
	}
	return n
}

func TestCatchByContact(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.01), mathx.V(0.3, 0.01))
	a, b := as[0], as[1]
	a.MakeCatcher(nil, 0)
	r := NewResolver(tun)

	out := r.Resolve(as, 10, nil)
	if len(out) != 1 || out[0].Kind != Caught || out[0].Source != 0 || out[0].Target != 1 {
		t.Fatalf("outcomes=%+v", out)
	}
	if a.IsCatcher || !b.IsCatcher {
		t.Fatalf("role not transferred: a=%v b=%v", a.IsCatcher, b.IsCatcher)
	}
	if a.CatchableAfter != 10+tun.Catch.GraceSeconds {
		t.Fatalf("grace=%v", a.CatchableAfter)
	}

	// Still overlapping inside the grace window: no volley.
	if out := r.Resolve(as, 10.05, nil); countCaught(out) != 0 {
		t.Fatalf("caught inside grace window: %+v", out)
	}
	if out := r.Resolve(as, 10+tun.Catch.GraceSeconds, nil); countCaught(out) != 1 || !a.IsCatcher {
		t.Fatalf("expected re-catch after grace: %+v", out)
	}
}

func TestStunnedCatcherCannotCatch(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.01), mathx.V(0.3, 0.01))
	as[0].MakeCatcher(nil, 0)
	as[0].ApplyEffect(actor.Stun, actor.Normal, 5, 2)
	if out := NewResolver(tun).Resolve(as, 6, nil); countCaught(out) != 0 || !as[0].IsCatcher {
		t.Fatalf("stunned catcher caught: %+v", out)
	}
}

func TestDroppingActorIsNotCatchable(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.01), mathx.V(0.3, 0.01))
	as[0].MakeCatcher(nil, 0)
	as[1].IsDropping = true
	if out := NewResolver(tun).Resolve(as, 1, nil); countCaught(out) != 0 {
		t.Fatalf("dropping actor caught: %+v", out)
	}
}

func TestLowestSlotWinsSimultaneousContact(t *testing.T) {
	as, tun := setup(t, mathx.V(-0.3, 0.01), mathx.V(0, 0.01), mathx.V(0.3, 0.01), mathx.V(0.05, 0.3))
	as[1].MakeCatcher(nil, 0)
	out := NewResolver(tun).Resolve(as, 1, nil)
	if countCaught(out) != 1 {
		t.Fatalf("expected exactly one transfer: %+v", out)
	}
	if !as[0].IsCatcher {
		t.Fatalf("slot 0 should have been caught")
	}
	n := 0
	for _, a := range as {
		if a.IsCatcher {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("catchers=%d", n)
	}
}

func TestDropImpactStunsEvenWithoutCatcher(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.6), mathx.V(0, 0.01))
	dropper, target := as[0], as[1]
	dropper.IsDropping = true

	out := NewResolver(tun).Resolve(as, 3, nil)
	if dropper.IsDropping {
		t.Fatalf("drop should end on impact")
	}
	want := 3 + tun.Drop.HitStunFactor*tun.Drop.StunPeriod
	if target.StunnedUntil != want {
		t.Fatalf("stunnedUntil=%v want %v", target.StunnedUntil, want)
	}
	if len(out) != 1 || out[0].Kind != DropHit || out[0].Until != want {
		t.Fatalf("outcomes=%+v", out)
	}
	if target.IsCatcher || dropper.IsCatcher {
		t.Fatalf("no role change expected")
	}
}

func TestDropImpactRestunsLonger(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.6), mathx.V(0, 0.01))
	as[0].IsDropping = true
	as[1].StunnedUntil = 4
	NewResolver(tun).Resolve(as, 3, nil)
	want := 3 + tun.Drop.RestunFactor*tun.Drop.StunPeriod
	if as[1].StunnedUntil != want {
		t.Fatalf("stunnedUntil=%v want %v", as[1].StunnedUntil, want)
	}
}

func TestCatcherDropCatchesDroppingTarget(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.6), mathx.V(0, 0.01))
	as[0].MakeCatcher(nil, 0)
	as[0].IsDropping = true
	as[1].IsDropping = true

	out := NewResolver(tun).Resolve(as, 3, nil)
	if !as[1].IsCatcher || as[0].IsCatcher {
		t.Fatalf("ground-pound should catch: %+v", out)
	}
	var byDrop bool
	for _, o := range out {
		byDrop = byDrop || (o.Kind == Caught && o.ByDrop)
	}
	if !byDrop {
		t.Fatalf("expected a drop catch: %+v", out)
	}
}

func TestDropIntoGeometry(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.01))
	a := as[0]
	r := NewResolver(tun)

	a.IsDropping = true
	if out := r.Resolve(as, 1, solidStub(true)); len(out) != 0 || !a.IsDropping {
		t.Fatalf("airborne drop must not end on geometry: %+v", out)
	}

	ground(a)
	out := r.Resolve(as, 1, solidStub(true))
	want := 1 + tun.Drop.SelfStunFactor*tun.Drop.StunPeriod
	if a.IsDropping || a.StunnedUntil != want {
		t.Fatalf("dropping=%v stunnedUntil=%v want %v", a.IsDropping, a.StunnedUntil, want)
	}
	if len(out) != 1 || out[0].Kind != DropSelfStun || out[0].Target != -1 {
		t.Fatalf("outcomes=%+v", out)
	}
}

func TestDropIntoGeometryForgivenWhileDebuffed(t *testing.T) {
	for _, e := range []actor.Effect{actor.Slippery, actor.FlipControls} {
		as, tun := setup(t, mathx.V(0, 0.01))
		a := as[0]
		ground(a)
		a.IsDropping = true
		a.ApplyEffect(e, actor.Flipped, 0, 7)
		out := NewResolver(tun).Resolve(as, 1, solidStub(true))
		if a.IsDropping || a.StunnedUntil != 0 {
			t.Fatalf("%v: dropping=%v stunnedUntil=%v", e, a.IsDropping, a.StunnedUntil)
		}
		if len(out) != 1 || out[0].Kind != DropForgiven {
			t.Fatalf("%v: outcomes=%+v", e, out)
		}
	}
}

func TestInactiveActorsIgnored(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.01), mathx.V(0.3, 0.01))
	as[0].MakeCatcher(nil, 0)
	as[1].Active = false
	if out := NewResolver(tun).Resolve(as, 1, nil); len(out) != 0 {
		t.Fatalf("outcomes=%+v", out)
	}
}

func TestHandoffHookPerformsTransfer(t *testing.T) {
	as, tun := setup(t, mathx.V(0, 0.01), mathx.V(0.3, 0.01))
	as[0].MakeCatcher(nil, 0)
	r := NewResolver(tun)

	var got []Outcome
	r.Handoff = func(o Outcome, to, from *actor.Actor) {
		got = append(got, o)
		to.MakeCatcher(from, 10)
	}
	out := r.Resolve(as, 10, nil)
	if len(got) != 1 || got[0] != out[0] || got[0].Target != 1 {
		t.Fatalf("hook calls=%+v outcomes=%+v", got, out)
	}
	if !as[1].IsCatcher || as[0].IsCatcher {
		t.Fatalf("role not transferred through hook")
	}
}
