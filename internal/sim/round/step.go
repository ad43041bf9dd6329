package round

import (
	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/catch"
)

// TickResult is what one Step produced.
type TickResult struct {
	Tick   uint64
	Now    float64
	Events []Event
	Digest string
}

// Step advances the round by one frame. inputs is indexed by slot; missing slots
// read as zero axes. Order: logic, physics, level triggers, tokens, contacts.
func (r *Round) Step(inputs []actor.Input) TickResult {
	nowTick := r.tick
	now := r.Now()
	dt := r.tun.FrameDelta()
	active := r.GetActivePlayers()

	recorded := make([]RecordedInput, 0, len(active))
	for _, a := range active {
		var in actor.Input
		if a.Slot < len(inputs) {
			in = inputs[a.Slot]
		}
		if in.X != 0 || in.Y != 0 {
			recorded = append(recorded, RecordedInput{Slot: a.Slot, X: in.X, Y: in.Y})
		}
		for _, n := range a.LogicTick(in, now, dt) {
			switch n {
			case actor.NoticeJumped:
				r.emit(Event{Type: EventJumped, Slot: a.Slot, Other: -1})
			case actor.NoticeLanded:
				r.emit(Event{Type: EventLanded, Slot: a.Slot, Other: -1})
			case actor.NoticeDropped:
				r.emit(Event{Type: EventDropped, Slot: a.Slot, Other: -1})
			}
		}
	}

	r.systemPhysics(active, dt)
	r.systemTriggers(active, now)
	r.systemTokens(active, now)
	r.systemContacts(active, now)

	digest := r.stateDigest(nowTick)
	res := TickResult{Tick: nowTick, Now: now, Events: r.events, Digest: digest}

	if r.tickLogger != nil {
		_ = r.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Now: now, Inputs: recorded, Control: r.control, Digest: digest})
	}
	if r.eventLogger != nil {
		for _, e := range r.events {
			if auditable(e.Type) {
				_ = r.eventLogger.WriteEvent(e)
			}
		}
	}

	r.control = nil
	r.events = nil
	r.tick++

	// Snapshots are taken between ticks; Header.Tick is the next tick to run.
	if every := uint64(r.tun.SnapshotEveryTicks); r.snapshotSink != nil && every > 0 && r.tick%every == 0 {
		snap := r.ExportSnapshot()
		select {
		case r.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}
	return res
}

func auditable(t EventType) bool {
	switch t {
	case EventCaught, EventStunned, EventDropForgiven, EventEffectApplied, EventTokenCollected, EventRestarted:
		return true
	}
	return false
}

func (r *Round) systemPhysics(active []*actor.Actor, dt float64) {
	fixed := r.tun.FixedDelta()
	r.acc += dt
	if limit := maxPhysicsSteps * fixed; r.acc > limit {
		r.acc = limit
	}
	for r.acc >= fixed {
		for _, a := range active {
			a.Advance(fixed, r.phys, r.lvl)
		}
		r.acc -= fixed
	}
}

func (r *Round) systemTriggers(active []*actor.Actor, now float64) {
	for _, a := range active {
		box := a.Bounds()
		if r.lvl.DeathZoneAt(box) {
			r.TeleportRandom(a)
			continue
		}
		if !a.CanTeleport(now) {
			continue
		}
		if tp, ok := r.lvl.TeleporterAt(box); ok {
			r.Teleport(a, tp.Destination, tp.Multiplier)
		}
	}
}

func (r *Round) systemTokens(active []*actor.Actor, now float64) {
	for _, i := range r.tokens.Respawn(now, r.lvl, r.rng) {
		t := r.tokens.Tokens[i]
		p := t.Position
		r.emit(Event{Type: EventTokenSpawned, Slot: -1, Other: -1, Token: i, Effect: t.Effect.String(), Pos: &p})
	}
	for _, c := range r.tokens.Collect(active, now, r.rng) {
		app := c.Application
		r.emit(Event{
			Type:   EventTokenCollected,
			Slot:   app.Collector,
			Other:  -1,
			Token:  c.Token,
			Effect: app.Effect.String(),
			Target: app.Target.String(),
		})
		if !c.Applied || len(app.Slots) == 0 {
			continue
		}
		e := Event{
			Type:     EventEffectApplied,
			Slot:     app.Collector,
			Other:    -1,
			Token:    c.Token,
			Effect:   app.Effect.String(),
			Target:   app.Target.String(),
			Duration: app.Duration,
			Until:    now + app.Duration,
			Slots:    app.Slots,
		}
		if app.Effect == actor.FlipControls {
			e.Variant = app.Variant.String()
		}
		r.emit(e)
	}
}

func (r *Round) systemContacts(active []*actor.Actor, now float64) {
	for _, o := range r.resolver.Resolve(active, now, r.lvl) {
		switch o.Kind {
		case catch.Caught:
			// Announced and applied by handoff during Resolve.
		case catch.DropHit:
			r.emit(Event{Type: EventStunned, Slot: o.Target, Other: o.Source, Until: o.Until, Cause: o.Kind.String()})
		case catch.DropSelfStun:
			r.emit(Event{Type: EventStunned, Slot: o.Source, Other: -1, Until: o.Until, Cause: o.Kind.String()})
		case catch.DropForgiven:
			r.emit(Event{Type: EventDropForgiven, Slot: o.Source, Other: -1})
		}
	}
}
