package round

import (
	"tagarena.dev/internal/protocol"
	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/mathx"
)

func point(v mathx.Vec2) protocol.Point { return protocol.Point{v.X, v.Y} }

func box(b mathx.AABB) protocol.Box { return protocol.Box{Min: point(b.Min), Max: point(b.Max)} }

// LevelView is the static arena geometry sent in WELCOME.
func (r *Round) LevelView() protocol.LevelView {
	v := protocol.LevelView{
		Bounds:      box(r.lvl.Bounds()),
		Solids:      [][]protocol.Point{},
		Teleporters: []protocol.Box{},
		DeathZones:  []protocol.Box{},
	}
	for _, poly := range r.lvl.Outlines() {
		pts := make([]protocol.Point, 0, len(poly))
		for _, p := range poly {
			pts = append(pts, point(p))
		}
		v.Solids = append(v.Solids, pts)
	}
	for _, t := range r.lvl.Teleporters() {
		v.Teleporters = append(v.Teleporters, box(t.Area))
	}
	for _, z := range r.lvl.DeathZones() {
		v.DeathZones = append(v.DeathZones, box(z))
	}
	return v
}

func (r *Round) Params() protocol.RoundParams {
	return protocol.RoundParams{
		LevelID:       r.lvl.ID(),
		TickRateHz:    r.tun.TickRateHz,
		PhysicsHz:     r.tun.PhysicsHz,
		Slots:         len(r.actors),
		ActivePlayers: r.active,
		Seed:          r.seed,
		TuningDigest:  r.tun.Digest(),
	}
}

// BuildState renders the round after a Step for spectators. Call it from the
// goroutine that steps the round.
func (r *Round) BuildState(res TickResult) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            res.Tick,
		Now:             res.Now,
		Catcher:         -1,
		Actors:          make([]protocol.ActorView, 0, r.active),
		Tokens:          []protocol.TokenView{},
		Events:          make([]protocol.Event, 0, len(res.Events)),
		Digest:          res.Digest,
	}
	now := res.Now
	for _, a := range r.GetActivePlayers() {
		if a.IsCatcher {
			msg.Catcher = a.Slot
		}
		status := []string{}
		if a.IsStunned(now) {
			status = append(status, "stunned")
		}
		if a.IsSlippery(now) {
			status = append(status, "slippery")
		}
		if m := a.ActiveManipulation(now); m != actor.Normal {
			status = append(status, m.String())
		}
		msg.Actors = append(msg.Actors, protocol.ActorView{
			Slot:      a.Slot,
			Pos:       point(a.Position),
			Vel:       point(a.Velocity),
			Size:      point(a.Size),
			Grounded:  a.IsGrounded(),
			JumpState: a.JumpState.String(),
			IsCatcher: a.IsCatcher,
			Dropping:  a.IsDropping,
			Status:    status,
		})
	}
	for _, t := range r.tokens.Tokens {
		if t.Collected {
			continue
		}
		msg.Tokens = append(msg.Tokens, protocol.TokenView{Index: t.Index, Pos: point(t.Position), Effect: t.Effect.String()})
	}
	for _, e := range res.Events {
		msg.Events = append(msg.Events, EventView(e))
	}
	return msg
}

// EventView flattens an event into the wire map, dropping empty fields.
func EventView(e Event) protocol.Event {
	m := protocol.Event{"t": e.Tick, "type": string(e.Type)}
	if e.Slot >= 0 {
		m["slot"] = e.Slot
	}
	if e.Other >= 0 {
		m["other"] = e.Other
	}
	switch e.Type {
	case EventTokenSpawned, EventTokenCollected, EventEffectApplied:
		m["token"] = e.Token
	}
	if e.Effect != "" {
		m["effect"] = e.Effect
	}
	if e.Variant != "" {
		m["variant"] = e.Variant
	}
	if e.Target != "" {
		m["target"] = e.Target
	}
	if e.Duration != 0 {
		m["duration"] = e.Duration
	}
	if e.Until != 0 {
		m["until"] = e.Until
	}
	if len(e.Slots) > 0 {
		m["slots"] = e.Slots
	}
	if e.Pos != nil {
		m["pos"] = point(*e.Pos)
	}
	if e.ByDrop {
		m["by_drop"] = true
	}
	if e.Cause != "" {
		m["cause"] = e.Cause
	}
	return m
}
