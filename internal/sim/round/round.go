// Package round is one running tag game: the active players, the catcher role, the
// tokens and the fixed-order tick driver that advances them.
package round

import (
	"fmt"

	"tagarena.dev/internal/persistence/snapshot"
	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/catch"
	"tagarena.dev/internal/sim/level"
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/physics"
	"tagarena.dev/internal/sim/rng"
	"tagarena.dev/internal/sim/token"
	"tagarena.dev/internal/sim/tuning"
)

// Max fixed physics steps run in one frame; the accumulator is clamped beyond that.
const maxPhysicsSteps = 5

type Config struct {
	Tuning        tuning.Tuning
	Level         *level.Level
	Seed          int64
	ActivePlayers int
}

type Round struct {
	tun  *tuning.Tuning
	lvl  *level.Level
	seed int64
	rng  *rng.PCG
	phys physics.Config

	actors   []*actor.Actor
	active   int
	tokens   *token.Field
	resolver *catch.Resolver

	tick uint64
	acc  float64

	events  []Event
	control *ControlRecord

	tickLogger   TickLogger
	eventLogger  EventLogger
	snapshotSink chan<- snapshot.SnapshotV1
}

// New builds a round with MaxPlayers slots and runs the initial setup.
func New(cfg Config) (*Round, error) {
	if cfg.Level == nil {
		return nil, tuning.NewConfigError("level", "missing")
	}
	tun := cfg.Tuning
	if err := tun.Validate(); err != nil {
		return nil, err
	}
	n := cfg.ActivePlayers
	if n == 0 {
		n = tun.ActivePlayers
	}
	if err := tun.CheckActivePlayers(n); err != nil {
		return nil, err
	}

	r := &Round{
		tun:      &tun,
		lvl:      cfg.Level,
		seed:     cfg.Seed,
		rng:      rng.New(cfg.Seed),
		phys:     physics.ConfigFrom(tun.Physics),
		resolver: catch.NewResolver(&tun),
	}
	for i := 0; i < tun.MaxPlayers; i++ {
		r.actors = append(r.actors, actor.New(i, mathx.Vec2{}, r.tun))
	}
	r.resolver.Handoff = r.handoff
	r.tokens = token.NewField(cfg.Level.TokenCount(), cfg.Level.Spec().RespawnInterval, r.tun)
	r.setup(n)
	r.events = r.events[:0]
	return r, nil
}

func (r *Round) SetTickLogger(l TickLogger)                    { r.tickLogger = l }
func (r *Round) SetEventLogger(l EventLogger)                  { r.eventLogger = l }
func (r *Round) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { r.snapshotSink = ch }

func (r *Round) Tuning() *tuning.Tuning { return r.tun }
func (r *Round) Level() *level.Level    { return r.lvl }
func (r *Round) Seed() int64            { return r.seed }
func (r *Round) CurrentTick() uint64    { return r.tick }
func (r *Round) ActiveCount() int       { return r.active }
func (r *Round) Tokens() []token.Token  { return r.tokens.Tokens }

// Now is the sim time of the current tick; it is sampled once per tick.
func (r *Round) Now() float64 { return float64(r.tick) * r.tun.FrameDelta() }

// Actors returns every slot, active or not, in slot order.
func (r *Round) Actors() []*actor.Actor { return r.actors }

func (r *Round) Actor(slot int) *actor.Actor {
	if slot < 0 || slot >= len(r.actors) {
		return nil
	}
	return r.actors[slot]
}

// GetActivePlayers returns the active actors in slot order.
func (r *Round) GetActivePlayers() []*actor.Actor {
	out := make([]*actor.Actor, 0, r.active)
	for _, a := range r.actors {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

func (r *Round) GetNonCatchers() []*actor.Actor {
	var out []*actor.Actor
	for _, a := range r.actors {
		if a.Active && !a.IsCatcher {
			out = append(out, a)
		}
	}
	return out
}

// Catcher is nil only between rounds.
func (r *Round) Catcher() *actor.Actor {
	for _, a := range r.actors {
		if a.Active && a.IsCatcher {
			return a
		}
	}
	return nil
}

// Restart reactivates the configured active slots, resets every timestamp and
// selects a new catcher.
func (r *Round) Restart() {
	r.setup(r.active)
	r.control = &ControlRecord{Kind: "restart"}
}

// SetActivePlayerCount changes the active set and restarts the round.
func (r *Round) SetActivePlayerCount(n int) error {
	if err := r.tun.CheckActivePlayers(n); err != nil {
		return err
	}
	r.setup(n)
	r.control = &ControlRecord{Kind: "players", Players: n}
	return nil
}

// ApplyControl replays a recorded control change.
func (r *Round) ApplyControl(c ControlRecord) error {
	switch c.Kind {
	case "restart":
		r.Restart()
		return nil
	case "players":
		return r.SetActivePlayerCount(c.Players)
	}
	return fmt.Errorf("unknown control %q", c.Kind)
}

func (r *Round) setup(n int) {
	r.active = n
	for i, a := range r.actors {
		a.Active = i < n
		a.Reset(r.spawnPoint())
	}
	active := r.GetActivePlayers()
	if len(active) > 0 {
		c := active[r.rng.NextInt(len(active))]
		r.MakeCatcher(c, nil, false)
	}
	r.tokens = token.NewField(r.lvl.TokenCount(), r.lvl.Spec().RespawnInterval, r.tun)
	r.emit(Event{Type: EventRestarted, Slot: -1, Other: -1})
}

func (r *Round) spawnPoint() mathx.Vec2 {
	if p, ok := r.lvl.RandomPoint(r.rng); ok {
		return p
	}
	return r.lvl.Bounds().Center()
}

// MakeCatcher hands the role to a and relocates previous when teleport is set.
func (r *Round) MakeCatcher(a, previous *actor.Actor, teleport bool) {
	a.MakeCatcher(previous, r.Now())
	if previous != nil && previous != a && teleport {
		r.TeleportRandom(previous)
	}
}

// handoff is the resolver's catcher transfer: the catch is announced before the
// former catcher is relocated.
func (r *Round) handoff(o catch.Outcome, to, from *actor.Actor) {
	r.emit(Event{Type: EventCaught, Slot: o.Target, Other: o.Source, ByDrop: o.ByDrop})
	r.MakeCatcher(to, from, r.tun.Catch.TeleportOnCatch)
}

// UnmakeCatcher drops a's role and opens its catch grace window, relocating it when
// teleport is set.
func (r *Round) UnmakeCatcher(a *actor.Actor, teleport bool) {
	a.UnmakeCatcher(r.Now())
	if teleport {
		r.TeleportRandom(a)
	}
}

// Teleport moves a and scales its velocity, starting the teleport cooldown.
func (r *Round) Teleport(a *actor.Actor, pos, multiplier mathx.Vec2) {
	a.Teleport(pos, multiplier, r.Now())
	p := pos
	r.emit(Event{Type: EventTeleported, Slot: a.Slot, Other: -1, Pos: &p})
}

// TeleportRandom drops a at a random in-bounds point with zero velocity. It is a
// no-op when the level has no bounds.
func (r *Round) TeleportRandom(a *actor.Actor) bool {
	p, ok := r.lvl.RandomPoint(r.rng)
	if !ok {
		return false
	}
	a.Body.Teleport(p, mathx.Vec2{})
	r.emit(Event{Type: EventRespawned, Slot: a.Slot, Other: -1, Pos: &p})
	return true
}

// ApplyEffect applies e to a at the current tick time.
func (r *Round) ApplyEffect(a *actor.Actor, e actor.Effect, variant actor.Manipulation, duration float64) {
	a.ApplyEffect(e, variant, r.Now(), duration)
	r.emit(Event{Type: EventEffectApplied, Slot: a.Slot, Other: -1, Effect: e.String(), Variant: variant.String(), Duration: duration})
}
