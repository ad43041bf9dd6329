package round

import (
	"fmt"

	"tagarena.dev/internal/persistence/snapshot"
	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/physics"
	"tagarena.dev/internal/sim/token"
)

func vecV1(v mathx.Vec2) snapshot.Vec2V1    { return snapshot.Vec2V1{X: v.X, Y: v.Y} }
func vecFromV1(v snapshot.Vec2V1) mathx.Vec2 { return mathx.Vec2{X: v.X, Y: v.Y} }

// ExportSnapshot must be called from the goroutine that steps the round.
func (r *Round) ExportSnapshot() snapshot.SnapshotV1 {
	st, _ := r.rng.State()
	snap := snapshot.SnapshotV1{
		Header:        snapshot.Header{Version: snapshot.Version, LevelID: r.lvl.ID(), Tick: r.tick},
		Seed:          r.seed,
		TickRate:      r.tun.TickRateHz,
		PhysicsHz:     r.tun.PhysicsHz,
		ActivePlayers: r.active,
		Accumulator:   r.acc,
		TuningDigest:  r.tun.Digest(),
		RNG:           st,
	}
	for _, a := range r.actors {
		s := a.State()
		snap.Actors = append(snap.Actors, snapshot.ActorV1{
			Slot:                     s.Slot,
			Active:                   s.Active,
			Pos:                      vecV1(s.Body.Position),
			Vel:                      vecV1(s.Body.Velocity),
			TargetVel:                vecV1(s.Body.TargetVelocity),
			GroundNormal:             vecV1(s.Body.GroundNormal),
			Size:                     vecV1(s.Size),
			Grounded:                 s.Body.Grounded,
			Move:                     s.Move,
			JumpHeld:                 s.JumpHeld,
			JumpState:                uint8(s.JumpState),
			IsCatcher:                s.IsCatcher,
			JumpStepCount:            s.JumpStepCount,
			IsDropping:               s.IsDropping,
			StunnedUntil:             s.StunnedUntil,
			CatchableAfter:           s.CatchableAfter,
			JumpableAfter:            s.JumpableAfter,
			DroppableAfter:           s.DroppableAfter,
			TeleportableAfter:        s.TeleportableAfter,
			SlipperyUntil:            s.SlipperyUntil,
			ControlManipulationUntil: s.ControlManipulationUntil,
			ControlManipulation:      uint8(s.ControlManipulation),
			CatcherLastOn:            s.CatcherLastOn,
		})
	}
	for _, t := range r.tokens.Tokens {
		snap.Tokens = append(snap.Tokens, snapshot.TokenV1{
			Index:     t.Index,
			Pos:       vecV1(t.Position),
			Collected: t.Collected,
			RespawnAt: t.RespawnAt,
			Effect:    uint8(t.Effect),
		})
	}
	return snap
}

// ImportSnapshot replaces the round state. The round must have been built for the
// same level and player slot count.
func (r *Round) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("snapshot: unsupported version %d", snap.Header.Version)
	}
	if snap.Header.LevelID != r.lvl.ID() {
		return fmt.Errorf("snapshot: level %q, round runs %q", snap.Header.LevelID, r.lvl.ID())
	}
	if len(snap.Actors) != len(r.actors) {
		return fmt.Errorf("snapshot: %d actor slots, round has %d", len(snap.Actors), len(r.actors))
	}
	if err := r.tun.CheckActivePlayers(snap.ActivePlayers); err != nil {
		return err
	}
	if err := r.rng.Restore(snap.RNG); err != nil {
		return err
	}

	r.seed = snap.Seed
	r.tick = snap.Header.Tick
	r.acc = snap.Accumulator
	r.active = snap.ActivePlayers
	for i, v := range snap.Actors {
		r.actors[i].Restore(actor.State{
			Slot:   v.Slot,
			Active: v.Active,
			Body: physics.State{
				Position:       vecFromV1(v.Pos),
				Velocity:       vecFromV1(v.Vel),
				TargetVelocity: vecFromV1(v.TargetVel),
				GroundNormal:   vecFromV1(v.GroundNormal),
				Grounded:       v.Grounded,
			},
			Size:                     vecFromV1(v.Size),
			JumpState:                actor.JumpState(v.JumpState),
			IsCatcher:                v.IsCatcher,
			JumpStepCount:            v.JumpStepCount,
			IsDropping:               v.IsDropping,
			StunnedUntil:             v.StunnedUntil,
			CatchableAfter:           v.CatchableAfter,
			JumpableAfter:            v.JumpableAfter,
			DroppableAfter:           v.DroppableAfter,
			TeleportableAfter:        v.TeleportableAfter,
			SlipperyUntil:            v.SlipperyUntil,
			ControlManipulationUntil: v.ControlManipulationUntil,
			ControlManipulation:      actor.Manipulation(v.ControlManipulation),
			CatcherLastOn:            v.CatcherLastOn,
			Move:                     v.Move,
			JumpHeld:                 v.JumpHeld,
		})
	}
	tokens := make([]token.Token, 0, len(snap.Tokens))
	for _, t := range snap.Tokens {
		tokens = append(tokens, token.Token{
			Index:     t.Index,
			Position:  vecFromV1(t.Pos),
			Collected: t.Collected,
			RespawnAt: t.RespawnAt,
			Effect:    actor.Effect(t.Effect),
		})
	}
	r.tokens.Restore(tokens)
	r.events = nil
	r.control = nil
	return nil
}
