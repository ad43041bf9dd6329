// Package token is the collectible pickups of a round and the weighted dispatcher
// that turns a collection into a timed effect on some set of players.
package token

import (
	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/rng"
	"tagarena.dev/internal/sim/tuning"
)

type Token struct {
	Index     int          `json:"index"`
	Position  mathx.Vec2   `json:"position"`
	Collected bool         `json:"collected"`
	RespawnAt float64      `json:"respawn_at"`
	Effect    actor.Effect `json:"effect"`
}

// Placer picks spawn positions; *level.Level satisfies it.
type Placer interface {
	RandomPoint(r rng.Source) (mathx.Vec2, bool)
}

// Collection is one token picked up this tick.
type Collection struct {
	Token       int
	Application Application
	Applied     bool
}

// Field owns every token of a round.
type Field struct {
	Tokens   []Token
	interval float64
	size     float64
	disp     *Dispatcher
}

// NewField creates count tokens due to spawn on the first tick. interval <= 0 uses
// the tuning default.
func NewField(count int, interval float64, tun *tuning.Tuning) *Field {
	if interval <= 0 {
		interval = tun.Tokens.RespawnInterval
	}
	f := &Field{interval: interval, size: tun.Tokens.Size, disp: NewDispatcher(tun)}
	for i := 0; i < count; i++ {
		f.Tokens = append(f.Tokens, Token{Index: i, Collected: true})
	}
	return f
}

func (f *Field) Dispatcher() *Dispatcher { return f.disp }

// Box is the pickup area of a token, centred on its position.
func (f *Field) Box(t Token) mathx.AABB {
	h := f.size / 2
	return mathx.AABB{Min: t.Position.Sub(mathx.V(h, h)), Max: t.Position.Add(mathx.V(h, h))}
}

// Respawn relocates every token whose respawn time has come, with a fresh effect.
// Respawn is periodic: collection does not move RespawnAt. Tokens are left alone
// when the placer has no bounds.
func (f *Field) Respawn(now float64, placer Placer, r rng.Source) []int {
	var out []int
	for i := range f.Tokens {
		t := &f.Tokens[i]
		if t.RespawnAt > now || placer == nil {
			continue
		}
		p, ok := placer.RandomPoint(r)
		if !ok {
			continue
		}
		t.Position = p
		t.Collected = false
		t.Effect = f.disp.SpawnEffect(r)
		t.RespawnAt = now + f.interval
		out = append(out, i)
	}
	return out
}

// Collect hands each visible token to the lowest-slot active actor touching it.
func (f *Field) Collect(actors []*actor.Actor, now float64, r rng.Source) []Collection {
	var out []Collection
	for i := range f.Tokens {
		t := &f.Tokens[i]
		if t.Collected {
			continue
		}
		box := f.Box(*t)
		for _, a := range actors {
			if !a.Active || !a.Bounds().Overlaps(box) {
				continue
			}
			t.Collected = true
			app, ok := f.disp.Dispatch(a, t.Effect, actors, now, r)
			out = append(out, Collection{Token: i, Application: app, Applied: ok})
			break
		}
	}
	return out
}

// Restore replaces token state from a snapshot.
func (f *Field) Restore(tokens []Token) {
	f.Tokens = append(f.Tokens[:0], tokens...)
}
