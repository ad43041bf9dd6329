// Package bot has simple in-process controllers that fill empty slots: the catcher
// chases the nearest runner, runners flee the catcher and grab tokens when safe.
package bot

import (
	"math"

	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/rng"
	"tagarena.dev/internal/sim/round"
)

const (
	// Vertical gap before a chaser jumps or drops toward its target.
	climbGap = 0.6
	// Runners stop fleeing and go for tokens beyond this distance.
	safeDistance = 4.0
	// Distance from the bounds edge at which a runner turns around.
	wallMargin = 0.75
)

// Controller is a round.InputSource. Each controller has its own rng so bot choices
// never consume draws from the round's stream.
type Controller struct {
	rng      *rng.PCG
	hopEvery float64
	dir      float64
}

func New(seed int64) *Controller {
	return &Controller{rng: rng.New(seed), hopEvery: 0.03, dir: 1}
}

func (c *Controller) Input(r *round.Round, a *actor.Actor) actor.Input {
	if a.IsCatcher {
		return c.chase(r, a)
	}
	return c.flee(r, a)
}

func (c *Controller) chase(r *round.Round, a *actor.Actor) actor.Input {
	var target *actor.Actor
	best := math.Inf(1)
	for _, o := range r.GetNonCatchers() {
		if d := a.Position.Dist(o.Position); d < best {
			best, target = d, o
		}
	}
	if target == nil {
		return actor.Input{}
	}
	return c.toward(a, target.Position)
}

func (c *Controller) flee(r *round.Round, a *actor.Actor) actor.Input {
	catcher := r.Catcher()
	if catcher == nil {
		return c.wander(r, a)
	}
	if a.Position.Dist(catcher.Position) > safeDistance {
		if p, ok := nearestToken(r, a.Position); ok {
			return c.toward(a, p)
		}
		return c.wander(r, a)
	}
	in := actor.Input{X: sign(a.Position.X - catcher.Position.X)}
	if in.X == 0 {
		in.X = c.dir
	}
	b := r.Level().Bounds()
	if b.Valid() && (a.Position.X < b.Min.X+wallMargin && in.X < 0 || a.Position.X > b.Max.X-wallMargin && in.X > 0) {
		// Cornered: jump over the catcher.
		in.X = -in.X
		in.Y = 1
	}
	if c.rng.NextFloat(0, 1) < c.hopEvery {
		in.Y = 1
	}
	return in
}

func (c *Controller) wander(r *round.Round, a *actor.Actor) actor.Input {
	b := r.Level().Bounds()
	if b.Valid() {
		if a.Position.X < b.Min.X+wallMargin {
			c.dir = 1
		} else if a.Position.X > b.Max.X-wallMargin {
			c.dir = -1
		}
	}
	in := actor.Input{X: c.dir}
	if c.rng.NextFloat(0, 1) < c.hopEvery {
		in.Y = 1
	}
	return in
}

func (c *Controller) toward(a *actor.Actor, p mathx.Vec2) actor.Input {
	d := p.Sub(a.Position)
	in := actor.Input{X: sign(d.X)}
	switch {
	case d.Y > climbGap:
		in.Y = 1
	case d.Y < -climbGap && math.Abs(d.X) < a.Size.X:
		in.Y = -1
	}
	return in
}

func nearestToken(r *round.Round, from mathx.Vec2) (mathx.Vec2, bool) {
	best := math.Inf(1)
	var out mathx.Vec2
	ok := false
	for _, t := range r.Tokens() {
		if t.Collected {
			continue
		}
		if d := from.Dist(t.Position); d < best {
			best, out, ok = d, t.Position, true
		}
	}
	return out, ok
}

func sign(v float64) float64 {
	switch {
	case v > 0.05:
		return 1
	case v < -0.05:
		return -1
	}
	return 0
}
