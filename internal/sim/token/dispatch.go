package token

import (
	"math"

	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/rng"
	"tagarena.dev/internal/sim/tuning"
)

type Target uint8

const (
	TargetNonCatchers Target = iota
	TargetNobody
	TargetCatcher
)

func (t Target) String() string {
	switch t {
	case TargetNonCatchers:
		return "non_catchers"
	case TargetNobody:
		return "nobody"
	case TargetCatcher:
		return "catcher"
	}
	return "unknown"
}

// Application is the effect a collection ended up applying.
type Application struct {
	Collector int                `json:"collector"`
	Target    Target             `json:"target"`
	Effect    actor.Effect       `json:"effect"`
	Variant   actor.Manipulation `json:"variant"`
	Duration  float64            `json:"duration"`
	Slots     []int              `json:"slots,omitempty"`
}

type Dispatcher struct {
	tun *tuning.Tuning
}

func NewDispatcher(tun *tuning.Tuning) *Dispatcher { return &Dispatcher{tun: tun} }

// SpawnEffect samples the effect a freshly spawned token carries.
func (d *Dispatcher) SpawnEffect(r rng.Source) actor.Effect {
	w := d.tun.Tokens.EffectWeights
	return Pick([]Weighted[actor.Effect]{
		{actor.FlipControls, w.FlipControls},
		{actor.Stun, w.Stun},
		{actor.Slippery, w.Slippery},
	}, r)
}

func (d *Dispatcher) baseDuration(e actor.Effect) float64 {
	ds := d.tun.Tokens.Durations
	switch e {
	case actor.FlipControls:
		return ds.FlipControls
	case actor.Stun:
		return ds.Stun
	case actor.Slippery:
		return ds.Slippery
	}
	return 0
}

// tenureFraction maps catcher tenure onto [0,1].
func (d *Dispatcher) tenureFraction(tenure float64) float64 {
	return math.Max(0, math.Min(1, tenure/d.tun.Tokens.TenureCap))
}

// Overtime is how far past the overtime threshold the catcher has held the role.
func (d *Dispatcher) Overtime(tenure float64) float64 {
	t := d.tun.Tokens
	return math.Max(0, math.Min(t.OvertimeCap, tenure-t.OvertimeStart))
}

// TargetWeights is the target table for a non-catcher collection. The nobody and
// catcher buckets grow linearly with tenure.
func (d *Dispatcher) TargetWeights(tenure float64) []Weighted[Target] {
	t := d.tun.Tokens
	f := d.tenureFraction(tenure)
	return []Weighted[Target]{
		{TargetNonCatchers, t.TargetWeights.NonCatchers},
		{TargetNobody, t.TargetWeights.Nobody + int(math.Round(float64(t.TenureNobodyGain)*f))},
		{TargetCatcher, t.TargetWeights.Catcher + int(math.Round(float64(t.TenureCatcherGain)*f))},
	}
}

// VariantWeights is the FlipControls variant table; the fully flipped bucket grows
// with overtime.
func (d *Dispatcher) VariantWeights(overtime float64) []Weighted[actor.Manipulation] {
	t := d.tun.Tokens
	return []Weighted[actor.Manipulation]{
		{actor.Flipped, t.FlipVariants.Flipped + int(math.Round(t.OvertimeFlipGain*overtime))},
		{actor.RotateLeft, t.FlipVariants.RotateLeft},
		{actor.RotateRight, t.FlipVariants.RotateRight},
	}
}

// Dispatch resolves a collection by collector and applies the result to its targets.
// actors is the active set. ok is false when the chosen target set is empty.
func (d *Dispatcher) Dispatch(collector *actor.Actor, effect actor.Effect, actors []*actor.Actor, now float64, r rng.Source) (Application, bool) {
	app := Application{Collector: collector.Slot, Effect: effect, Variant: actor.Normal}
	base := d.baseDuration(effect)

	var catcher *actor.Actor
	var nonCatchers []*actor.Actor
	for _, a := range actors {
		if !a.Active {
			continue
		}
		if a.IsCatcher {
			catcher = a
		} else {
			nonCatchers = append(nonCatchers, a)
		}
	}

	overtime := 0.0
	if collector.IsCatcher {
		app.Target = TargetNonCatchers
		app.Duration = base
	} else {
		tenure := 0.0
		if catcher != nil {
			tenure = math.Max(0, now-catcher.CatcherLastOn)
		}
		app.Target = Pick(d.TargetWeights(tenure), r)
		switch app.Target {
		case TargetNonCatchers:
			scale := 1 + (d.tun.Tokens.TenureMaxFactor-1)*d.tenureFraction(tenure)
			app.Duration = base * scale
		case TargetCatcher:
			overtime = d.Overtime(tenure)
			app.Duration = base + d.tun.Tokens.OvertimeScale*overtime
		}
	}

	var targets []*actor.Actor
	switch app.Target {
	case TargetNonCatchers:
		targets = nonCatchers
	case TargetCatcher:
		if catcher != nil {
			targets = []*actor.Actor{catcher}
		}
	case TargetNobody:
		return app, true
	}
	if len(targets) == 0 {
		return app, false
	}

	if effect == actor.FlipControls {
		app.Variant = Pick(d.VariantWeights(overtime), r)
	}
	for _, a := range targets {
		a.ApplyEffect(effect, app.Variant, now, app.Duration)
		app.Slots = append(app.Slots, a.Slot)
	}
	return app, true
}
