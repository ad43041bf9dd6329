package token

import (
	"math"
	"testing"

	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/rng"
	"tagarena.dev/internal/sim/tuning"
)

// script replays fixed draws.
type script struct {
	ints []int
	i    int
}

func (s *script) NextInt(max int) int {
	v := s.ints[s.i%len(s.ints)]
	s.i++
	if v >= max {
		v = max - 1
	}
	return v
}

func (s *script) NextFloat(min, max float64) float64 { return min }

type placer struct {
	ok    bool
	calls int
}

func (p *placer) RandomPoint(rng.Source) (mathx.Vec2, bool) {
	p.calls++
	return mathx.V(float64(p.calls), 1), p.ok
}

func players(t *testing.T, tun *tuning.Tuning, n, catcher int, now float64) []*actor.Actor {
	t.Helper()
	var out []*actor.Actor
	for i := 0; i < n; i++ {
		a := actor.New(i, mathx.V(float64(i)*2, 0.01), tun)
		a.Active = true
		out = append(out, a)
	}
	if catcher >= 0 {
		out[catcher].MakeCatcher(nil, now)
	}
	return out
}

func TestPickConvergence(t *testing.T) {
	r := rng.New(42)
	table := []Weighted[int]{{0, 30}, {1, 30}, {2, 30}}
	const n = 100000
	var counts [3]int
	for i := 0; i < n; i++ {
		counts[Pick(table, r)]++
	}
	for i, c := range counts {
		if f := float64(c) / n; math.Abs(f-1.0/3) > 0.02 {
			t.Fatalf("bucket %d frequency %.4f", i, f)
		}
	}
}

func TestPickEdges(t *testing.T) {
	if got := Pick([]Weighted[string]{{"a", 30}, {"b", 30}}, &script{ints: []int{30}}); got != "a" {
		t.Fatalf("tie should favour earlier bucket, got %q", got)
	}
	if got := Pick([]Weighted[string]{{"a", 30}, {"b", 30}}, &script{ints: []int{31}}); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := Pick([]Weighted[string]{{"a", 0}, {"b", 10}}, &script{ints: []int{0}}); got != "b" {
		t.Fatalf("zero weight chosen: %q", got)
	}
	if got := Pick([]Weighted[string]{{"a", 0}, {"b", 0}}, &script{ints: []int{0}}); got != "b" {
		t.Fatalf("all-zero fallback: %q", got)
	}
	if got := Pick([]Weighted[string]{}, &script{ints: []int{0}}); got != "" {
		t.Fatalf("empty table: %q", got)
	}
}

func TestCatcherCollectsSlippery(t *testing.T) {
	tun := tuning.Defaults()
	as := players(t, &tun, 4, 1, 0)
	// Long tenure must not scale a catcher collection.
	now := 100.0
	app, ok := NewDispatcher(&tun).Dispatch(as[1], actor.Slippery, as, now, rng.New(1))
	if !ok || app.Target != TargetNonCatchers {
		t.Fatalf("app=%+v ok=%v", app, ok)
	}
	for _, a := range as {
		want := now + 7
		if a.IsCatcher {
			want = 0
		}
		if a.SlipperyUntil != want {
			t.Fatalf("slot %d slipperyUntil=%v want %v", a.Slot, a.SlipperyUntil, want)
		}
	}
	if len(app.Slots) != 3 {
		t.Fatalf("slots=%v", app.Slots)
	}
}

func TestNonCatcherTenureScaling(t *testing.T) {
	tun := tuning.Defaults()
	d := NewDispatcher(&tun)

	as := players(t, &tun, 3, 0, 0)
	app, _ := d.Dispatch(as[1], actor.Stun, as, 0, &script{ints: []int{0}})
	if app.Target != TargetNonCatchers || app.Duration != tun.Tokens.Durations.Stun {
		t.Fatalf("fresh catcher: %+v", app)
	}

	as = players(t, &tun, 3, 0, 0)
	app, _ = d.Dispatch(as[1], actor.Slippery, as, 60, &script{ints: []int{0}})
	if want := 7 * 2.5; math.Abs(app.Duration-want) > 1e-9 {
		t.Fatalf("capped tenure duration=%v want %v", app.Duration, want)
	}
	if as[2].SlipperyUntil != 60+app.Duration || as[0].SlipperyUntil != 0 {
		t.Fatalf("targets wrong: %v %v", as[2].SlipperyUntil, as[0].SlipperyUntil)
	}

	as = players(t, &tun, 3, 0, 0)
	app, _ = d.Dispatch(as[1], actor.Slippery, as, 30, &script{ints: []int{0}})
	if want := 7 * 1.75; math.Abs(app.Duration-want) > 1e-9 {
		t.Fatalf("half tenure duration=%v want %v", app.Duration, want)
	}
}

func TestNonCatcherTargetsCatcherWithOvertime(t *testing.T) {
	tun := tuning.Defaults()
	d := NewDispatcher(&tun)

	w := d.TargetWeights(70)
	if w[1].Weight != 40 || w[2].Weight != 60 {
		t.Fatalf("weights=%+v", w)
	}
	if got := d.Overtime(70); got != 50 {
		t.Fatalf("overtime=%v", got)
	}
	if got := d.Overtime(10); got != 0 {
		t.Fatalf("overtime=%v", got)
	}

	as := players(t, &tun, 3, 0, 0)
	// 159 of 160 lands in the catcher bucket, 0 picks the flipped variant.
	app, ok := d.Dispatch(as[1], actor.FlipControls, as, 70, &script{ints: []int{159, 0}})
	if !ok || app.Target != TargetCatcher {
		t.Fatalf("app=%+v", app)
	}
	if want := 7 + 0.1*50; math.Abs(app.Duration-want) > 1e-9 {
		t.Fatalf("duration=%v want %v", app.Duration, want)
	}
	if app.Variant != actor.Flipped || as[0].ActiveManipulation(70) != actor.Flipped {
		t.Fatalf("variant=%v", app.Variant)
	}
	if vw := d.VariantWeights(50); vw[0].Weight != 120 {
		t.Fatalf("flipped weight=%d", vw[0].Weight)
	}
}

func TestDegenerateTargetsSkipped(t *testing.T) {
	tun := tuning.Defaults()
	d := NewDispatcher(&tun)
	as := players(t, &tun, 2, -1, 0)
	// No catcher: the catcher bucket has nobody to hit.
	if _, ok := d.Dispatch(as[0], actor.Stun, as, 1, &script{ints: []int{99}}); ok {
		t.Fatalf("expected skip")
	}
	app, ok := d.Dispatch(as[0], actor.Stun, as, 1, &script{ints: []int{70}})
	if !ok || app.Target != TargetNobody || len(app.Slots) != 0 {
		t.Fatalf("nobody: %+v ok=%v", app, ok)
	}
	for _, a := range as {
		if a.StunnedUntil != 0 {
			t.Fatalf("nobody should be stunned")
		}
	}
}

func TestRespawnIdempotent(t *testing.T) {
	tun := tuning.Defaults()
	f := NewField(1, 0, &tun)
	p := &placer{ok: true}
	r := rng.New(3)

	if got := f.Respawn(0, p, r); len(got) != 1 {
		t.Fatalf("first spawn=%v", got)
	}
	if f.Tokens[0].Collected || f.Tokens[0].RespawnAt != tun.Tokens.RespawnInterval {
		t.Fatalf("token=%+v", f.Tokens[0])
	}
	if got := f.Respawn(0, p, r); len(got) != 0 || p.calls != 1 {
		t.Fatalf("relocated twice in one tick: %v calls=%d", got, p.calls)
	}

	f.Tokens[0].Collected = true
	if got := f.Respawn(5, p, r); len(got) != 0 {
		t.Fatalf("respawned early: %v", got)
	}
	if got := f.Respawn(10, p, r); len(got) != 1 || f.Tokens[0].Collected {
		t.Fatalf("periodic respawn failed: %v %+v", got, f.Tokens[0])
	}
	if !f.Tokens[0].Position.Equal(mathx.V(2, 1)) {
		t.Fatalf("position=%v", f.Tokens[0].Position)
	}
}

func TestRespawnWithoutBoundsIsSkipped(t *testing.T) {
	tun := tuning.Defaults()
	f := NewField(2, 4, &tun)
	if got := f.Respawn(0, &placer{ok: false}, rng.New(1)); len(got) != 0 {
		t.Fatalf("spawned without bounds: %v", got)
	}
	if !f.Tokens[0].Collected {
		t.Fatalf("token should stay hidden")
	}
	if got := f.Respawn(0, nil, rng.New(1)); len(got) != 0 {
		t.Fatalf("spawned without placer: %v", got)
	}
}

func TestCollectLowestSlot(t *testing.T) {
	tun := tuning.Defaults()
	as := players(t, &tun, 3, 2, 0)
	as[0].Position = mathx.V(5, 1)
	as[1].Position = mathx.V(5, 1)
	f := NewField(1, 0, &tun)
	f.Tokens[0] = Token{Position: mathx.V(5, 1.2), Effect: actor.Stun, RespawnAt: 10}

	got := f.Collect(as, 1, &script{ints: []int{0}})
	if len(got) != 1 || got[0].Application.Collector != 0 {
		t.Fatalf("collections=%+v", got)
	}
	if !f.Tokens[0].Collected || f.Tokens[0].RespawnAt != 10 {
		t.Fatalf("token=%+v", f.Tokens[0])
	}
	if again := f.Collect(as, 1, &script{ints: []int{0}}); len(again) != 0 {
		t.Fatalf("collected twice: %+v", again)
	}
}
