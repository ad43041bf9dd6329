package round

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tagarena.dev/internal/protocol"
	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/level"
	"tagarena.dev/internal/sim/tuning"
)

func testRunner(t *testing.T) *Runner {
	t.Helper()
	lvl, err := level.Build(level.DefaultSpec())
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	r, err := New(Config{Tuning: tuning.Defaults(), Level: lvl, Seed: 9, ActivePlayers: 2})
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	return NewRunner(r)
}

type constInput struct{ in actor.Input }

func (c constInput) Input(*Round, *actor.Actor) actor.Input { return c.in }

func TestEventsAfter_Pages(t *testing.T) {
	var ring []EventCursorItem
	for i := uint64(1); i <= 10; i++ {
		ring = append(ring, EventCursorItem{Cursor: i, Event: protocol.Event{"type": "jumped"}})
	}
	items, next := eventsAfter(ring, 0, 4)
	if len(items) != 4 || next != 4 {
		t.Fatalf("page 1: len=%d next=%d", len(items), next)
	}
	items, next = eventsAfter(ring, next, 100)
	if len(items) != 6 || next != 10 {
		t.Fatalf("page 2: len=%d next=%d", len(items), next)
	}
	items, next = eventsAfter(ring, next, 100)
	if len(items) != 0 || next != 10 {
		t.Fatalf("page 3: len=%d next=%d", len(items), next)
	}
}

func TestRunner_StepOnceBroadcastsState(t *testing.T) {
	rn := testRunner(t)
	rn.SetInputSource(0, constInput{in: actor.Input{X: 1}})

	out := make(chan []byte, 4)
	rn.handleJoin(SpectatorJoin{SessionID: "s1", Out: out, EveryTicks: 2, Resp: make(chan SpectatorWelcome, 1)})
	if rn.stats.Watchers.Load() != 1 {
		t.Fatalf("expected one watcher")
	}

	for i := 0; i < 4; i++ {
		rn.StepOnce()
	}
	if got := len(out); got != 2 {
		t.Fatalf("expected 2 frames at every_ticks=2, got %d", got)
	}
	var st protocol.StateMsg
	if err := json.Unmarshal(<-out, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Type != protocol.TypeState || st.Tick != 0 {
		t.Fatalf("unexpected frame: %+v", st)
	}
	if rn.r.Actor(0).Move() <= 0 {
		t.Fatalf("input source should have moved slot 0")
	}
	if rn.stats.Tick.Load() != 4 {
		t.Fatalf("tick stat=%d", rn.stats.Tick.Load())
	}

	rn.handleLeave("s1")
	n := 0
	for range out {
		n++
	}
	if n != 1 || rn.stats.Watchers.Load() != 0 {
		t.Fatalf("leave: drained=%d watchers=%d", n, rn.stats.Watchers.Load())
	}
}

func TestRunner_RunHandlesControl(t *testing.T) {
	rn := testRunner(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rn.Run(ctx) }()

	if _, err := rn.SetActivePlayers(ctx, 4); err != nil {
		t.Fatalf("set players: %v", err)
	}
	if _, err := rn.SetActivePlayers(ctx, 7); err == nil {
		t.Fatalf("expected error for 7 players")
	}
	if _, err := rn.Restart(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}

	out := make(chan []byte, 64)
	w, err := rn.JoinSpectator(ctx, SpectatorJoin{SessionID: "s", Out: out})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if w.Round.ActivePlayers != 4 || w.Round.LevelID != level.DefaultID {
		t.Fatalf("unexpected welcome: %+v", w.Round)
	}

	items, _, err := rn.EventsAfter(ctx, 0, 50)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	found := false
	for _, it := range items {
		if it.Event["type"] == string(EventRestarted) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected restarted event in ring, got %d items", len(items))
	}

	rn.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	for range out {
	}
}

func TestRunner_RequestsAfterCancelDoNotBlock(t *testing.T) {
	rn := testRunner(t)
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan error, 1)
	go func() { ran <- rn.Run(ctx) }()
	cancel()
	if err := <-ran; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
	select {
	case <-rn.Done():
	default:
		t.Fatalf("done not closed after Run returned")
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		// More leaves than the queue holds.
		for i := 0; i < 32; i++ {
			rn.LeaveSpectator("gone")
		}
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("LeaveSpectator blocked after shutdown")
	}

	bg := context.Background()
	if _, err := rn.JoinSpectator(bg, SpectatorJoin{SessionID: "late", Out: make(chan []byte, 1)}); !errors.Is(err, ErrStopped) {
		t.Fatalf("join after stop: %v", err)
	}
	if _, err := rn.Restart(bg); !errors.Is(err, ErrStopped) {
		t.Fatalf("restart after stop: %v", err)
	}
	if _, _, err := rn.EventsAfter(bg, 0, 10); !errors.Is(err, ErrStopped) {
		t.Fatalf("events after stop: %v", err)
	}
}
