package main

import (
	"strings"
	"testing"

	"tagarena.dev/internal/protocol"
)

func TestSummary(t *testing.T) {
	st := &protocol.StateMsg{
		Tick:    90,
		Now:     1.5,
		Catcher: 1,
		Actors: []protocol.ActorView{
			{Slot: 0, Pos: protocol.Point{1, 0}, JumpState: "grounded"},
			{Slot: 1, Pos: protocol.Point{-2, 3.5}, JumpState: "in_flight", IsCatcher: true, Status: []string{"slippery"}},
		},
	}
	got := summary(st)
	for _, want := range []string{"t=90", "catcher=1", " 0 (1.0,0.0) grounded", "*1 (-2.0,3.5) in_flight [slippery]", "tokens=0"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary %q missing %q", got, want)
		}
	}
}

func TestDescribeEvent(t *testing.T) {
	if got := describeEvent(protocol.Event{"type": "caught", "slot": 2.0, "other": 0.0, "by_drop": true}); !strings.Contains(got, "(drop)") {
		t.Fatalf("caught: %q", got)
	}
	if got := describeEvent(protocol.Event{"type": "landed"}); got != "" {
		t.Fatalf("landed should be quiet, got %q", got)
	}
}
