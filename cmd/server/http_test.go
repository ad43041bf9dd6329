package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tagarena.dev/internal/sim/level"
	"tagarena.dev/internal/sim/round"
	"tagarena.dev/internal/sim/tuning"
)

func testDeps(t *testing.T) (serverDeps, func()) {
	t.Helper()
	lvl, err := level.Build(level.DefaultSpec())
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	r, err := round.New(round.Config{Tuning: tuning.Defaults(), Level: lvl, Seed: 3, ActivePlayers: 2})
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	rn := round.NewRunner(r)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rn.Run(ctx) }()
	return serverDeps{runner: rn, levelID: lvl.ID(), admin: true}, cancel
}

func TestMux_HealthAndMetrics(t *testing.T) {
	d, stop := testDeps(t)
	defer stop()
	mux := newMux(d, log.New(io.Discard, "", 0))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{`tagarena_round_tick{level="arena"}`, "tagarena_catches_total", "tagarena_spectators"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "tagarena_index_queue_depth") {
		t.Fatalf("index metrics should be absent without an index")
	}
}

func TestMux_AdminIsLoopbackOnly(t *testing.T) {
	d, stop := testDeps(t)
	defer stop()
	mux := newMux(d, log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/restart", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote restart: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/restart", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET restart: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/restart", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("restart: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/players?n=9", nil)
	req.RemoteAddr = "[::1]:4000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "active_players") {
		t.Fatalf("players=9: %d %s", rec.Code, rec.Body.String())
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:80":  true,
		"[::1]:80":      true,
		"10.0.0.1:80":   false,
		"not-an-ip":     false,
		"localhost:80":  false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
}
