package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"tagarena.dev/internal/sim/round"
)

type serverDeps struct {
	runner  *round.Runner
	levelID string
	index   runtimeIndex
	ws      http.HandlerFunc
	admin   bool
}

func newMux(d serverDeps, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d)
	})

	if d.admin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/restart", adminControl(d, func(ctx context.Context, r *http.Request) (uint64, error) {
			return d.runner.Restart(ctx)
		}))
		mux.HandleFunc("/admin/v1/players", adminControl(d, func(ctx context.Context, r *http.Request) (uint64, error) {
			n, err := strconv.Atoi(r.URL.Query().Get("n"))
			if err != nil {
				return 0, fmt.Errorf("bad n: %w", err)
			}
			return d.runner.SetActivePlayers(ctx, n)
		}))
	} else {
		logger.Printf("admin endpoints disabled (TA_ENABLE_ADMIN_HTTP=false)")
	}
	if d.ws != nil {
		mux.HandleFunc("/v1/ws", d.ws)
	}
	return mux
}

func adminControl(d serverDeps, fn func(ctx context.Context, r *http.Request) (uint64, error)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := fn(ctx, r)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	}
}

func writeMetrics(rw http.ResponseWriter, d serverDeps) {
	st := d.runner.Stats()
	lv := d.levelID

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP tagarena_round_tick Current round tick.\n")
	fmt.Fprintf(rw, "# TYPE tagarena_round_tick gauge\n")
	fmt.Fprintf(rw, "tagarena_round_tick{level=%q} %d\n", lv, st.Tick.Load())

	fmt.Fprintf(rw, "# HELP tagarena_catches_total Role transfers since start.\n")
	fmt.Fprintf(rw, "# TYPE tagarena_catches_total counter\n")
	fmt.Fprintf(rw, "tagarena_catches_total{level=%q} %d\n", lv, st.Catches.Load())

	fmt.Fprintf(rw, "# HELP tagarena_stuns_total Drop stuns since start.\n")
	fmt.Fprintf(rw, "# TYPE tagarena_stuns_total counter\n")
	fmt.Fprintf(rw, "tagarena_stuns_total{level=%q} %d\n", lv, st.Stuns.Load())

	fmt.Fprintf(rw, "# HELP tagarena_effects_total Token effects applied since start.\n")
	fmt.Fprintf(rw, "# TYPE tagarena_effects_total counter\n")
	fmt.Fprintf(rw, "tagarena_effects_total{level=%q} %d\n", lv, st.Effects.Load())

	fmt.Fprintf(rw, "# HELP tagarena_spectators Connected spectator sessions.\n")
	fmt.Fprintf(rw, "# TYPE tagarena_spectators gauge\n")
	fmt.Fprintf(rw, "tagarena_spectators{level=%q} %d\n", lv, st.Watchers.Load())

	fmt.Fprintf(rw, "# HELP tagarena_state_frames_dropped_total STATE frames dropped for slow spectators.\n")
	fmt.Fprintf(rw, "# TYPE tagarena_state_frames_dropped_total counter\n")
	fmt.Fprintf(rw, "tagarena_state_frames_dropped_total{level=%q} %d\n", lv, st.Dropped.Load())

	if d.index == nil {
		return
	}
	is := d.index.Stats()
	fmt.Fprintf(rw, "# HELP tagarena_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE tagarena_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "tagarena_index_queue_depth %d\n", is.QueueDepth)
	fmt.Fprintf(rw, "# HELP tagarena_index_dropped_total Index writes dropped under backpressure.\n")
	fmt.Fprintf(rw, "# TYPE tagarena_index_dropped_total counter\n")
	fmt.Fprintf(rw, "tagarena_index_dropped_total{kind=%q} %d\n", "tick", is.DropTickTotal)
	fmt.Fprintf(rw, "tagarena_index_dropped_total{kind=%q} %d\n", "event", is.DropEventTotal)
	fmt.Fprintf(rw, "tagarena_index_dropped_total{kind=%q} %d\n", "snapshot", is.DropSnapshotTotal)
	fmt.Fprintf(rw, "tagarena_index_dropped_total{kind=%q} %d\n", "round", is.DropRoundTotal)
}
