package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "tagarena.dev/internal/persistence/log"
	"tagarena.dev/internal/persistence/snapshot"
	"tagarena.dev/internal/sim/bot"
	"tagarena.dev/internal/sim/level"
	"tagarena.dev/internal/sim/round"
	"tagarena.dev/internal/sim/tuning"
	"tagarena.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		levelID    = flag.String("level", level.DefaultID, "level id from <configs>/levels")
		players    = flag.Int("players", 0, "active players (default: tuning active_players)")
		seed       = flag.Int64("seed", 1337, "round seed (used only when starting a fresh round)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		bots       = flag.Bool("bots", true, "drive every slot with a bot controller")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (ticks, events, snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		maxSpectators = flag.Int("max_spectators", 256, "max concurrent spectator sessions (0 = unlimited)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	levels, err := level.LoadCatalog(filepath.Join(*configDir, "levels"))
	if err != nil {
		logger.Fatalf("load levels: %v", err)
	}
	lvl, err := levels.Get(*levelID)
	if err != nil {
		logger.Fatalf("level: %v", err)
	}

	roundDir := filepath.Join(*dataDir, "rounds", lvl.ID())
	_ = os.MkdirAll(roundDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(roundDir)
	}

	// Load tuning (required for a fresh round; optional for snapshot resumes).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		if os.IsNotExist(tuneErr) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
	}

	// Optional read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(roundDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(levels, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	r, err := round.New(round.Config{Tuning: tune, Level: lvl, Seed: *seed, ActivePlayers: *players})
	if err != nil {
		logger.Fatalf("round: %v", err)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.TuningDigest != "" && snap.TuningDigest != tune.Digest() {
			logger.Printf("snapshot was taken with different tuning (digest %.12s); replays across this point will not verify", snap.TuningDigest)
		}
		if err := r.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), r.CurrentTick())
	} else if idx != nil {
		idx.RecordRound(r.CurrentTick(), "start", r.ActiveCount(), r.Seed(), lvl.ID())
	}
	logger.Printf("round level=%s players=%d seed=%d tick_rate=%d physics_hz=%d", lvl.ID(), r.ActiveCount(), r.Seed(), tune.TickRateHz, tune.PhysicsHz)

	ctx, cancel := signalContext()
	defer cancel()

	meta := persistlog.Meta{LevelID: lvl.ID(), Seed: r.Seed(), TuningDigest: tune.Digest()}
	tickLog := persistlog.NewTickLogger(roundDir, meta)
	eventLog := persistlog.NewEventLogger(roundDir, meta)
	defer tickLog.Close()
	defer eventLog.Close()
	var idxTicks round.TickLogger
	var idxEvents round.EventLogger
	if idx != nil {
		idxTicks, idxEvents = idx, idx
	}
	r.SetTickLogger(multiTickLogger{a: tickLog, b: idxTicks, idx: idx, r: r, levelID: lvl.ID()})
	r.SetEventLogger(multiEventLogger{a: eventLog, b: idxEvents})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	r.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(roundDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	rn := round.NewRunner(r)
	if *bots {
		for _, a := range r.Actors() {
			rn.SetInputSource(a.Slot, bot.New(*seed+int64(a.Slot)+1))
		}
	}
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := rn.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("round stopped: %v", err)
		}
	}()

	wsSrv := ws.NewServer(rn, logger)
	wsSrv.MaxSpectators = *maxSpectators
	mux := newMux(serverDeps{
		runner:  rn,
		levelID: lvl.ID(),
		index:   idx,
		ws:      wsSrv.Handler(),
		admin:   envBool("TA_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
	}, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-runDone
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(roundDir string) string {
	dir := filepath.Join(roundDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
