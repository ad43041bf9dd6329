package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "tagarena.dev/internal/persistence/log"
	"tagarena.dev/internal/persistence/snapshot"
	"tagarena.dev/internal/sim/actor"
	"tagarena.dev/internal/sim/level"
	"tagarena.dev/internal/sim/round"
	"tagarena.dev/internal/sim/tuning"
)

func main() {
	var (
		roundDir   = flag.String("round_dir", "", "round data dir containing ticks/ (e.g. ./data/rounds/arena)")
		snapPath   = flag.String("snapshot", "", "path to .snap.zst to start from (optional; default: fresh round from -seed)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml, falls back to defaults)")
		levelID    = flag.String("level", level.DefaultID, "level id (ignored with -snapshot)")
		seed       = flag.Int64("seed", 1337, "round seed (ignored with -snapshot)")
		players    = flag.Int("players", 0, "initial active players (ignored with -snapshot)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	var snap *snapshot.SnapshotV1
	if *snapPath != "" {
		s, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		snap = &s
		live := 0
		for _, t := range s.Tokens {
			if !t.Collected {
				live++
			}
		}
		fmt.Printf("snapshot v%d level=%s tick=%d seed=%d players=%d/%d tokens=%d/%d\n",
			s.Header.Version, s.Header.LevelID, s.Header.Tick, s.Seed, s.ActivePlayers, len(s.Actors), live, len(s.Tokens))
		*levelID = s.Header.LevelID
	}
	if *roundDir == "" {
		if snap != nil {
			return
		}
		fmt.Fprintln(os.Stderr, "missing -round_dir")
		os.Exit(2)
	}

	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	levels, err := level.LoadCatalog(filepath.Join(*configDir, "levels"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load levels:", err)
		os.Exit(1)
	}
	lvl, err := levels.Get(*levelID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "level:", err)
		os.Exit(1)
	}

	r, err := round.New(round.Config{Tuning: tune, Level: lvl, Seed: *seed, ActivePlayers: *players})
	if err != nil {
		fmt.Fprintln(os.Stderr, "round:", err)
		os.Exit(1)
	}
	if snap != nil {
		if snap.TuningDigest != "" && snap.TuningDigest != tune.Digest() {
			fmt.Fprintln(os.Stderr, "warning: tuning differs from the snapshot's; digests will not match")
		}
		if err := r.ImportSnapshot(*snap); err != nil {
			fmt.Fprintln(os.Stderr, "import snapshot:", err)
			os.Exit(1)
		}
	}

	if err := checkSegments(r, *roundDir); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	startTick := r.CurrentTick()
	checked, err := replay(r, *roundDir, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from tick=%d)\n", checked, startTick)
}

var errDone = errors.New("done")

// checkSegments rejects a tick log recorded for a different level or seed.
func checkSegments(r *round.Round, roundDir string) error {
	hs, err := persistlog.ReadHeaders(roundDir, "ticks")
	if err != nil {
		return err
	}
	for _, h := range hs {
		if h.LevelID != r.Level().ID() {
			return fmt.Errorf("segment at tick %d recorded on level %q, replaying %q", h.FirstTick, h.LevelID, r.Level().ID())
		}
		if h.Seed != r.Seed() {
			return fmt.Errorf("segment at tick %d recorded with seed %d, replaying seed %d", h.FirstTick, h.Seed, r.Seed())
		}
	}
	return nil
}

// replay re-steps r with the recorded inputs and control changes and compares
// every digest from verifyFrom on.
func replay(r *round.Round, roundDir string, verifyFrom, toTick uint64) (uint64, error) {
	startTick := r.CurrentTick()
	if verifyFrom < startTick {
		verifyFrom = startTick
	}
	slots := len(r.Actors())
	var checked uint64
	err := persistlog.ReadTicks(roundDir, func(entry round.TickLogEntry) error {
		if entry.Tick < startTick {
			return nil
		}
		if toTick != 0 && entry.Tick > toTick {
			return errDone
		}
		if entry.Tick != r.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", r.CurrentTick(), entry.Tick)
		}
		if entry.Control != nil {
			if err := r.ApplyControl(*entry.Control); err != nil {
				return fmt.Errorf("tick %d: %w", entry.Tick, err)
			}
		}
		inputs := make([]actor.Input, slots)
		for _, in := range entry.Inputs {
			if in.Slot >= 0 && in.Slot < slots {
				inputs[in.Slot] = actor.Input{X: in.X, Y: in.Y}
			}
		}
		res := r.Step(inputs)
		if res.Tick >= verifyFrom {
			checked++
			if res.Digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", res.Tick, res.Digest, entry.Digest)
			}
		}
		return nil
	})
	if errors.Is(err, errDone) {
		err = nil
	}
	if err == nil && checked == 0 {
		err = fmt.Errorf("no ticks at or after %d in %s", verifyFrom, roundDir)
	}
	return checked, err
}
