package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"tagarena.dev/internal/persistence/indexdb"
	"tagarena.dev/internal/persistence/snapshot"
	"tagarena.dev/internal/sim/level"
	"tagarena.dev/internal/sim/round"
	"tagarena.dev/internal/sim/tuning"
)

type runtimeIndex interface {
	round.TickLogger
	round.EventLogger
	Close() error
	UpsertCatalogs(levels *level.Catalog, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordRound(tick uint64, kind string, players int, seed int64, levelID string)
	Stats() indexdb.Stats
}

func openRuntimeIndex(roundDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TA_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Printf("index backend disabled (TA_INDEX_BACKEND=%s)", backend)
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(roundDir, "index", "round.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported TA_INDEX_BACKEND: %s", backend)
	}
}

// multiTickLogger fans tick entries out to the JSONL log and the index, and notes
// round restarts in the index.
type multiTickLogger struct {
	a round.TickLogger
	b round.TickLogger

	idx     runtimeIndex
	r       *round.Round
	levelID string
}

func (m multiTickLogger) WriteTick(entry round.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	if m.idx != nil && m.r != nil && entry.Control != nil {
		m.idx.RecordRound(entry.Tick, entry.Control.Kind, m.r.ActiveCount(), m.r.Seed(), m.levelID)
	}
	return nil
}

type multiEventLogger struct {
	a round.EventLogger
	b round.EventLogger
}

func (m multiEventLogger) WriteEvent(e round.Event) error {
	if m.a != nil {
		_ = m.a.WriteEvent(e)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(e)
	}
	return nil
}
