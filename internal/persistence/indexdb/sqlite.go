package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"tagarena.dev/internal/persistence/snapshot"
	"tagarena.dev/internal/sim/level"
	"tagarena.dev/internal/sim/round"
	"tagarena.dev/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index over the tick and event logs. Writes
// are queued and applied by one goroutine; the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropEvent    atomic.Uint64
	dropSnapshot atomic.Uint64
	dropRound    atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqEvent
	reqSnapshot
	reqRound
)

type req struct {
	kind reqKind

	tick     round.TickLogEntry
	event    round.Event
	snapshot snapshotRow
	round    roundRow
}

type snapshotRow struct {
	Tick          uint64
	Path          string
	Seed          int64
	LevelID       string
	ActivePlayers int
	Tokens        int
	TuningDigest  string
}

type roundRow struct {
	Tick       uint64
	Kind       string
	Players    int
	Seed       int64
	LevelID    string
	RecordedAt string
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropEventTotal    uint64
	DropSnapshotTotal uint64
	DropRoundTotal    uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			players INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			level_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (tick, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			inputs INTEGER NOT NULL,
			control TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			slot INTEGER NOT NULL,
			other INTEGER NOT NULL,
			effect TEXT,
			target TEXT,
			duration REAL,
			by_drop INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_tick ON events(type, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_slot_tick ON events(slot, tick);`,
		`CREATE VIEW IF NOT EXISTS catches AS
			SELECT tick, slot AS caught, other AS catcher, by_drop FROM events WHERE type = 'caught';`,
		`CREATE VIEW IF NOT EXISTS effects AS
			SELECT tick, slot AS collector, effect, target, duration FROM events WHERE type = 'effect_applied';`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			level_id TEXT NOT NULL,
			active_players INTEGER NOT NULL,
			tokens INTEGER NOT NULL,
			tuning_digest TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropEventTotal:    s.dropEvent.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropRoundTotal:    s.dropRound.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind.
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry round.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) WriteEvent(e round.Event) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqEvent, event: e}, &s.dropEvent)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	live := 0
	for _, t := range snap.Tokens {
		if !t.Collected {
			live++
		}
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:          snap.Header.Tick,
		Path:          path,
		Seed:          snap.Seed,
		LevelID:       snap.Header.LevelID,
		ActivePlayers: snap.ActivePlayers,
		Tokens:        live,
		TuningDigest:  snap.TuningDigest,
	}}, &s.dropSnapshot)
}

// RecordRound notes a round start: kind is "start", "restart" or "players".
func (s *SQLiteIndex) RecordRound(tick uint64, kind string, players int, seed int64, levelID string) {
	if s == nil || s.closed.Load() || kind == "" {
		return
	}
	s.enqueue(req{kind: reqRound, round: roundRow{
		Tick:       tick,
		Kind:       kind,
		Players:    players,
		Seed:       seed,
		LevelID:    levelID,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropRound)
}

// UpsertCatalogs stores the tuning and level specs the server actually runs with.
func (s *SQLiteIndex) UpsertCatalogs(levels *level.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, kv{name: "tuning", digest: tune.Digest(), json: b})
	}
	if levels != nil {
		specs := make([]level.Spec, 0, len(levels.ByID))
		for _, id := range levels.IDs() {
			specs = append(specs, levels.ByID[id])
		}
		if b, err := json.Marshal(specs); err == nil {
			rows = append(rows, kv{name: "levels", digest: levels.Digest, json: b})
		}
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,inputs,control,raw_json) VALUES(?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(tick,seq,type,slot,other,effect,target,duration,by_drop,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,level_id,active_players,tokens,tuning_digest) VALUES(?,?,?,?,?,?,?)`)
	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO rounds(tick,kind,players,seed,level_id,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertEvent, insertSnapshot, insertRound} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastEventTick uint64
		eventSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			raw, _ := json.Marshal(r.tick)
			var control any
			if r.tick.Control != nil {
				control = r.tick.Control.Kind
			}
			exec(insertTick, int64(r.tick.Tick), r.tick.Digest, len(r.tick.Inputs), control, string(raw))

		case reqEvent:
			e := r.event
			if e.Tick != lastEventTick {
				lastEventTick = e.Tick
				eventSeq = 0
			}
			seq := eventSeq
			eventSeq++
			raw, _ := json.Marshal(e)
			byDrop := 0
			if e.ByDrop {
				byDrop = 1
			}
			exec(insertEvent, int64(e.Tick), seq, string(e.Type), e.Slot, e.Other, e.Effect, e.Target, e.Duration, byDrop, string(raw))

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Seed, sn.LevelID, sn.ActivePlayers, sn.Tokens, sn.TuningDigest)

		case reqRound:
			ro := r.round
			exec(insertRound, int64(ro.Tick), ro.Kind, ro.Players, ro.Seed, ro.LevelID, ro.RecordedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
