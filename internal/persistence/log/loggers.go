package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"tagarena.dev/internal/sim/round"
)

// DefaultSegmentTicks is one hour of play at 60 Hz.
const DefaultSegmentTicks = 60 * 60 * 60

const headerKind = "segment"

// Meta identifies the round a stream belongs to. It is repeated as the header line
// of every segment so a segment can be checked on its own.
type Meta struct {
	LevelID      string
	Seed         int64
	TuningDigest string

	// SegmentTicks is the tick span of one file; 0 means DefaultSegmentTicks.
	SegmentTicks uint64
}

// SegmentHeader is the first line written to a segment each time it is opened.
type SegmentHeader struct {
	Kind         string `json:"kind"`
	Stream       string `json:"stream"`
	FirstTick    uint64 `json:"first_tick"`
	LevelID      string `json:"level_id"`
	Seed         int64  `json:"seed"`
	TuningDigest string `json:"tuning_digest,omitempty"`
	OpenedAt     string `json:"opened_at"`
}

// SegmentWriter appends JSON lines to zstd segments keyed by tick:
// <stream>-<first tick, 12 digits>.jsonl.zst under dir. A segment holds the ticks
// [first, first+SegmentTicks). Reopening an existing segment appends a new zstd frame.
type SegmentWriter struct {
	dir    string
	stream string
	meta   Meta
	span   uint64

	mu    sync.Mutex
	open  bool
	first uint64
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
}

func NewSegmentWriter(dir, stream string, meta Meta) *SegmentWriter {
	span := meta.SegmentTicks
	if span == 0 {
		span = DefaultSegmentTicks
	}
	return &SegmentWriter{dir: dir, stream: stream, meta: meta, span: span}
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v to the segment that owns tick.
func (w *SegmentWriter) Write(tick uint64, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if first := tick - tick%w.span; !w.open || first != w.first {
		if err := w.openLocked(first); err != nil {
			return err
		}
	}
	if err := w.lineLocked(v); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *SegmentWriter) lineLocked(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *SegmentWriter) openLocked(first uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(SegmentPath(w.dir, w.stream, first), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.first = first
	w.open = true

	return w.lineLocked(SegmentHeader{
		Kind:         headerKind,
		Stream:       w.stream,
		FirstTick:    first,
		LevelID:      w.meta.LevelID,
		Seed:         w.meta.Seed,
		TuningDigest: w.meta.TuningDigest,
		OpenedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (w *SegmentWriter) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.open = false
	return err
}

func SegmentPath(dir, stream string, first uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%012d.jsonl.zst", stream, first))
}

// TickLogger writes one entry per tick. With the first segment's header (level and
// seed) it is enough to replay a round.
type TickLogger struct{ w *SegmentWriter }

func NewTickLogger(roundDir string, meta Meta) *TickLogger {
	return &TickLogger{w: NewSegmentWriter(filepath.Join(roundDir, "ticks"), "ticks", meta)}
}

func (l *TickLogger) WriteTick(e round.TickLogEntry) error { return l.w.Write(e.Tick, e) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// EventLogger writes the gameplay audit trail: catches, stuns, effects.
type EventLogger struct{ w *SegmentWriter }

func NewEventLogger(roundDir string, meta Meta) *EventLogger {
	return &EventLogger{w: NewSegmentWriter(filepath.Join(roundDir, "events"), "events", meta)}
}

func (l *EventLogger) WriteEvent(e round.Event) error { return l.w.Write(e.Tick, e) }
func (l *EventLogger) Close() error                   { return l.w.Close() }
