package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	LevelID string `json:"level_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64   `json:"seed"`
	TickRate      int     `json:"tick_rate_hz"`
	PhysicsHz     int     `json:"physics_hz"`
	ActivePlayers int     `json:"active_players"`
	Accumulator   float64 `json:"accumulator"`
	TuningDigest  string  `json:"tuning_digest,omitempty"`

	// Serialized PCG state of the round's random source.
	RNG []byte `json:"rng"`

	Actors []ActorV1 `json:"actors"`
	Tokens []TokenV1 `json:"tokens"`
}

type Vec2V1 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ActorV1 struct {
	Slot   int  `json:"slot"`
	Active bool `json:"active"`

	Pos          Vec2V1  `json:"pos"`
	Vel          Vec2V1  `json:"vel"`
	TargetVel    Vec2V1  `json:"target_vel"`
	GroundNormal Vec2V1  `json:"ground_normal"`
	Size         Vec2V1  `json:"size"`
	Grounded     bool    `json:"grounded"`
	Move         float64 `json:"move"`
	JumpHeld     bool    `json:"jump_held,omitempty"`

	JumpState     uint8 `json:"jump_state"`
	IsCatcher     bool  `json:"is_catcher"`
	JumpStepCount int   `json:"jump_step_count"`
	IsDropping    bool  `json:"is_dropping"`

	StunnedUntil             float64 `json:"stunned_until"`
	CatchableAfter           float64 `json:"catchable_after"`
	JumpableAfter            float64 `json:"jumpable_after"`
	DroppableAfter           float64 `json:"droppable_after"`
	TeleportableAfter        float64 `json:"teleportable_after"`
	SlipperyUntil            float64 `json:"slippery_until"`
	ControlManipulationUntil float64 `json:"control_manipulation_until"`
	ControlManipulation      uint8   `json:"control_manipulation"`
	CatcherLastOn            float64 `json:"catcher_last_on"`
}

type TokenV1 struct {
	Index     int     `json:"index"`
	Pos       Vec2V1  `json:"pos"`
	Collected bool    `json:"collected"`
	RespawnAt float64 `json:"respawn_at"`
	Effect    uint8   `json:"effect"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadHeader returns only the JSON header line, for listing snapshots cheaply.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header is repeated inside the gob payload.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot version %d unsupported", snap.Header.Version)
	}
	return snap, nil
}
