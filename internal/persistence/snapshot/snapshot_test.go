package snapshot

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "120.snap.zst")
	in := SnapshotV1{
		Header:        Header{Version: Version, LevelID: "arena", Tick: 120},
		Seed:          7,
		TickRate:      60,
		PhysicsHz:     50,
		ActivePlayers: 3,
		Accumulator:   0.004,
		RNG:           []byte{1, 2, 3, 4},
		Actors: []ActorV1{
			{Slot: 0, Active: true, IsCatcher: true, Pos: Vec2V1{X: 1, Y: 2}, StunnedUntil: 3.5, ControlManipulation: 2},
			{Slot: 1, Active: false},
		},
		Tokens: []TokenV1{{Index: 0, Pos: Vec2V1{X: -1, Y: 4}, RespawnAt: 10, Effect: 2}},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != in.Header {
		t.Fatalf("header=%+v", h)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("mismatch:\n%+v\n%+v", in, out)
	}
}

func TestReadSnapshotRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 99}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
