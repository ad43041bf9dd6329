package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := []byte("tick_rate_hz: 30\njump:\n  catcher_air_jumps: 5\ntokens:\n  effect_weights:\n    stun: 0\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 30 || tu.Jump.CatcherAirJumps != 5 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.PhysicsHz != 50 || tu.Jump.TakeoffSpeed != 6.2 {
		t.Fatalf("defaults lost: physics_hz=%d takeoff=%v", tu.PhysicsHz, tu.Jump.TakeoffSpeed)
	}
	if tu.Tokens.EffectWeights.Stun != 0 || tu.Tokens.EffectWeights.FlipControls != 30 {
		t.Fatalf("weights=%+v", tu.Tokens.EffectWeights)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("want not-exist, got %v", err)
	}
}

func TestValidate_ActivePlayersOutOfRange(t *testing.T) {
	tu := Defaults()
	tu.ActivePlayers = 9
	err := tu.Validate()
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConfigError, got %v", err)
	}
	if ce.Field != "active_players" {
		t.Fatalf("field=%q", ce.Field)
	}
	if err := tu.CheckActivePlayers(2); err != nil {
		t.Fatalf("2 players should be valid: %v", err)
	}
	if err := tu.CheckActivePlayers(1); err == nil {
		t.Fatalf("1 player should be below min")
	}
}

func TestValidate_NegativeWeight(t *testing.T) {
	tu := Defaults()
	tu.Tokens.TargetWeights.Nobody = -1
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDigest_ChangesWithValues(t *testing.T) {
	a := Defaults()
	b := Defaults()
	if a.Digest() == "" || a.Digest() != b.Digest() {
		t.Fatalf("digest unstable: %q %q", a.Digest(), b.Digest())
	}
	b.Jump.TakeoffSpeed = 7
	if a.Digest() == b.Digest() {
		t.Fatalf("digest ignores takeoff speed")
	}
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, Defaults()) {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n%+v\n%+v", got, Defaults())
	}
	if got.Digest() != Defaults().Digest() {
		t.Fatalf("digest mismatch")
	}
}
