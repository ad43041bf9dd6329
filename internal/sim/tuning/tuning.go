package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds every gameplay constant of a round. Times are seconds of sim time,
// speeds are world units per second.
type Tuning struct {
	TickRateHz         int `yaml:"tick_rate_hz"`
	PhysicsHz          int `yaml:"physics_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	MinPlayers    int `yaml:"min_players"`
	MaxPlayers    int `yaml:"max_players"`
	ActivePlayers int `yaml:"active_players"`

	Physics  Physics  `yaml:"physics"`
	Movement Movement `yaml:"movement"`
	Jump     Jump     `yaml:"jump"`
	Drop     Drop     `yaml:"drop"`
	Catch    Catch    `yaml:"catch"`
	Tokens   Tokens   `yaml:"tokens"`
	Teleport Teleport `yaml:"teleport"`
}

type Physics struct {
	Gravity          float64 `yaml:"gravity"`
	GravityModifier  float64 `yaml:"gravity_modifier"`
	MinGroundNormalY float64 `yaml:"min_ground_normal_y"`
	ShellRadius      float64 `yaml:"shell_radius"`
	MinMoveDistance  float64 `yaml:"min_move_distance"`
}

type Movement struct {
	MaxSpeed            float64 `yaml:"max_speed"`
	CatcherSpeedBonus   float64 `yaml:"catcher_speed_bonus"`
	HorizontalAccel     float64 `yaml:"horizontal_accel"`
	StopAccelFactor     float64 `yaml:"stop_accel_factor"`
	SlipperyAccelFactor float64 `yaml:"slippery_accel_factor"`
	InputDeadZone       float64 `yaml:"input_dead_zone"`
	BodyWidth           float64 `yaml:"body_width"`
	BodyHeight          float64 `yaml:"body_height"`
	CatcherScale        float64 `yaml:"catcher_scale"`
}

type Jump struct {
	TakeoffSpeed     float64 `yaml:"takeoff_speed"`
	JumpModifier     float64 `yaml:"jump_modifier"`
	JumpDeceleration float64 `yaml:"jump_deceleration"`
	Threshold        float64 `yaml:"threshold"`
	Cooldown         float64 `yaml:"cooldown"`
	CatcherAirJumps  int     `yaml:"catcher_air_jumps"`
	VariableHeight   bool    `yaml:"variable_height"`
}

type Drop struct {
	Threshold       float64 `yaml:"threshold"`
	Lockout         float64 `yaml:"lockout"`
	SpeedFactor     float64 `yaml:"speed_factor"`
	HorizontalBoost float64 `yaml:"horizontal_boost"`
	StunPeriod      float64 `yaml:"stun_period"`
	HitStunFactor   float64 `yaml:"hit_stun_factor"`
	RestunFactor    float64 `yaml:"restun_factor"`
	SelfStunFactor  float64 `yaml:"self_stun_factor"`
	BoxHeight       float64 `yaml:"box_height"`
}

type Catch struct {
	GraceSeconds    float64 `yaml:"grace_seconds"`
	TeleportOnCatch bool    `yaml:"teleport_on_catch"`
	BoxMargin       float64 `yaml:"box_margin"`
}

// EffectWeights is the spawn table for a token's effect. Field order is the scan order.
type EffectWeights struct {
	FlipControls int `yaml:"flip_controls"`
	Stun         int `yaml:"stun"`
	Slippery     int `yaml:"slippery"`
}

type EffectDurations struct {
	FlipControls float64 `yaml:"flip_controls"`
	Stun         float64 `yaml:"stun"`
	Slippery     float64 `yaml:"slippery"`
}

// TargetWeights is the base table used when a non-catcher collects a token.
type TargetWeights struct {
	NonCatchers int `yaml:"non_catchers"`
	Nobody      int `yaml:"nobody"`
	Catcher     int `yaml:"catcher"`
}

type FlipVariantWeights struct {
	Flipped     int `yaml:"flipped"`
	RotateLeft  int `yaml:"rotate_left"`
	RotateRight int `yaml:"rotate_right"`
}

type Tokens struct {
	EffectWeights   EffectWeights      `yaml:"effect_weights"`
	Durations       EffectDurations    `yaml:"durations"`
	TargetWeights   TargetWeights      `yaml:"target_weights"`
	FlipVariants    FlipVariantWeights `yaml:"flip_variants"`
	RespawnInterval float64            `yaml:"respawn_interval"`
	Size            float64            `yaml:"size"`

	// Catcher tenure (seconds since the catcher took the role) drives dynamic balancing.
	TenureCap         float64 `yaml:"tenure_cap"`
	TenureMaxFactor   float64 `yaml:"tenure_max_factor"`
	TenureNobodyGain  int     `yaml:"tenure_nobody_gain"`
	TenureCatcherGain int     `yaml:"tenure_catcher_gain"`

	OvertimeStart    float64 `yaml:"overtime_start"`
	OvertimeCap      float64 `yaml:"overtime_cap"`
	OvertimeScale    float64 `yaml:"overtime_scale"`
	OvertimeFlipGain float64 `yaml:"overtime_flip_gain"`
}

type Teleport struct {
	Cooldown float64 `yaml:"cooldown"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         60,
		PhysicsHz:          50,
		SnapshotEveryTicks: 3600,

		MinPlayers:    2,
		MaxPlayers:    4,
		ActivePlayers: 4,

		Physics: Physics{
			Gravity:          -9.81,
			GravityModifier:  1,
			MinGroundNormalY: 0.65,
			ShellRadius:      0.01,
			MinMoveDistance:  0.001,
		},
		Movement: Movement{
			MaxSpeed:            3,
			CatcherSpeedBonus:   1,
			HorizontalAccel:     4,
			StopAccelFactor:     3,
			SlipperyAccelFactor: 0.5,
			InputDeadZone:       0.01,
			BodyWidth:           0.4,
			BodyHeight:          0.6,
			CatcherScale:        1.375,
		},
		Jump: Jump{
			TakeoffSpeed:     6.2,
			JumpModifier:     1.5,
			JumpDeceleration: 0.5,
			Threshold:        0.2,
			Cooldown:         0.25,
			CatcherAirJumps:  3,
		},
		Drop: Drop{
			Threshold:       0.2,
			Lockout:         2,
			SpeedFactor:     2.5,
			HorizontalBoost: 2,
			StunPeriod:      2.5,
			HitStunFactor:   1.1,
			RestunFactor:    1.5,
			SelfStunFactor:  0.4,
			BoxHeight:       0.15,
		},
		Catch: Catch{
			GraceSeconds:    0.1,
			TeleportOnCatch: true,
			BoxMargin:       0.05,
		},
		Tokens: Tokens{
			EffectWeights:   EffectWeights{FlipControls: 30, Stun: 30, Slippery: 30},
			Durations:       EffectDurations{FlipControls: 7, Stun: 1.75, Slippery: 7},
			TargetWeights:   TargetWeights{NonCatchers: 60, Nobody: 20, Catcher: 20},
			FlipVariants:    FlipVariantWeights{Flipped: 20, RotateLeft: 40, RotateRight: 40},
			RespawnInterval: 10,
			Size:            0.3,

			TenureCap:         60,
			TenureMaxFactor:   2.5,
			TenureNobodyGain:  20,
			TenureCatcherGain: 40,

			OvertimeStart:    20,
			OvertimeCap:      50,
			OvertimeScale:    0.1,
			OvertimeFlipGain: 2,
		},
		Teleport: Teleport{Cooldown: 1},
	}
}

// Load reads a tuning file over Defaults() and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Digest identifies a tuning set; snapshots record it so a resume can warn on drift.
func (t Tuning) Digest() string {
	b, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (t Tuning) FixedDelta() float64 { return 1 / float64(t.PhysicsHz) }
func (t Tuning) FrameDelta() float64 { return 1 / float64(t.TickRateHz) }

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fieldErr("tick_rate_hz", "must be > 0")
	case t.PhysicsHz <= 0:
		return fieldErr("physics_hz", "must be > 0")
	case t.MinPlayers < 1:
		return fieldErr("min_players", "must be >= 1")
	case t.MaxPlayers < t.MinPlayers:
		return fieldErr("max_players", "must be >= min_players")
	}
	if err := t.CheckActivePlayers(t.ActivePlayers); err != nil {
		return err
	}
	switch {
	case t.Physics.Gravity >= 0:
		return fieldErr("physics.gravity", "must be negative (y is up)")
	case t.Physics.ShellRadius < 0:
		return fieldErr("physics.shell_radius", "must be >= 0")
	case t.Movement.BodyWidth <= 0 || t.Movement.BodyHeight <= 0:
		return fieldErr("movement.body_width/body_height", "must be > 0")
	case t.Movement.MaxSpeed <= 0:
		return fieldErr("movement.max_speed", "must be > 0")
	case t.Jump.CatcherAirJumps < 0:
		return fieldErr("jump.catcher_air_jumps", "must be >= 0")
	case t.Tokens.RespawnInterval <= 0:
		return fieldErr("tokens.respawn_interval", "must be > 0")
	case t.Tokens.TenureCap <= 0:
		return fieldErr("tokens.tenure_cap", "must be > 0")
	case t.Tokens.TenureMaxFactor < 1:
		return fieldErr("tokens.tenure_max_factor", "must be >= 1")
	}
	ew := t.Tokens.EffectWeights
	tw := t.Tokens.TargetWeights
	fw := t.Tokens.FlipVariants
	for _, w := range []int{ew.FlipControls, ew.Stun, ew.Slippery, tw.NonCatchers, tw.Nobody, tw.Catcher, fw.Flipped, fw.RotateLeft, fw.RotateRight} {
		if w < 0 {
			return fieldErr("tokens", "weights must be >= 0")
		}
	}
	d := t.Tokens.Durations
	if d.FlipControls < 0 || d.Stun < 0 || d.Slippery < 0 {
		return fieldErr("tokens.durations", "must be >= 0")
	}
	return nil
}

// CheckActivePlayers validates an active player count against the configured range.
func (t Tuning) CheckActivePlayers(n int) error {
	if n < t.MinPlayers || n > t.MaxPlayers {
		return fieldErr("active_players", fmt.Sprintf("%d outside [%d,%d]", n, t.MinPlayers, t.MaxPlayers))
	}
	return nil
}
