package round

import "tagarena.dev/internal/sim/mathx"

type EventType string

const (
	EventJumped         EventType = "jumped"
	EventLanded         EventType = "landed"
	EventDropped        EventType = "dropped"
	EventCaught         EventType = "caught"
	EventStunned        EventType = "stunned"
	EventDropForgiven   EventType = "drop_forgiven"
	EventEffectApplied  EventType = "effect_applied"
	EventTokenCollected EventType = "token_collected"
	EventTokenSpawned   EventType = "token_spawned"
	EventTeleported     EventType = "teleported"
	EventRespawned      EventType = "respawned"
	EventRestarted      EventType = "restarted"
)

// Event is a fire-and-forget notification for observers. Slot is the actor the
// event is about; Other is the counterpart actor or -1.
type Event struct {
	Tick  uint64    `json:"tick"`
	Type  EventType `json:"type"`
	Slot  int       `json:"slot"`
	Other int       `json:"other"`

	Token    int         `json:"token,omitempty"`
	Effect   string      `json:"effect,omitempty"`
	Variant  string      `json:"variant,omitempty"`
	Target   string      `json:"target,omitempty"`
	Duration float64     `json:"duration,omitempty"`
	Until    float64     `json:"until,omitempty"`
	Slots    []int       `json:"slots,omitempty"`
	Pos      *mathx.Vec2 `json:"pos,omitempty"`
	ByDrop   bool        `json:"by_drop,omitempty"`
	Cause    string      `json:"cause,omitempty"`
}

func (r *Round) emit(e Event) {
	e.Tick = r.tick
	r.events = append(r.events, e)
}

// RecordedInput is a non-zero input as written to the tick log.
type RecordedInput struct {
	Slot int     `json:"slot"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type TickLogEntry struct {
	Tick    uint64          `json:"tick"`
	Now     float64         `json:"now"`
	Inputs  []RecordedInput `json:"inputs,omitempty"`
	Control *ControlRecord  `json:"control,omitempty"`
	Digest  string          `json:"digest"`
}

// ControlRecord is a restart or player-count change applied before the tick.
type ControlRecord struct {
	Kind    string `json:"kind"`
	Players int    `json:"players,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// EventLogger receives the gameplay audit trail (catches, stuns, effects).
type EventLogger interface {
	WriteEvent(e Event) error
}
