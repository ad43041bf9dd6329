package protocol

// STATE (server -> spectator), one per tick or every N ticks.
type StateMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Now             float64 `json:"now"`
	Catcher         int     `json:"catcher"`

	Actors []ActorView `json:"actors"`
	Tokens []TokenView `json:"tokens"`
	Events []Event     `json:"events"`
	Digest string      `json:"digest"`
}

type ActorView struct {
	Slot      int      `json:"slot"`
	Pos       Point    `json:"pos"`
	Vel       Point    `json:"vel"`
	Size      Point    `json:"size"`
	Grounded  bool     `json:"grounded"`
	JumpState string   `json:"jump_state"`
	IsCatcher bool     `json:"is_catcher"`
	Dropping  bool     `json:"dropping"`
	Status    []string `json:"status"`
}

type TokenView struct {
	Index  int    `json:"index"`
	Pos    Point  `json:"pos"`
	Effect string `json:"effect"`
}

type Event map[string]interface{}
