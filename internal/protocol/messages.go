package protocol

// HELLO (spectator -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
	// Send one STATE every N ticks; 0 or 1 means every tick.
	EveryTicks int `json:"every_ticks,omitempty"`
}

// WELCOME (server -> spectator)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Round           RoundParams `json:"round"`
	Level           LevelView   `json:"level"`
}

type RoundParams struct {
	LevelID       string `json:"level_id"`
	TickRateHz    int    `json:"tick_rate_hz"`
	PhysicsHz     int    `json:"physics_hz"`
	Slots         int    `json:"slots"`
	ActivePlayers int    `json:"active_players"`
	Seed          int64  `json:"seed"`
	TuningDigest  string `json:"tuning_digest,omitempty"`
}

// LevelView is the static geometry a spectator needs to draw the arena.
type LevelView struct {
	Bounds      Box       `json:"bounds"`
	Solids      [][]Point `json:"solids"`
	Teleporters []Box     `json:"teleporters"`
	DeathZones  []Box     `json:"death_zones"`
}

type Point [2]float64

type Box struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// ERROR (server -> spectator), sent before a policy close.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
