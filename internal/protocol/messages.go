package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Name            string            `json:"name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ParticipantID   string         `json:"participant_id"`
	TickRateHz      int            `json:"tick_rate_hz"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Session         SessionInfo    `json:"session"`
}

type CatalogDigests struct {
	TasksDigest  string `json:"tasks_digest"`
	TuningDigest string `json:"tuning_digest,omitempty"`
}

type SessionInfo struct {
	Running   bool   `json:"running"`
	SessionID string `json:"session_id,omitempty"`
}

// STATE (client -> server): the participant's self-reported pose and inventory.
type StateMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float64 `json:"pos"`
	Pitch           float64    `json:"pitch"`
	Yaw             float64    `json:"yaw"`
	OnGround        bool       `json:"on_ground"`
	Sneaking        bool       `json:"sneaking"`
	Sprinting       bool       `json:"sprinting"`
	MainHand        string     `json:"main_hand,omitempty"`
	OffHand         string     `json:"off_hand,omitempty"`
	Hotbar          []string   `json:"hotbar,omitempty"`
}

// Instant action types.
const (
	InstantSwapHands  = "SWAP_HANDS"
	InstantDropItem   = "DROP_ITEM"
	InstantPickupItem = "PICKUP_ITEM"
	InstantPlaceBlock = "PLACE_BLOCK"
	InstantBreakBlock = "BREAK_BLOCK"
)

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Instants        []InstantReq `json:"instants"`
}

type InstantReq struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Target [3]int `json:"target,omitempty"`
	Item   string `json:"item,omitempty"`
}

// ACK (server -> client), one per instant.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// Event kinds.
const (
	EventChat      = "CHAT"
	EventTitle     = "TITLE"
	EventCue       = "CUE"
	EventParticles = "PARTICLES"
	EventBar       = "BAR"
	EventBarClear  = "BAR_CLEAR"
	EventDamage    = "DAMAGE"
	EventEffect    = "EFFECT"
	EventBoundary  = "BOUNDARY"
	EventRespawn   = "RESPAWN"
	EventRing      = "RING"
)

// EVENT (server -> client). Fields are populated per Kind.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Kind            string `json:"kind"`

	Text     string `json:"text,omitempty"`
	Subtext  string `json:"subtext,omitempty"`
	Color    string `json:"color,omitempty"`
	SubColor string `json:"sub_color,omitempty"`
	FadeIn   int    `json:"fade_in,omitempty"`
	Stay     int    `json:"stay,omitempty"`
	FadeOut  int    `json:"fade_out,omitempty"`

	Sound  string  `json:"sound,omitempty"`
	Volume float64 `json:"volume,omitempty"`
	Pitch  float64 `json:"pitch,omitempty"`

	Particle string      `json:"particle,omitempty"`
	Pos      *[3]float64 `json:"pos,omitempty"`
	Count    int         `json:"count,omitempty"`
	Spread   float64     `json:"spread,omitempty"`
	Height   float64     `json:"height,omitempty"`
	Radius   float64     `json:"radius,omitempty"`
	Sections int         `json:"sections,omitempty"`

	Progress *float64 `json:"progress,omitempty"`

	Amount float64 `json:"amount,omitempty"`
	HP     float64 `json:"hp,omitempty"`

	Effect    string `json:"effect,omitempty"`
	Intensity int    `json:"intensity,omitempty"`
	Duration  int    `json:"duration_ticks,omitempty"`

	Size float64 `json:"size,omitempty"`
}
