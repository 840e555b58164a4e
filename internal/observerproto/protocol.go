package observerproto

import (
	"simonzone.ai/internal/sim/session"
	"simonzone.ai/internal/sim/world"
)

// Version is the observer protocol version (separate from the participant WS
// protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
)

// Client -> Server. First message on the observer WS connection; re-sending it
// changes the frame interval.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IntervalMS      int    `json:"interval_ms"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string         `json:"protocol_version"`
	ArenaID         string         `json:"arena_id"`
	TickRateHz      int            `json:"tick_rate_hz"`
	Tick            uint64         `json:"tick"`
	Session         session.Status `json:"session"`
}

// Server -> Client, once per subscribed interval.
type FrameMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Tick            uint64             `json:"tick"`
	World           world.WorldMetrics `json:"world"`
	Session         session.Status     `json:"session"`
}
