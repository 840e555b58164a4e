// Package audit defines the durable record a session emits. Writers live in
// internal/persistence; the sim only depends on the Sink interface.
package audit

const (
	RoundStart = "ROUND_START"
	RoundEnd   = "ROUND_END"

	ZoneWait     = "ZONE_WAIT"
	ZoneShrink   = "ZONE_SHRINK"
	ZoneFinal    = "ZONE_FINAL"
	ZoneStopped  = "ZONE_STOPPED"
	SessionStart = "SESSION_START"
	SessionStop  = "SESSION_STOP"
)

type SessionEntry struct {
	Tick      uint64     `json:"tick"`
	SessionID string     `json:"session_id"`
	Kind      string     `json:"kind"`
	Center    [3]float64 `json:"center"`
	Actor     string     `json:"actor,omitempty"`
}

type RoundEntry struct {
	Tick      uint64 `json:"tick"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Round     int    `json:"round"`
	TaskID    string `json:"task_id"`
	Obey      bool   `json:"obey"`
	// ContradictionID is the decoy task drawn for this round, if any.
	ContradictionID string `json:"contradiction_id,omitempty"`
	Participants    int    `json:"participants"`
}

type OutcomeEntry struct {
	Tick          uint64   `json:"tick"`
	SessionID     string   `json:"session_id"`
	Round         int      `json:"round"`
	TaskID        string   `json:"task_id"`
	ParticipantID string   `json:"participant_id"`
	Success       bool     `json:"success"`
	Final         bool     `json:"final"` // judged by the end-of-round pass
	Buff          string   `json:"buff,omitempty"`
	Debuffs       []string `json:"debuffs,omitempty"`
}

type ZoneEntry struct {
	Tick      uint64  `json:"tick"`
	SessionID string  `json:"session_id"`
	Kind      string  `json:"kind"`
	Phase     int     `json:"phase"`
	Radius    float64 `json:"radius"`
	Target    float64 `json:"target"`
}

type Sink interface {
	WriteSession(SessionEntry) error
	WriteRound(RoundEntry) error
	WriteOutcome(OutcomeEntry) error
	WriteZone(ZoneEntry) error
}

// Multi fans entries out to every non-nil sink. Errors are ignored; the
// first writer is expected to be the durable one.
type Multi []Sink

func (m Multi) WriteSession(e SessionEntry) error {
	for _, s := range m {
		if s != nil {
			_ = s.WriteSession(e)
		}
	}
	return nil
}

func (m Multi) WriteRound(e RoundEntry) error {
	for _, s := range m {
		if s != nil {
			_ = s.WriteRound(e)
		}
	}
	return nil
}

func (m Multi) WriteOutcome(e OutcomeEntry) error {
	for _, s := range m {
		if s != nil {
			_ = s.WriteOutcome(e)
		}
	}
	return nil
}

func (m Multi) WriteZone(e ZoneEntry) error {
	for _, s := range m {
		if s != nil {
			_ = s.WriteZone(e)
		}
	}
	return nil
}

// Discard drops everything.
type Discard struct{}

func (Discard) WriteSession(SessionEntry) error { return nil }
func (Discard) WriteRound(RoundEntry) error     { return nil }
func (Discard) WriteOutcome(OutcomeEntry) error { return nil }
func (Discard) WriteZone(ZoneEntry) error       { return nil }

// Memory keeps entries in slices; tests use it to inspect what a session
// recorded.
type Memory struct {
	Sessions []SessionEntry
	Rounds   []RoundEntry
	Outcomes []OutcomeEntry
	Zones    []ZoneEntry
}

func (m *Memory) WriteSession(e SessionEntry) error { m.Sessions = append(m.Sessions, e); return nil }
func (m *Memory) WriteRound(e RoundEntry) error     { m.Rounds = append(m.Rounds, e); return nil }
func (m *Memory) WriteOutcome(e OutcomeEntry) error { m.Outcomes = append(m.Outcomes, e); return nil }
func (m *Memory) WriteZone(e ZoneEntry) error       { m.Zones = append(m.Zones, e); return nil }
