package indexdb

import (
	"context"
	"database/sql"
)

type ParticipantSummary struct {
	ParticipantID string `json:"participant_id"`
	Successes     int    `json:"successes"`
	Failures      int    `json:"failures"`
}

type Summary struct {
	Sessions   int `json:"sessions"`
	Rounds     int `json:"rounds"`
	Outcomes   int `json:"outcomes"`
	Successes  int `json:"successes"`
	Failures   int `json:"failures"`
	ZoneEvents int `json:"zone_events"`

	Participants []ParticipantSummary `json:"participants"`
}

// Summary aggregates everything indexed so far. Rows still queued in the
// writer are not visible.
func (s *SQLiteIndex) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	counts := []struct {
		q   string
		dst *int
	}{
		{`SELECT COUNT(*) FROM sessions`, &out.Sessions},
		{`SELECT COUNT(*) FROM rounds`, &out.Rounds},
		{`SELECT COUNT(*) FROM outcomes`, &out.Outcomes},
		{`SELECT COUNT(*) FROM outcomes WHERE success=1`, &out.Successes},
		{`SELECT COUNT(*) FROM zone_events`, &out.ZoneEvents},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.q).Scan(c.dst); err != nil {
			return Summary{}, err
		}
	}
	out.Failures = out.Outcomes - out.Successes

	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, SUM(success), SUM(1 - success)
		FROM outcomes
		GROUP BY participant_id
		ORDER BY participant_id`)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p ParticipantSummary
		if err := rows.Scan(&p.ParticipantID, &p.Successes, &p.Failures); err != nil {
			return Summary{}, err
		}
		out.Participants = append(out.Participants, p)
	}
	return out, rows.Err()
}

type SessionRow struct {
	SessionID   string  `json:"session_id"`
	StartedTick uint64  `json:"started_tick"`
	StartedBy   string  `json:"started_by"`
	StoppedTick *uint64 `json:"stopped_tick,omitempty"`
	Rounds      int     `json:"rounds"`
	Outcomes    int     `json:"outcomes"`
}

// Sessions lists the most recent sessions first.
func (s *SQLiteIndex) Sessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.started_tick, s.started_by, s.stopped_tick,
			(SELECT COUNT(*) FROM rounds r WHERE r.session_id = s.session_id),
			(SELECT COUNT(*) FROM outcomes o WHERE o.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var (
			r       SessionRow
			started int64
			stopped sql.NullInt64
		)
		if err := rows.Scan(&r.SessionID, &started, &r.StartedBy, &stopped, &r.Rounds, &r.Outcomes); err != nil {
			return nil, err
		}
		r.StartedTick = uint64(started)
		if stopped.Valid {
			v := uint64(stopped.Int64)
			r.StoppedTick = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
