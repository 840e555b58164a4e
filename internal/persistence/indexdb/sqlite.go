package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"simonzone.ai/internal/sim/audit"
	"simonzone.ai/internal/sim/catalogs"
	"simonzone.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable read model of the audit trail. Writes are
// queued to a single writer goroutine and dropped when the queue is full; the
// JSONL audit log remains the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSession atomic.Uint64
	dropRound   atomic.Uint64
	dropOutcome atomic.Uint64
	dropZone    atomic.Uint64
}

type reqKind int

const (
	reqSession reqKind = iota + 1
	reqRound
	reqOutcome
	reqZone
)

type req struct {
	kind reqKind

	session audit.SessionEntry
	round   audit.RoundEntry
	outcome audit.OutcomeEntry
	zone    audit.ZoneEntry
}

type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DropSessionTotal uint64 `json:"drop_session_total"`
	DropRoundTotal   uint64 `json:"drop_round_total"`
	DropOutcomeTotal uint64 `json:"drop_outcome_total"`
	DropZoneTotal    uint64 `json:"drop_zone_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			started_tick INTEGER NOT NULL,
			started_by TEXT NOT NULL,
			center_x REAL NOT NULL,
			center_y REAL NOT NULL,
			center_z REAL NOT NULL,
			stopped_tick INTEGER,
			stopped_by TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			session_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			task_id TEXT NOT NULL,
			obey INTEGER NOT NULL,
			contradiction_id TEXT,
			participants INTEGER NOT NULL,
			start_tick INTEGER NOT NULL,
			end_tick INTEGER,
			PRIMARY KEY (session_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			session_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			participant_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			success INTEGER NOT NULL,
			final INTEGER NOT NULL,
			buff TEXT,
			debuffs TEXT,
			PRIMARY KEY (session_id, round, participant_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_participant ON outcomes(participant_id, session_id);`,
		`CREATE TABLE IF NOT EXISTS zone_events (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			phase INTEGER NOT NULL,
			radius REAL NOT NULL,
			target REAL NOT NULL,
			PRIMARY KEY (session_id, tick, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropSessionTotal: s.dropSession.Load(),
		DropRoundTotal:   s.dropRound.Load(),
		DropOutcomeTotal: s.dropOutcome.Load(),
		DropZoneTotal:    s.dropZone.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteSession(e audit.SessionEntry) error {
	s.enqueue(req{kind: reqSession, session: e}, &s.dropSession)
	return nil
}

func (s *SQLiteIndex) WriteRound(e audit.RoundEntry) error {
	s.enqueue(req{kind: reqRound, round: e}, &s.dropRound)
	return nil
}

func (s *SQLiteIndex) WriteOutcome(e audit.OutcomeEntry) error {
	s.enqueue(req{kind: reqOutcome, outcome: e}, &s.dropOutcome)
	return nil
}

func (s *SQLiteIndex) WriteZone(e audit.ZoneEntry) error {
	s.enqueue(req{kind: reqZone, zone: e}, &s.dropZone)
	return nil
}

// UpsertCatalogs stores the task catalog and the tuning actually applied so
// index rows can be read against the rules that produced them.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type taskRow struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Hint        string `json:"hint,omitempty"`
		Check       string `json:"check"`
	}
	taskRows := make([]taskRow, 0, len(cats.Tasks.Defs))
	for _, d := range cats.Tasks.Defs {
		taskRows = append(taskRows, taskRow{ID: d.ID, Description: d.Description, Hint: d.Hint, Check: d.CheckName})
	}

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, err := json.Marshal(taskRows); err == nil {
		rows = append(rows, kv{name: "tasks", digest: cats.Tasks.Digest, json: b})
	}
	if b, err := json.Marshal(cats.Phrases); err == nil {
		rows = append(rows, kv{name: "phrases", digest: cats.Tasks.Digest, json: b})
	}
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, kv{name: "tuning", digest: tune.Digest(), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	stmts := map[string]string{
		"session_start": `INSERT OR REPLACE INTO sessions(session_id,started_tick,started_by,center_x,center_y,center_z) VALUES(?,?,?,?,?,?)`,
		"session_stop":  `UPDATE sessions SET stopped_tick=?, stopped_by=? WHERE session_id=?`,
		"round_start":   `INSERT OR REPLACE INTO rounds(session_id,round,task_id,obey,contradiction_id,participants,start_tick) VALUES(?,?,?,?,?,?,?)`,
		"round_end":     `UPDATE rounds SET end_tick=? WHERE session_id=? AND round=?`,
		"outcome":       `INSERT OR REPLACE INTO outcomes(session_id,round,participant_id,task_id,tick,success,final,buff,debuffs) VALUES(?,?,?,?,?,?,?,?,?)`,
		"zone":          `INSERT OR REPLACE INTO zone_events(session_id,tick,seq,kind,phase,radius,target) VALUES(?,?,?,?,?,?,?)`,
	}
	prepared := map[string]*sql.Stmt{}
	for name, q := range stmts {
		if st, err := s.db.Prepare(q); err == nil {
			prepared[name] = st
		}
	}
	defer func() {
		for _, st := range prepared {
			_ = st.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second

		lastZoneTick uint64
		zoneSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(name string, args ...any) {
		st := prepared[name]
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	// An idle writer must not hold its transaction open, or readers sharing
	// the single connection wait forever.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-ticker.C:
			commit()
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSession:
			e := r.session
			if e.Kind == audit.SessionStop {
				exec("session_stop", int64(e.Tick), e.Actor, e.SessionID)
			} else {
				exec("session_start", e.SessionID, int64(e.Tick), e.Actor, e.Center[0], e.Center[1], e.Center[2])
			}

		case reqRound:
			e := r.round
			if e.Kind == audit.RoundEnd {
				exec("round_end", int64(e.Tick), e.SessionID, e.Round)
			} else {
				exec("round_start", e.SessionID, e.Round, e.TaskID, boolInt(e.Obey), nullString(e.ContradictionID), e.Participants, int64(e.Tick))
			}

		case reqOutcome:
			e := r.outcome
			exec("outcome", e.SessionID, e.Round, e.ParticipantID, e.TaskID, int64(e.Tick),
				boolInt(e.Success), boolInt(e.Final), nullString(e.Buff), nullString(strings.Join(e.Debuffs, ",")))

		case reqZone:
			e := r.zone
			if e.Tick != lastZoneTick {
				lastZoneTick = e.Tick
				zoneSeq = 0
			}
			seq := zoneSeq
			zoneSeq++
			exec("zone", e.SessionID, int64(e.Tick), seq, e.Kind, e.Phase, e.Radius, e.Target)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
