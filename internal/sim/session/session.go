// Package session owns the game lifecycle: one session at a time, each with
// its own zone controller and round engine sharing the tick scheduler.
package session

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/google/uuid"

	"simonzone.ai/internal/sim/audit"
	"simonzone.ai/internal/sim/catalogs"
	"simonzone.ai/internal/sim/geom"
	"simonzone.ai/internal/sim/rounds"
	"simonzone.ai/internal/sim/sched"
	"simonzone.ai/internal/sim/tuning"
	"simonzone.ai/internal/sim/zone"
)

type World interface {
	zone.World
	rounds.World
}

// Session is everything one game run owns. Stopping it cancels every job it
// registered.
type Session struct {
	ID          string
	Actor       string
	Center      geom.Vec3
	StartedTick uint64

	Zone   *zone.Controller
	Rounds *rounds.Engine
}

type RoundStatus struct {
	Number           int    `json:"number"`
	TaskID           string `json:"task_id"`
	Obey             bool   `json:"obey"`
	SecondsRemaining int    `json:"seconds_remaining"`
}

type Status struct {
	Tick        uint64       `json:"tick"`
	Running     bool         `json:"running"`
	SessionID   string       `json:"session_id,omitempty"`
	Actor       string       `json:"actor,omitempty"`
	StartedTick uint64       `json:"started_tick,omitempty"`
	Zone        zone.State   `json:"zone"`
	Round       *RoundStatus `json:"round,omitempty"`
	Stats       rounds.Stats `json:"stats"`
}

// Manager must be driven from the scheduler goroutine; Status is the only
// method safe to call from elsewhere.
type Manager struct {
	zoneCfg  zone.Config
	roundCfg rounds.Config
	cats     *catalogs.Catalogs
	world    World
	sched    sched.Scheduler
	rng      rounds.Rand
	sink     audit.Sink
	log      *log.Logger

	cur       *Session
	status    atomic.Value // Status
	statusJob sched.Handle
	onStop    []StopHook
}

// StopHook observes the final status of a session as it is stopped. Hooks
// run on the scheduler goroutine.
type StopHook func(final Status, stoppedBy string)

func NewManager(t tuning.Tuning, cats *catalogs.Catalogs, w World, s sched.Scheduler, rng rounds.Rand, sink audit.Sink, logger *log.Logger) (*Manager, error) {
	zcfg, err := zone.ConfigFromTuning(t.Zone)
	if err != nil {
		return nil, fmt.Errorf("zone tuning: %w", err)
	}
	if cats == nil {
		return nil, fmt.Errorf("nil catalogs")
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	m := &Manager{
		zoneCfg:  zcfg,
		roundCfg: rounds.ConfigFromTuning(t.Rounds),
		cats:     cats,
		world:    w,
		sched:    s,
		rng:      rng,
		sink:     sink,
		log:      logger,
	}
	m.publish()
	m.statusJob = s.ScheduleEvery(s.TicksPerSecond(), m.publish)
	return m, nil
}

func (m *Manager) OnStop(h StopHook) { m.onStop = append(m.onStop, h) }

// Current returns the running session, or nil.
func (m *Manager) Current() *Session { return m.cur }

// Start begins a new session centred on center, stopping any running one
// first. It returns the new session id.
func (m *Manager) Start(center geom.Vec3, actor string) string {
	if m.cur != nil {
		m.Stop(actor)
	}

	id := uuid.NewString()
	zc := zone.NewController(m.zoneCfg, m.world, m.sched, m.sink, m.log)
	zc.SetSessionID(id)
	re := rounds.NewEngine(m.roundCfg, m.cats, m.world, m.sched, m.rng, m.sink, m.log)
	re.SetSessionID(id)

	m.cur = &Session{
		ID:          id,
		Actor:       actor,
		Center:      center,
		StartedTick: m.sched.CurrentTick(),
		Zone:        zc,
		Rounds:      re,
	}
	m.record(audit.SessionStart, actor)

	m.world.Broadcast("Game started! Get ready for zone movement!")
	zc.Start(center, 0)
	re.StartSession()

	m.logf("session %s started by %q at (%.1f, %.1f, %.1f)", id, actor, center.X, center.Y, center.Z)
	m.publish()
	return id
}

// Stop ends the running session. It reports false when nothing was running.
func (m *Manager) Stop(actor string) bool {
	if m.cur == nil {
		return false
	}
	m.world.Broadcast("Game stopped by administrator!")
	final := m.snapshot()
	m.cur.Rounds.Stop()
	m.cur.Zone.Stop()
	m.record(audit.SessionStop, actor)
	m.logf("session %s stopped by %q", m.cur.ID, actor)
	m.cur = nil
	m.publish()
	for _, h := range m.onStop {
		h(final, actor)
	}
	return true
}

// Close stops the running session and the status publisher.
func (m *Manager) Close() {
	m.Stop("")
	if m.statusJob != nil {
		m.statusJob.Cancel()
		m.statusJob = nil
	}
}

// Status returns the last published snapshot.
func (m *Manager) Status() Status {
	v := m.status.Load()
	if v == nil {
		return Status{}
	}
	st, _ := v.(Status)
	return st
}

func (m *Manager) publish() { m.status.Store(m.snapshot()) }

func (m *Manager) snapshot() Status {
	st := Status{Tick: m.sched.CurrentTick()}
	if s := m.cur; s != nil {
		st.Running = true
		st.SessionID = s.ID
		st.Actor = s.Actor
		st.StartedTick = s.StartedTick
		st.Zone = s.Zone.State()
		st.Stats = s.Rounds.Stats()
		if r := s.Rounds.Round(); r != nil {
			st.Round = &RoundStatus{
				Number:           r.Number,
				TaskID:           r.Task.ID,
				Obey:             r.Obey,
				SecondsRemaining: r.SecondsRemaining(),
			}
		}
	}
	return st
}

func (m *Manager) record(kind, actor string) {
	c := m.cur.Center
	_ = m.sink.WriteSession(audit.SessionEntry{
		Tick:      m.sched.CurrentTick(),
		SessionID: m.cur.ID,
		Kind:      kind,
		Center:    [3]float64{c.X, c.Y, c.Z},
		Actor:     actor,
	})
}

func (m *Manager) logf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}
