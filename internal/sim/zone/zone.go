// Package zone runs the phased shrinking safe zone: a once-per-second phase
// timer, per-tick radius interpolation, the boundary damage check and the
// border visualisation, all on the session scheduler.
package zone

import (
	"fmt"
	"log"

	"simonzone.ai/internal/sim/audit"
	"simonzone.ai/internal/sim/feedback"
	"simonzone.ai/internal/sim/geom"
	"simonzone.ai/internal/sim/sched"
	"simonzone.ai/internal/sim/tuning"
)

// World is the slice of the arena the zone needs.
type World interface {
	Roster() []string
	Position(id string) (geom.Vec3, bool)
	ApplyDamage(id string, amount float64)
	Broadcast(text string)
	DrawRing(r feedback.Ring)
	SetWorldBoundary(size float64)
}

type Config struct {
	InitialDiameter   float64
	DamageAmount      float64
	DamageCheckTicks  int
	BorderUpdateTicks int
	BorderWallHeight  int

	WarningWindowSeconds int
	WarningEverySeconds  int

	UnboundedSize float64
	RestoredSize  float64

	Phases PhaseTable
}

func ConfigFromTuning(t tuning.ZoneTuning) (Config, error) {
	phases := make([]Phase, 0, len(t.Phases))
	for _, p := range t.Phases {
		phases = append(phases, Phase{WaitSeconds: p.WaitSeconds, ShrinkSeconds: p.ShrinkSeconds})
	}
	table, err := NewPhaseTable(phases, t.SizeFractions)
	if err != nil {
		return Config{}, err
	}
	return Config{
		InitialDiameter:      t.InitialDiameter,
		DamageAmount:         t.DamageAmount,
		DamageCheckTicks:     t.DamageCheckTicks,
		BorderUpdateTicks:    t.BorderUpdateTicks,
		BorderWallHeight:     t.BorderWallHeight,
		WarningWindowSeconds: t.WarningWindowSeconds,
		WarningEverySeconds:  t.WarningEverySeconds,
		UnboundedSize:        t.UnboundedSize,
		RestoredSize:         t.RestoredSize,
		Phases:               table,
	}, nil
}

func (c *Config) applyDefaults() {
	if c.DamageAmount <= 0 {
		c.DamageAmount = 2.0
	}
	if c.DamageCheckTicks <= 0 {
		c.DamageCheckTicks = 10
	}
	if c.BorderUpdateTicks <= 0 {
		c.BorderUpdateTicks = 2
	}
	if c.BorderWallHeight <= 0 {
		c.BorderWallHeight = 320
	}
	if c.WarningEverySeconds <= 0 {
		c.WarningEverySeconds = 10
	}
	if c.UnboundedSize <= 0 {
		c.UnboundedSize = 2147483647
	}
	if c.RestoredSize <= 0 {
		c.RestoredSize = 60_000_000
	}
}

type Stage int

const (
	StageIdle Stage = iota
	StageWaiting
	StageShrinking
	StageTerminal
)

func (s Stage) String() string {
	switch s {
	case StageWaiting:
		return "WAITING"
	case StageShrinking:
		return "SHRINKING"
	case StageTerminal:
		return "TERMINAL"
	default:
		return "IDLE"
	}
}

type State struct {
	Stage      Stage     `json:"stage"`
	PhaseIndex int       `json:"phase_index"`
	Center     geom.Vec3 `json:"center"`

	CurrentRadius        float64 `json:"current_radius"`
	TargetRadius         float64 `json:"target_radius"`
	ShrinkSpeedPerSecond float64 `json:"shrink_speed_per_second"`
	IsShrinking          bool    `json:"is_shrinking"`

	WaitSecondsRemaining   int `json:"wait_seconds_remaining"`
	ShrinkSecondsRemaining int `json:"shrink_seconds_remaining"`
}

type Controller struct {
	cfg   Config
	world World
	sched sched.Scheduler
	sink  audit.Sink
	log   *log.Logger

	sessionID string

	st           State
	baseRadius   float64
	damage       *DamageChecker
	border       *Border
	timer        sched.Handle
	interpolator sched.Handle
	borderJob    sched.Handle
	damageJob    sched.Handle
}

func NewController(cfg Config, w World, s sched.Scheduler, sink audit.Sink, logger *log.Logger) *Controller {
	cfg.applyDefaults()
	if sink == nil {
		sink = audit.Discard{}
	}
	c := &Controller{cfg: cfg, world: w, sched: s, sink: sink, log: logger}
	c.damage = NewDamageChecker(c, w, cfg.DamageAmount)
	c.border = NewBorder(c, w, cfg.BorderWallHeight)
	return c
}

func (c *Controller) SetSessionID(id string) { c.sessionID = id }

func (c *Controller) State() State           { return c.st }
func (c *Controller) Center() geom.Vec3      { return c.st.Center }
func (c *Controller) CurrentRadius() float64 { return c.st.CurrentRadius }
func (c *Controller) Damage() *DamageChecker { return c.damage }
func (c *Controller) Running() bool          { return c.st.Stage != StageIdle }

// Start resets the zone around center. A diameter <= 0 uses the configured
// initial diameter. Any previous run is cancelled first.
func (c *Controller) Start(center geom.Vec3, diameter float64) {
	c.cancelJobs()
	if diameter <= 0 {
		diameter = c.cfg.InitialDiameter
	}
	c.baseRadius = diameter / 2
	c.st = State{
		Stage:         StageWaiting,
		Center:        center,
		CurrentRadius: c.baseRadius,
	}
	c.world.SetWorldBoundary(c.cfg.UnboundedSize)
	c.beginPhase(0)

	tps := c.sched.TicksPerSecond()
	c.timer = c.sched.ScheduleEvery(tps, c.Tick)
	c.interpolator = c.sched.ScheduleEvery(1, c.Interpolate)
	c.borderJob = c.sched.ScheduleEvery(c.cfg.BorderUpdateTicks, c.border.Draw)
	c.damageJob = c.sched.ScheduleEvery(c.cfg.DamageCheckTicks, c.damage.Check)
}

func (c *Controller) beginPhase(i int) {
	p := c.cfg.Phases.Phase(i)
	c.st.PhaseIndex = i
	c.st.Stage = StageWaiting
	c.st.IsShrinking = false
	c.st.WaitSecondsRemaining = p.WaitSeconds
	c.st.ShrinkSecondsRemaining = 0
	c.st.TargetRadius = c.baseRadius * c.cfg.Phases.Fraction(i+1)
	c.st.ShrinkSpeedPerSecond = (c.st.CurrentRadius - c.st.TargetRadius) / float64(p.ShrinkSeconds)

	c.world.Broadcast(fmt.Sprintf("Zone will start shrinking in %d seconds! Next safe zone size: %.1f blocks",
		p.WaitSeconds, c.st.TargetRadius*2))
	c.record(audit.ZoneWait)
}

// Tick runs once per second.
func (c *Controller) Tick() {
	switch c.st.Stage {
	case StageWaiting:
		if c.st.WaitSecondsRemaining <= 0 {
			c.startShrinking()
			return
		}
		c.st.WaitSecondsRemaining--
		rem := c.st.WaitSecondsRemaining
		if rem > 0 && rem <= c.cfg.WarningWindowSeconds && rem%c.cfg.WarningEverySeconds == 0 {
			c.world.Broadcast(fmt.Sprintf("Zone shrinks in %d seconds!", rem))
		}

	case StageShrinking:
		c.st.ShrinkSecondsRemaining--
		if c.st.ShrinkSecondsRemaining > 0 {
			return
		}
		c.st.CurrentRadius = c.st.TargetRadius
		next := c.st.PhaseIndex + 1
		if next < c.cfg.Phases.Len() {
			c.beginPhase(next)
			return
		}
		c.st.PhaseIndex = next
		c.enterTerminal()
	}
}

func (c *Controller) startShrinking() {
	c.st.Stage = StageShrinking
	c.st.IsShrinking = true
	c.st.ShrinkSecondsRemaining = c.cfg.Phases.Phase(c.st.PhaseIndex).ShrinkSeconds
	c.world.Broadcast("Zone is now shrinking!")
	c.record(audit.ZoneShrink)
}

// Interpolate runs every scheduler tick and moves the radius toward the
// target at the phase's per-second speed, never past it.
func (c *Controller) Interpolate() {
	if c.st.Stage != StageShrinking {
		return
	}
	step := c.st.ShrinkSpeedPerSecond / float64(c.sched.TicksPerSecond())
	c.st.CurrentRadius = max(c.st.TargetRadius, c.st.CurrentRadius-step)
}

func (c *Controller) enterTerminal() {
	c.st.Stage = StageTerminal
	c.st.IsShrinking = false
	c.st.ShrinkSpeedPerSecond = 0
	c.st.WaitSecondsRemaining = 0
	c.st.ShrinkSecondsRemaining = 0
	c.world.Broadcast("Final zone reached! Damage will continue until the game is stopped.")
	for _, h := range []sched.Handle{c.timer, c.interpolator, c.borderJob} {
		if h != nil {
			h.Cancel()
		}
	}
	c.record(audit.ZoneFinal)
	c.logf("zone final radius=%.2f", c.st.CurrentRadius)
}

// Stop cancels every zone job and restores the world boundary. Safe when idle.
func (c *Controller) Stop() {
	wasRunning := c.st.Stage != StageIdle
	c.cancelJobs()
	c.world.SetWorldBoundary(c.cfg.RestoredSize)
	if wasRunning {
		c.record(audit.ZoneStopped)
	}
	c.st = State{}
}

func (c *Controller) cancelJobs() {
	for _, h := range []sched.Handle{c.timer, c.interpolator, c.borderJob, c.damageJob} {
		if h != nil {
			h.Cancel()
		}
	}
	c.timer, c.interpolator, c.borderJob, c.damageJob = nil, nil, nil, nil
}

func (c *Controller) record(kind string) {
	_ = c.sink.WriteZone(audit.ZoneEntry{
		Tick:      c.sched.CurrentTick(),
		SessionID: c.sessionID,
		Kind:      kind,
		Phase:     c.st.PhaseIndex,
		Radius:    c.st.CurrentRadius,
		Target:    c.st.TargetRadius,
	})
}

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}
