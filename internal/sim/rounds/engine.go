// Package rounds runs the command verification game: timed rounds that issue
// a task with obey or decoy framing, judge every participant once, and hand
// out rewards or stacking debuffs.
package rounds

import (
	"log"

	"simonzone.ai/internal/sim/audit"
	"simonzone.ai/internal/sim/catalogs"
	"simonzone.ai/internal/sim/feedback"
	"simonzone.ai/internal/sim/geom"
	"simonzone.ai/internal/sim/sched"
	"simonzone.ai/internal/sim/tasks"
	"simonzone.ai/internal/sim/tuning"
)

// World is the slice of the arena the engine needs.
type World interface {
	Roster() []string
	Position(id string) (geom.Vec3, bool)
	View(id string) (tasks.View, bool)

	Broadcast(text string)
	Tell(id, text string)
	ShowTitle(id string, t feedback.Title)
	PlayCue(id string, c feedback.Cue)
	SpawnParticles(fx feedback.Particles)
	ShowBar(id string, b feedback.Bar)
	HideBar(id string)

	ApplyStatusEffect(id, kind string, durationTicks, intensity int) bool
	StatusEffect(id, kind string) (int, bool)
}

// Rand is satisfied by *math/rand.Rand.
type Rand interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type Effect struct {
	Kind          string
	DurationTicks int
	Intensity     int
}

type DebuffConfig struct {
	Kinds         []string
	DurationTicks int
	MaxIntensity  int
	MinCount      int
	MaxCount      int
}

type Config struct {
	DurationSeconds      int
	UrgentSeconds        int
	LaunchOffsetsSeconds []int

	ObeyProbability          float64
	ContradictionProbability float64
	RewardBuffProbability    float64

	RewardBuff Effect
	Debuffs    DebuffConfig
}

func ConfigFromTuning(t tuning.RoundTuning) Config {
	return Config{
		DurationSeconds:          t.DurationSeconds,
		UrgentSeconds:            t.UrgentSeconds,
		LaunchOffsetsSeconds:     append([]int(nil), t.LaunchOffsetsSeconds...),
		ObeyProbability:          t.ObeyProbability,
		ContradictionProbability: t.ContradictionProbability,
		RewardBuffProbability:    t.RewardBuffProbability,
		RewardBuff: Effect{
			Kind:          t.RewardBuff.Kind,
			DurationTicks: t.RewardBuff.DurationTicks,
			Intensity:     t.RewardBuff.Intensity,
		},
		Debuffs: DebuffConfig{
			Kinds:         append([]string(nil), t.Debuffs.Kinds...),
			DurationTicks: t.Debuffs.DurationTicks,
			MaxIntensity:  t.Debuffs.MaxIntensity,
			MinCount:      t.Debuffs.MinCount,
			MaxCount:      t.Debuffs.MaxCount,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.DurationSeconds <= 0 {
		c.DurationSeconds = 15
	}
	if c.RewardBuff.DurationTicks <= 0 {
		c.RewardBuff.DurationTicks = 400
	}
	if len(c.Debuffs.Kinds) == 0 {
		c.Debuffs.Kinds = []string{"WEAKNESS", "SLOWNESS", "NAUSEA", "BLINDNESS", "HUNGER"}
	}
	if c.Debuffs.DurationTicks <= 0 {
		c.Debuffs.DurationTicks = 600
	}
	if c.Debuffs.MaxIntensity <= 0 {
		c.Debuffs.MaxIntensity = 3
	}
	if c.Debuffs.MaxCount <= 0 {
		c.Debuffs.MaxCount = 3
	}
	if c.Debuffs.MaxCount > len(c.Debuffs.Kinds) {
		c.Debuffs.MaxCount = len(c.Debuffs.Kinds)
	}
	if c.Debuffs.MinCount <= 0 {
		c.Debuffs.MinCount = 1
	}
	if c.Debuffs.MinCount > c.Debuffs.MaxCount {
		c.Debuffs.MinCount = c.Debuffs.MaxCount
	}
}

type Stats struct {
	Rounds    int `json:"rounds"`
	Rewards   int `json:"rewards"`
	Penalties int `json:"penalties"`
	Skipped   int `json:"skipped"`
}

type Engine struct {
	cfg     Config
	world   World
	sched   sched.Scheduler
	rng     Rand
	sink    audit.Sink
	log     *log.Logger
	base    []tasks.Definition
	phrases catalogs.PhraseCatalog

	sessionID string
	catalog   []tasks.Definition
	launches  sched.Group
	countdown sched.Handle
	round     *Round
	stats     Stats
}

func NewEngine(cfg Config, cats *catalogs.Catalogs, w World, s sched.Scheduler, rng Rand, sink audit.Sink, logger *log.Logger) *Engine {
	cfg.applyDefaults()
	if sink == nil {
		sink = audit.Discard{}
	}
	phrases := cats.Phrases
	if len(phrases.Prefixes) == 0 {
		phrases.Prefixes = []string{catalogs.ObeyPrefix}
	}
	if len(phrases.Adjectives) == 0 {
		phrases.Adjectives = []string{"quickly"}
	}
	return &Engine{
		cfg:     cfg,
		world:   w,
		sched:   s,
		rng:     rng,
		sink:    sink,
		log:     logger,
		base:    append([]tasks.Definition(nil), cats.Tasks.Defs...),
		phrases: phrases,
	}
}

func (e *Engine) SetSessionID(id string) { e.sessionID = id }

func (e *Engine) Stats() Stats { return e.stats }

// Round returns the active round, or nil.
func (e *Engine) Round() *Round { return e.round }

// StartSession shuffles the catalog and schedules one launch per offset.
// Launch i uses catalog[i]; launches past the end of the catalog do nothing.
func (e *Engine) StartSession() {
	e.Stop()
	e.stats = Stats{}
	e.catalog = append([]tasks.Definition(nil), e.base...)
	e.rng.Shuffle(len(e.catalog), func(i, j int) {
		e.catalog[i], e.catalog[j] = e.catalog[j], e.catalog[i]
	})

	tps := e.sched.TicksPerSecond()
	for i, off := range e.cfg.LaunchOffsetsSeconds {
		idx := i
		e.launches.Add(e.sched.ScheduleOnce(off*tps, func() {
			if idx >= len(e.catalog) {
				e.stats.Skipped++
				e.logf("round launch %d skipped: catalog exhausted", idx)
				return
			}
			e.StartRound(e.catalog[idx])
		}))
	}
}

// Stop cancels pending launches and any running countdown. An interrupted
// round is dropped without outcomes.
func (e *Engine) Stop() {
	e.launches.CancelAll()
	if e.countdown != nil {
		e.countdown.Cancel()
		e.countdown = nil
	}
	if e.round != nil {
		for _, id := range e.round.order {
			e.world.HideBar(id)
		}
		e.round = nil
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.log != nil {
		e.log.Printf(format, args...)
	}
}
