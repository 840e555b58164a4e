package rounds

import (
	"strings"

	"simonzone.ai/internal/sim/audit"
	"simonzone.ai/internal/sim/catalogs"
	"simonzone.ai/internal/sim/feedback"
	"simonzone.ai/internal/sim/geom"
	"simonzone.ai/internal/sim/tasks"
)

const barSegments = 20

type progress struct {
	resolved bool
	marks    tasks.Marks
}

// Round is one timed task. Participants are snapshotted at start; late
// joiners are not judged.
type Round struct {
	Number        int
	Task          tasks.Definition
	Obey          bool
	Contradiction *tasks.Definition

	contradictionIssued bool
	remaining           int
	barText             string
	barColor            feedback.Color

	order    []string
	progress map[string]*progress
}

func (r *Round) SecondsRemaining() int { return r.remaining }

func (r *Round) ContradictionIssued() bool { return r.contradictionIssued }

func (r *Round) Participants() []string { return append([]string(nil), r.order...) }

// Resolved reports whether id has already received its outcome.
func (r *Round) Resolved(id string) bool {
	p, ok := r.progress[id]
	return ok && p.resolved
}

// Marks returns the partial-progress marks for id; nil if id is not judged
// in this round.
func (r *Round) Marks(id string) tasks.Marks {
	if p, ok := r.progress[id]; ok {
		return p.marks
	}
	return nil
}

// StartRound begins a round for task. An active round is finalized first so
// only one round is ever live.
func (e *Engine) StartRound(task tasks.Definition) {
	if e.round != nil {
		e.finishRound()
	}

	r := &Round{
		Number:    e.stats.Rounds + 1,
		Task:      task,
		Obey:      e.rng.Float64() < e.cfg.ObeyProbability,
		remaining: e.cfg.DurationSeconds,
		progress:  map[string]*progress{},
	}
	if e.rng.Float64() < e.cfg.ContradictionProbability {
		var others []tasks.Definition
		for _, d := range e.catalogOrBase() {
			if d.ID != task.ID {
				others = append(others, d)
			}
		}
		if len(others) > 0 {
			pick := others[e.rng.Intn(len(others))]
			r.Contradiction = &pick
		}
	}

	prefix := e.randomPrefix()
	r.barText = prefix + ": " + task.Description
	r.barColor = feedback.ColorBlue
	if r.Obey {
		r.barColor = feedback.ColorGreen
	}
	for _, id := range e.world.Roster() {
		r.order = append(r.order, id)
		r.progress[id] = &progress{marks: tasks.Marks{}}
	}

	e.round = r
	e.stats.Rounds++

	e.announce(r, prefix, task, r.Obey)
	for _, id := range r.order {
		e.world.ShowBar(id, feedback.Bar{Text: r.barText, Progress: 1, Color: r.barColor, Segments: barSegments})
	}

	contradictionID := ""
	if r.Contradiction != nil {
		contradictionID = r.Contradiction.ID
	}
	_ = e.sink.WriteRound(audit.RoundEntry{
		Tick:            e.sched.CurrentTick(),
		SessionID:       e.sessionID,
		Kind:            audit.RoundStart,
		Round:           r.Number,
		TaskID:          task.ID,
		Obey:            r.Obey,
		ContradictionID: contradictionID,
		Participants:    len(r.order),
	})
	e.logf("round %d: task=%s obey=%v contradiction=%q participants=%d", r.Number, task.ID, r.Obey, contradictionID, len(r.order))

	e.tickCountdown()
	if e.round == r {
		e.countdown = e.sched.ScheduleEvery(e.sched.TicksPerSecond(), e.tickCountdown)
	}
}

func (e *Engine) catalogOrBase() []tasks.Definition {
	if len(e.catalog) > 0 {
		return e.catalog
	}
	return e.base
}

// announce tells every current participant about task with the given
// framing. Used both for the round's own task and for the contradiction.
func (e *Engine) announce(r *Round, prefix string, task tasks.Definition, obey bool) {
	title := feedback.Title{
		Headline:  prefix + "!",
		Subline:   task.Description,
		HeadColor: feedback.ColorBlue,
		SubColor:  feedback.ColorGray,
	}.WithDefaultTiming()
	cue := feedback.Cue{Sound: feedback.SoundBass, Volume: 1, Pitch: 0.8}
	fx := feedback.ParticleLargeSmoke
	if obey {
		title.HeadColor, title.SubColor = feedback.ColorGreen, feedback.ColorYellow
		cue = feedback.Cue{Sound: feedback.SoundChime, Volume: 1, Pitch: 1}
		fx = feedback.ParticleNote
	}

	for _, id := range r.order {
		pos, ok := e.world.Position(id)
		if !ok {
			continue
		}
		adjective := e.phrases.Adjectives[e.rng.Intn(len(e.phrases.Adjectives))]
		e.world.ShowTitle(id, title)
		e.world.Tell(id, "➤ "+prefix+" "+adjective+" "+strings.ToLower(task.Description)+"!")
		e.world.PlayCue(id, cue)
		e.world.SpawnParticles(feedback.Particles{Kind: fx, Pos: pos.Add(geom.Vec3{Y: 2}), Count: 5, Spread: 0.5})
	}
}

func (e *Engine) randomPrefix() string {
	return e.phrases.Prefixes[e.rng.Intn(len(e.phrases.Prefixes))]
}

// tickCountdown runs once per second of round time, the first time on the
// round's start tick.
func (e *Engine) tickCountdown() {
	r := e.round
	if r == nil {
		if e.countdown != nil {
			e.countdown.Cancel()
			e.countdown = nil
		}
		return
	}
	if r.remaining <= 0 {
		e.finishRound()
		return
	}

	if r.Contradiction != nil && !r.contradictionIssued && r.remaining == e.cfg.DurationSeconds/2 {
		r.contradictionIssued = true
		prefix := catalogs.ObeyPrefix
		if !r.Obey {
			prefix = e.randomPrefix()
		}
		e.announce(r, prefix, *r.Contradiction, !r.Obey)
	}

	bar := feedback.Bar{
		Text:     r.barText,
		Progress: float64(r.remaining) / float64(e.cfg.DurationSeconds),
		Color:    r.barColor,
		Segments: barSegments,
	}
	urgent := r.remaining <= e.cfg.UrgentSeconds
	if urgent {
		bar.Color = feedback.ColorRed
	}
	for _, id := range r.order {
		if _, ok := e.world.Position(id); !ok {
			continue
		}
		e.world.ShowBar(id, bar)
		if urgent {
			e.world.PlayCue(id, feedback.Cue{Sound: feedback.SoundClick, Volume: 0.5, Pitch: 1})
		}
	}

	e.evaluate(false)
	r.remaining--
}

// evaluate judges unresolved participants. During the round a participant is
// resolved only once the task is observed; the final pass judges everyone
// left, treating a departed participant as not having performed it. Not
// performing an obeyed task is therefore only penalized at round end.
func (e *Engine) evaluate(final bool) {
	r := e.round
	for _, id := range r.order {
		p := r.progress[id]
		if p.resolved {
			continue
		}
		performed := false
		view, present := e.world.View(id)
		if present {
			performed = r.Task.Check != nil && r.Task.Check(view, p.marks)
		}
		if !final && !performed {
			continue
		}
		p.resolved = true
		if performed == r.Obey {
			e.reward(r, id, present, final)
		} else {
			e.penalize(r, id, present, final)
		}
	}
}

func (e *Engine) finishRound() {
	r := e.round
	if r == nil {
		return
	}
	e.evaluate(true)

	if e.countdown != nil {
		e.countdown.Cancel()
		e.countdown = nil
	}
	e.round = nil

	e.world.Broadcast("Time's up! Next task coming soon...")
	for _, id := range e.world.Roster() {
		e.world.PlayCue(id, feedback.Cue{Sound: feedback.SoundPling, Volume: 0.5, Pitch: 0.5})
	}
	for _, id := range r.order {
		e.world.HideBar(id)
	}

	_ = e.sink.WriteRound(audit.RoundEntry{
		Tick:         e.sched.CurrentTick(),
		SessionID:    e.sessionID,
		Kind:         audit.RoundEnd,
		Round:        r.Number,
		TaskID:       r.Task.ID,
		Obey:         r.Obey,
		Participants: len(r.order),
	})
}
