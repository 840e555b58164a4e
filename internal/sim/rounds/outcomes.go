package rounds

import (
	"simonzone.ai/internal/sim/audit"
	"simonzone.ai/internal/sim/feedback"
	"simonzone.ai/internal/sim/geom"
)

const (
	failObeyText  = "Simon said to do it!"
	failDecoyText = "Simon didn't say!"
)

// reward grants a successful outcome. present=false records the outcome
// without touching a participant that has left.
func (e *Engine) reward(r *Round, id string, present, final bool) {
	e.stats.Rewards++
	entry := audit.OutcomeEntry{
		Tick:          e.sched.CurrentTick(),
		SessionID:     e.sessionID,
		Round:         r.Number,
		TaskID:        r.Task.ID,
		ParticipantID: id,
		Success:       true,
		Final:         final,
	}
	if present {
		pos, _ := e.world.Position(id)
		e.world.PlayCue(id, feedback.Cue{Sound: feedback.SoundLevelUp, Volume: 1, Pitch: 1})
		e.world.SpawnParticles(feedback.Particles{Kind: feedback.ParticleTotem, Pos: pos.Add(geom.Vec3{Y: 2}), Count: 50, Spread: 0.5})
		e.world.SpawnParticles(feedback.Particles{Kind: feedback.ParticleHappy, Pos: pos.Add(geom.Vec3{Y: 1}), Count: 20, Spread: 0.5})
		e.world.ShowTitle(id, feedback.Title{
			Headline:  "SUCCESS!",
			Subline:   "You followed Simon perfectly!",
			HeadColor: feedback.ColorGreen,
			SubColor:  feedback.ColorYellow,
		}.WithDefaultTiming())

		if e.rng.Float64() < e.cfg.RewardBuffProbability {
			b := e.cfg.RewardBuff
			if e.world.ApplyStatusEffect(id, b.Kind, b.DurationTicks, b.Intensity) {
				entry.Buff = b.Kind
			}
		}
	}
	_ = e.sink.WriteOutcome(entry)
}

// penalize draws distinct debuffs and stacks each one a level above what the
// participant already carries, up to the configured cap.
func (e *Engine) penalize(r *Round, id string, present, final bool) {
	e.stats.Penalties++
	entry := audit.OutcomeEntry{
		Tick:          e.sched.CurrentTick(),
		SessionID:     e.sessionID,
		Round:         r.Number,
		TaskID:        r.Task.ID,
		ParticipantID: id,
		Final:         final,
	}
	if present {
		reason := failDecoyText
		if r.Obey {
			reason = failObeyText
		}
		for _, kind := range e.drawDebuffs() {
			level := 0
			if cur, ok := e.world.StatusEffect(id, kind); ok {
				level = min(cur+1, e.cfg.Debuffs.MaxIntensity)
			}
			if e.world.ApplyStatusEffect(id, kind, e.cfg.Debuffs.DurationTicks, level) {
				entry.Debuffs = append(entry.Debuffs, kind)
			}
		}

		pos, _ := e.world.Position(id)
		e.world.PlayCue(id, feedback.Cue{Sound: feedback.SoundNo, Volume: 1, Pitch: 1})
		e.world.SpawnParticles(feedback.Particles{Kind: feedback.ParticleLargeSmoke, Pos: pos.Add(geom.Vec3{Y: 1}), Count: 100, Spread: 0.5})
		e.world.ShowTitle(id, feedback.Title{
			Headline:  "FAILED!",
			Subline:   reason,
			HeadColor: feedback.ColorRed,
			SubColor:  feedback.ColorGray,
		}.WithDefaultTiming())
		e.world.Tell(id, "✗ You failed because: "+reason)
	}
	_ = e.sink.WriteOutcome(entry)
}

// drawDebuffs picks between MinCount and MaxCount kinds without replacement.
func (e *Engine) drawDebuffs() []string {
	d := e.cfg.Debuffs
	n := d.MinCount
	if span := d.MaxCount - d.MinCount; span > 0 {
		n += e.rng.Intn(span + 1)
	}
	pool := append([]string(nil), d.Kinds...)
	out := make([]string, 0, n)
	for i := 0; i < n && len(pool) > 0; i++ {
		j := e.rng.Intn(len(pool))
		out = append(out, pool[j])
		pool[j] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return out
}
