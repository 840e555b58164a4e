package world

import (
	"simonzone.ai/internal/protocol"
	"simonzone.ai/internal/sim/feedback"
	"simonzone.ai/internal/sim/geom"
)

func (w *World) Broadcast(text string) {
	ev := w.event(protocol.EventChat)
	ev.Text = text
	w.broadcastEvent(ev)
}

func (w *World) Tell(id, text string) {
	ev := w.event(protocol.EventChat)
	ev.Text = text
	w.send(w.participants[id], ev)
}

func (w *World) ShowTitle(id string, t feedback.Title) {
	p, ok := w.participants[id]
	if !ok {
		return
	}
	ev := w.event(protocol.EventTitle)
	ev.Text = t.Headline
	ev.Subtext = t.Subline
	ev.Color = string(t.HeadColor)
	ev.SubColor = string(t.SubColor)
	ev.FadeIn, ev.Stay, ev.FadeOut = t.FadeIn, t.Stay, t.FadeOut
	w.send(p, ev)
}

func (w *World) PlayCue(id string, c feedback.Cue) {
	p, ok := w.participants[id]
	if !ok {
		return
	}
	ev := w.event(protocol.EventCue)
	ev.Sound = c.Sound
	ev.Volume = c.Volume
	ev.Pitch = c.Pitch
	w.send(p, ev)
}

// SpawnParticles is visible to everyone.
func (w *World) SpawnParticles(fx feedback.Particles) {
	ev := w.event(protocol.EventParticles)
	pos := [3]float64{fx.Pos.X, fx.Pos.Y, fx.Pos.Z}
	ev.Particle = fx.Kind
	ev.Pos = &pos
	ev.Count = fx.Count
	ev.Spread = fx.Spread
	ev.Height = fx.Height
	w.broadcastEvent(ev)
}

// DrawRing is visible to everyone.
func (w *World) DrawRing(r feedback.Ring) {
	ev := w.event(protocol.EventRing)
	pos := [3]float64{r.Center.X, r.Center.Y, r.Center.Z}
	ev.Particle = r.Kind
	ev.Pos = &pos
	ev.Radius = r.Radius
	ev.Count = r.Points
	ev.Sections = r.Sections
	ev.Height = r.Height
	w.broadcastEvent(ev)
}

func (w *World) ShowBar(id string, b feedback.Bar) {
	p, ok := w.participants[id]
	if !ok {
		return
	}
	progress := b.Progress
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	ev := w.event(protocol.EventBar)
	ev.Text = b.Text
	ev.Color = string(b.Color)
	ev.Count = b.Segments
	ev.Progress = &progress
	w.send(p, ev)
}

func (w *World) HideBar(id string) {
	w.send(w.participants[id], w.event(protocol.EventBarClear))
}

func (w *World) SetWorldBoundary(size float64) {
	w.boundary = size
	ev := w.event(protocol.EventBoundary)
	ev.Size = size
	w.broadcastEvent(ev)
	w.publishMetrics()
}

// ApplyDamage lowers HP. A participant reaching zero respawns at full HP with
// effects cleared.
func (w *World) ApplyDamage(id string, amount float64) {
	p, ok := w.participants[id]
	if !ok || amount <= 0 {
		return
	}
	p.HP -= amount
	if p.HP < 0 {
		p.HP = 0
	}
	ev := w.event(protocol.EventDamage)
	ev.Amount = amount
	ev.HP = p.HP
	w.send(p, ev)

	if p.HP > 0 {
		return
	}
	w.Broadcast(p.Name + " was consumed by the zone")
	p.HP = w.cfg.MaxHP
	p.Effects = map[string]Effect{}
	resp := w.event(protocol.EventRespawn)
	resp.HP = p.HP
	w.send(p, resp)
}

// HP returns the participant's current health.
func (w *World) HP(id string) (float64, bool) {
	p, ok := w.participants[id]
	if !ok {
		return 0, false
	}
	return p.HP, true
}

// SetPosition moves a participant; used by tests and the admin surface.
func (w *World) SetPosition(id string, pos geom.Vec3) {
	if p, ok := w.participants[id]; ok {
		p.Pos = pos
	}
}
