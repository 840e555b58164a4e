package world

import "simonzone.ai/internal/protocol"

// Effect is an active status effect. Intensity 0 is the base level.
type Effect struct {
	Kind      string `json:"kind"`
	Intensity int    `json:"intensity"`
	UntilTick uint64 `json:"until_tick"`
}

// ApplyStatusEffect replaces any effect of the same kind.
func (w *World) ApplyStatusEffect(id, kind string, durationTicks, intensity int) bool {
	p, ok := w.participants[id]
	if !ok || kind == "" || durationTicks <= 0 {
		return false
	}
	if intensity < 0 {
		intensity = 0
	}
	p.Effects[kind] = Effect{
		Kind:      kind,
		Intensity: intensity,
		UntilTick: w.tick + uint64(durationTicks),
	}
	ev := w.event(protocol.EventEffect)
	ev.Effect = kind
	ev.Intensity = intensity
	ev.Duration = durationTicks
	w.send(p, ev)
	return true
}

// StatusEffect reports the current intensity of an active effect.
func (w *World) StatusEffect(id, kind string) (int, bool) {
	p, ok := w.participants[id]
	if !ok {
		return 0, false
	}
	e, ok := p.Effects[kind]
	if !ok || e.UntilTick <= w.tick {
		return 0, false
	}
	return e.Intensity, true
}
