package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the scheduler goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Participants int     `json:"participants"`
	Blocks       int     `json:"blocks"`
	Items        int     `json:"items"`
	Boundary     float64 `json:"boundary"`

	DroppedMessages uint64 `json:"dropped_messages"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics() {
	w.metrics.Store(WorldMetrics{
		Tick:            w.tick,
		Participants:    len(w.participants),
		Blocks:          len(w.blocks),
		Items:           len(w.items),
		Boundary:        w.boundary,
		DroppedMessages: w.droppedMsgs.Load(),
	})
}
