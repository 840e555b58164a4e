// Package world is the in-memory arena the engines act on: participants, their
// self-reported pose, status effects, blocks and dropped items. Every method
// must be called from the scheduler goroutine; transports hand work over with
// Submit. Operations on unknown participants are silent no-ops.
package world

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"simonzone.ai/internal/protocol"
	"simonzone.ai/internal/sim/geom"
	"simonzone.ai/internal/sim/tasks"
)

type Participant struct {
	ID   string
	Name string

	Pos   geom.Vec3
	Pitch float64
	Yaw   float64

	OnGround  bool
	Sneaking  bool
	Sprinting bool

	MainHand  string
	OffHand   string
	Hotbar    [9]string
	HandSwaps int

	HP      float64
	Effects map[string]Effect

	out chan []byte
}

type droppedItem struct {
	ID        uint64
	Item      string
	Pos       geom.Vec3
	ExpiresAt uint64
}

type World struct {
	cfg WorldConfig
	log *log.Logger

	tick uint64

	participants map[string]*Participant
	order        []string
	nextID       uint64

	blocks   map[geom.BlockPos]string
	items    []droppedItem
	nextItem uint64

	boundary float64

	droppedMsgs atomic.Uint64
	metrics     atomic.Value // WorldMetrics
}

func New(cfg WorldConfig, logger *log.Logger) *World {
	cfg.applyDefaults()
	w := &World{
		cfg:          cfg,
		log:          logger,
		participants: map[string]*Participant{},
		blocks:       map[geom.BlockPos]string{},
		boundary:     cfg.BoundarySize,
	}
	for _, b := range cfg.Blocks {
		w.blocks[b] = "STONE"
	}
	w.publishMetrics()
	return w
}

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) CurrentTick() uint64 { return w.tick }
func (w *World) Boundary() float64   { return w.boundary }

// Join adds a participant and returns its id. out receives encoded EVENT and
// ACK messages; a full queue drops messages rather than blocking the tick.
func (w *World) Join(name string, out chan []byte) string {
	w.nextID++
	id := fmt.Sprintf("P%d", w.nextID)
	if name == "" {
		name = id
	}
	w.participants[id] = &Participant{
		ID:      id,
		Name:    name,
		HP:      w.cfg.MaxHP,
		Effects: map[string]Effect{},
		out:     out,
	}
	w.order = append(w.order, id)
	w.logf("join id=%s name=%s", id, name)
	w.publishMetrics()
	return id
}

func (w *World) Leave(id string) {
	if _, ok := w.participants[id]; !ok {
		return
	}
	delete(w.participants, id)
	for i, v := range w.order {
		if v == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.logf("leave id=%s", id)
	w.publishMetrics()
}

// Participant returns a copy of the participant's state.
func (w *World) Participant(id string) (Participant, bool) {
	p, ok := w.participants[id]
	if !ok {
		return Participant{}, false
	}
	cp := *p
	cp.Effects = make(map[string]Effect, len(p.Effects))
	for k, v := range p.Effects {
		cp.Effects[k] = v
	}
	cp.out = nil
	return cp, true
}

// ParticipantByName finds a connected participant by display name.
func (w *World) ParticipantByName(name string) (string, bool) {
	for _, id := range w.order {
		if w.participants[id].Name == name {
			return id, true
		}
	}
	return "", false
}

// Roster lists participant ids in join order.
func (w *World) Roster() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

func (w *World) Position(id string) (geom.Vec3, bool) {
	p, ok := w.participants[id]
	if !ok {
		return geom.Vec3{}, false
	}
	return p.Pos, true
}

// View builds the read-only snapshot task predicates evaluate.
func (w *World) View(id string) (tasks.View, bool) {
	p, ok := w.participants[id]
	if !ok {
		return tasks.View{}, false
	}
	feet := p.Pos.Block()
	ahead := geom.BlockPos{X: feet.X, Y: feet.Y, Z: feet.Z - 1}
	behind := geom.BlockPos{X: feet.X, Y: feet.Y, Z: feet.Z + 1}
	_, solidAhead := w.blocks[ahead]
	_, solidBehind := w.blocks[behind]

	nearby := 0
	for _, it := range w.items {
		if geom.Distance(it.Pos, p.Pos) < w.cfg.ItemRadius {
			nearby++
		}
	}
	return tasks.View{
		ID:          p.ID,
		Pos:         p.Pos,
		Pitch:       p.Pitch,
		Yaw:         p.Yaw,
		OnGround:    p.OnGround,
		Sneaking:    p.Sneaking,
		Sprinting:   p.Sprinting,
		MainHand:    p.MainHand,
		OffHand:     p.OffHand,
		Hotbar:      p.Hotbar,
		HandSwaps:   p.HandSwaps,
		NearbyItems: nearby,
		SolidAhead:  solidAhead,
		SolidBehind: solidBehind,
	}, true
}

// ApplyState copies a client STATE report onto the participant.
func (w *World) ApplyState(id string, st protocol.StateMsg) {
	p, ok := w.participants[id]
	if !ok {
		return
	}
	p.Pos = geom.Vec3{X: st.Pos[0], Y: st.Pos[1], Z: st.Pos[2]}
	p.Pitch = st.Pitch
	p.Yaw = st.Yaw
	p.OnGround = st.OnGround
	p.Sneaking = st.Sneaking
	p.Sprinting = st.Sprinting
	p.MainHand = st.MainHand
	p.OffHand = st.OffHand
	if st.Hotbar != nil {
		var hb [9]string
		copy(hb[:], st.Hotbar)
		p.Hotbar = hb
	}
}

// Step runs once per scheduler tick: expires effects and dropped items and
// publishes metrics.
func (w *World) Step(tick uint64) {
	w.tick = tick
	for _, id := range w.order {
		p := w.participants[id]
		for kind, e := range p.Effects {
			if e.UntilTick <= tick {
				delete(p.Effects, kind)
			}
		}
	}
	if len(w.items) > 0 {
		live := w.items[:0]
		for _, it := range w.items {
			if it.ExpiresAt > tick {
				live = append(live, it)
			}
		}
		w.items = live
	}
	w.publishMetrics()
}

func (w *World) send(p *Participant, v any) {
	if p == nil || p.out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	w.sendRaw(p, b)
}

func (w *World) sendRaw(p *Participant, b []byte) {
	select {
	case p.out <- b:
	default:
		w.droppedMsgs.Add(1)
	}
}

func (w *World) event(kind string) protocol.EventMsg {
	return protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick,
		Kind:            kind,
	}
}

func (w *World) broadcastEvent(ev protocol.EventMsg) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	for _, id := range w.order {
		w.sendRaw(w.participants[id], b)
	}
}

func (w *World) logf(format string, args ...any) {
	if w.log != nil {
		w.log.Printf(format, args...)
	}
}
