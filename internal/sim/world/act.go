package world

import (
	"simonzone.ai/internal/protocol"
	"simonzone.ai/internal/sim/geom"
)

// ApplyAct executes instant actions and answers each with an ACK.
func (w *World) ApplyAct(id string, act protocol.ActMsg) {
	p, ok := w.participants[id]
	if !ok {
		return
	}
	for _, in := range act.Instants {
		code, msg := w.applyInstant(p, in)
		w.send(p, protocol.AckMsg{
			Type:            protocol.TypeAck,
			ProtocolVersion: protocol.Version,
			AckFor:          in.ID,
			Accepted:        code == "",
			Code:            code,
			Message:         msg,
			ServerTick:      w.tick,
		})
	}
}

func (w *World) applyInstant(p *Participant, in protocol.InstantReq) (code, msg string) {
	switch in.Type {
	case protocol.InstantSwapHands:
		p.MainHand, p.OffHand = p.OffHand, p.MainHand
		p.HandSwaps++
		return "", ""

	case protocol.InstantDropItem:
		item := in.Item
		if item == "" {
			item = p.MainHand
		}
		if item == "" {
			return protocol.ErrNoResource, "nothing to drop"
		}
		if item == p.MainHand {
			p.MainHand = ""
		} else if !takeFromHotbar(p, item) {
			return protocol.ErrNoResource, "item not held"
		}
		w.nextItem++
		w.items = append(w.items, droppedItem{
			ID:        w.nextItem,
			Item:      item,
			Pos:       p.Pos,
			ExpiresAt: w.tick + uint64(w.cfg.ItemDespawnTicks),
		})
		return "", ""

	case protocol.InstantPickupItem:
		best := -1
		bestDist := w.cfg.ItemRadius
		for i, it := range w.items {
			if d := geom.Distance(it.Pos, p.Pos); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			return protocol.ErrInvalidTarget, "no item in range"
		}
		it := w.items[best]
		if !give(p, it.Item) {
			return protocol.ErrBlocked, "inventory full"
		}
		w.items = append(w.items[:best], w.items[best+1:]...)
		return "", ""

	case protocol.InstantPlaceBlock:
		pos := geom.BlockPos{X: in.Target[0], Y: in.Target[1], Z: in.Target[2]}
		if !w.inReach(p, pos) {
			return protocol.ErrInvalidTarget, "out of reach"
		}
		if _, taken := w.blocks[pos]; taken {
			return protocol.ErrConflict, "block occupied"
		}
		kind := in.Item
		if kind == "" {
			kind = "STONE"
		}
		w.blocks[pos] = kind
		return "", ""

	case protocol.InstantBreakBlock:
		pos := geom.BlockPos{X: in.Target[0], Y: in.Target[1], Z: in.Target[2]}
		if !w.inReach(p, pos) {
			return protocol.ErrInvalidTarget, "out of reach"
		}
		if _, ok := w.blocks[pos]; !ok {
			return protocol.ErrInvalidTarget, "no block"
		}
		delete(w.blocks, pos)
		return "", ""

	default:
		return protocol.ErrBadRequest, "unknown instant type"
	}
}

func (w *World) inReach(p *Participant, b geom.BlockPos) bool {
	center := geom.Vec3{X: float64(b.X) + 0.5, Y: float64(b.Y) + 0.5, Z: float64(b.Z) + 0.5}
	return geom.Distance(center, p.Pos) <= w.cfg.Reach
}

func takeFromHotbar(p *Participant, item string) bool {
	for i, v := range p.Hotbar {
		if v == item {
			p.Hotbar[i] = ""
			return true
		}
	}
	return false
}

func give(p *Participant, item string) bool {
	if p.MainHand == "" {
		p.MainHand = item
		return true
	}
	for i, v := range p.Hotbar {
		if v == "" {
			p.Hotbar[i] = item
			return true
		}
	}
	return false
}

// SetBlock places or clears a solid block directly.
func (w *World) SetBlock(pos geom.BlockPos, kind string) {
	if kind == "" {
		delete(w.blocks, pos)
		return
	}
	w.blocks[pos] = kind
}
