package world

import "simonzone.ai/internal/sim/geom"

type WorldConfig struct {
	ID         string
	TickRateHz int

	MaxHP float64

	// Dropped items count as "nearby" inside this radius and can be picked
	// up from it.
	ItemRadius       float64
	ItemDespawnTicks int
	// Max distance from a participant to a block they place or break.
	Reach float64

	// Solid blocks present when the world is created.
	Blocks []geom.BlockPos

	// Initial world boundary size (diameter).
	BoundarySize float64
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "arena"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.MaxHP <= 0 {
		c.MaxHP = 20
	}
	if c.ItemRadius <= 0 {
		c.ItemRadius = 2
	}
	if c.ItemDespawnTicks <= 0 {
		c.ItemDespawnTicks = 6000
	}
	if c.Reach <= 0 {
		c.Reach = 6
	}
	if c.BoundarySize <= 0 {
		c.BoundarySize = 60_000_000
	}
}
