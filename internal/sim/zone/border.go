package zone

import (
	"math"

	"simonzone.ai/internal/sim/feedback"
)

const (
	minBorderPoints   = 50
	minBorderSections = 8
	blocksPerSection  = 20
)

// Border traces the current zone edge as a particle wall.
type Border struct {
	zone   RadiusSource
	world  World
	height int
}

func NewBorder(zone RadiusSource, w World, wallHeight int) *Border {
	return &Border{zone: zone, world: w, height: wallHeight}
}

// Ring computes one column per block of circumference and one section per
// twenty blocks, with floors of 50 and 8.
func (b *Border) Ring() feedback.Ring {
	r := b.zone.CurrentRadius()
	circ := 2 * math.Pi * r
	points := int(math.Max(minBorderPoints, math.Ceil(circ)))
	sections := int(math.Max(minBorderSections, math.Ceil(circ/blocksPerSection)))
	return feedback.Ring{
		Kind:     feedback.ParticleDust,
		Center:   b.zone.Center(),
		Radius:   r,
		Points:   points,
		Sections: sections,
		Height:   float64(b.height),
	}
}

func (b *Border) Draw() { b.world.DrawRing(b.Ring()) }
