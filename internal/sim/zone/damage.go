package zone

import "simonzone.ai/internal/sim/geom"

// edgeTolerance is added to the radius before a participant counts as outside.
const edgeTolerance = 0.5

type RadiusSource interface {
	Center() geom.Vec3
	CurrentRadius() float64
}

// DamageChecker is stateless: every call re-reads the zone and the roster.
type DamageChecker struct {
	zone   RadiusSource
	world  World
	amount float64

	hits uint64
}

func NewDamageChecker(zone RadiusSource, w World, amount float64) *DamageChecker {
	return &DamageChecker{zone: zone, world: w, amount: amount}
}

func (d *DamageChecker) Check() {
	center := d.zone.Center()
	radius := d.zone.CurrentRadius()
	for _, id := range d.world.Roster() {
		pos, ok := d.world.Position(id)
		if !ok {
			continue
		}
		// The center cell is always safe, even at radius zero.
		if geom.SameColumn(pos, center) {
			continue
		}
		if geom.FlatDistance(pos, center) > radius+edgeTolerance {
			d.world.ApplyDamage(id, d.amount)
			d.hits++
		}
	}
}

// Hits counts damage applications since creation.
func (d *DamageChecker) Hits() uint64 { return d.hits }
