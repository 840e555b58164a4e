package zone

import (
	"errors"
	"fmt"
)

type Phase struct {
	WaitSeconds   int
	ShrinkSeconds int
}

// PhaseTable pairs N phases with N+1 size fractions: phase i shrinks the zone
// from fractions[i] to fractions[i+1] of the initial radius.
type PhaseTable struct {
	phases    []Phase
	fractions []float64
}

func NewPhaseTable(phases []Phase, fractions []float64) (PhaseTable, error) {
	if len(phases) == 0 {
		return PhaseTable{}, errors.New("zone: no phases")
	}
	if len(fractions) != len(phases)+1 {
		return PhaseTable{}, fmt.Errorf("zone: %d phases need %d fractions, got %d", len(phases), len(phases)+1, len(fractions))
	}
	for i, p := range phases {
		if p.WaitSeconds < 0 {
			return PhaseTable{}, fmt.Errorf("zone: phase %d wait must be >= 0", i)
		}
		if p.ShrinkSeconds < 1 {
			return PhaseTable{}, fmt.Errorf("zone: phase %d shrink must be >= 1", i)
		}
	}
	for i, f := range fractions {
		if f < 0 || f > 1 {
			return PhaseTable{}, fmt.Errorf("zone: fraction %d out of range: %v", i, f)
		}
		if i > 0 && f > fractions[i-1] {
			return PhaseTable{}, fmt.Errorf("zone: fraction %d increases", i)
		}
	}
	t := PhaseTable{
		phases:    append([]Phase(nil), phases...),
		fractions: append([]float64(nil), fractions...),
	}
	return t, nil
}

func (t PhaseTable) Len() int               { return len(t.phases) }
func (t PhaseTable) Phase(i int) Phase      { return t.phases[i] }
func (t PhaseTable) Fraction(i int) float64 { return t.fractions[i] }
