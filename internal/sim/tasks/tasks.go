// Package tasks holds the command catalog predicates. A predicate is a pure
// function of a participant snapshot; multi-step tasks record progress in the
// per-round Marks owned by the round engine.
package tasks

import (
	"sort"
	"strconv"
	"strings"

	"simonzone.ai/internal/sim/geom"
)

// View is a read-only snapshot of one participant.
type View struct {
	ID    string
	Pos   geom.Vec3
	Pitch float64
	Yaw   float64

	OnGround  bool
	Sneaking  bool
	Sprinting bool

	MainHand string
	OffHand  string
	Hotbar   [9]string

	// HandSwaps counts main/off hand exchanges since join.
	HandSwaps int
	// NearbyItems counts dropped items within two blocks.
	NearbyItems int

	SolidAhead  bool // z-1 of the feet block
	SolidBehind bool // z+1 of the feet block
}

// Marks accumulates partial completion for one participant within one round.
type Marks map[string]struct{}

func (m Marks) Add(k string) { m[k] = struct{}{} }

func (m Marks) Has(k string) bool {
	_, ok := m[k]
	return ok
}

// IntValue returns the integer stored under a "prefix=N" mark.
func (m Marks) IntValue(prefix string) (int, bool) {
	for k := range m {
		rest, ok := strings.CutPrefix(k, prefix+"=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

type Predicate func(v View, marks Marks) bool

type Definition struct {
	ID          string
	Description string
	Hint        string
	CheckName   string
	Check       Predicate
}

var registry = map[string]Predicate{
	"airborne_sneak":        airborneSneak,
	"sprint_look_up":        sprintLookUp,
	"hand_swaps_3":          handSwaps(3),
	"dropped_item_nearby":   droppedItemNearby,
	"between_blocks":        betweenBlocks,
	"sprint_jump_look_down": sprintJumpLookDown,
	"dance":                 dance,
	"hotbar_sorted":         hotbarSorted,
}

func Lookup(name string) (Predicate, bool) {
	p, ok := registry[name]
	return p, ok
}

func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

const (
	lookUpPitch   = -80
	lookDownPitch = 80
)

func airborneSneak(v View, _ Marks) bool { return !v.OnGround && v.Sneaking }

func sprintLookUp(v View, _ Marks) bool { return v.Pitch < lookUpPitch && v.Sprinting }

func sprintJumpLookDown(v View, _ Marks) bool {
	return v.Sprinting && !v.OnGround && v.Pitch > lookDownPitch
}

func droppedItemNearby(v View, _ Marks) bool { return v.NearbyItems > 0 }

func betweenBlocks(v View, _ Marks) bool { return v.SolidAhead && v.SolidBehind }

// handSwaps remembers the swap counter seen on first evaluation and passes
// once n more swaps have been observed.
func handSwaps(n int) Predicate {
	return func(v View, marks Marks) bool {
		base, ok := marks.IntValue("swaps")
		if !ok {
			marks.Add("swaps=" + strconv.Itoa(v.HandSwaps))
			base = v.HandSwaps
		}
		return v.HandSwaps-base >= n
	}
}

func dance(v View, marks Marks) bool {
	if !v.OnGround {
		marks.Add("jump")
	}
	if v.Sneaking {
		marks.Add("sneak")
	}
	if v.Sprinting {
		marks.Add("sprint")
	}
	return marks.Has("jump") && marks.Has("sneak") && marks.Has("sprint")
}

// hotbarSorted ignores empty slots.
func hotbarSorted(v View, _ Marks) bool {
	prev := ""
	for _, item := range v.Hotbar {
		if item == "" {
			continue
		}
		if item < prev {
			return false
		}
		prev = item
	}
	return true
}
