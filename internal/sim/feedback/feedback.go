// Package feedback holds the presentation values the engines hand to the world:
// titles, progress bars, sound cues and particle bursts.
package feedback

import "simonzone.ai/internal/sim/geom"

type Color string

const (
	ColorGreen  Color = "GREEN"
	ColorBlue   Color = "BLUE"
	ColorRed    Color = "RED"
	ColorYellow Color = "YELLOW"
	ColorGray   Color = "GRAY"
	ColorGold   Color = "GOLD"
)

// Title timing is in ticks.
type Title struct {
	Headline  string
	Subline   string
	HeadColor Color
	SubColor  Color
	FadeIn    int
	Stay      int
	FadeOut   int
}

// WithDefaultTiming applies the 10/40/10 tick fade used by round titles.
func (t Title) WithDefaultTiming() Title {
	t.FadeIn, t.Stay, t.FadeOut = 10, 40, 10
	return t
}

type Bar struct {
	Text     string
	Progress float64 // 0..1
	Color    Color
	Segments int
}

const (
	SoundChime   = "NOTE_BLOCK_CHIME"
	SoundBass    = "NOTE_BLOCK_BASS"
	SoundLevelUp = "PLAYER_LEVELUP"
	SoundNo      = "VILLAGER_NO"
	SoundPling   = "NOTE_BLOCK_PLING"
	SoundClick   = "UI_BUTTON_CLICK"
)

type Cue struct {
	Sound  string
	Volume float64
	Pitch  float64
}

const (
	ParticleNote       = "NOTE"
	ParticleLargeSmoke = "LARGE_SMOKE"
	ParticleTotem      = "TOTEM_OF_UNDYING"
	ParticleHappy      = "HAPPY_VILLAGER"
	ParticleDust       = "DUST"
)

type Particles struct {
	Kind   string
	Pos    geom.Vec3
	Count  int
	Spread float64
	// Height is the vertical extent for wall particles.
	Height float64
}

// Ring is a vertical particle wall traced around a circle: Points columns,
// each split into Sections stacked bursts over Height.
type Ring struct {
	Kind     string
	Center   geom.Vec3
	Radius   float64
	Points   int
	Sections int
	Height   float64
}
