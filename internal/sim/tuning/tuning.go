package tuning

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz"`

	Zone   ZoneTuning  `yaml:"zone" json:"zone"`
	Rounds RoundTuning `yaml:"rounds" json:"rounds"`
}

type ZoneTuning struct {
	InitialDiameter   float64 `yaml:"initial_diameter" json:"initial_diameter"`
	DamageAmount      float64 `yaml:"damage_amount" json:"damage_amount"`
	DamageCheckTicks  int     `yaml:"damage_check_ticks" json:"damage_check_ticks"`
	BorderUpdateTicks int     `yaml:"border_update_ticks" json:"border_update_ticks"`
	BorderWallHeight  int     `yaml:"border_wall_height" json:"border_wall_height"`

	// Warnings are emitted while waiting when the remaining seconds are at most
	// WarningWindowSeconds and a multiple of WarningEverySeconds.
	WarningWindowSeconds int `yaml:"warning_window_seconds" json:"warning_window_seconds"`
	WarningEverySeconds  int `yaml:"warning_every_seconds" json:"warning_every_seconds"`

	Phases        []PhaseTuning `yaml:"phases" json:"phases"`
	SizeFractions []float64     `yaml:"size_fractions" json:"size_fractions"`

	// World boundary sizes applied at session start and stop.
	UnboundedSize float64 `yaml:"unbounded_size" json:"unbounded_size"`
	RestoredSize  float64 `yaml:"restored_size" json:"restored_size"`
}

type PhaseTuning struct {
	WaitSeconds   int `yaml:"wait_seconds" json:"wait_seconds"`
	ShrinkSeconds int `yaml:"shrink_seconds" json:"shrink_seconds"`
}

type RoundTuning struct {
	DurationSeconds      int   `yaml:"duration_seconds" json:"duration_seconds"`
	UrgentSeconds        int   `yaml:"urgent_seconds" json:"urgent_seconds"`
	LaunchOffsetsSeconds []int `yaml:"launch_offsets_seconds" json:"launch_offsets_seconds"`

	ObeyProbability          float64 `yaml:"obey_probability" json:"obey_probability"`
	ContradictionProbability float64 `yaml:"contradiction_probability" json:"contradiction_probability"`
	RewardBuffProbability    float64 `yaml:"reward_buff_probability" json:"reward_buff_probability"`

	RewardBuff EffectTuning `yaml:"reward_buff" json:"reward_buff"`
	Debuffs    DebuffTuning `yaml:"debuffs" json:"debuffs"`
}

type EffectTuning struct {
	Kind          string `yaml:"kind" json:"kind"`
	DurationTicks int    `yaml:"duration_ticks" json:"duration_ticks"`
	Intensity     int    `yaml:"intensity" json:"intensity"`
}

type DebuffTuning struct {
	Kinds         []string `yaml:"kinds" json:"kinds"`
	DurationTicks int      `yaml:"duration_ticks" json:"duration_ticks"`
	MaxIntensity  int      `yaml:"max_intensity" json:"max_intensity"`
	MinCount      int      `yaml:"min_count" json:"min_count"`
	MaxCount      int      `yaml:"max_count" json:"max_count"`
}

// Defaults returns the reference twenty-minute game.
func Defaults() Tuning {
	offsets := make([]int, 0, 17)
	for s := 60; s <= 1020; s += 60 {
		offsets = append(offsets, s)
	}
	return Tuning{
		TickRateHz: 20,
		Zone: ZoneTuning{
			InitialDiameter:      300,
			DamageAmount:         2.0,
			DamageCheckTicks:     10,
			BorderUpdateTicks:    2,
			BorderWallHeight:     320,
			WarningWindowSeconds: 30,
			WarningEverySeconds:  10,
			Phases: []PhaseTuning{
				{WaitSeconds: 240, ShrinkSeconds: 90},
				{WaitSeconds: 180, ShrinkSeconds: 60},
				{WaitSeconds: 180, ShrinkSeconds: 45},
				{WaitSeconds: 120, ShrinkSeconds: 30},
				{WaitSeconds: 90, ShrinkSeconds: 20},
				{WaitSeconds: 60, ShrinkSeconds: 15},
			},
			SizeFractions: []float64{1.0, 0.7, 0.4, 0.2, 0.1, 0.05, 0},
			UnboundedSize: math.MaxInt32,
			RestoredSize:  60_000_000,
		},
		Rounds: RoundTuning{
			DurationSeconds:          15,
			UrgentSeconds:            5,
			LaunchOffsetsSeconds:     offsets,
			ObeyProbability:          0.6,
			ContradictionProbability: 0.3,
			RewardBuffProbability:    0.3,
			RewardBuff:               EffectTuning{Kind: "SPEED", DurationTicks: 400, Intensity: 0},
			Debuffs: DebuffTuning{
				Kinds:         []string{"WEAKNESS", "SLOWNESS", "NAUSEA", "BLINDNESS", "HUNGER"},
				DurationTicks: 600,
				MaxIntensity:  3,
				MinCount:      1,
				MaxCount:      3,
			},
		},
	}
}

// Load reads a tuning file. Keys absent from the file keep their Defaults()
// value; the document is checked against the embedded JSON schema first.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	if err := validateSchema(raw); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	t := Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func validateSchema(raw []byte) error {
	schema, err := jsonschema.CompileString("tuning.schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// Validate checks cross-field constraints the schema cannot express.
func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return errors.New("tick_rate_hz must be positive")
	}
	z := t.Zone
	if len(z.Phases) == 0 {
		return errors.New("zone.phases must not be empty")
	}
	if len(z.SizeFractions) != len(z.Phases)+1 {
		return fmt.Errorf("zone.size_fractions: got %d entries want %d", len(z.SizeFractions), len(z.Phases)+1)
	}
	for i := 1; i < len(z.SizeFractions); i++ {
		if z.SizeFractions[i] > z.SizeFractions[i-1] {
			return fmt.Errorf("zone.size_fractions[%d] increases", i)
		}
	}
	r := t.Rounds
	if r.Debuffs.MinCount > r.Debuffs.MaxCount {
		return errors.New("rounds.debuffs.min_count exceeds max_count")
	}
	if r.Debuffs.MaxCount > len(r.Debuffs.Kinds) {
		return errors.New("rounds.debuffs.max_count exceeds number of kinds")
	}
	return nil
}

// Digest is the sha256 of the canonical JSON form of t.
func (t Tuning) Digest() string {
	b, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
