package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := len(d.Rounds.LaunchOffsetsSeconds); got != 17 {
		t.Fatalf("launch offsets: got %d want 17", got)
	}
	if d.Rounds.LaunchOffsetsSeconds[16] != 1020 {
		t.Fatalf("last offset: got %d want 1020", d.Rounds.LaunchOffsetsSeconds[16])
	}
}

func TestLoad_OverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := `
tick_rate_hz: 10
zone:
  phases:
    - {wait_seconds: 10, shrink_seconds: 5}
  size_fractions: [1.0, 0.5]
rounds:
  contradiction_probability: 0
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 10 {
		t.Fatalf("tick_rate_hz: got %d want 10", got.TickRateHz)
	}
	if len(got.Zone.Phases) != 1 || got.Zone.Phases[0].WaitSeconds != 10 {
		t.Fatalf("phases: got %+v", got.Zone.Phases)
	}
	if got.Rounds.ContradictionProbability != 0 {
		t.Fatalf("contradiction_probability: got %v want 0", got.Rounds.ContradictionProbability)
	}
	if got.Rounds.ObeyProbability != 0.6 {
		t.Fatalf("obey_probability: got %v want default 0.6", got.Rounds.ObeyProbability)
	}
	if got.Zone.DamageCheckTicks != 10 {
		t.Fatalf("damage_check_ticks: got %d want default 10", got.Zone.DamageCheckTicks)
	}
}

func TestParse_RejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "tick_rate: 20\n",
		"probability > 1": "rounds:\n  obey_probability: 1.5\n",
		"zero shrink":     "zone:\n  phases:\n    - {wait_seconds: 1, shrink_seconds: 0}\n  size_fractions: [1, 0]\n",
		"fraction string": "zone:\n  size_fractions: [\"big\"]\n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParse_RejectsFractionMismatch(t *testing.T) {
	raw := "zone:\n  phases:\n    - {wait_seconds: 1, shrink_seconds: 1}\n  size_fractions: [1.0, 0.5, 0.2]\n"
	_, err := Parse([]byte(raw))
	if err == nil || !strings.Contains(err.Error(), "size_fractions") {
		t.Fatalf("expected size_fractions error, got %v", err)
	}
}

func TestParse_RejectsIncreasingFractions(t *testing.T) {
	raw := "zone:\n  phases:\n    - {wait_seconds: 1, shrink_seconds: 1}\n  size_fractions: [0.5, 0.7]\n"
	if _, err := Parse([]byte(raw)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParse_RepoTuningFile(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Zone.InitialDiameter != 300 {
		t.Fatalf("initial_diameter: got %v want 300", got.Zone.InitialDiameter)
	}
}

func TestDigest_ChangesWithValues(t *testing.T) {
	a := Defaults()
	b := Defaults()
	if a.Digest() == "" || a.Digest() != b.Digest() {
		t.Fatalf("digest not stable: %q vs %q", a.Digest(), b.Digest())
	}
	b.Rounds.ObeyProbability = 0.5
	if a.Digest() == b.Digest() {
		t.Fatalf("digest ignored a changed value")
	}
}
