package rounds

import (
	"strings"
	"testing"

	"simonzone.ai/internal/sim/audit"
	"simonzone.ai/internal/sim/catalogs"
	"simonzone.ai/internal/sim/feedback"
	"simonzone.ai/internal/sim/geom"
	"simonzone.ai/internal/sim/sched"
	"simonzone.ai/internal/sim/tasks"
	"simonzone.ai/internal/sim/tuning"
)

type fakeWorld struct {
	order     []string
	views     map[string]tasks.View
	effects   map[string]map[string]int
	chat      []string
	told      map[string][]string
	titles    map[string][]feedback.Title
	cues      map[string][]feedback.Cue
	bars      map[string][]feedback.Bar
	hidden    map[string]int
	particles []feedback.Particles
}

func newFakeWorld(ids ...string) *fakeWorld {
	f := &fakeWorld{
		views:   map[string]tasks.View{},
		effects: map[string]map[string]int{},
		told:    map[string][]string{},
		titles:  map[string][]feedback.Title{},
		cues:    map[string][]feedback.Cue{},
		bars:    map[string][]feedback.Bar{},
		hidden:  map[string]int{},
	}
	for _, id := range ids {
		f.order = append(f.order, id)
		f.views[id] = tasks.View{ID: id, OnGround: true}
		f.effects[id] = map[string]int{}
	}
	return f
}

func (f *fakeWorld) set(id string, mut func(v *tasks.View)) {
	v := f.views[id]
	mut(&v)
	f.views[id] = v
}

func (f *fakeWorld) leave(id string) {
	delete(f.views, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fakeWorld) Roster() []string { return append([]string(nil), f.order...) }

func (f *fakeWorld) Position(id string) (geom.Vec3, bool) {
	v, ok := f.views[id]
	return v.Pos, ok
}

func (f *fakeWorld) View(id string) (tasks.View, bool) {
	v, ok := f.views[id]
	return v, ok
}

func (f *fakeWorld) Broadcast(text string)                 { f.chat = append(f.chat, text) }
func (f *fakeWorld) Tell(id, text string)                  { f.told[id] = append(f.told[id], text) }
func (f *fakeWorld) ShowTitle(id string, t feedback.Title) { f.titles[id] = append(f.titles[id], t) }
func (f *fakeWorld) PlayCue(id string, c feedback.Cue)     { f.cues[id] = append(f.cues[id], c) }
func (f *fakeWorld) SpawnParticles(fx feedback.Particles)  { f.particles = append(f.particles, fx) }
func (f *fakeWorld) ShowBar(id string, b feedback.Bar)     { f.bars[id] = append(f.bars[id], b) }
func (f *fakeWorld) HideBar(id string)                     { f.hidden[id]++ }

func (f *fakeWorld) ApplyStatusEffect(id, kind string, durationTicks, intensity int) bool {
	m, ok := f.effects[id]
	if !ok {
		return false
	}
	m[kind] = intensity
	return true
}

func (f *fakeWorld) StatusEffect(id, kind string) (int, bool) {
	v, ok := f.effects[id][kind]
	return v, ok
}

// scriptRand replays fixed draws; once a script runs dry Float64 returns 0.99
// and Intn returns 0. Shuffle keeps the input order.
type scriptRand struct {
	floats []float64
	ints   []int
}

func (s *scriptRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0.99
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func (s *scriptRand) Shuffle(int, func(i, j int)) {}

func isSneaking(v tasks.View, _ tasks.Marks) bool  { return v.Sneaking }
func isSprinting(v tasks.View, _ tasks.Marks) bool { return v.Sprinting }

func testCatalogs() *catalogs.Catalogs {
	return &catalogs.Catalogs{
		Tasks: catalogs.TaskCatalog{Defs: []tasks.Definition{
			{ID: "sneak", Description: "Sneak", Check: isSneaking},
			{ID: "sprint", Description: "Sprint", Check: isSprinting},
		}},
		Phrases: catalogs.PhraseCatalog{
			Prefixes:   []string{"Simon says", "Simon said"},
			Adjectives: []string{"quickly"},
		},
	}
}

func testConfig(obey bool) Config {
	cfg := Config{
		DurationSeconds:      15,
		UrgentSeconds:        5,
		LaunchOffsetsSeconds: []int{1, 61, 121},
		RewardBuff:           Effect{Kind: "SPEED", DurationTicks: 400},
		Debuffs: DebuffConfig{
			Kinds:         []string{"WEAKNESS", "SLOWNESS", "NAUSEA", "BLINDNESS", "HUNGER"},
			DurationTicks: 600,
			MaxIntensity:  3,
			MinCount:      1,
			MaxCount:      3,
		},
	}
	if obey {
		cfg.ObeyProbability = 1
	}
	return cfg
}

func outcomesFor(mem *audit.Memory, id string) []audit.OutcomeEntry {
	var out []audit.OutcomeEntry
	for _, o := range mem.Outcomes {
		if o.ParticipantID == id {
			out = append(out, o)
		}
	}
	return out
}

func TestObeyRound_RewardOnObservationPenaltyAtEnd(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1", "P2")
	mem := &audit.Memory{}
	cats := testCatalogs()
	e := NewEngine(testConfig(true), cats, w, s, &scriptRand{}, mem, nil)

	e.StartRound(cats.Tasks.Defs[0])
	if got := w.told["P1"]; len(got) != 1 || got[0] != "➤ Simon says quickly sneak!" {
		t.Fatalf("announce: got %q", got)
	}
	if b := w.bars["P1"][0]; b.Color != feedback.ColorGreen || b.Text != "Simon says: Sneak" || b.Segments != 20 {
		t.Fatalf("bar: got %+v", b)
	}

	s.Advance(20)
	w.set("P1", func(v *tasks.View) { v.Sneaking = true })
	s.Advance(20)

	p1 := outcomesFor(mem, "P1")
	if len(p1) != 1 || !p1[0].Success || p1[0].Final || p1[0].Tick != 40 {
		t.Fatalf("P1 outcome: got %+v", p1)
	}
	if last := w.titles["P1"][len(w.titles["P1"])-1]; last.Headline != "SUCCESS!" {
		t.Fatalf("P1 title: got %q", last.Headline)
	}

	w.set("P1", func(v *tasks.View) { v.Sneaking = false })
	s.Advance(15 * 20)

	if e.Round() != nil {
		t.Fatalf("round should be finished")
	}
	if got := len(outcomesFor(mem, "P1")); got != 1 {
		t.Fatalf("P1 outcomes: got %d want 1", got)
	}
	p2 := outcomesFor(mem, "P2")
	if len(p2) != 1 || p2[0].Success || !p2[0].Final {
		t.Fatalf("P2 outcome: got %+v", p2)
	}
	if lvl, ok := w.effects["P2"]["WEAKNESS"]; !ok || lvl != 0 {
		t.Fatalf("P2 debuff: got %d,%v", lvl, ok)
	}
	told := w.told["P2"]
	if told[len(told)-1] != "✗ You failed because: Simon said to do it!" {
		t.Fatalf("P2 reason: got %q", told[len(told)-1])
	}
	if len(w.chat) == 0 || w.chat[len(w.chat)-1] != "Time's up! Next task coming soon..." {
		t.Fatalf("round end chat: got %q", w.chat)
	}
	if w.hidden["P1"] != 1 || w.hidden["P2"] != 1 {
		t.Fatalf("bars hidden: got %v", w.hidden)
	}
	if len(mem.Rounds) != 2 || mem.Rounds[0].Kind != audit.RoundStart || mem.Rounds[1].Kind != audit.RoundEnd {
		t.Fatalf("round audit: got %+v", mem.Rounds)
	}
}

func TestDecoyRound_PerformingIsPenalizedAbstainingRewarded(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1", "P2")
	w.set("P1", func(v *tasks.View) { v.Sneaking = true })
	mem := &audit.Memory{}
	cats := testCatalogs()
	e := NewEngine(testConfig(false), cats, w, s, &scriptRand{}, mem, nil)

	e.StartRound(cats.Tasks.Defs[0])

	p1 := outcomesFor(mem, "P1")
	if len(p1) != 1 || p1[0].Success || p1[0].Tick != 0 {
		t.Fatalf("P1 outcome: got %+v", p1)
	}
	if b := w.bars["P2"][0]; b.Color != feedback.ColorBlue {
		t.Fatalf("decoy bar color: got %s", b.Color)
	}
	told := w.told["P1"]
	if told[len(told)-1] != "✗ You failed because: Simon didn't say!" {
		t.Fatalf("P1 reason: got %q", told[len(told)-1])
	}

	s.Advance(16 * 20)
	p2 := outcomesFor(mem, "P2")
	if len(p2) != 1 || !p2[0].Success || !p2[0].Final {
		t.Fatalf("P2 outcome: got %+v", p2)
	}
	if got := len(outcomesFor(mem, "P1")); got != 1 {
		t.Fatalf("P1 outcomes: got %d want 1", got)
	}
}

func TestContradiction_IssuedOnceAtHalfway(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1")
	cfg := testConfig(true)
	cfg.ContradictionProbability = 1
	cats := testCatalogs()
	e := NewEngine(cfg, cats, w, s, &scriptRand{}, nil, nil)

	e.StartRound(cats.Tasks.Defs[0])
	r := e.Round()
	if r.Contradiction == nil || r.Contradiction.ID != "sprint" {
		t.Fatalf("contradiction: got %+v", r.Contradiction)
	}

	s.Advance(7 * 20)
	if r.ContradictionIssued() || len(w.told["P1"]) != 1 {
		t.Fatalf("contradiction too early at %d remaining", r.SecondsRemaining())
	}
	s.Advance(20)
	if !r.ContradictionIssued() {
		t.Fatalf("contradiction not issued")
	}
	told := w.told["P1"]
	if len(told) != 2 || told[1] != "➤ Simon says quickly sprint!" {
		t.Fatalf("contradiction chat: got %q", told)
	}
	if last := w.titles["P1"][1]; last.HeadColor != feedback.ColorBlue {
		t.Fatalf("contradiction framing: got %s", last.HeadColor)
	}

	s.Advance(5 * 20)
	if got := len(w.told["P1"]); got != 2 {
		t.Fatalf("contradiction repeated: got %d messages", got)
	}
}

func TestContradiction_ObeyFramingIgnoresPrefixOrder(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1")
	cfg := testConfig(true)
	cfg.ContradictionProbability = 1
	cats := testCatalogs()
	cats.Phrases.Prefixes = []string{"Simon said", "Simon says"}
	e := NewEngine(cfg, cats, w, s, &scriptRand{}, nil, nil)

	e.StartRound(cats.Tasks.Defs[0])
	s.Advance(8 * 20)
	told := w.told["P1"]
	if len(told) != 2 {
		t.Fatalf("messages: got %q", told)
	}
	if told[0] != "➤ Simon said quickly sneak!" {
		t.Fatalf("announcement: got %q", told[0])
	}
	if told[1] != "➤ Simon says quickly sprint!" {
		t.Fatalf("contradiction: got %q want obey framing", told[1])
	}
}

func TestPenalty_DebuffsStackAndCap(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1")
	w.set("P1", func(v *tasks.View) { v.Sneaking = true })
	w.effects["P1"]["WEAKNESS"] = 1
	w.effects["P1"]["SLOWNESS"] = 3
	mem := &audit.Memory{}
	cats := testCatalogs()
	// prefix, adjective, count-1, then three picks without replacement
	rng := &scriptRand{ints: []int{0, 0, 2, 0, 1, 2}}
	e := NewEngine(testConfig(false), cats, w, s, rng, mem, nil)

	e.StartRound(cats.Tasks.Defs[0])

	if len(mem.Outcomes) != 1 {
		t.Fatalf("outcomes: got %d want 1", len(mem.Outcomes))
	}
	got := strings.Join(mem.Outcomes[0].Debuffs, ",")
	if got != "WEAKNESS,SLOWNESS,NAUSEA" {
		t.Fatalf("debuffs: got %s", got)
	}
	want := map[string]int{"WEAKNESS": 2, "SLOWNESS": 3, "NAUSEA": 0}
	for kind, lvl := range want {
		if w.effects["P1"][kind] != lvl {
			t.Fatalf("%s: got %d want %d", kind, w.effects["P1"][kind], lvl)
		}
	}
}

func TestReward_BuffDraw(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1")
	w.set("P1", func(v *tasks.View) {
		v.Sneaking = true
		v.Pos = geom.Vec3{X: 4, Y: 64, Z: -2}
	})
	mem := &audit.Memory{}
	cfg := testConfig(true)
	cfg.RewardBuffProbability = 0.3
	cats := testCatalogs()
	// obey, contradiction, buff
	rng := &scriptRand{floats: []float64{0, 0.5, 0.1}}
	e := NewEngine(cfg, cats, w, s, rng, mem, nil)

	e.StartRound(cats.Tasks.Defs[0])

	if len(mem.Outcomes) != 1 || mem.Outcomes[0].Buff != "SPEED" {
		t.Fatalf("outcome: got %+v", mem.Outcomes)
	}
	if lvl, ok := w.effects["P1"]["SPEED"]; !ok || lvl != 0 {
		t.Fatalf("speed: got %d,%v", lvl, ok)
	}
	var totem, happy int
	for _, fx := range w.particles {
		switch fx.Kind {
		case feedback.ParticleTotem:
			totem += fx.Count
			if fx.Pos != (geom.Vec3{X: 4, Y: 66, Z: -2}) {
				t.Fatalf("totem pos: got %+v", fx.Pos)
			}
		case feedback.ParticleHappy:
			happy += fx.Count
			if fx.Pos != (geom.Vec3{X: 4, Y: 65, Z: -2}) {
				t.Fatalf("happy pos: got %+v", fx.Pos)
			}
		}
	}
	if totem != 50 || happy != 20 {
		t.Fatalf("reward particles: got totem=%d happy=%d", totem, happy)
	}
}

func TestCountdown_UrgentBarAndClicks(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1")
	cats := testCatalogs()
	e := NewEngine(testConfig(true), cats, w, s, &scriptRand{}, nil, nil)

	e.StartRound(cats.Tasks.Defs[0])
	s.Advance(14 * 20)

	var clicks int
	for _, c := range w.cues["P1"] {
		if c.Sound == feedback.SoundClick {
			clicks++
		}
	}
	if clicks != 5 {
		t.Fatalf("clicks: got %d want 5", clicks)
	}
	bars := w.bars["P1"]
	// start bar plus one per second of countdown
	if len(bars) != 16 {
		t.Fatalf("bars: got %d want 16", len(bars))
	}
	if bars[10].Color != feedback.ColorGreen || bars[11].Color != feedback.ColorRed {
		t.Fatalf("urgent switch: got %s then %s", bars[10].Color, bars[11].Color)
	}
	if p := bars[15].Progress; p < 0.066 || p > 0.067 {
		t.Fatalf("last progress: got %v", p)
	}
	if e.Round() == nil {
		t.Fatalf("round ended early")
	}
	s.Advance(20)
	if e.Round() != nil {
		t.Fatalf("round should end at zero")
	}
}

func TestMultiStepTask_MarksArePerRound(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1")
	w.set("P1", func(v *tasks.View) { v.HandSwaps = 4 })
	mem := &audit.Memory{}
	check, ok := tasks.Lookup("hand_swaps_3")
	if !ok {
		t.Fatalf("hand_swaps_3 not registered")
	}
	cats := testCatalogs()
	e := NewEngine(testConfig(true), cats, w, s, &scriptRand{}, mem, nil)

	e.StartRound(tasks.Definition{ID: "swap", Description: "Swap hands three times", Check: check})
	w.set("P1", func(v *tasks.View) { v.HandSwaps = 6 })
	s.Advance(20)
	if len(mem.Outcomes) != 0 {
		t.Fatalf("resolved after two swaps")
	}
	w.set("P1", func(v *tasks.View) { v.HandSwaps = 7 })
	s.Advance(20)
	if len(mem.Outcomes) != 1 || !mem.Outcomes[0].Success {
		t.Fatalf("outcome: got %+v", mem.Outcomes)
	}
}

func TestDepartedParticipant_JudgedOnceWithoutEffects(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1", "P2")
	mem := &audit.Memory{}
	cats := testCatalogs()
	e := NewEngine(testConfig(true), cats, w, s, &scriptRand{}, mem, nil)

	e.StartRound(cats.Tasks.Defs[0])
	s.Advance(3 * 20)
	told := len(w.told["P2"])
	w.leave("P2")
	s.Advance(16 * 20)

	p2 := outcomesFor(mem, "P2")
	if len(p2) != 1 || p2[0].Success || !p2[0].Final || len(p2[0].Debuffs) != 0 {
		t.Fatalf("P2 outcome: got %+v", p2)
	}
	if len(w.told["P2"]) != told {
		t.Fatalf("departed participant was messaged")
	}
}

func TestSession_ExhaustedScheduleSkipsLaunches(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1")
	mem := &audit.Memory{}
	e := NewEngine(testConfig(true), testCatalogs(), w, s, &scriptRand{}, mem, nil)

	e.StartSession()
	s.Advance(20)
	if r := e.Round(); r == nil || r.Task.ID != "sneak" {
		t.Fatalf("first launch: got %+v", r)
	}
	s.Advance(121*20 + 16*20)

	st := e.Stats()
	if st.Rounds != 2 || st.Skipped != 1 {
		t.Fatalf("stats: got %+v", st)
	}
	if len(mem.Rounds) != 4 || mem.Rounds[2].TaskID != "sprint" {
		t.Fatalf("round audit: got %+v", mem.Rounds)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending jobs: got %d", s.Pending())
	}
}

func TestStop_CancelsLaunchesAndCountdown(t *testing.T) {
	s := sched.New(20)
	w := newFakeWorld("P1")
	mem := &audit.Memory{}
	e := NewEngine(testConfig(true), testCatalogs(), w, s, &scriptRand{}, mem, nil)

	e.StartSession()
	s.Advance(40)
	if e.Round() == nil {
		t.Fatalf("round not started")
	}
	e.Stop()
	if e.Round() != nil {
		t.Fatalf("round survived stop")
	}
	if w.hidden["P1"] != 1 {
		t.Fatalf("bar not hidden")
	}
	if s.Pending() != 0 {
		t.Fatalf("pending jobs: got %d", s.Pending())
	}
	s.Advance(200 * 20)
	if len(mem.Outcomes) != 0 || e.Stats().Rounds != 1 {
		t.Fatalf("activity after stop: outcomes=%d rounds=%d", len(mem.Outcomes), e.Stats().Rounds)
	}
}

func TestConfigFromTuning_Defaults(t *testing.T) {
	cfg := ConfigFromTuning(tuning.Defaults().Rounds)
	if cfg.DurationSeconds != 15 || cfg.UrgentSeconds != 5 {
		t.Fatalf("durations: got %d/%d", cfg.DurationSeconds, cfg.UrgentSeconds)
	}
	if cfg.Debuffs.DurationTicks != 600 || cfg.Debuffs.MaxIntensity != 3 || cfg.RewardBuff.Kind != "SPEED" {
		t.Fatalf("effects: got %+v / %+v", cfg.Debuffs, cfg.RewardBuff)
	}
}
