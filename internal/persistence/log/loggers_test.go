package log

import (
	"path/filepath"
	"testing"
	"time"

	"simonzone.ai/internal/sim/audit"
)

func TestAuditLogger_RoundTripAndRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	if err := l.WriteSession(audit.SessionEntry{SessionID: "s1", Kind: audit.SessionStart, Actor: "op"}); err != nil {
		t.Fatalf("WriteSession: %v", err)
	}
	if err := l.WriteRound(audit.RoundEntry{SessionID: "s1", Kind: audit.RoundStart, Round: 1, TaskID: "dance", Obey: true}); err != nil {
		t.Fatalf("WriteRound: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteOutcome(audit.OutcomeEntry{SessionID: "s1", Round: 1, ParticipantID: "P1", Debuffs: []string{"HUNGER"}}); err != nil {
		t.Fatalf("WriteOutcome: %v", err)
	}
	if err := l.WriteZone(audit.ZoneEntry{SessionID: "s1", Kind: audit.ZoneFinal, Radius: 7.5}); err != nil {
		t.Fatalf("WriteZone: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "audit-2026-03-01-10.jsonl.zst" {
		t.Fatalf("files: got %v", files)
	}

	var types []string
	var outcome *audit.OutcomeEntry
	for _, f := range files {
		err := ReadRecords(f, func(r Record) error {
			types = append(types, r.Type)
			if r.Type == RecordOutcome {
				outcome = r.Outcome
			}
			return nil
		})
		if err != nil {
			t.Fatalf("ReadRecords %s: %v", f, err)
		}
	}
	want := []string{RecordSession, RecordRound, RecordOutcome, RecordZone}
	if len(types) != len(want) {
		t.Fatalf("types: got %v want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("types[%d]: got %s want %s", i, types[i], want[i])
		}
	}
	if outcome == nil || outcome.ParticipantID != "P1" || len(outcome.Debuffs) != 1 {
		t.Fatalf("outcome: got %+v", outcome)
	}
}

func TestAuditLogger_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		l := NewAuditLogger(dir)
		l.w.now = func() time.Time { return clock }
		if err := l.WriteZone(audit.ZoneEntry{Phase: i}); err != nil {
			t.Fatalf("WriteZone: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	files, _ := Files(dir)
	if len(files) != 1 {
		t.Fatalf("files: got %v", files)
	}
	n := 0
	if err := ReadRecords(files[0], func(Record) error { n++; return nil }); err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if n != 2 {
		t.Fatalf("records: got %d want 2", n)
	}
}

func TestAuditLogger_SyncMakesFileReadable(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	defer l.Close()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	count := func() int {
		files, _ := Files(dir)
		if len(files) != 1 {
			t.Fatalf("files: got %v", files)
		}
		n := 0
		if err := ReadRecords(files[0], func(Record) error { n++; return nil }); err != nil {
			t.Fatalf("ReadRecords: %v", err)
		}
		return n
	}

	_ = l.WriteSession(audit.SessionEntry{SessionID: "s1", Kind: audit.SessionStart})
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := count(); got != 1 {
		t.Fatalf("after first sync: got %d want 1", got)
	}
	_ = l.WriteSession(audit.SessionEntry{SessionID: "s1", Kind: audit.SessionStop})
	_ = l.Sync()
	if got := count(); got != 2 {
		t.Fatalf("after second sync: got %d want 2", got)
	}
}
