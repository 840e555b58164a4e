package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"simonzone.ai/internal/sim/audit"
)

// JSONLZstdWriter appends one JSON document per line to an hourly file
// `<prefix>-YYYY-MM-DD-HH.jsonl.zst` under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Record types in the audit log.
const (
	RecordSession = "session"
	RecordRound   = "round"
	RecordOutcome = "outcome"
	RecordZone    = "zone"
)

// Record is one audit log line. Exactly one entry pointer is set, matching
// Type.
type Record struct {
	Type    string              `json:"type"`
	Session *audit.SessionEntry `json:"session,omitempty"`
	Round   *audit.RoundEntry   `json:"round,omitempty"`
	Outcome *audit.OutcomeEntry `json:"outcome,omitempty"`
	Zone    *audit.ZoneEntry    `json:"zone,omitempty"`
}

// AuditLogger writes the session audit trail (compressed). It implements
// audit.Sink.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteSession(e audit.SessionEntry) error {
	return l.w.Write(Record{Type: RecordSession, Session: &e})
}

func (l *AuditLogger) WriteRound(e audit.RoundEntry) error {
	return l.w.Write(Record{Type: RecordRound, Round: &e})
}

func (l *AuditLogger) WriteOutcome(e audit.OutcomeEntry) error {
	return l.w.Write(Record{Type: RecordOutcome, Outcome: &e})
}

func (l *AuditLogger) WriteZone(e audit.ZoneEntry) error {
	return l.w.Write(Record{Type: RecordZone, Zone: &e})
}

func (l *AuditLogger) Close() error { return l.w.Close() }

// Sync ends the current compressed frame so the file on disk is complete. The
// next write opens a new frame in the same file.
func (l *AuditLogger) Sync() error { return l.w.Close() }

// ReadRecords decodes a .jsonl.zst audit file, calling fn for each record in
// order. A non-nil error from fn stops the scan and is returned.
func ReadRecords(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Files lists the audit files under dataDir in name (and so time) order.
func Files(dataDir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dataDir, "audit", "audit-*.jsonl.zst"))
}
