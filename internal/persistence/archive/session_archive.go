package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type SessionArchiveMeta struct {
	SessionID   string  `json:"session_id"`
	StartedBy   string  `json:"started_by"`
	StoppedBy   string  `json:"stopped_by"`
	StartedTick uint64  `json:"started_tick"`
	StoppedTick uint64  `json:"stopped_tick"`
	Rounds      int     `json:"rounds"`
	Rewards     int     `json:"rewards"`
	Penalties   int     `json:"penalties"`
	ZoneStage   string  `json:"zone_stage"`
	ZonePhase   int     `json:"zone_phase"`
	ZoneRadius  float64 `json:"zone_radius"`
	CreatedAt   string  `json:"created_at,omitempty"`
	// AuditFiles lists the audit log files copied next to meta.json.
	AuditFiles []string `json:"audit_files,omitempty"`
}

// ArchiveSession writes `dataDir/archives/session_<id>/meta.json` next to
// copies of auditFiles. auditFiles may be nil.
func ArchiveSession(dataDir string, meta SessionArchiveMeta, auditFiles []string) (string, error) {
	id := strings.TrimSpace(meta.SessionID)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("bad session id %q", meta.SessionID)
	}
	dir := filepath.Join(dataDir, "archives", "session_"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	for _, src := range auditFiles {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return "", err
		}
		meta.AuditFiles = append(meta.AuditFiles, filepath.Base(src))
	}
	if meta.CreatedAt == "" {
		meta.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
