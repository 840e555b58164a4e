package main

import (
	"log"
	"os"
	"time"

	"simonzone.ai/internal/persistence/archive"
	persistlog "simonzone.ai/internal/persistence/log"
	"simonzone.ai/internal/sim/session"
)

type auditSyncer interface {
	Sync() error
}

// sessionArchiver copies the audit files a finished session wrote into its own
// archive directory. It runs as a session stop hook.
type sessionArchiver struct {
	dataDir string
	tps     int
	audit   auditSyncer
	now     func() time.Time
	log     *log.Logger
}

func (a *sessionArchiver) onStop(final session.Status, stoppedBy string) {
	if !final.Running || final.SessionID == "" {
		return
	}
	if a.audit != nil {
		if err := a.audit.Sync(); err != nil {
			a.log.Printf("archive %s: sync audit log: %v", final.SessionID, err)
		}
	}
	elapsed := time.Duration(final.Tick-final.StartedTick) * time.Second / time.Duration(a.tps)
	since := a.now().Add(-elapsed).Truncate(time.Hour)
	files, err := auditFilesSince(a.dataDir, since)
	if err != nil {
		a.log.Printf("archive %s: list audit files: %v", final.SessionID, err)
	}
	dir, err := archive.ArchiveSession(a.dataDir, archive.SessionArchiveMeta{
		SessionID:   final.SessionID,
		StartedBy:   final.Actor,
		StoppedBy:   stoppedBy,
		StartedTick: final.StartedTick,
		StoppedTick: final.Tick,
		Rounds:      final.Stats.Rounds,
		Rewards:     final.Stats.Rewards,
		Penalties:   final.Stats.Penalties,
		ZoneStage:   final.Zone.Stage.String(),
		ZonePhase:   final.Zone.PhaseIndex,
		ZoneRadius:  final.Zone.CurrentRadius,
		CreatedAt:   a.now().UTC().Format(time.RFC3339Nano),
	}, files)
	if err != nil {
		a.log.Printf("archive %s: %v", final.SessionID, err)
		return
	}
	a.log.Printf("archived session %s to %s (%d audit files)", final.SessionID, dir, len(files))
}

// auditFilesSince lists hourly audit files last written at or after since.
func auditFilesSince(dataDir string, since time.Time) ([]string, error) {
	all, err := persistlog.Files(dataDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range all {
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		if !fi.ModTime().Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}
