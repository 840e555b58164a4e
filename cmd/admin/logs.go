package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	persistlog "simonzone.ai/internal/persistence/log"
)

func logsCmd(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	file := fs.String("file", "", "single audit file to decode (default: every file under <data>/audit)")
	typ := fs.String("type", "", "record type filter: session|round|outcome|zone")
	sessionID := fs.String("session", "", "session id filter")
	_ = fs.Parse(args)

	var files []string
	if f := strings.TrimSpace(*file); f != "" {
		files = []string{f}
	} else {
		var err error
		files, err = persistlog.Files(*dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list:", err)
			os.Exit(1)
		}
	}
	n, err := dumpRecords(os.Stdout, files, strings.TrimSpace(*typ), strings.TrimSpace(*sessionID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d records from %d files\n", n, len(files))
}

// dumpRecords writes every matching record as one JSON line and returns how
// many it wrote.
func dumpRecords(w io.Writer, files []string, typ, sessionID string) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	for _, f := range files {
		err := persistlog.ReadRecords(f, func(r persistlog.Record) error {
			if typ != "" && r.Type != typ {
				return nil
			}
			if sessionID != "" && recordSession(r) != sessionID {
				return nil
			}
			n++
			return enc.Encode(r)
		})
		if err != nil {
			return n, fmt.Errorf("%s: %w", f, err)
		}
	}
	return n, nil
}

func recordSession(r persistlog.Record) string {
	switch {
	case r.Session != nil:
		return r.Session.SessionID
	case r.Round != nil:
		return r.Round.SessionID
	case r.Outcome != nil:
		return r.Outcome.SessionID
	case r.Zone != nil:
		return r.Zone.SessionID
	}
	return ""
}
