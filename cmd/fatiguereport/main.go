package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dudu/drowsewatch/internal/config"
	"github.com/dudu/drowsewatch/internal/eventlog"
	"github.com/dudu/drowsewatch/internal/report"
)

func main() {
	var (
		dbPath    string
		sessionID string
		outPath   string
		list      bool
	)

	defaults, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&dbPath, "db", defaults.EventDB, "SQLite event database written by drowsewatch")
	flag.StringVar(&sessionID, "session", "", "Session to export (default: most recent)")
	flag.StringVar(&outPath, "out", "fatigue_report.xlsx", "Output workbook")
	flag.BoolVar(&list, "list", false, "List stored sessions and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fatiguereport [options]\n\n")
		fmt.Fprintf(os.Stderr, "Exports a drowsewatch session to an Excel workbook.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --db or DROWSE_EVENT_DB is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(dbPath, sessionID, outPath, list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, sessionID, outPath string, list bool) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("failed to open event database: %w", err)
	}
	store, err := eventlog.NewSQLiteRecorder(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions in %s", dbPath)
	}

	if list {
		for _, s := range sessions {
			fmt.Printf("%s  %4d events  %s - %s\n", s.ID, s.Events,
				s.First.Local().Format(eventlog.TimeLayout), s.Last.Local().Format(eventlog.TimeLayout))
		}
		return nil
	}

	if sessionID == "" {
		sessionID = sessions[len(sessions)-1].ID
	}
	events, err := store.Session(sessionID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	summary := report.Summarize(sessionID, events)
	if err := report.WriteXLSX(out, summary, events); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	fmt.Printf("✓ %d events from session %s written to %s\n", summary.Events, sessionID, outPath)
	return nil
}
