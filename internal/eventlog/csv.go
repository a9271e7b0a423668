// Package eventlog persists fatigue events.
package eventlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dudu/drowsewatch/internal/drowsiness"
)

// TimeLayout is the ctime-style timestamp written to the CSV log,
// e.g. "Sun Mar  1 22:15:00 2026".
const TimeLayout = time.ANSIC

// CSVRecorder appends (timestamp, description) rows to a CSV file.
type CSVRecorder struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	path   string
}

// NewCSVRecorder opens path for appending, creating it if needed.
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	return &CSVRecorder{
		file:   f,
		writer: csv.NewWriter(f),
		path:   path,
	}, nil
}

// Record writes one row and flushes it.
func (r *CSVRecorder) Record(e drowsiness.Event) error {
	desc := e.Kind.Description()
	if desc == "" {
		desc = e.Kind.String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return fmt.Errorf("event log %s is closed", r.path)
	}
	if err := r.writer.Write([]string{e.Time.Format(TimeLayout), desc}); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush event log: %w", err)
	}
	return nil
}

// Path returns the log file path.
func (r *CSVRecorder) Path() string {
	return r.path
}

// Close closes the file.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	r.writer.Flush()
	err := r.file.Close()
	r.file = nil
	return err
}
