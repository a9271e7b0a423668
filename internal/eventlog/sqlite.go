package eventlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dudu/drowsewatch/internal/drowsiness"
)

const schema = `
CREATE TABLE IF NOT EXISTS fatigue_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	face        INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	description TEXT NOT NULL,
	value       REAL,
	occurred_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fatigue_events_session ON fatigue_events(session_id, occurred_at);
`

// StoredEvent is a row of the fatigue_events table.
type StoredEvent struct {
	ID          int64
	SessionID   string
	Face        int
	Kind        string
	Description string
	Value       float64
	OccurredAt  time.Time
}

// SQLiteRecorder journals events to a SQLite database, one session per run.
type SQLiteRecorder struct {
	db        *sql.DB
	sessionID string
}

// NewSQLiteRecorder opens (or creates) the database at dbPath and starts a new session.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; the frame loop is the only producer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteRecorder{db: db, sessionID: uuid.NewString()}, nil
}

// SessionID identifies the events written by this recorder.
func (r *SQLiteRecorder) SessionID() string {
	return r.sessionID
}

// Record inserts one event.
func (r *SQLiteRecorder) Record(e drowsiness.Event) error {
	desc := e.Kind.Description()
	if desc == "" {
		desc = e.Kind.String()
	}
	_, err := r.db.Exec(
		`INSERT INTO fatigue_events (session_id, face, kind, description, value, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.sessionID,
		e.Face,
		e.Kind.String(),
		desc,
		e.Value,
		e.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Session returns the events of a session in insertion order.
func (r *SQLiteRecorder) Session(sessionID string) ([]StoredEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, face, kind, description, value, occurred_at
		 FROM fatigue_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			ev         StoredEvent
			value      sql.NullFloat64
			occurredAt string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Face, &ev.Kind, &ev.Description, &value, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Value = value.Float64
		ev.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID     string
	Events int
	First  time.Time
	Last   time.Time
}

// Sessions lists every stored session, oldest first.
func (r *SQLiteRecorder) Sessions() ([]SessionInfo, error) {
	rows, err := r.db.Query(`SELECT session_id, occurred_at FROM fatigue_events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var (
		out   []SessionInfo
		index = map[string]int{}
	)
	for rows.Next() {
		var id, occurredAt string
		if err := rows.Scan(&id, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at: %w", err)
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, SessionInfo{ID: id, First: ts, Last: ts})
		}
		info := &out[i]
		info.Events++
		if ts.Before(info.First) {
			info.First = ts
		}
		if ts.After(info.Last) {
			info.Last = ts
		}
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
