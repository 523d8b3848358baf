// Package journal persists lifecycle events to SQLite so assignment history
// outlives the in-memory organization.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/GoCodeAlone/conductor/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL,
	task_id    TEXT NOT NULL DEFAULT '',
	task       TEXT NOT NULL DEFAULT '',
	worker_id  TEXT NOT NULL DEFAULT '',
	worker     TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS events_task ON events(task_id);
CREATE INDEX IF NOT EXISTS events_worker ON events(worker);
`

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Type   events.Type
	TaskID string
	Worker string // name
	Limit  int    // most recent N; 0 means all
}

// Store persists events in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and ensures the events
// table exists. ":memory:" gives a throwaway journal. The caller is
// responsible for calling Close.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Record appends ev. Recording the same event ID twice is a no-op.
func (s *Store) Record(ctx context.Context, ev *events.Event) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events
			(id, type, task_id, task, worker_id, worker, message, metadata, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		ev.ID, string(ev.Type), ev.TaskID, ev.Task, ev.WorkerID, ev.Worker,
		ev.Message, string(metadata), ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Handler returns a bus handler that records every event it receives.
func (s *Store) Handler() events.Handler {
	return func(ctx context.Context, ev *events.Event) error {
		return s.Record(ctx, ev)
	}
}

// Get retrieves an event by ID.
func (s *Store) Get(ctx context.Context, id string) (*events.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s not found", id)
	}
	return ev, err
}

// List returns events matching the filter, oldest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*events.Event, error) {
	q := strings.Builder{}
	q.WriteString("SELECT " + columns + " FROM events WHERE 1=1")
	args := []any{}

	if filter.Type != "" && filter.Type != events.All {
		q.WriteString(" AND type=?")
		args = append(args, string(filter.Type))
	}
	if filter.TaskID != "" {
		q.WriteString(" AND task_id=?")
		args = append(args, filter.TaskID)
	}
	if filter.Worker != "" {
		q.WriteString(" AND worker=?")
		args = append(args, filter.Worker)
	}
	q.WriteString(" ORDER BY seq DESC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest-first from the query so LIMIT keeps the most recent.
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out, nil
}

const columns = "id, type, task_id, task, worker_id, worker, message, metadata, created_at"

// scanner abstracts sql.Row and sql.Rows for scanEvent.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*events.Event, error) {
	var ev events.Event
	var typ, metadataJSON string
	err := s.Scan(
		&ev.ID, &typ, &ev.TaskID, &ev.Task, &ev.WorkerID, &ev.Worker,
		&ev.Message, &metadataJSON, &ev.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	ev.Type = events.Type(typ)
	_ = json.Unmarshal([]byte(metadataJSON), &ev.Metadata)
	return &ev, nil
}
