// Package audit persists a query-only projection of workshop events for
// operator visibility. The core never reads from this package — deleting it
// entirely would not change scheduler or supervision behavior.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/johnhkchen/dfcoder/internal/events"
)

// Store implements events.EventStore on top of SQLite so the event bus can
// write through it without importing database/sql or sqlite itself.
type Store struct {
	db *sql.DB
}

var _ events.EventStore = (*Store)(nil)

// Open opens (creating if needed) a SQLite database at path and initializes
// the audit schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		priority INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		delivered_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_target ON events(target, delivered_at);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

// Save persists an event. Implements events.EventStore.
func (s *Store) Save(event *events.Event) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO events (id, type, source, target, priority, payload, created_at, delivered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		event.ID, event.Type, event.Source, event.Target, event.Priority, string(payloadJSON), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetPending implements events.EventStore: undelivered events for target,
// optionally filtered by type, most urgent priority (lowest number) first,
// then oldest first.
func (s *Store) GetPending(target string, types []events.EventType) ([]*events.Event, error) {
	query := `SELECT id, type, source, target, priority, payload, created_at
	          FROM events WHERE delivered_at IS NULL AND (target = ? OR target = 'all')`
	args := []interface{}{target}

	if len(types) > 0 {
		query += " AND type IN ("
		for i, et := range types {
			if i > 0 {
				query += ", "
			}
			query += "?"
			args = append(args, string(et))
		}
		query += ")"
	}
	query += " ORDER BY priority ASC, created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		var e events.Event
		var payloadJSON string
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &e.Target, &e.Priority, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkDelivered implements events.EventStore.
func (s *Store) MarkDelivered(eventID string) error {
	result, err := s.db.Exec(`UPDATE events SET delivered_at = ? WHERE id = ?`, time.Now(), eventID)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}

// Cleanup deletes delivered events older than the given age.
func (s *Store) Cleanup(olderThan time.Duration) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE delivered_at IS NOT NULL AND created_at < ?`, time.Now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("cleanup audit events: %w", err)
	}
	return nil
}
