// Package eventlog is the integration event log (transactional outbox).
//
// Entries are appended with the caller's *sql.Tx, so an entry commits if and
// only if the business change that produced it commits. A Relay running in the
// worker process drains Pending entries to the event bus and marks them
// Published; delivery downstream is at-least-once and consumers deduplicate on
// the event id.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the publication state of an Entry.
type State string

const (
	StatePending   State = "pending"
	StatePublished State = "published"
	StateFailed    State = "failed"
)

// ErrEntryNotFound is returned when a state transition targets an unknown event id.
var ErrEntryNotFound = errors.New("eventlog: entry not found")

// Entry is one row of the integration_event_log table.
type Entry struct {
	EventID   uuid.UUID
	EventType string // topic the entry is relayed to
	Version   int
	Content   []byte // JSON payload
	State     State
	TimesSent int
	LastError string
	CreatedAt time.Time
}

// NewEntry serializes payload to JSON and returns a Pending entry.
func NewEntry(eventID uuid.UUID, eventType string, version int, payload any) (Entry, error) {
	if eventID == uuid.Nil {
		return Entry{}, errors.New("eventlog: event id must be set")
	}
	if eventType == "" {
		return Entry{}, errors.New("eventlog: event type must be set")
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("eventlog: marshal %s: %w", eventType, err)
	}
	return Entry{
		EventID:   eventID,
		EventType: eventType,
		Version:   version,
		Content:   content,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Log reads and writes the integration_event_log table.
type Log struct {
	db *sql.DB
}

// New returns a Log that runs state transitions on db.
func New(db *sql.DB) *Log {
	return &Log{db: db}
}

const appendSQL = `
INSERT INTO integration_event_log (event_id, event_type, version, content, state, times_sent, created_at)
VALUES ($1, $2, $3, $4, $5, 0, $6)`

// Append stages entry inside tx. The entry becomes visible only when tx commits.
func (l *Log) Append(ctx context.Context, tx *sql.Tx, entry Entry) error {
	if tx == nil {
		return errors.New("eventlog: append requires an active transaction")
	}
	if entry.State == "" {
		entry.State = StatePending
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, appendSQL,
		entry.EventID, entry.EventType, entry.Version, entry.Content, string(entry.State), entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("eventlog: append %s: %w", entry.EventID, err)
	}
	return nil
}

// MarkPublished transitions the entry to Published.
func (l *Log) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	return markPublished(ctx, l.db, eventID)
}

// MarkFailed transitions the entry to Failed and records cause. Each call
// counts as one delivery attempt.
func (l *Log) MarkFailed(ctx context.Context, eventID uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := l.db.ExecContext(ctx, `
UPDATE integration_event_log
SET state = $2, times_sent = times_sent + 1, last_error = $3
WHERE event_id = $1`, eventID, string(StateFailed), msg)
	if err != nil {
		return fmt.Errorf("eventlog: mark failed %s: %w", eventID, err)
	}
	return requireOneRow(res, eventID)
}

func markPublished(ctx context.Context, q execer, eventID uuid.UUID) error {
	res, err := q.ExecContext(ctx, `
UPDATE integration_event_log
SET state = $2, times_sent = times_sent + 1, last_error = NULL
WHERE event_id = $1`, eventID, string(StatePublished))
	if err != nil {
		return fmt.Errorf("eventlog: mark published %s: %w", eventID, err)
	}
	return requireOneRow(res, eventID)
}

func requireOneRow(res sql.Result, eventID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("eventlog: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, eventID)
	}
	return nil
}
