package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v5"

	"github.com/ghuser/eshop-ordering/pkg/logger"
)

// Metadata keys set on every relayed message.
const (
	MetadataEventID      = "event_id"
	MetadataEventType    = "event_type"
	MetadataEventVersion = "event_version"
)

// Publisher publishes msg to topic as part of tx, so the message and the
// Published transition commit together.
type Publisher interface {
	PublishTx(ctx context.Context, tx *sql.Tx, topic string, msg *message.Message) error
}

// RelayConfig tunes the relay loop.
type RelayConfig struct {
	PollInterval time.Duration // idle wait between polls
	BatchSize    int           // max entries relayed per poll
	MaxAttempts  int           // Failed entries with this many attempts are left alone
}

// Relay drains Pending (and retryable Failed) entries to the event bus.
// Several relays may run concurrently; each entry is claimed with
// FOR UPDATE SKIP LOCKED.
type Relay struct {
	db      *sql.DB
	log     *Log
	pub     Publisher
	cfg     RelayConfig
	logger  logger.Logger
	backoff *backoff.ExponentialBackOff
}

// NewRelay returns a Relay. Zero config values fall back to 1s / 50 / 10.
func NewRelay(db *sql.DB, pub Publisher, cfg RelayConfig, log logger.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.PollInterval
	b.MaxInterval = time.Minute

	return &Relay{
		db:      db,
		log:     New(db),
		pub:     pub,
		cfg:     cfg,
		logger:  log,
		backoff: b,
	}
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll; errors back off exponentially up to one minute.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "eventlog: relay started",
		"poll_interval", r.cfg.PollInterval,
		"batch_size", r.cfg.BatchSize,
		"max_attempts", r.cfg.MaxAttempts,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "eventlog: relay stopped")
			return nil
		case <-timer.C:
		}

		n, err := r.RelayPending(ctx)
		wait := r.cfg.PollInterval
		switch {
		case err != nil && ctx.Err() != nil:
			continue
		case err != nil:
			wait = r.backoff.NextBackOff()
			r.logger.WarnContext(ctx, "eventlog: relay poll failed", "error", err, "next_poll", wait)
		default:
			r.backoff.Reset()
			if n == r.cfg.BatchSize {
				wait = 0
			}
		}
		timer.Reset(wait)
	}
}

// RelayPending relays up to BatchSize entries and returns how many were
// published. It stops at the first publish failure.
func (r *Relay) RelayPending(ctx context.Context) (int, error) {
	published := 0
	for published < r.cfg.BatchSize {
		found, err := r.relayNext(ctx)
		if err != nil {
			return published, err
		}
		if !found {
			break
		}
		published++
	}
	return published, nil
}

const claimSQL = `
SELECT event_id, event_type, version, content, state, times_sent, last_error, created_at
FROM integration_event_log
WHERE state = $1 OR (state = $2 AND times_sent < $3)
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED`

func (r *Relay) relayNext(ctx context.Context) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("eventlog: begin relay tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		entry   Entry
		state   string
		lastErr sql.NullString
	)
	err = tx.QueryRowContext(ctx, claimSQL, string(StatePending), string(StateFailed), r.cfg.MaxAttempts).Scan(
		&entry.EventID, &entry.EventType, &entry.Version, &entry.Content, &state, &entry.TimesSent, &lastErr, &entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("eventlog: claim entry: %w", err)
	}
	entry.State = State(state)
	entry.LastError = lastErr.String

	if err := r.pub.PublishTx(ctx, tx, entry.EventType, ToMessage(entry)); err != nil {
		_ = tx.Rollback()
		if markErr := r.log.MarkFailed(context.WithoutCancel(ctx), entry.EventID, err); markErr != nil {
			r.logger.ErrorContext(ctx, "eventlog: mark failed", "event_id", entry.EventID, "error", markErr)
		}
		return true, fmt.Errorf("eventlog: publish %s (%s): %w", entry.EventID, entry.EventType, err)
	}

	if err := markPublished(ctx, tx, entry.EventID); err != nil {
		return true, err
	}
	if err := tx.Commit(); err != nil {
		return true, fmt.Errorf("eventlog: commit relay tx: %w", err)
	}

	r.logger.DebugContext(ctx, "eventlog: entry published",
		"event_id", entry.EventID,
		"event_type", entry.EventType,
		"attempt", entry.TimesSent+1,
	)
	return true, nil
}

// ToMessage builds the bus message for entry. The message UUID is the event id
// so redeliveries of the same entry carry the same identity.
func ToMessage(entry Entry) *message.Message {
	msg := message.NewMessage(entry.EventID.String(), entry.Content)
	msg.Metadata.Set(MetadataEventID, entry.EventID.String())
	msg.Metadata.Set(MetadataEventType, entry.EventType)
	msg.Metadata.Set(MetadataEventVersion, strconv.Itoa(entry.Version))
	return msg
}
