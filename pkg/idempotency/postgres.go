package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// claimAttempts bounds the insert/take-over/read loop when the record keeps
// disappearing between statements (released by its owner).
const claimAttempts = 3

// PostgresStore keeps Records in the client_requests table. The primary key
// (command_type, request_id) makes the first claim an atomic insert-if-absent.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	insertClaimSQL = `
INSERT INTO client_requests (command_type, request_id, state, claim_token, created_at, claimed_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (command_type, request_id) DO NOTHING
RETURNING created_at, claimed_at`

	takeOverSQL = `
UPDATE client_requests
SET claim_token = $4, claimed_at = now()
WHERE command_type = $1 AND request_id = $2 AND state = $3
  AND claimed_at < now() - make_interval(secs => $5)
RETURNING created_at, claimed_at`

	selectRecordSQL = `
SELECT state, claim_token, result, created_at, claimed_at, completed_at
FROM client_requests
WHERE command_type = $1 AND request_id = $2`

	completeSQL = `
UPDATE client_requests
SET state = $5, result = $4, completed_at = now()
WHERE command_type = $1 AND request_id = $2 AND claim_token = $3 AND state = $6`

	releaseSQL = `
DELETE FROM client_requests
WHERE command_type = $1 AND request_id = $2 AND claim_token = $3 AND state = $4`
)

func (s *PostgresStore) Claim(ctx context.Context, commandType, requestID string, staleAfter time.Duration) (Record, bool, error) {
	for range claimAttempts {
		rec := Record{
			CommandType: commandType,
			RequestID:   requestID,
			State:       StateInProgress,
			ClaimToken:  uuid.New(),
		}

		err := s.db.QueryRowContext(ctx, insertClaimSQL,
			commandType, requestID, string(StateInProgress), rec.ClaimToken,
		).Scan(&rec.CreatedAt, &rec.ClaimedAt)
		if err == nil {
			return rec, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, fmt.Errorf("insert claim: %w", err)
		}

		err = s.db.QueryRowContext(ctx, takeOverSQL,
			commandType, requestID, string(StateInProgress), rec.ClaimToken, staleAfter.Seconds(),
		).Scan(&rec.CreatedAt, &rec.ClaimedAt)
		if err == nil {
			return rec, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, fmt.Errorf("take over stale claim: %w", err)
		}

		existing, found, err := s.get(ctx, commandType, requestID)
		if err != nil {
			return Record{}, false, err
		}
		if found {
			return existing, false, nil
		}
	}
	return Record{}, false, fmt.Errorf("claim %s/%s: record kept changing", commandType, requestID)
}

func (s *PostgresStore) get(ctx context.Context, commandType, requestID string) (Record, bool, error) {
	rec := Record{CommandType: commandType, RequestID: requestID}
	var (
		state       string
		result      []byte
		completedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, selectRecordSQL, commandType, requestID).Scan(
		&state, &rec.ClaimToken, &result, &rec.CreatedAt, &rec.ClaimedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("select record: %w", err)
	}
	rec.State = State(state)
	rec.Result = result
	rec.CompletedAt = completedAt.Time
	return rec, true, nil
}

func (s *PostgresStore) Complete(ctx context.Context, claim Record, result []byte) error {
	return complete(ctx, s.db, claim, result)
}

// CompleteTx marks claim Completed as part of tx. ErrClaimLost means another
// delivery took the claim over; the caller must roll tx back.
func (s *PostgresStore) CompleteTx(ctx context.Context, tx *sql.Tx, claim Record, result []byte) error {
	return complete(ctx, tx, claim, result)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func complete(ctx context.Context, db execer, claim Record, result []byte) error {
	res, err := db.ExecContext(ctx, completeSQL,
		claim.CommandType, claim.RequestID, claim.ClaimToken, result,
		string(StateCompleted), string(StateInProgress),
	)
	if err != nil {
		return fmt.Errorf("complete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete record: rows affected: %w", err)
	}
	if n == 0 {
		return ErrClaimLost
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, claim Record) error {
	if _, err := s.db.ExecContext(ctx, releaseSQL,
		claim.CommandType, claim.RequestID, claim.ClaimToken, string(StateInProgress),
	); err != nil {
		return fmt.Errorf("release record: %w", err)
	}
	return nil
}
