// Package idempotency makes commands safe to deliver more than once.
//
// A Gate wraps a command handler. The first delivery of a (command type,
// request id) pair claims an InProgress record, runs the handler and stores its
// JSON-encoded result as Completed. Later deliveries get the stored result back
// without running the handler; a delivery that arrives while the first one is
// still running fails fast with ErrRequestInProgress.
//
// A claim left InProgress past its TTL may be taken over, so a handler can run
// again for the same request id. Handlers stay safe by keying what they create
// on Record.Key (available through ClaimFromContext) and, when the store
// supports it, by completing the record in their own transaction with
// CompleteOnCommit.
package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRequestInProgress means another delivery of the same request id is
	// still running. The caller should back off and retry.
	ErrRequestInProgress = errors.New("idempotency: request already in progress")

	// ErrInvalidRequestID means the request id is missing or malformed.
	ErrInvalidRequestID = errors.New("idempotency: invalid request id")

	// ErrClaimLost means the InProgress record no longer belongs to the caller,
	// because it was released or taken over after going stale.
	ErrClaimLost = errors.New("idempotency: claim lost")

	// ErrAlreadyApplied is returned by a Handler, together with the result,
	// when an earlier run for the same Record.Key already committed the
	// command. The Gate stores that result and reports a duplicate.
	ErrAlreadyApplied = errors.New("idempotency: command already applied")
)

// keyNamespace seeds Record.Key.
var keyNamespace = uuid.MustParse("6f1c3b2e-52a4-4d0b-9a77-0c4e8d9b1f35")

// maxRequestIDLength bounds the client-supplied key.
const maxRequestIDLength = 200

// State is the completion state of a Record.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Record is the stored outcome of one request id for one command type.
type Record struct {
	CommandType string
	RequestID   string
	State       State
	ClaimToken  uuid.UUID // identifies the current owner of an InProgress record
	Result      []byte    // JSON result, set once Completed
	CreatedAt   time.Time
	ClaimedAt   time.Time
	CompletedAt time.Time
}

// Key is a stable UUID derived from the command type and request id. Every
// run of the same request gets the same key.
func (r Record) Key() uuid.UUID {
	return uuid.NewSHA1(keyNamespace, []byte(r.CommandType+"\x00"+r.RequestID))
}

// Store persists Records. At most one record exists per (command type, request id).
type Store interface {
	// Claim atomically creates an InProgress record for the key, or takes over
	// an InProgress record whose claim is older than staleAfter. When claimed is
	// true the returned record carries the caller's claim token. Otherwise it is
	// the existing record, left unchanged.
	Claim(ctx context.Context, commandType, requestID string, staleAfter time.Duration) (rec Record, claimed bool, err error)

	// Complete stores result and transitions the claimed record to Completed.
	// Returns ErrClaimLost if the record is no longer owned by claim.
	Complete(ctx context.Context, claim Record, result []byte) error

	// Release deletes the claimed InProgress record so the request id can be
	// retried. Releasing a record that is no longer owned by claim is a no-op.
	Release(ctx context.Context, claim Record) error
}

// TxCompleter is implemented by stores that can mark a record Completed
// inside the caller's database transaction, so the record commits or rolls
// back together with the handler's writes.
type TxCompleter interface {
	// CompleteTx behaves like Store.Complete but runs on tx.
	CompleteTx(ctx context.Context, tx *sql.Tx, claim Record, result []byte) error
}

// ParseRequestID validates a client-supplied request id and returns its
// canonical form. Request ids are UUIDs.
func ParseRequestID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidRequestID
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return "", ErrInvalidRequestID
	}
	return id.String(), nil
}
