package idempotency_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/database"
	"github.com/ghuser/eshop-ordering/pkg/idempotency"
	"github.com/ghuser/eshop-ordering/pkg/logger"
)

const effectCommand = "RecordEffectCommand"

func setupEffects(t *testing.T, db *database.Database) {
	t.Helper()
	_, err := db.DB().ExecContext(context.Background(),
		`CREATE TABLE IF NOT EXISTS gate_effects (id uuid PRIMARY KEY)`)
	require.NoError(t, err)
}

func countEffects(t *testing.T, db *database.Database, id uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, db.DB().QueryRowContext(context.Background(),
		`SELECT count(*) FROM gate_effects WHERE id = $1`, id).Scan(&n))
	return n
}

// insertEffect writes one row keyed by id and completes the claim in the same
// transaction. A row that already exists means an earlier run committed.
func insertEffect(ctx context.Context, db *database.Database, id uuid.UUID) (uuid.UUID, error) {
	err := db.WithTx(idempotency.CompleteOnCommit(ctx, id), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO gate_effects (id) VALUES ($1)`, id)
		return err
	})
	if database.IsUniqueViolation(err) {
		return id, fmt.Errorf("%w: %w", idempotency.ErrAlreadyApplied, err)
	}
	return id, err
}

func TestGatePostgres_OneRunAcrossClaimTTL(t *testing.T) {
	store, db := setupStore(t)
	setupEffects(t, db)

	var calls atomic.Int32
	handler := func(ctx context.Context, _ string) (uuid.UUID, error) {
		calls.Add(1)
		claim, _ := idempotency.ClaimFromContext(ctx)
		return insertEffect(ctx, db, claim.Key())
	}
	gate := idempotency.NewGate(store, effectCommand, handler,
		idempotency.Config{ClaimTTL: 50 * time.Millisecond}, logger.New(&config.Config{LogLevel: "error"}))
	requestID := uuid.NewString()

	first, dup, err := gate.Execute(context.Background(), requestID, "x")
	require.NoError(t, err)
	require.False(t, dup)

	time.Sleep(200 * time.Millisecond)

	second, dup, err := gate.Execute(context.Background(), requestID, "x")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, countEffects(t, db, first))
}

func TestGatePostgres_SlowRunAfterTakeoverIsDuplicate(t *testing.T) {
	store, db := setupStore(t)
	setupEffects(t, db)

	started := make(chan struct{})
	resume := make(chan struct{})
	var calls atomic.Int32
	handler := func(ctx context.Context, _ string) (uuid.UUID, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-resume
		}
		claim, _ := idempotency.ClaimFromContext(ctx)
		return insertEffect(ctx, db, claim.Key())
	}
	gate := idempotency.NewGate(store, effectCommand, handler,
		idempotency.Config{ClaimTTL: 50 * time.Millisecond}, logger.New(&config.Config{LogLevel: "error"}))
	requestID := uuid.NewString()

	type outcome struct {
		id  uuid.UUID
		dup bool
		err error
	}
	slow := make(chan outcome, 1)
	go func() {
		id, dup, err := gate.Execute(context.Background(), requestID, "x")
		slow <- outcome{id, dup, err}
	}()
	<-started
	time.Sleep(200 * time.Millisecond)

	takeover, dup, err := gate.Execute(context.Background(), requestID, "x")
	require.NoError(t, err)
	require.False(t, dup)

	close(resume)
	late := <-slow
	require.NoError(t, late.err)
	assert.True(t, late.dup)
	assert.Equal(t, takeover, late.id)
	assert.Equal(t, 1, countEffects(t, db, takeover))
}

func TestGatePostgres_LostClaimRollsBackHandlerWrites(t *testing.T) {
	store, db := setupStore(t)
	setupEffects(t, db)

	started := make(chan struct{})
	resume := make(chan struct{})
	var (
		calls     atomic.Int32
		slowToken uuid.UUID
	)
	// Each run writes a row keyed by its own claim token, so nothing but the
	// claim check stops the slow run from committing.
	handler := func(ctx context.Context, _ string) (uuid.UUID, error) {
		claim, _ := idempotency.ClaimFromContext(ctx)
		if calls.Add(1) == 1 {
			slowToken = claim.ClaimToken
			close(started)
			<-resume
		}
		return insertEffect(ctx, db, claim.ClaimToken)
	}
	gate := idempotency.NewGate(store, effectCommand, handler,
		idempotency.Config{ClaimTTL: 50 * time.Millisecond}, logger.New(&config.Config{LogLevel: "error"}))
	requestID := uuid.NewString()

	slow := make(chan error, 1)
	go func() {
		_, _, err := gate.Execute(context.Background(), requestID, "x")
		slow <- err
	}()
	<-started
	time.Sleep(200 * time.Millisecond)

	takeover, _, err := gate.Execute(context.Background(), requestID, "x")
	require.NoError(t, err)

	close(resume)
	err = <-slow
	assert.ErrorIs(t, err, idempotency.ErrRequestInProgress)
	assert.ErrorIs(t, err, idempotency.ErrClaimLost)
	assert.Equal(t, 0, countEffects(t, db, slowToken))
	assert.Equal(t, 1, countEffects(t, db, takeover))
}
