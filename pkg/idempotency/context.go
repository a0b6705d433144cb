package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/ghuser/eshop-ordering/pkg/database"
)

type executionKey struct{}

// execution is the claim a Gate hands to its handler.
type execution struct {
	store     Store
	claim     Record
	completed atomic.Bool // set once the record was completed inside the handler's transaction
}

func withExecution(ctx context.Context, ex *execution) context.Context {
	return context.WithValue(ctx, executionKey{}, ex)
}

// ClaimFromContext returns the claim of the Gate running the current handler.
func ClaimFromContext(ctx context.Context) (Record, bool) {
	ex, ok := ctx.Value(executionKey{}).(*execution)
	if !ok {
		return Record{}, false
	}
	return ex.claim, true
}

// CompleteOnCommit returns a ctx that makes the next database.WithTx store
// result and mark the claim Completed inside that transaction. If the claim
// was taken over in the meantime the transaction fails with ErrClaimLost and
// rolls back. ctx is returned unchanged outside a Gate or when the store has
// no TxCompleter; the Gate then completes the record after the handler.
func CompleteOnCommit(ctx context.Context, result any) context.Context {
	ex, ok := ctx.Value(executionKey{}).(*execution)
	if !ok {
		return ctx
	}
	tc, ok := ex.store.(TxCompleter)
	if !ok {
		return ctx
	}
	return database.BeforeCommit(ctx, func(ctx context.Context, tx *sql.Tx) error {
		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("idempotency: encode result: %w", err)
		}
		if err := tc.CompleteTx(ctx, tx, ex.claim, payload); err != nil {
			return fmt.Errorf("idempotency: complete %s/%s: %w", ex.claim.CommandType, ex.claim.RequestID, err)
		}
		ex.completed.Store(true)
		return nil
	})
}
