package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ghuser/eshop-ordering/pkg/logger"
)

const (
	defaultClaimTTL        = 5 * time.Minute
	defaultCompleteRetries = 3
	defaultCompleteBackoff = 50 * time.Millisecond
)

// Handler runs a command and returns its result.
type Handler[C, R any] func(ctx context.Context, cmd C) (R, error)

// Config tunes a Gate. Zero values use the defaults.
type Config struct {
	// ClaimTTL is how long an InProgress record blocks duplicates before a
	// retry may take it over. Default 5m.
	ClaimTTL time.Duration
	// CompleteRetries bounds the attempts to mark a record Completed after the
	// handler succeeded. Default 3.
	CompleteRetries uint64
	// CompleteBackoff is the base delay between those attempts. Default 50ms.
	CompleteBackoff time.Duration
}

// Gate runs a Handler at most once per request id.
type Gate[C, R any] struct {
	store       Store
	commandType string
	handler     Handler[C, R]
	cfg         Config
	log         logger.Logger
}

// NewGate wraps handler. commandType scopes request ids, so the same id may be
// reused across different commands.
func NewGate[C, R any](store Store, commandType string, handler Handler[C, R], cfg Config, log logger.Logger) *Gate[C, R] {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaultClaimTTL
	}
	if cfg.CompleteRetries == 0 {
		cfg.CompleteRetries = defaultCompleteRetries
	}
	if cfg.CompleteBackoff <= 0 {
		cfg.CompleteBackoff = defaultCompleteBackoff
	}
	return &Gate[C, R]{
		store:       store,
		commandType: commandType,
		handler:     handler,
		cfg:         cfg,
		log:         log,
	}
}

// CommandType returns the scope the gate records request ids under.
func (g *Gate[C, R]) CommandType() string {
	return g.commandType
}

// Execute runs cmd through the handler unless requestID was seen before.
//
//   - first delivery: the handler runs and its result is stored and returned
//   - Completed duplicate: the stored result is returned with duplicate=true
//   - InProgress duplicate: ErrRequestInProgress, the handler does not run
//
// If the handler fails the claim is released, so a retry with the same
// request id runs the handler again. A handler that reports ErrAlreadyApplied
// found the effects of an earlier run for the same claim; its result is
// stored and returned as a duplicate. A handler that lost its claim to a
// takeover yields ErrRequestInProgress, since the other delivery now owns the
// outcome. Whether a duplicate counts as success is up to the caller.
func (g *Gate[C, R]) Execute(ctx context.Context, requestID string, cmd C) (result R, duplicate bool, err error) {
	var zero R

	requestID = strings.TrimSpace(requestID)
	if requestID == "" || len(requestID) > maxRequestIDLength {
		return zero, false, ErrInvalidRequestID
	}

	claim, claimed, err := g.store.Claim(ctx, g.commandType, requestID, g.cfg.ClaimTTL)
	if err != nil {
		return zero, false, fmt.Errorf("idempotency: claim %s/%s: %w", g.commandType, requestID, err)
	}

	if !claimed {
		if claim.State != StateCompleted {
			return zero, false, ErrRequestInProgress
		}
		if err := json.Unmarshal(claim.Result, &result); err != nil {
			return zero, false, fmt.Errorf("idempotency: decode stored result for %s/%s: %w", g.commandType, requestID, err)
		}
		g.log.InfoContext(ctx, "idempotency: duplicate request served from stored result",
			"command_type", g.commandType,
			"request_id", requestID,
		)
		return result, true, nil
	}

	ex := &execution{store: g.store, claim: claim}
	result, err = g.handler(withExecution(ctx, ex), cmd)
	switch {
	case err == nil:
		if !ex.completed.Load() {
			g.complete(context.WithoutCancel(ctx), claim, result)
		}
		return result, false, nil

	case errors.Is(err, ErrAlreadyApplied):
		g.log.InfoContext(ctx, "idempotency: request already applied by an earlier run",
			"command_type", g.commandType,
			"request_id", requestID,
		)
		g.complete(context.WithoutCancel(ctx), claim, result)
		return result, true, nil

	case errors.Is(err, ErrClaimLost):
		g.log.WarnContext(ctx, "idempotency: claim taken over while handler ran",
			"command_type", g.commandType,
			"request_id", requestID,
		)
		return zero, false, fmt.Errorf("%w: %w", ErrRequestInProgress, err)

	default:
		if relErr := g.store.Release(context.WithoutCancel(ctx), claim); relErr != nil {
			g.log.ErrorContext(ctx, "idempotency: release claim failed",
				"command_type", g.commandType,
				"request_id", requestID,
				"error", relErr,
			)
		}
		return zero, false, err
	}
}

// complete stores result. The handler's effects are already committed, so a
// failure here is logged rather than returned; the record stays InProgress
// until ClaimTTL expires, and the next run finds those effects through
// Record.Key and reports ErrAlreadyApplied.
func (g *Gate[C, R]) complete(ctx context.Context, claim Record, result R) {
	payload, err := json.Marshal(result)
	if err != nil {
		g.log.ErrorContext(ctx, "idempotency: encode result failed",
			"command_type", claim.CommandType,
			"request_id", claim.RequestID,
			"error", err,
		)
		return
	}

	b := retry.WithMaxRetries(g.cfg.CompleteRetries, retry.NewExponential(g.cfg.CompleteBackoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		err := g.store.Complete(ctx, claim, payload)
		if err == nil || errors.Is(err, ErrClaimLost) {
			return err
		}
		return retry.RetryableError(err)
	})
	if errors.Is(err, ErrClaimLost) {
		g.log.WarnContext(ctx, "idempotency: record already owned by another delivery",
			"command_type", claim.CommandType,
			"request_id", claim.RequestID,
		)
		return
	}
	if err != nil {
		g.log.ErrorContext(ctx, "idempotency: mark completed failed",
			"command_type", claim.CommandType,
			"request_id", claim.RequestID,
			"error", err,
		)
	}
}
