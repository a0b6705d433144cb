// Package database owns the PostgreSQL connection pool shared by repositories,
// the idempotency store and the integration event log.
//
// The pool is a pgxpool.Pool exposed through database/sql (pgx stdlib adapter)
// so that the same *sql.Tx can be handed to sqlc queries and to Watermill's
// SQL publisher inside one unit of work.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ghuser/eshop-ordering/pkg/logger"
)

const (
	maxConns          = 20
	minConns          = 2
	maxConnLifetime   = time.Hour
	maxConnIdleTime   = 10 * time.Minute
	healthCheckPeriod = time.Minute
	connectTimeout    = 5 * time.Second
)

// UniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const UniqueViolation = "23505"

// Database wraps the pgx pool and its database/sql view.
type Database struct {
	pool *pgxpool.Pool
	db   *sql.DB
	log  logger.Logger
}

// NewPool parses url, opens a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, url string, log logger.Logger) (*Database, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("database: parse url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = maxConnLifetime
	cfg.MaxConnIdleTime = maxConnIdleTime
	cfg.HealthCheckPeriod = healthCheckPeriod
	cfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	return &Database{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
		log:  log,
	}, nil
}

// DB returns the database/sql handle for non-transactional queries.
func (d *Database) DB() *sql.DB {
	return d.db
}

type beforeCommitKey struct{}

// BeforeCommitFunc joins a transaction opened by WithTx.
type BeforeCommitFunc func(ctx context.Context, tx *sql.Tx) error

// BeforeCommit returns a copy of ctx that makes WithTx run fn inside the
// transaction once the caller's work succeeded, right before commit. An error
// from fn rolls the whole transaction back.
func BeforeCommit(ctx context.Context, fn BeforeCommitFunc) context.Context {
	hooks, _ := ctx.Value(beforeCommitKey{}).([]BeforeCommitFunc)
	return context.WithValue(ctx, beforeCommitKey{}, append(hooks[:len(hooks):len(hooks)], fn))
}

// WithTx runs fn inside a single transaction, followed by any hooks registered
// on ctx with BeforeCommit. The transaction commits when all of them return
// nil and rolls back on error or panic; nothing fn wrote is visible to other
// sessions unless the commit succeeds.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		d.rollback(ctx, tx)
		return err
	}

	hooks, _ := ctx.Value(beforeCommitKey{}).([]BeforeCommitFunc)
	for _, hook := range hooks {
		if err := hook(ctx, tx); err != nil {
			d.rollback(ctx, tx)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("database: commit tx: %w", err)
	}
	return nil
}

func (d *Database) rollback(ctx context.Context, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		d.log.ErrorContext(ctx, "database: rollback failed", "error", err)
	}
}

// Ping checks the database connection health.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database: ping: %w", err)
	}
	return nil
}

// Close releases the database/sql handle and the underlying pool.
func (d *Database) Close() {
	_ = d.db.Close()
	d.pool.Close()
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}
