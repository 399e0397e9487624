// Package store provides the PostgreSQL-backed payment reconciliation
// store for Nexus: initiated, outgoing, incoming and bounce payments,
// plus the LISTEN/NOTIFY fan-out the long-poll history endpoints rely on.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultQueryTimeout is the maximum time allowed for a single query.
// This prevents a wedged bank dialog or a stuck lock from hanging the
// submit/fetch loops indefinitely.
const DefaultQueryTimeout = 30 * time.Second

// DB wraps a PostgreSQL connection pool with the timeout and notification
// plumbing every store operation needs.
type DB struct {
	pool *pgxpool.Pool
}

// Config holds the subset of connection parameters the store needs.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// NewFromPool creates a DB instance from an existing connection pool.
// This is primarily useful for testing.
func NewFromPool(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// New creates a new database connection pool.
func New(ctx context.Context, cfg Config) (*DB, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks database connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// BeginTx starts a new transaction at the default (read committed)
// isolation level. Callers needing SERIALIZABLE must pass pgx.TxOptions
// explicitly via BeginSerializable.
func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

// BeginSerializable starts a SERIALIZABLE transaction, as required by
// every write path in this store (§4.6, §5).
func (db *DB) BeginSerializable(ctx context.Context) (pgx.Tx, error) {
	return db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
}

// Exec executes a query without returning rows.
func (db *DB) Exec(ctx context.Context, sql string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	_, err := db.pool.Exec(ctx, sql, args...)
	return err
}

// ExecResult executes a query and returns the command tag.
func (db *DB) ExecResult(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	return db.pool.Exec(ctx, sql, args...)
}

// cancelRow wraps pgx.Row to cancel the timeout context when Scan is called.
// pgx defers reading the response to Scan time; cancelling the context
// before Scan (via defer) would cause spurious failures.
type cancelRow struct {
	row    pgx.Row
	cancel context.CancelFunc
}

func (r *cancelRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	r.cancel()
	return err
}

// QueryRow executes a query that returns a single row. The returned Row
// holds the timeout context alive until Scan is called.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	return &cancelRow{row: db.pool.QueryRow(ctx, sql, args...), cancel: cancel}
}

// cancelRows wraps pgx.Rows to cancel the timeout context on Close.
type cancelRows struct {
	pgx.Rows
	cancel context.CancelFunc
}

func (r *cancelRows) Close() {
	r.Rows.Close()
	r.cancel()
}

// Query executes a query returning multiple rows. The returned Rows must
// be closed by the caller, which also cancels the timeout context.
func (db *DB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelRows{Rows: rows, cancel: cancel}, nil
}
