// Package db is the SQL layer of the identity registry: a thin,
// concurrency-safe wrapper around database/sql that adds context-aware
// helpers, hook dispatch, unified error mapping and transaction management.
// All SQL stays explicit and lives in the repositories.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds all options for opening and managing the connection pool.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "sqlite3", "postgres", "pgx" or "mysql".
	DriverName string

	// Pool settings. Zero values keep the driver defaults.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// DefaultTimeout bounds every statement and transaction whose context
	// carries no deadline. Zero means no default timeout.
	DefaultTimeout time.Duration

	// Hooks executed around every statement. Nil entries are skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────────────────────

// DB wraps *sql.DB. It is safe for concurrent use.
type DB struct {
	sqldb   *sql.DB
	cfg     Config
	dialect Dialect
	hooks   hookChain
	errMap  ErrorMapper
}

// Open opens the database described by cfg and verifies connectivity with Ping.
// The driver named by cfg.DriverName must be registered (see RegisterDriver);
// its pool defaults and error mapper are installed on the returned DB.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("registry/db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("registry/db: DriverName must not be empty")
	}

	drv, err := LookupDriver(cfg.DriverName)
	if err != nil {
		return nil, err
	}
	cfg = drv.Defaults(cfg)

	sqldb, err := sql.Open(drv.Name(), cfg.DSN)
	if err != nil {
		return nil, &DBError{Sentinel: ErrConnectionFailed, Cause: err, Message: "open"}
	}

	d := newDB(sqldb, cfg, drv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, &DBError{Sentinel: ErrConnectionFailed, Cause: err, Message: "ping"}
	}

	return d, nil
}

// Wrap adopts an already opened *sql.DB without pinging it. The dialect and
// error mapper are taken from the driver registered under cfg.DriverName;
// unknown names fall back to the generic mapper and '?' placeholders.
func Wrap(sqldb *sql.DB, cfg Config) *DB {
	drv, err := LookupDriver(cfg.DriverName)
	if err != nil {
		drv = genericDriver{}
	}
	return newDB(sqldb, drv.Defaults(cfg), drv)
}

func newDB(sqldb *sql.DB, cfg Config, drv Driver) *DB {
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return &DB{
		sqldb:   sqldb,
		cfg:     cfg,
		dialect: drv.Dialect(),
		hooks:   newHookChain(cfg.Hooks),
		errMap:  ChainMapper(drv.ErrorMapper(), DefaultErrorMapper()),
	}
}

// Raw returns the underlying *sql.DB.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// Config returns the effective configuration, driver defaults included.
func (d *DB) Config() Config { return d.cfg }

// Dialect reports the SQL dialect of the connected database.
func (d *DB) Dialect() Dialect { return d.dialect }

// Close closes all pooled connections.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// Stats returns pool statistics.
func (d *DB) Stats() sql.DBStats { return d.sqldb.Stats() }

// ─────────────────────────────────────────────────────────────────────────────
// Query execution
// ─────────────────────────────────────────────────────────────────────────────

// Exec executes a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	res, err := d.sqldb.ExecContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// QueryRow executes a query expected to return at most one row. The error,
// if any, is reported by Scan; ErrNotFound when no row matches.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx, cancel := d.withDefaultTimeout(ctx)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	raw := d.sqldb.QueryRowContext(ctx, query, args...)
	return &Row{
		raw:    raw,
		errMap: d.errMap,
		done: func(err error) {
			d.hooks.After(ctx, query, args, time.Since(start), err)
			cancel()
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func (d *DB) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.DefaultTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.DefaultTimeout)
}

func (d *DB) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return d.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row and maps errors through the unified error mapper.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
	done   func(error)
}

// Scan copies columns from the matched row into dest values.
// ErrNotFound is returned when no row was found.
func (r *Row) Scan(dest ...any) error {
	err := r.errMap.Map(r.raw.Scan(dest...))
	if r.done != nil {
		r.done(err)
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry
// ─────────────────────────────────────────────────────────────────────────────

// RetryConfig controls retry behaviour for transient errors.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// RetryOn decides whether a given error should trigger a retry.
	// Defaults to ErrConnectionFailed and ErrTimeout.
	RetryOn func(error) bool
}

// WithRetry executes fn, retrying on transient errors per cfg.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	retryOn := cfg.RetryOn
	if retryOn == nil {
		retryOn = func(err error) bool {
			return IsConnectionFailed(err) || IsTimeout(err)
		}
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryOn(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("registry/db: all %d attempts failed, last error: %w", attempts, lastErr)
}
