// Unit tests for the storage layer. Uses an in-memory SQLite database and
// go-sqlmock; no external services required.
package db_test

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/identity-registry/db"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestDB(t *testing.T, hooks ...db.Hook) *db.DB {
	t.Helper()
	d, err := db.Open(db.Config{
		DSN:        ":memory:",
		DriverName: "sqlite3",
		Hooks:      hooks,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			face_token TEXT UNIQUE,
			site       TEXT CHECK (site IS NULL OR length(site) > 0),
			created_at DATETIME NOT NULL
		)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return d
}

func insertToken(ctx context.Context, q db.Querier, token string) error {
	_, err := q.Exec(ctx, `INSERT INTO users (face_token, created_at) VALUES (?, ?)`, token, time.Now())
	return err
}

func countToken(t *testing.T, d *db.DB, token string) int {
	t.Helper()
	var n int
	if err := d.QueryRow(context.Background(), `SELECT COUNT(*) FROM users WHERE face_token = ?`, token).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Open / Ping
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen(t *testing.T) {
	d := newTestDB(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if d.Dialect() != db.DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %s", d.Dialect().Name())
	}
	if d.Config().MaxOpenConns != 1 {
		t.Fatalf("expected sqlite default of 1 open conn, got %d", d.Config().MaxOpenConns)
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	if _, err := db.Open(db.Config{DSN: "", DriverName: "sqlite3"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := db.Open(db.Config{DSN: ":memory:"}); err == nil {
		t.Fatal("expected error for empty driver name")
	}
	if _, err := db.Open(db.Config{DSN: ":memory:", DriverName: "oracle"}); err == nil {
		t.Fatal("expected error for unregistered driver")
	}
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := db.Open(db.Config{
		DSN:        "/nonexistent-dir/registry.sqlite3",
		DriverName: "sqlite3",
	})
	if !db.IsConnectionFailed(err) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Exec / QueryRow
// ─────────────────────────────────────────────────────────────────────────────

func TestExec_Insert(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	res, err := d.Exec(ctx, `INSERT INTO users (face_token, created_at) VALUES (?, ?)`, "abc", time.Now())
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}
}

func TestQueryRow_Returning(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	var id int64
	err := d.QueryRow(ctx, `INSERT INTO users (face_token, created_at) VALUES (?, ?) RETURNING id`, "ret", time.Now()).Scan(&id)
	if err != nil {
		t.Fatalf("insert returning: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}
}

func TestQueryRow_NotFound(t *testing.T) {
	d := newTestDB(t)

	var token string
	err := d.QueryRow(context.Background(), `SELECT face_token FROM users WHERE id = ?`, 99999).Scan(&token)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx
// ─────────────────────────────────────────────────────────────────────────────

func TestExecTx_Commit(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		return insertToken(ctx, tx, "committed")
	})
	if err != nil {
		t.Fatalf("tx commit: %v", err)
	}
	if n := countToken(t, d, "committed"); n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

func TestExecTx_RollbackOnError(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	sentinelErr := errors.New("intentional failure")

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		if err := insertToken(ctx, tx, "rolled-back"); err != nil {
			return err
		}
		return sentinelErr
	})
	if !errors.Is(err, sentinelErr) {
		t.Fatalf("expected sentinelErr, got %v", err)
	}
	if n := countToken(t, d, "rolled-back"); n != 0 {
		t.Fatalf("expected 0 rows after rollback, got %d", n)
	}
}

func TestExecTx_RollbackOnPanic(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = d.ExecTx(ctx, func(tx *db.Tx) error {
			if err := insertToken(ctx, tx, "panicked"); err != nil {
				return err
			}
			panic("test panic")
		})
	}()

	if n := countToken(t, d, "panicked"); n != 0 {
		t.Fatalf("expected 0 rows after panic, got %d", n)
	}
}

func TestExecTx_DuplicateKeyInsideTx(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	if err := insertToken(ctx, d, "dup"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		return insertToken(ctx, tx, "dup")
	})
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping (SQLite)
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_DuplicateKey(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	if err := insertToken(ctx, d, "dup@test"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insertToken(ctx, d, "dup@test")
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	var dbErr *db.DBError
	if !errors.As(err, &dbErr) || dbErr.Cause == nil {
		t.Fatalf("expected *DBError with cause, got %v", err)
	}
}

func TestErrorMapper_CheckViolation(t *testing.T) {
	d := newTestDB(t)

	_, err := d.Exec(context.Background(),
		`INSERT INTO users (face_token, site, created_at) VALUES (?, ?, ?)`, "chk", "", time.Now())
	if !db.IsCheckViolation(err) {
		t.Fatalf("expected ErrCheckViolation, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping (other drivers)
// ─────────────────────────────────────────────────────────────────────────────

func mapperFor(t *testing.T, name string) db.ErrorMapper {
	t.Helper()
	drv, err := db.LookupDriver(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return db.ChainMapper(drv.ErrorMapper(), db.DefaultErrorMapper())
}

func TestErrorMapper_Drivers(t *testing.T) {
	cases := []struct {
		driver string
		err    error
		want   error
	}{
		{"postgres", &pq.Error{Code: "23505"}, db.ErrDuplicateKey},
		{"postgres", &pq.Error{Code: "23503"}, db.ErrForeignKeyViolation},
		{"postgres", &pq.Error{Code: "57014"}, db.ErrTimeout},
		{"pgx", &pgconn.PgError{Code: "23505"}, db.ErrDuplicateKey},
		{"pgx", &pgconn.PgError{Code: "40P01"}, db.ErrDeadlock},
		{"pgx", &pgconn.PgError{Code: "08006"}, db.ErrConnectionFailed},
		{"mysql", &mysql.MySQLError{Number: 1062}, db.ErrDuplicateKey},
		{"mysql", &mysql.MySQLError{Number: 1213}, db.ErrDeadlock},
		{"mysql", &mysql.MySQLError{Number: 2003}, db.ErrConnectionFailed},
		{"mysql", mysql.ErrInvalidConn, db.ErrConnectionFailed},
		{"sqlite3", context.DeadlineExceeded, db.ErrTimeout},
		{"sqlite3", driver.ErrBadConn, db.ErrConnectionFailed},
		{"pgx", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, db.ErrConnectionFailed},
	}
	for _, c := range cases {
		got := mapperFor(t, c.driver).Map(c.err)
		if !errors.Is(got, c.want) {
			t.Fatalf("%s: %v mapped to %v, want %v", c.driver, c.err, got, c.want)
		}
		if !errors.Is(got, c.err) {
			t.Fatalf("%s: cause lost for %v", c.driver, c.err)
		}
	}
}

func TestErrorMapper_UnknownPassesThrough(t *testing.T) {
	plain := errors.New("something else")
	if got := mapperFor(t, "pgx").Map(plain); got != plain {
		t.Fatalf("expected unchanged error, got %v", got)
	}
	if got := mapperFor(t, "pgx").Map(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestChainMapper_DoesNotRewrap(t *testing.T) {
	original := &db.DBError{Sentinel: db.ErrNotFound, Cause: errors.New("no rows")}
	wrapped := errors.Join(errors.New("context"), original)
	if got := mapperFor(t, "sqlite3").Map(wrapped); got != wrapped {
		t.Fatalf("expected error carrying *DBError to pass through, got %v", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dialect / driver registry
// ─────────────────────────────────────────────────────────────────────────────

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT id FROM users WHERE face_token = ? AND id > ?`
	if got := db.DialectPostgres.Rebind(q); got != `SELECT id FROM users WHERE face_token = $1 AND id > $2` {
		t.Fatalf("unexpected postgres rebind: %s", got)
	}
	if got := db.DialectSQLite.Rebind(q); got != q {
		t.Fatalf("sqlite must keep '?', got %s", got)
	}
	if got := db.DialectMySQL.Rebind(q); got != q {
		t.Fatalf("mysql must keep '?', got %s", got)
	}
}

func TestDialect_Returning(t *testing.T) {
	if !db.DialectSQLite.Returning() || !db.DialectPostgres.Returning() {
		t.Fatal("sqlite and postgres support RETURNING")
	}
	if db.DialectMySQL.Returning() {
		t.Fatal("mysql does not support RETURNING")
	}
}

func TestRegisterDriver_DuplicatePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	db.RegisterDriver(db.SQLiteDriver{})
}

func TestWrap_UsesRegisteredDialect(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer sqlDB.Close()

	d := db.Wrap(sqlDB, db.Config{DriverName: "pgx"})
	if d.Dialect() != db.DialectPostgres {
		t.Fatalf("expected postgres dialect, got %s", d.Dialect().Name())
	}

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = d.Exec(context.Background(), `INSERT INTO users (face_token) VALUES ($1)`, "abc")
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	unknown := db.Wrap(sqlDB, db.Config{DriverName: "mystery"})
	if unknown.Dialect() != db.DialectSQLite {
		t.Fatalf("expected '?' dialect fallback, got %s", unknown.Dialect().Name())
	}
}

func TestMySQLDriver_ForcesParseTime(t *testing.T) {
	cases := []string{
		"u:p@tcp(h:3306)/registry",
		"u:p@tcp(h:3306)/registry?charset=utf8mb4",
		"u:p@tcp(h:3306)/registry?parseTime=false",
	}
	for _, dsn := range cases {
		cfg := db.MySQLDriver{}.Defaults(db.Config{DSN: dsn, DriverName: "mysql"})
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			t.Fatalf("%s: rewritten DSN %q does not parse: %v", dsn, cfg.DSN, err)
		}
		if !mc.ParseTime {
			t.Fatalf("%s: expected parseTime=true in %q", dsn, cfg.DSN)
		}
		if mc.User != "u" || mc.Passwd != "p" || mc.Addr != "h:3306" || mc.DBName != "registry" {
			t.Fatalf("%s: connection fields lost: %+v", dsn, mc)
		}
		if cfg.MaxOpenConns != 25 {
			t.Fatalf("%s: expected server pool defaults, got MaxOpenConns=%d", dsn, cfg.MaxOpenConns)
		}
	}

	bad := db.MySQLDriver{}.Defaults(db.Config{DSN: "not a dsn"})
	if bad.DSN != "not a dsn" {
		t.Fatalf("unparseable DSN must be left alone, got %q", bad.DSN)
	}
}

func TestExecTx_CommitFailureIsMapped(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer sqlDB.Close()
	d := db.Wrap(sqlDB, db.Config{DriverName: "postgres"})

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "08006"})

	err = d.ExecTx(context.Background(), func(*db.Tx) error { return nil })
	if !db.IsConnectionFailed(err) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Default timeout
// ─────────────────────────────────────────────────────────────────────────────

type deadlineHook struct {
	mu       sync.Mutex
	deadline time.Time
	ok       bool
}

func (h *deadlineHook) BeforeQuery(ctx context.Context, _ string, _ []any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deadline, h.ok = ctx.Deadline()
}

func (h *deadlineHook) AfterQuery(context.Context, string, []any, time.Duration, error) {}

func TestDefaultTimeout_AppliedWithoutCallerDeadline(t *testing.T) {
	hook := &deadlineHook{}
	d, err := db.Open(db.Config{
		DSN:            ":memory:",
		DriverName:     "sqlite3",
		DefaultTimeout: time.Minute,
		Hooks:          []db.Hook{hook},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(context.Background(), `SELECT 1`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !hook.ok || time.Until(hook.deadline) > time.Minute {
		t.Fatalf("expected default deadline, got ok=%v deadline=%v", hook.ok, hook.deadline)
	}

	callerDeadline := time.Now().Add(time.Hour)
	ctx, cancel := context.WithDeadline(context.Background(), callerDeadline)
	defer cancel()
	if _, err := d.Exec(ctx, `SELECT 1`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !hook.deadline.Equal(callerDeadline) {
		t.Fatalf("caller deadline must win, got %v", hook.deadline)
	}
}

func TestExpiredContext_MapsToErrTimeout(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer sqlDB.Close()
	d := db.Wrap(sqlDB, db.Config{DriverName: "pgx"})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	var n int
	err = d.QueryRow(ctx, `SELECT 1`).Scan(&n)
	if !db.IsTimeout(err) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context cause to be preserved, got %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	d := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Exec(ctx, `SELECT 1`)
	if err != nil && !db.IsTimeout(err) {
		t.Fatalf("expected nil or ErrTimeout, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry
// ─────────────────────────────────────────────────────────────────────────────

func TestWithRetry_SucceedsOnSecondAttempt(t *testing.T) {
	attempts := 0
	transient := errors.New("transient")

	err := db.WithRetry(context.Background(), db.RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		RetryOn:     func(err error) bool { return errors.Is(err, transient) },
	}, func() error {
		attempts++
		if attempts < 2 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := db.WithRetry(context.Background(), db.RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
	}, func() error {
		attempts++
		return &db.DBError{Sentinel: db.ErrConnectionFailed, Cause: errors.New("refused")}
	})
	if !db.IsConnectionFailed(err) {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	err := db.WithRetry(context.Background(), db.RetryConfig{MaxAttempts: 5}, func() error {
		attempts++
		return &db.DBError{Sentinel: db.ErrDuplicateKey}
	})
	if !db.IsDuplicateKey(err) || attempts != 1 {
		t.Fatalf("expected single attempt with ErrDuplicateKey, got %d / %v", attempts, err)
	}
}

func TestWithRetry_StopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := db.WithRetry(ctx, db.RetryConfig{MaxAttempts: 5, Delay: time.Hour}, func() error {
		attempts++
		cancel()
		return &db.DBError{Sentinel: db.ErrTimeout}
	})
	if !errors.Is(err, context.Canceled) || attempts != 1 {
		t.Fatalf("expected context.Canceled after 1 attempt, got %d / %v", attempts, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks
// ─────────────────────────────────────────────────────────────────────────────

type countingHook struct {
	mu      sync.Mutex
	before  int
	after   int
	lastErr error
}

func (h *countingHook) BeforeQuery(_ context.Context, _ string, _ []any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before++
}

func (h *countingHook) AfterQuery(_ context.Context, _ string, _ []any, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after++
	h.lastErr = err
}

func TestHooks_CalledOnExec(t *testing.T) {
	hook := &countingHook{}
	d := newTestDB(t, hook)

	// The schema statement in newTestDB already went through the hook.
	_, _ = d.Exec(context.Background(), `SELECT 1`)

	if hook.before != 2 || hook.after != 2 {
		t.Fatalf("hook not called: before=%d after=%d", hook.before, hook.after)
	}
}

func TestHooks_QueryRowReportsAfterScan(t *testing.T) {
	hook := &countingHook{}
	d := newTestDB(t, hook)

	row := d.QueryRow(context.Background(), `SELECT face_token FROM users WHERE id = ?`, 1)
	if hook.after != 1 {
		t.Fatalf("after hook must wait for Scan, got %d calls", hook.after)
	}
	var token string
	_ = row.Scan(&token)
	if hook.after != 2 || !db.IsNotFound(hook.lastErr) {
		t.Fatalf("expected after hook with ErrNotFound, got %d / %v", hook.after, hook.lastErr)
	}
}

type panickyHook struct{}

func (panickyHook) BeforeQuery(context.Context, string, []any) { panic("before") }
func (panickyHook) AfterQuery(context.Context, string, []any, time.Duration, error) {
	panic("after")
}

func TestHooks_PanicIsRecovered(t *testing.T) {
	d := newTestDB(t, panickyHook{})
	if err := insertToken(context.Background(), d, "still-works"); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogHook_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	hook := db.NewLogHook(db.LogHookConfig{
		Logger:             logger,
		SlowQueryThreshold: 10 * time.Millisecond,
		Quiet:              []error{db.ErrNotFound},
	})
	ctx := context.Background()

	hook.AfterQuery(ctx, "SELECT 1", nil, time.Millisecond, nil)
	hook.AfterQuery(ctx, "SELECT 2", nil, time.Millisecond, &db.DBError{Sentinel: db.ErrNotFound})
	hook.AfterQuery(ctx, "SELECT   3\n\tFROM users", nil, time.Second, nil)
	hook.AfterQuery(ctx, "INSERT 4", []any{"secret"}, time.Millisecond, &db.DBError{Sentinel: db.ErrDuplicateKey})

	lines := logLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines above debug, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "WARN" || lines[0]["query"] != "SELECT 3 FROM users" {
		t.Fatalf("unexpected slow query line: %v", lines[0])
	}
	if lines[1]["level"] != "ERROR" {
		t.Fatalf("unexpected error line: %v", lines[1])
	}
	if _, ok := lines[1]["args"]; ok {
		t.Fatal("args must not be logged unless LogArgs is set")
	}
}

type fakeCollector struct {
	mu      sync.Mutex
	success []bool
}

func (c *fakeCollector) RecordQuery(_ string, _ time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.success = append(c.success, ok)
}

func TestMetricsHook(t *testing.T) {
	c := &fakeCollector{}
	hook := db.NewMetricsHook(c)
	ctx := context.Background()

	hook.AfterQuery(ctx, "SELECT", nil, time.Millisecond, nil)
	hook.AfterQuery(ctx, "SELECT", nil, time.Millisecond, &db.DBError{Sentinel: db.ErrNotFound})
	hook.AfterQuery(ctx, "INSERT", nil, time.Millisecond, &db.DBError{Sentinel: db.ErrDuplicateKey})

	want := []bool{true, true, false}
	for i := range want {
		if c.success[i] != want[i] {
			t.Fatalf("call %d: expected success=%v", i, want[i])
		}
	}
}
