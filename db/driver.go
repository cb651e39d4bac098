package db

// Pluggable driver abstraction. Each adapter knows its database/sql driver
// name, placeholder dialect, pool defaults and how to translate its own
// error types into the package sentinels.

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Dialect
// ─────────────────────────────────────────────────────────────────────────────

// Dialect describes the SQL flavour spoken by a driver.
type Dialect struct {
	name      string
	numbered  bool
	returning bool
}

var (
	DialectSQLite   = Dialect{name: "sqlite", returning: true}
	DialectPostgres = Dialect{name: "postgres", numbered: true, returning: true}
	DialectMySQL    = Dialect{name: "mysql"}
)

// Name returns the dialect name ("sqlite", "postgres" or "mysql").
func (d Dialect) Name() string { return d.name }

// Returning reports whether INSERT ... RETURNING is supported.
func (d Dialect) Returning() bool { return d.returning }

// Rebind rewrites '?' placeholders into the dialect's native form. Queries
// must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour.
type Driver interface {
	// Name returns the name registered with database/sql, e.g. "pgx", "mysql".
	Name() string

	// Dialect returns the placeholder and feature set of the database.
	Dialect() Dialect

	// ErrorMapper returns a mapper for this driver's error types.
	ErrorMapper() ErrorMapper

	// Defaults fills pool settings the driver needs when the caller left
	// them unset.
	Defaults(cfg Config) Config
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the global registry.
// Panics if a driver with the same name is already registered.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("registry/db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("registry/db: driver %q not registered", name)
	}
	return d, nil
}

func init() {
	RegisterDriver(SQLiteDriver{})
	RegisterDriver(PostgresDriver{})
	RegisterDriver(PgxDriver{})
	RegisterDriver(MySQLDriver{})
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite (mattn/go-sqlite3)
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the default store. SQLite allows a single writer, so the
// pool is limited to one connection unless configured otherwise; this also
// keeps ":memory:" databases shared across calls.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string     { return "sqlite3" }
func (SQLiteDriver) Dialect() Dialect { return DialectSQLite }

func (SQLiteDriver) Defaults(cfg Config) Config {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 1
	}
	return cfg
}

func (SQLiteDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return err
		}
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
		case sqlite3.ErrConstraintForeignKey:
			return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
		case sqlite3.ErrConstraintCheck:
			return &DBError{Sentinel: ErrCheckViolation, Cause: err}
		}
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return &DBError{Sentinel: ErrDeadlock, Cause: err}
		case sqlite3.ErrCantOpen:
			return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
		case sqlite3.ErrInterrupt: // raised when the statement's context ends
			return &DBError{Sentinel: ErrTimeout, Cause: err}
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq and pgx)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter.
type PostgresDriver struct{}

func (PostgresDriver) Name() string               { return "postgres" }
func (PostgresDriver) Dialect() Dialect           { return DialectPostgres }
func (PostgresDriver) Defaults(cfg Config) Config { return serverPoolDefaults(cfg) }

func (PostgresDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) {
			return err
		}
		if mapped := mapByPGCode(string(pqErr.Code), err); mapped != nil {
			return mapped
		}
		return err
	})
}

// PgxDriver is the jackc/pgx stdlib adapter.
type PgxDriver struct{}

func (PgxDriver) Name() string               { return "pgx" }
func (PgxDriver) Dialect() Dialect           { return DialectPostgres }
func (PgxDriver) Defaults(cfg Config) Config { return serverPoolDefaults(cfg) }

func (PgxDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if mapped := mapByPGCode(pgErr.Code, err); mapped != nil {
				return mapped
			}
			return err
		}
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) {
			return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
		}
		return err
	})
}

// serverPoolDefaults sizes the pool for a networked database server.
func serverPoolDefaults(cfg Config) Config {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = 2 * time.Minute
	}
	return cfg
}

// PostgreSQL SQLSTATE codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
func mapByPGCode(code string, cause error) error {
	switch code {
	case "23505": // unique_violation
		return &DBError{Sentinel: ErrDuplicateKey, Cause: cause}
	case "23503": // foreign_key_violation
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: cause}
	case "23514": // check_violation
		return &DBError{Sentinel: ErrCheckViolation, Cause: cause}
	case "40P01": // deadlock_detected
		return &DBError{Sentinel: ErrDeadlock, Cause: cause}
	case "57014": // query_canceled (statement_timeout)
		return &DBError{Sentinel: ErrTimeout, Cause: cause}
	case "08000", "08003", "08006", "08001", "08004", "08007", "08P01":
		return &DBError{Sentinel: ErrConnectionFailed, Cause: cause}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL (go-sql-driver/mysql)
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the go-sql-driver/mysql adapter.
type MySQLDriver struct{}

func (MySQLDriver) Name() string     { return "mysql" }
func (MySQLDriver) Dialect() Dialect { return DialectMySQL }

// Defaults forces parseTime=true on the DSN so DATETIME columns scan into
// time.Time. A DSN that does not parse is left for Open to reject.
func (MySQLDriver) Defaults(cfg Config) Config {
	if cfg.DSN != "" {
		if mc, err := mysql.ParseDSN(cfg.DSN); err == nil && !mc.ParseTime {
			mc.ParseTime = true
			cfg.DSN = mc.FormatDSN()
		}
	}
	return serverPoolDefaults(cfg)
}

func (MySQLDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if errors.Is(err, mysql.ErrInvalidConn) {
			return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
		}
		var me *mysql.MySQLError
		if !errors.As(err, &me) {
			return err
		}
		switch me.Number {
		case 1062: // ER_DUP_ENTRY
			return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
		case 1452, 1216, 1217: // ER_NO_REFERENCED_ROW, ER_ROW_IS_REFERENCED
			return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
		case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
			return &DBError{Sentinel: ErrCheckViolation, Cause: err}
		case 1213: // ER_LOCK_DEADLOCK
			return &DBError{Sentinel: ErrDeadlock, Cause: err}
		case 3024: // ER_QUERY_TIMEOUT
			return &DBError{Sentinel: ErrTimeout, Cause: err}
		case 1045, 2002, 2003, 2006, 2013:
			return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// generic fallback for Wrap with unknown driver names
// ─────────────────────────────────────────────────────────────────────────────

type genericDriver struct{}

func (genericDriver) Name() string               { return "" }
func (genericDriver) Dialect() Dialect           { return DialectSQLite }
func (genericDriver) Defaults(cfg Config) Config { return cfg }
func (genericDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error { return err })
}
