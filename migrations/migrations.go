// Package migrations embeds the versioned schema of the registry and applies
// it with golang-migrate. Each dialect has its own directory of numbered
// up/down files holding a single statement each.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Skryldev/identity-registry/db"
)

//go:embed sqlite3/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS

// Dir returns the embedded directory holding the migrations for driverName.
func Dir(driverName string) (string, error) {
	switch driverName {
	case "sqlite3":
		return "sqlite3", nil
	case "postgres", "pgx":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	}
	return "", fmt.Errorf("migrations: no migrations for driver %q", driverName)
}

// Migrator is a golang-migrate instance bound to the embedded migrations.
// Close must be called when done; it never closes the *db.DB it was built from.
type Migrator struct {
	*migrate.Migrate
	closeFn func() error
}

// New prepares a Migrator for d.
//
// SQLite is migrated through d's own handle so that ":memory:" databases see
// the schema. Server databases get a dedicated connection built from the DSN,
// which must then be in URL form (postgres://...) for PostgreSQL.
func New(d *db.DB, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := d.Config()

	dir, err := Dir(cfg.DriverName)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(FS, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: source: %w", err)
	}

	var mg *Migrator
	switch cfg.DriverName {
	case "sqlite3":
		driver, err := sqlite3.WithInstance(d.Raw(), &sqlite3.Config{})
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("migrations: sqlite3 driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("migrations: init: %w", err)
		}
		// m.Close would close d as well; release the source only.
		mg = &Migrator{Migrate: m, closeFn: src.Close}

	default:
		m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL(cfg))
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("migrations: init: %w", err)
		}
		mg = &Migrator{Migrate: m, closeFn: func() error {
			srcErr, dbErr := m.Close()
			return errors.Join(srcErr, dbErr)
		}}
	}

	mg.Log = &migrateLogger{logger: logger}
	return mg, nil
}

// Close releases the resources held by the migrator.
func (m *Migrator) Close() error {
	return m.closeFn()
}

// Up applies every pending migration. An up-to-date schema is not an error.
func Up(d *db.DB, logger *slog.Logger) error {
	m, err := New(d, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	v, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrations: version: %w", err)
	}
	m.Log.Printf("schema at version %d", v)
	return nil
}

func databaseURL(cfg db.Config) string {
	if cfg.DriverName == "mysql" {
		return "mysql://" + cfg.DSN
	}
	return cfg.DSN
}

// ─────────────────────────────────────────────────────────────────────────────

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf("migrations: "+format, v...))
}
func (l *migrateLogger) Verbose() bool { return false }
