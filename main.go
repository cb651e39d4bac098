// Command identity-registry serves the static pages under the templates
// directory and registers users by face or fingerprint token.
//
//	identity-registry [-addr :8000] [-db-driver sqlite3] [-db-url db.sqlite3] [-templates templates]
//
// Every flag has an environment counterpart (HTTP_ADDR, DATABASE_DRIVER,
// DATABASE_URL, TEMPLATES_DIR, ...); flags win.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skryldev/identity-registry/assets"
	"github.com/Skryldev/identity-registry/config"
	"github.com/Skryldev/identity-registry/db"
	"github.com/Skryldev/identity-registry/metrics"
	"github.com/Skryldev/identity-registry/migrations"
	"github.com/Skryldev/identity-registry/registry"
	"github.com/Skryldev/identity-registry/repo"
	"github.com/Skryldev/identity-registry/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// ── Structured logger ────────────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Store ────────────────────────────────────────────────────────────
	m := metrics.New()
	hooks := []db.Hook{
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
			Quiet:              []error{db.ErrNotFound, db.ErrDuplicateKey},
		}),
	}
	if cfg.MetricsEnabled {
		hooks = append(hooks, db.NewMetricsHook(m))
	}

	database, err := openStore(ctx, db.Config{
		DSN:            cfg.DatabaseURL,
		DriverName:     cfg.DatabaseDriver,
		DefaultTimeout: cfg.StoreTimeout,
		Hooks:          hooks,
	})
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database, logger); err != nil {
		fatalf("migrate: %v", err)
	}

	// ── Service ──────────────────────────────────────────────────────────
	store := repo.NewStore(database)
	regOpts := registry.Options{Timeout: cfg.StoreTimeout, Logger: logger}
	srvOpts := server.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
		Logger:       logger,
		Health:       store,
	}
	if cfg.MetricsEnabled {
		regOpts.Recorder = m
		srvOpts.Metrics = m.Handler()
	}
	srv := server.New(registry.New(store, regOpts), assets.NewDir(cfg.TemplatesDir), srvOpts)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("http: listening",
			"addr", cfg.HTTPAddr,
			"driver", cfg.DatabaseDriver,
			"templates", cfg.TemplatesDir,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http: shutdown", "err", err)
	}
	slog.Info("http: stopped")
}

// openStore opens the database, waiting for a server-backed store that is
// still starting up.
func openStore(ctx context.Context, cfg db.Config) (*db.DB, error) {
	var database *db.DB
	err := db.WithRetry(ctx, db.RetryConfig{
		MaxAttempts: 10,
		Delay:       time.Second,
	}, func() error {
		d, err := db.Open(cfg)
		if err != nil {
			slog.Warn("store: not reachable yet", "driver", cfg.DriverName, "err", err)
			return err
		}
		database = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	stats := database.Stats()
	slog.Info("store: connected",
		"driver", cfg.DriverName,
		"dialect", database.Dialect().Name(),
		"max_open", stats.MaxOpenConnections,
	)
	return database, nil
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
