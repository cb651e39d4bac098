// Package config loads the runtime settings of the registry server:
// defaults, then environment variables, then command-line flags.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr           string
	DatabaseDriver     string
	DatabaseURL        string
	TemplatesDir       string
	StoreTimeout       time.Duration
	LogLevel           slog.Level
	SlowQueryThreshold time.Duration
	MaxBodyBytes       int64
	MetricsEnabled     bool
}

// Defaults returns the settings used when nothing overrides them. The server
// listens on port 8000 and keeps its data in ./db.sqlite3.
func Defaults() Config {
	return Config{
		HTTPAddr:           ":8000",
		DatabaseDriver:     "sqlite3",
		DatabaseURL:        "db.sqlite3",
		TemplatesDir:       "templates",
		StoreTimeout:       5 * time.Second,
		LogLevel:           slog.LevelInfo,
		SlowQueryThreshold: 200 * time.Millisecond,
		MaxBodyBytes:       1 << 20,
		MetricsEnabled:     true,
	}
}

// Load applies the environment and then args (usually os.Args[1:]) on top of
// Defaults.
func Load(args []string) (Config, error) {
	cfg := Defaults()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.applyFlags(args, io.Discard); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.DatabaseDriver = getenv("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.TemplatesDir = getenv("TEMPLATES_DIR", c.TemplatesDir)
	c.StoreTimeout = getenvDuration("STORE_TIMEOUT", c.StoreTimeout)
	c.SlowQueryThreshold = getenvDuration("SLOW_QUERY_THRESHOLD", c.SlowQueryThreshold)
	c.MaxBodyBytes = getenvInt64("MAX_BODY_BYTES", c.MaxBodyBytes)
	c.MetricsEnabled = getenvBool("METRICS_ENABLED", c.MetricsEnabled)
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		if err := c.LogLevel.UnmarshalText([]byte(val)); err != nil {
			return fmt.Errorf("config: LOG_LEVEL: %w", err)
		}
	}
	return nil
}

func (c *Config) applyFlags(args []string, output io.Writer) error {
	fs := flag.NewFlagSet("identity-registry", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&c.HTTPAddr, "addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.DatabaseDriver, "db-driver", c.DatabaseDriver, "database driver: sqlite3, postgres, pgx or mysql")
	fs.StringVar(&c.DatabaseURL, "db-url", c.DatabaseURL, "database DSN")
	fs.StringVar(&c.TemplatesDir, "templates", c.TemplatesDir, "directory served for GET requests")
	fs.DurationVar(&c.StoreTimeout, "store-timeout", c.StoreTimeout, "bound on a single registration lookup")
	fs.DurationVar(&c.SlowQueryThreshold, "slow-query", c.SlowQueryThreshold, "log statements slower than this")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", c.MaxBodyBytes, "maximum accepted request body size")
	fs.BoolVar(&c.MetricsEnabled, "metrics", c.MetricsEnabled, "serve Prometheus metrics on /metrics")
	fs.TextVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite3", "postgres", "pgx", "mysql":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("config: database URL must not be empty")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("config: store timeout must be positive, got %s", c.StoreTimeout)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
