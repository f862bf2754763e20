/*
Package config loads server settings.

SOURCES (later wins):
  1. Defaults
  2. .env file in the working directory (joho/godotenv, optional)
  3. Environment variables
  4. Command-line flags

ENVIRONMENT:
  PORT                HTTP port (default 8080)
  DB_PATH             SQLite path, ":memory:" for in-memory (default revenue.db)
  CURRENCY            ISO 4217 code for payouts (default USD)
  SCHEDULER_INTERVAL  Payout scheduler tick, Go duration (default 1h, 0 disables)
  SETTLEMENT_HOLD     Delay after period end before a payout starts processing (default 72h)
  CORS_ORIGINS        Comma-separated allowed origins (default *)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	Port              int
	DBPath            string
	Currency          string
	SchedulerInterval time.Duration
	SettlementHold    time.Duration
	CORSOrigins       []string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:              8080,
		DBPath:            "revenue.db",
		Currency:          money.USD,
		SchedulerInterval: time.Hour,
		SettlementHold:    72 * time.Hour,
		CORSOrigins:       []string{"*"},
	}
}

// Load reads .env (if present), the environment and then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return Parse(os.Getenv, args)
}

// Parse builds a Config from getenv and flag args without touching files.
func Parse(getenv func(string) string, args []string) (Config, error) {
	cfg := Default()

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("CURRENCY"); v != "" {
		cfg.Currency = v
	}
	if err := parseDuration(getenv, "SCHEDULER_INTERVAL", &cfg.SchedulerInterval); err != nil {
		return Config{}, err
	}
	if err := parseDuration(getenv, "SETTLEMENT_HOLD", &cfg.SettlementHold); err != nil {
		return Config{}, err
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	// Flags
	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	flags.StringVar(&cfg.Currency, "currency", cfg.Currency, "ISO 4217 payout currency")
	flags.DurationVar(&cfg.SchedulerInterval, "scheduler-interval", cfg.SchedulerInterval, "payout scheduler tick (0 disables)")
	flags.DurationVar(&cfg.SettlementHold, "settlement-hold", cfg.SettlementHold, "delay after period end before processing")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Currency = strings.ToUpper(cfg.Currency)

	return cfg, cfg.Validate()
}

// Validate checks ranges and the currency code.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if money.GetCurrency(c.Currency) == nil {
		return fmt.Errorf("unknown currency %q", c.Currency)
	}
	if c.SchedulerInterval < 0 || c.SettlementHold < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

func parseDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
