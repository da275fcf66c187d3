/*
Package config loads process configuration from the environment.

SOURCES (later wins):
  1. struct defaults (default:"..." tags)
  2. .env file(s), loaded with godotenv; never overrides variables already set
  3. process environment
  4. command-line flags, applied by cmd/server after Load

KEYS:
  SERVER_HOST, SERVER_PORT, SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT,
  SERVER_IDLE_TIMEOUT, SERVER_SHUTDOWN_TIMEOUT, SERVER_ALLOWED_ORIGINS
  STORAGE_DRIVER (file|sqlite|memory), STORAGE_PATH
  LOG_LEVEL (debug|info|warn|error), LOG_FORMAT (text|json), LOG_PREFIX, LOG_TIME_FORMAT
  SESSION_COOKIE, SESSION_TTL, SESSION_SECURE, SESSION_SWEEP_INTERVAL
*/
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Leaf fields use split_words instead of envconfig tags: a tag is also
// tried as an unprefixed key, so STORAGE_PATH would fall back to $PATH.

type Server struct {
	Host            string        `split_words:"true"`
	Port            int           `split_words:"true" default:"8000"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"15s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	AllowedOrigins  []string      `split_words:"true" default:"http://localhost:5173"`
}

// Addr is the listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type Storage struct {
	Driver string `split_words:"true" default:"file"`
	// Path is the data directory for "file" and the database file for "sqlite".
	Path string `split_words:"true" default:"./data"`
}

type Log struct {
	Level      string `split_words:"true" default:"info"`
	Format     string `split_words:"true" default:"text"`
	TimeFormat string `split_words:"true" default:"2006-01-02 15:04:05"`
	Prefix     string `split_words:"true" default:"[pocket-ledger]"`
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", l.Level, err)
	}
	return level, nil
}

type Session struct {
	Cookie        string        `split_words:"true" default:"session"`
	TTL           time.Duration `split_words:"true" default:"24h"`
	Secure        bool          `split_words:"true" default:"false"`
	SweepInterval time.Duration `split_words:"true" default:"10m"`
}

type App struct {
	Server  Server  `envconfig:"SERVER"`
	Storage Storage `envconfig:"STORAGE"`
	Log     Log     `envconfig:"LOG"`
	Session Session `envconfig:"SESSION"`
}

// Load reads the first existing file in envFiles (or ./.env when none is
// given) and then the environment. A missing .env file is not an error.
// Load does not validate: callers apply their overrides, then call Validate.
func Load(envFiles ...string) (*App, error) {
	logger := slog.Default()

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			logger.Debug("Environment file not found", "path", path)
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		logger.Info("Loaded environment file", "path", path)
		break
	}

	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *App) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d out of range", c.Server.Port))
	}
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q: want %s, %s or %s",
			c.Storage.Driver, DriverFile, DriverSQLite, DriverMemory))
	}
	if c.Storage.Driver != DriverMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("STORAGE_PATH is required"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want text or json", c.Log.Format))
	}
	if c.Session.Cookie == "" {
		errs = append(errs, errors.New("SESSION_COOKIE is required"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL %s must be positive", c.Session.TTL))
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_SWEEP_INTERVAL %s must be positive", c.Session.SweepInterval))
	}
	return errors.Join(errs...)
}
