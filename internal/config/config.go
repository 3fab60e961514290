// Package config loads server settings from defaults, an optional YAML
// file, a .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Store   StoreConfig   `yaml:"store" envPrefix:"STORE_"`
	Redis   RedisConfig   `yaml:"redis" envPrefix:"REDIS_"`
	NATS    NATSConfig    `yaml:"nats" envPrefix:"NATS_"`
	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr" env:"ADDR"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" env:"SHUTDOWN_GRACE"`
	// AllowedOrigins are host patterns allowed to open /ws from another
	// origin, e.g. "draft.example.com" or "*.example.com". Comma separated
	// in the environment.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver" env:"DRIVER"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
}

// RedisConfig backs the event journal. When disabled the journal lives in
// memory.
type RedisConfig struct {
	Enabled    bool          `yaml:"enabled" env:"ENABLED"`
	Addr       string        `yaml:"addr" env:"ADDR"`
	Password   string        `yaml:"password" env:"PASSWORD"`
	DB         int           `yaml:"db" env:"DB"`
	JournalTTL time.Duration `yaml:"journal_ttl" env:"JOURNAL_TTL"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url" env:"URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
}

type SessionConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`
	ViewerBuffer int           `yaml:"viewer_buffer" env:"VIEWER_BUFFER"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// EnvPrefix is prepended to every environment variable, e.g.
// AUCTION_SERVER_ADDR.
const EnvPrefix = "AUCTION_"

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			ShutdownGrace: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "auction.db",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			JournalTTL: 24 * time.Hour,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "auction",
		},
		Session: SessionConfig{
			FetchTimeout: 5 * time.Second,
			ViewerBuffer: 16,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config. path may be empty; a missing .env is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var err error
	if strings.TrimSpace(c.Server.Addr) == "" {
		err = multierr.Append(err, errors.New("server.addr is required"))
	}
	if c.Server.ShutdownGrace <= 0 {
		err = multierr.Append(err, errors.New("server.shutdown_grace must be positive"))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			err = multierr.Append(err, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Store.PostgresDSN) == "" {
			err = multierr.Append(err, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Redis.Enabled && c.Redis.JournalTTL <= 0 {
		err = multierr.Append(err, errors.New("redis.journal_ttl must be positive"))
	}
	if c.NATS.Enabled && strings.TrimSpace(c.NATS.SubjectPrefix) == "" {
		err = multierr.Append(err, errors.New("nats.subject_prefix is required"))
	}
	if c.Session.FetchTimeout <= 0 {
		err = multierr.Append(err, errors.New("session.fetch_timeout must be positive"))
	}
	if c.Session.ViewerBuffer <= 0 {
		err = multierr.Append(err, errors.New("session.viewer_buffer must be positive"))
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
