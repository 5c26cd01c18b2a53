package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	EnvPrefix = "WORKTALLY_"
)

type Storage struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

type Schedule struct {
	Finalize    string `yaml:"finalize" env:"FINALIZE"`
	Maintenance string `yaml:"maintenance" env:"MAINTENANCE"`
}

type Config struct {
	DataDir           string        `yaml:"-"`
	DBPath            string        `yaml:"db_path" env:"DB_PATH"`
	Storage           Storage       `yaml:"storage" envPrefix:"STORAGE_"`
	Timezone          string        `yaml:"timezone" env:"TIMEZONE"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	MinSessionDisplay time.Duration `yaml:"min_session_display" env:"MIN_SESSION_DISPLAY"`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat         string        `yaml:"log_format" env:"LOG_FORMAT"`
	Notifications     bool          `yaml:"notifications" env:"NOTIFICATIONS"`
	PluginDir         string        `yaml:"plugin_dir" env:"PLUGIN_DIR"`
	ListenAddr        string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	Schedule          Schedule      `yaml:"schedule" envPrefix:"SCHEDULE_"`
}

// New returns the defaults rooted at dataDir.
func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:           dataDir,
		DBPath:            filepath.Join(dataDir, "worktally.db"),
		Storage:           Storage{Driver: DriverSQLite},
		Timezone:          "Local",
		HeartbeatInterval: time.Minute,
		MinSessionDisplay: time.Minute,
		LogLevel:          "info",
		LogFormat:         "text",
		Notifications:     true,
		PluginDir:         dataDir,
		ListenAddr:        "127.0.0.1:7420",
		Schedule: Schedule{
			Finalize:    "0 5 0 * * *",
			Maintenance: "0 30 3 * * 0",
		},
	}, nil
}

// Load layers defaults, the optional YAML file and WORKTALLY_* environment
// variables, then validates the result. An empty configPath falls back to
// <dataDir>/config.yaml when it exists.
func Load(dataDir, configPath string) (Config, error) {
	cfg, err := New(dataDir)
	if err != nil {
		return Config{}, err
	}

	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(dataDir, "config.yaml")
	}
	raw, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("environment variables are invalid: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.MinSessionDisplay < 0 {
		return fmt.Errorf("min_session_display must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log_format %q", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
