package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"worktally/internal/platform/config"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != filepath.Join(dir, "worktally.db") {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.Storage.Driver != config.DriverSQLite {
		t.Fatalf("expected sqlite driver, got %s", cfg.Storage.Driver)
	}
	if cfg.HeartbeatInterval != time.Minute {
		t.Fatalf("expected 1m heartbeat interval, got %s", cfg.HeartbeatInterval)
	}
}

func TestLoadLayersFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	raw := "timezone: UTC\nheartbeat_interval: 30s\nlog_format: json\nschedule:\n  finalize: \"0 0 1 * * *\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("WORKTALLY_LOG_FORMAT", "text")
	t.Setenv("WORKTALLY_STORAGE_DRIVER", "postgres")
	t.Setenv("WORKTALLY_STORAGE_DSN", "postgres://localhost/worktally")

	cfg, err := config.Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("expected file value 30s, got %s", cfg.HeartbeatInterval)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("expected env override, got %s", cfg.LogFormat)
	}
	if cfg.Storage.Driver != config.DriverPostgres || cfg.Storage.DSN == "" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Schedule.Finalize != "0 0 1 * * *" {
		t.Fatalf("unexpected finalize schedule %q", cfg.Schedule.Finalize)
	}
	if cfg.Schedule.Maintenance == "" {
		t.Fatalf("expected default maintenance schedule to survive")
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v (%v)", loc, err)
	}
}

func TestLoadRejectsMissingExplicitFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load(t.TempDir(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	bad := cfg
	bad.Storage.Driver = "mysql"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected driver error")
	}
	bad = cfg
	bad.Storage.Driver = config.DriverPostgres
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected dsn error")
	}
	bad = cfg
	bad.HeartbeatInterval = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected interval error")
	}
	bad = cfg
	bad.Timezone = "Mars/Olympus"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected timezone error")
	}
	if _, err := config.New(""); err == nil {
		t.Fatalf("expected data dir error")
	}
}
