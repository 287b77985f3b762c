package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9090
dispatch:
  strategy: least_loaded
  interval: 2s
nats:
  enabled: true
  url: nats://broker:4222
`)

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() error: %v", err)
	}

	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Dispatch.Strategy != "least_loaded" {
		t.Errorf("Expected least_loaded strategy, got %s", cfg.Dispatch.Strategy)
	}
	if cfg.Dispatch.Interval != 2*time.Second {
		t.Errorf("Expected 2s interval, got %s", cfg.Dispatch.Interval)
	}
	if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("NATS config not applied: %+v", cfg.NATS)
	}

	// Unspecified fields keep their defaults
	if cfg.NATS.StreamName != "AGENCY" {
		t.Errorf("Expected default stream name, got %s", cfg.NATS.StreamName)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default read timeout, got %s", cfg.Server.ReadTimeout)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_AGENCY_SECRET", "super-secret")

	path := writeConfig(t, `
security:
  jwt_secret: ${TEST_AGENCY_SECRET}
`)

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() error: %v", err)
	}
	if cfg.Security.JWTSecret != "super-secret" {
		t.Errorf("Expected env expansion, got %q", cfg.Security.JWTSecret)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := LoadConfigFromFile(path); err == nil {
		t.Error("Expected parse error for invalid YAML")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Dispatch.Strategy != "capability" {
		t.Errorf("Expected capability strategy, got %s", cfg.Dispatch.Strategy)
	}
	if cfg.Database.Type != "memory" {
		t.Errorf("Expected memory database, got %s", cfg.Database.Type)
	}
	if cfg.NATS.Enabled || cfg.Redis.Enabled || cfg.Telemetry.Enabled {
		t.Error("External integrations must default to disabled")
	}
}

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 8080\n")

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("server:\n  http_port: 9191\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.HTTPPort != 9191 {
			t.Errorf("Expected reloaded port 9191, got %d", cfg.Server.HTTPPort)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
