package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}

	if cfg.Database.Path != DefaultDBPath {
		t.Errorf("expected db path %s, got %s", DefaultDBPath, cfg.Database.Path)
	}

	if cfg.Scheduler.PollInterval != DefaultPollInterval {
		t.Errorf("expected poll interval %v, got %v", DefaultPollInterval, cfg.Scheduler.PollInterval)
	}

	if !cfg.Scheduler.Enabled {
		t.Error("expected scheduler to be enabled by default")
	}

	if cfg.Engine.Kind != "local" {
		t.Errorf("expected local engine, got %s", cfg.Engine.Kind)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0

	err := Validate(cfg)
	if err == nil {
		t.Error("expected validation error for invalid port")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	found := false
	for _, e := range errs {
		if e.Field == "server.port" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected error for server.port field")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "invalid"

	err := Validate(cfg)
	if err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestValidate_SubSecondPollInterval(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.PollInterval = 100 * time.Millisecond

	err := Validate(cfg)
	if err == nil {
		t.Error("expected validation error for sub-second poll interval")
	}
}

func TestValidate_UnknownEngineKind(t *testing.T) {
	cfg := Default()
	cfg.Engine.Kind = "remote"

	err := Validate(cfg)
	if err == nil {
		t.Error("expected validation error for unknown engine kind")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coxswain.yaml")

	content := []byte(`
server:
  port: 9000
scheduler:
  poll_interval: 30s
engine:
  default_model: test-model
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.PollInterval != 30*time.Second {
		t.Errorf("expected 30s poll interval, got %v", cfg.Scheduler.PollInterval)
	}
	if cfg.Engine.DefaultModel != "test-model" {
		t.Errorf("expected test-model, got %s", cfg.Engine.DefaultModel)
	}

	// Unset keys keep defaults
	if cfg.Database.Path != DefaultDBPath {
		t.Errorf("expected default db path, got %s", cfg.Database.Path)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COXSWAIN_SERVER_PORT", "9100")

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("expected env override port 9100, got %d", cfg.Server.Port)
	}
}
