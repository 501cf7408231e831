package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
property:
  timezone: America/New_York
engine:
  lookback: 6h
  bucket: minute
gateway:
  url: https://gateway.example.test
  token: tok
templates:
  welcome: "Hello {{firstName}}"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want default kept", cfg.Server.Host)
	}
	if cfg.Engine.Lookback.Std() != 6*time.Hour {
		t.Errorf("Lookback = %v, want 6h", cfg.Engine.Lookback)
	}
	if cfg.Engine.Bucket != "minute" {
		t.Errorf("Bucket = %q", cfg.Engine.Bucket)
	}
	if cfg.Engine.DispatchTimeout.Std() != 30*time.Second {
		t.Errorf("DispatchTimeout = %v, want default kept", cfg.Engine.DispatchTimeout)
	}
	if cfg.Gateway.URL != "https://gateway.example.test" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Templates["welcome"] != "Hello {{firstName}}" {
		t.Errorf("Templates = %v", cfg.Templates)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location returned unexpected error: %v", err)
	}
	if loc.String() != "America/New_York" {
		t.Errorf("Location = %v", loc)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load(absent) = nil error, want failure")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load(malformed) = nil error, want parse failure")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  lookback: soon\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load = nil error, want invalid duration failure")
	}
}

func TestDefaultLocationIsUTC(t *testing.T) {
	cfg := defaults()
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location returned unexpected error: %v", err)
	}
	if loc != time.UTC {
		t.Errorf("Location = %v, want UTC", loc)
	}
}

func TestDefaults(t *testing.T) {
	cfg := defaults()
	if cfg.Server.Port != 8080 || cfg.Engine.Lookback.Std() != 24*time.Hour {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Engine.Bucket != "day" || cfg.Engine.MaxConcurrent != 8 {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", cfg.Provider.Model)
	}
	if cfg.Templates == nil {
		t.Error("Templates map is nil")
	}
}
