package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server       ServerConfig      `yaml:"server"`
	Database     DatabaseConfig    `yaml:"database"`
	Property     PropertyConfig    `yaml:"property"`
	Engine       EngineConfig      `yaml:"engine"`
	Gateway      GatewayConfig     `yaml:"gateway"`
	Reservations ReservationConfig `yaml:"reservations"`
	Provider     ProviderConfig    `yaml:"provider"`
	Templates    map[string]string `yaml:"templates"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database connection settings. An empty URL runs
// the engine on in-memory stores only.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// PropertyConfig identifies the property the engine runs for.
type PropertyConfig struct {
	Timezone string `yaml:"timezone"`
}

// Duration wraps time.Duration so YAML values like "30s" or "6h" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\"")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// EngineConfig holds evaluator and executor tuning.
type EngineConfig struct {
	// Lookback bounds how stale a missed time-based target may be and
	// still fire after downtime.
	Lookback Duration `yaml:"lookback"`
	// Bucket is the idempotency granularity for time-based occurrences:
	// "day" or "minute".
	Bucket string `yaml:"bucket"`
	// DispatchTimeout caps each action sender call.
	DispatchTimeout Duration `yaml:"dispatch_timeout"`
	// MaxConcurrent bounds concurrent chain executions per sweep.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// GatewayConfig points at the property operations gateway that fronts
// guest messaging, tasks, and staff notifications.
type GatewayConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// ReservationConfig points at the property management system.
type ReservationConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// ProviderConfig holds AI provider settings for draft generation.
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
	Model  string `yaml:"model"`
}

// Location resolves the property timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Property.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Property.Timezone)
	if err != nil {
		return nil, fmt.Errorf("property timezone: %w", err)
	}
	return loc, nil
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Engine: EngineConfig{
			Lookback:        Duration(24 * time.Hour),
			Bucket:          "day",
			DispatchTimeout: Duration(30 * time.Second),
			MaxConcurrent:   8,
		},
		Provider: ProviderConfig{
			Model: "gpt-4o-mini",
		},
		Templates: map[string]string{},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Templates == nil {
		cfg.Templates = map[string]string{}
	}

	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}
