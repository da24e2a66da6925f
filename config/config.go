// Package config holds the injected options of the meter reading client,
// loadable from a YAML file with sane defaults for an Indian three-phase
// DLMS meter on a local RS-232/485 port.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

type Config struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	ClientSAP byte   `yaml:"client_sap"`
	ServerSAP byte   `yaml:"server_sap"`
	Password  string `yaml:"password"`

	FrameTimeoutMs int `yaml:"frame_timeout_ms"`
	DiscTimeoutMs  int `yaml:"disc_timeout_ms"`
	PacingMs       int `yaml:"pacing_ms"`
	MaxRetries     int `yaml:"max_retries"`

	// TODZones is a pointer so an explicit zero survives the defaulting.
	TODZones        *int `yaml:"tod_zones"`
	TODMaxDemand    bool `yaml:"tod_max_demand"`
	SessionBudgetMs int  `yaml:"session_budget_ms"`
}

// Default returns the factory configuration.
func Default() *Config {
	return &Config{
		Device:         "/dev/ttyUSB0",
		Baud:           9600,
		ClientSAP:      0x41,
		ServerSAP:      0x03,
		Password:       "1111111111111111",
		FrameTimeoutMs: 2000,
		DiscTimeoutMs:  500,
		PacingMs:       50,
		MaxRetries:     3,
		TODZones:       ptr.To(4),
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("device must be set")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive")
	}
	if len(c.Password) != 16 {
		return fmt.Errorf("password has to be 16 bytes long, got %d", len(c.Password))
	}
	if c.TODZones == nil || *c.TODZones < 0 || *c.TODZones > 8 {
		return fmt.Errorf("tod_zones must be between 0 and 8")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.FrameTimeoutMs <= 0 || c.DiscTimeoutMs <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.PacingMs < 0 || c.SessionBudgetMs < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	return nil
}

func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.FrameTimeoutMs) * time.Millisecond
}

func (c *Config) DiscTimeout() time.Duration {
	return time.Duration(c.DiscTimeoutMs) * time.Millisecond
}

func (c *Config) Pacing() time.Duration {
	return time.Duration(c.PacingMs) * time.Millisecond
}

func (c *Config) SessionBudget() time.Duration {
	return time.Duration(c.SessionBudgetMs) * time.Millisecond
}

func (c *Config) Zones() int {
	if c.TODZones == nil {
		return 4
	}
	return *c.TODZones
}
