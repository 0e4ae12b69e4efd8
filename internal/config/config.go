// Package config loads and validates brewboard.yml.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brewop/brewboard/internal/slot"
	"github.com/brewop/brewboard/pkg/ledger"
)

// Config represents the top-level brewboard.yml configuration.
type Config struct {
	Version      string `yaml:"version"`
	Instance     string `yaml:"instance,omitempty"` // Redis namespace, defaults to "default"
	Redis        Redis  `yaml:"redis,omitempty"`
	Timezone     string `yaml:"timezone,omitempty"` // IANA name, defaults to the host's local zone
	Slots        Slots  `yaml:"slots,omitempty"`
	Transactions Tx     `yaml:"transactions,omitempty"`
}

// Redis specifies the connection to the backing store.
type Redis struct {
	Addr     string `yaml:"addr,omitempty"` // host:port, defaults to localhost:6379
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Slots specifies the daily ordering windows as "HH:MM" clock strings.
type Slots struct {
	MorningEnd   string `yaml:"morning_end,omitempty"`   // default "10:30"
	EveningStart string `yaml:"evening_start,omitempty"` // default "15:00"
	EveningEnd   string `yaml:"evening_end,omitempty"`   // default "17:30"
}

// Tx specifies optimistic-transaction behavior.
type Tx struct {
	Attempts int `yaml:"attempts,omitempty"` // retry budget per operation, default ledger.DefaultTxAttempts
}

// Default returns the configuration used when no brewboard.yml exists.
func Default() *Config {
	cfg := &Config{Version: "1.0"}
	// Validate cannot fail on the zero config.
	_ = cfg.Validate()
	return cfg
}

// Validate performs strict validation and applies defaults for omitted fields.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		c.Instance = "default"
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Slots.MorningEnd == "" {
		c.Slots.MorningEnd = "10:30"
	}
	if c.Slots.EveningStart == "" {
		c.Slots.EveningStart = "15:00"
	}
	if c.Slots.EveningEnd == "" {
		c.Slots.EveningEnd = "17:30"
	}
	if _, err := c.Boundaries(); err != nil {
		return err
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}

	if c.Transactions.Attempts == 0 {
		c.Transactions.Attempts = ledger.DefaultTxAttempts
	}
	if c.Transactions.Attempts < 1 {
		return fmt.Errorf("transactions.attempts must be >= 1, got %d", c.Transactions.Attempts)
	}

	return nil
}

// Boundaries converts the configured clock strings to slot boundaries.
func (c *Config) Boundaries() (slot.Boundaries, error) {
	morningEnd, err := parseClock(c.Slots.MorningEnd)
	if err != nil {
		return slot.Boundaries{}, fmt.Errorf("invalid slots.morning_end: %w", err)
	}
	eveningStart, err := parseClock(c.Slots.EveningStart)
	if err != nil {
		return slot.Boundaries{}, fmt.Errorf("invalid slots.evening_start: %w", err)
	}
	eveningEnd, err := parseClock(c.Slots.EveningEnd)
	if err != nil {
		return slot.Boundaries{}, fmt.Errorf("invalid slots.evening_end: %w", err)
	}

	bounds := slot.Boundaries{
		MorningEnd:   morningEnd,
		EveningStart: eveningStart,
		EveningEnd:   eveningEnd,
	}
	if err := bounds.Validate(); err != nil {
		return slot.Boundaries{}, fmt.Errorf("invalid slots: %w", err)
	}
	return bounds, nil
}

// Location resolves the configured timezone, falling back to the host's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load reads and validates brewboard.yml from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// parseClock parses an "HH:MM" string into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hours*60 + minutes, nil
}
