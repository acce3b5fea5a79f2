package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"github.com/xolan/wogger/internal/osutil"
	"github.com/xolan/wogger/internal/scheduler"
)

const (
	// ConfigFile is the name of the TOML configuration file
	ConfigFile = "config.toml"
	// DefaultPromptCron prompts every quarter hour
	DefaultPromptCron = "0,15,30,45 * * * *"
)

// Config represents the application configuration
type Config struct {
	// PromptCron is the 5-field cron expression that drives prompts
	PromptCron string `toml:"prompt_cron"`
	// LockTimeoutSeconds bounds the wait for the entries file lock
	LockTimeoutSeconds int `toml:"lock_timeout_seconds"`
	// GapThresholdMinutes is the largest gap between entries reported as missing (0 disables)
	GapThresholdMinutes int `toml:"gap_threshold_minutes"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `toml:"log_level"`
	// DataDir overrides where entries and logs live (empty: the config directory)
	DataDir string `toml:"data_dir"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		PromptCron:          DefaultPromptCron,
		LockTimeoutSeconds:  10,
		GapThresholdMinutes: 240,
		LogLevel:            "info",
		DataDir:             "",
	}
}

// LockTimeout returns LockTimeoutSeconds as a duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Normalize trims and lower-cases fields where case is irrelevant.
func (c *Config) Normalize() {
	c.PromptCron = strings.TrimSpace(c.PromptCron)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.DataDir = strings.TrimSpace(c.DataDir)
}

// Validate normalizes c and checks every field. The cron expression is
// parsed here so a bad schedule fails at configuration time.
func (c *Config) Validate() error {
	c.Normalize()
	if err := scheduler.ValidateExpression(c.PromptCron); err != nil {
		return fmt.Errorf("invalid prompt_cron: %w", err)
	}
	if c.LockTimeoutSeconds < 1 {
		return fmt.Errorf("invalid lock_timeout_seconds %d: must be at least 1", c.LockTimeoutSeconds)
	}
	if c.GapThresholdMinutes < 0 {
		return fmt.Errorf("invalid gap_threshold_minutes %d: must be zero or greater", c.GapThresholdMinutes)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", c.LogLevel)
	}
	return nil
}

// Load reads the TOML file at path on top of the defaults and validates it.
// Missing keys keep their default values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns DefaultConfig when the file
// does not exist.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Save validates cfg and writes it atomically to path.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

// GetConfigPath returns the path to the config file inside the app directory.
func GetConfigPath() (string, error) {
	return osutil.AppFile("", ConfigFile)
}
