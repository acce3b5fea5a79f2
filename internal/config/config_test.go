package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xolan/wogger/internal/osutil"
)

// Helper to create a temporary config file
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	// Always write the file, even if content is empty
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	return tmpFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.PromptCron != "0,15,30,45 * * * *" {
		t.Errorf("DefaultConfig().PromptCron = %q", cfg.PromptCron)
	}
	if cfg.LockTimeout() != 10*time.Second {
		t.Errorf("DefaultConfig().LockTimeout() = %v, expected 10s", cfg.LockTimeout())
	}
	if cfg.GapThresholdMinutes != 240 {
		t.Errorf("DefaultConfig().GapThresholdMinutes = %d, expected 240", cfg.GapThresholdMinutes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() does not validate: %v", err)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		expected      Config
	}{
		{
			name: "all fields set",
			configContent: `prompt_cron = "*/30 * * * *"
lock_timeout_seconds = 3
gap_threshold_minutes = 60
log_level = "DEBUG"
data_dir = "/tmp/wogger"`,
			expected: Config{
				PromptCron:          "*/30 * * * *",
				LockTimeoutSeconds:  3,
				GapThresholdMinutes: 60,
				LogLevel:            "debug",
				DataDir:             "/tmp/wogger",
			},
		},
		{
			name:          "partial config keeps defaults",
			configContent: `prompt_cron = "0 * * * *"`,
			expected: Config{
				PromptCron:          "0 * * * *",
				LockTimeoutSeconds:  10,
				GapThresholdMinutes: 240,
				LogLevel:            "info",
			},
		},
		{
			name:          "empty file",
			configContent: "",
			expected:      DefaultConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(createTempConfigFile(t, tt.configContent))
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("Load() = %+v, expected %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		errContains   string
	}{
		{"invalid toml", `prompt_cron = `, "failed to parse"},
		{"bad cron", `prompt_cron = "every hour"`, "prompt_cron"},
		{"zero timeout", `lock_timeout_seconds = 0`, "lock_timeout_seconds"},
		{"negative threshold", `gap_threshold_minutes = -1`, "gap_threshold_minutes"},
		{"bad log level", `log_level = "loud"`, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(createTempConfigFile(t, tt.configContent))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Load() error = %q, expected to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() returned unexpected error for non-existent file: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadOrDefault() = %+v, expected defaults", cfg)
	}
}

func TestLoadOrDefault_ExistingInvalidFile(t *testing.T) {
	if _, err := LoadOrDefault(createTempConfigFile(t, `log_level = 3`)); err == nil {
		t.Error("LoadOrDefault() should return error for invalid config file")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	cfg := DefaultConfig()
	cfg.PromptCron = "*/10 9-17 * * 1-5"
	cfg.GapThresholdMinutes = 30

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() returned unexpected error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if loaded != cfg {
		t.Errorf("Load() after Save() = %+v, expected %+v", loaded, cfg)
	}

	bad := cfg
	bad.PromptCron = "nope"
	if err := Save(path, bad); err == nil {
		t.Error("Save() should refuse an invalid config")
	}
}

type failingProvider struct{}

func (failingProvider) UserConfigDir() (string, error)  { return "", errors.New("no config dir") }
func (failingProvider) MkdirAll(string, os.FileMode) error { return nil }

func TestGetConfigPath(t *testing.T) {
	osutil.SetProvider(failingProvider{})
	defer osutil.ResetProvider()

	if _, err := GetConfigPath(); err == nil {
		t.Error("GetConfigPath() should surface config dir errors")
	}
}
