package service

import (
	"fmt"
	"os"
	"sync"

	"github.com/xolan/wogger/internal/config"
)

// ConfigService provides operations for managing configuration
type ConfigService struct {
	mu         sync.RWMutex
	configPath string
	config     config.Config
	onUpdate   []func(config.Config)
}

// NewConfigService creates a new ConfigService
func NewConfigService(configPath string, cfg config.Config) *ConfigService {
	return &ConfigService{
		configPath: configPath,
		config:     cfg,
	}
}

// Get returns the current configuration
func (s *ConfigService) Get() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// GetPath returns the path to the config file
func (s *ConfigService) GetPath() string {
	return s.configPath
}

// Exists checks if the config file exists
func (s *ConfigService) Exists() bool {
	_, err := os.Stat(s.configPath)
	return err == nil
}

// OnUpdate registers f to run after every successful Update or Reload.
func (s *ConfigService) OnUpdate(f func(config.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, f)
}

// Update validates cfg, writes it to the config file and applies it.
func (s *ConfigService) Update(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Save(s.configPath, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	s.apply(cfg)
	return nil
}

// Init writes the default configuration to a new config file.
func (s *ConfigService) Init() error {
	if s.Exists() {
		return fmt.Errorf("config file already exists at %s", s.configPath)
	}
	if err := config.Save(s.configPath, config.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Reload reloads the configuration from disk
func (s *ConfigService) Reload() error {
	cfg, err := config.LoadOrDefault(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	s.apply(cfg)
	return nil
}

func (s *ConfigService) apply(cfg config.Config) {
	s.mu.Lock()
	s.config = cfg
	hooks := append([]func(config.Config){}, s.onUpdate...)
	s.mu.Unlock()
	for _, f := range hooks {
		f(cfg)
	}
}
