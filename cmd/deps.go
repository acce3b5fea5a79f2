package cmd

import (
	"io"
	"os"
	"time"

	"github.com/xolan/wogger/internal/config"
	"github.com/xolan/wogger/internal/logging"
	"github.com/xolan/wogger/internal/osutil"
	"github.com/xolan/wogger/internal/service"
)

// Deps holds external dependencies for CLI commands, enabling testability.
type Deps struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Stdin    io.Reader
	Exit     func(code int)
	Now      func() time.Time
	Services func() (*service.Services, error)
}

// DefaultDeps returns the default production dependencies.
func DefaultDeps() *Deps {
	return &Deps{
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Stdin:    os.Stdin,
		Exit:     os.Exit,
		Now:      time.Now,
		Services: defaultServices,
	}
}

// defaultServices loads the user's configuration, opens the log file in the
// data directory and builds the services from both.
func defaultServices() (*service.Services, error) {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logPath, err := osutil.AppFile(cfg.DataDir, logging.LogFile)
	if err != nil {
		return nil, err
	}
	// The log file stays open for the life of the process.
	logger, _, err := logging.OpenFile(logPath, level)
	if err != nil {
		return nil, err
	}
	paths, err := service.ResolvePaths(cfg)
	if err != nil {
		return nil, err
	}
	return service.NewServicesWithPaths(paths, cfg, logger)
}

// deps is the global dependencies instance used by commands.
// In production, this is DefaultDeps(). Tests can replace it.
var deps = DefaultDeps()

// SetDeps sets the global dependencies (for testing).
func SetDeps(d *Deps) {
	deps = d
}

// ResetDeps resets dependencies to defaults (for testing cleanup).
func ResetDeps() {
	deps = DefaultDeps()
}
