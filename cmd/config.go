package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/config"
	"github.com/xolan/wogger/internal/scheduler"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display or manage configuration settings",
	Long: `Display the current effective configuration settings for wogger.

Shows the configuration file location, whether it exists, and all current settings.
Configuration values are merged from the config file with sensible defaults.

By default, wogger works without any configuration file. All settings have defaults:
  - prompt_cron: 0,15,30,45 * * * *
  - lock_timeout_seconds: 10
  - gap_threshold_minutes: 240
  - log_level: info
  - data_dir: (empty, the config directory)

Examples:
  wogger config                                 Show all current settings
  wogger config init                            Write a config file with the defaults
  wogger config set prompt_cron "0,30 * * * *"  Prompt every half hour`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		showConfig()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
}

// configKeys lists the settings accepted by `config set`.
var configKeys = []string{"prompt_cron", "lock_timeout_seconds", "gap_threshold_minutes", "log_level", "data_dir"}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Change one setting",
	ValidArgs: configKeys,
	Args:      cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setConfig(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

// showConfig displays the current effective configuration
func showConfig() {
	services, ok := loadServices()
	if !ok {
		return
	}
	cfg := services.Config.Get()
	fileExists := services.Config.Exists()

	_, _ = fmt.Fprintln(deps.Stdout, "Configuration for wogger")
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("=", 60))
	_, _ = fmt.Fprintln(deps.Stdout)

	_, _ = fmt.Fprintf(deps.Stdout, "Config file:     %s\n", services.Config.GetPath())
	if fileExists {
		_, _ = fmt.Fprintln(deps.Stdout, "Status:          File exists (using custom configuration)")
	} else {
		_, _ = fmt.Fprintln(deps.Stdout, "Status:          No config file (using defaults)")
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Entries file:    %s\n", services.Store.Path())
	_, _ = fmt.Fprintln(deps.Stdout)

	_, _ = fmt.Fprintln(deps.Stdout, "Current Settings:")
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("-", 60))
	_, _ = fmt.Fprintf(deps.Stdout, "Prompt Cron:     %s\n", cfg.PromptCron)
	if next, ok := nextPrompt(cfg.PromptCron); ok {
		_, _ = fmt.Fprintf(deps.Stdout, "Next Prompt:     %s\n", next)
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Lock Timeout:    %ds\n", cfg.LockTimeoutSeconds)
	if cfg.GapThresholdMinutes == 0 {
		_, _ = fmt.Fprintln(deps.Stdout, "Gap Threshold:   (disabled)")
	} else {
		_, _ = fmt.Fprintf(deps.Stdout, "Gap Threshold:   %s\n", formatDuration(cfg.GapThresholdMinutes))
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Log Level:       %s\n", cfg.LogLevel)
	if cfg.DataDir == "" {
		_, _ = fmt.Fprintln(deps.Stdout, "Data Dir:        (default)")
	} else {
		_, _ = fmt.Fprintf(deps.Stdout, "Data Dir:        %s\n", cfg.DataDir)
	}
	_, _ = fmt.Fprintln(deps.Stdout)

	if !fileExists {
		_, _ = fmt.Fprintln(deps.Stdout, "Tip: Run 'wogger config init' to create a config file you can edit.")
		_, _ = fmt.Fprintln(deps.Stdout)
	}
}

// nextPrompt formats the next time expr fires after now.
func nextPrompt(expr string) (string, bool) {
	sched, err := scheduler.Parse(expr)
	if err != nil {
		return "", false
	}
	return sched.Next(deps.Now()).Format("2006-01-02 15:04"), true
}

func initConfig() {
	services, ok := loadServices()
	if !ok {
		return
	}
	if err := services.Config.Init(); err != nil {
		_, _ = fmt.Fprintln(deps.Stderr, "Error: Failed to create config file")
		_, _ = fmt.Fprintf(deps.Stderr, "Details: %v\n", err)
		deps.Exit(1)
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Created config file: %s\n", services.Config.GetPath())
}

// applySetting returns cfg with key set to value.
func applySetting(cfg config.Config, key, value string) (config.Config, error) {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("%s must be a whole number, got %q", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "prompt_cron":
		cfg.PromptCron = value
	case "lock_timeout_seconds":
		cfg.LockTimeoutSeconds, err = atoi()
	case "gap_threshold_minutes":
		cfg.GapThresholdMinutes, err = atoi()
	case "log_level":
		cfg.LogLevel = value
	case "data_dir":
		cfg.DataDir = value
	default:
		err = fmt.Errorf("unknown setting %q", key)
	}
	return cfg, err
}

func setConfig(key, value string) {
	services, ok := loadServices()
	if !ok {
		return
	}
	cfg, err := applySetting(services.Config.Get(), key, value)
	if err == nil {
		err = services.Config.Update(cfg)
	}
	if err != nil {
		_, _ = fmt.Fprintln(deps.Stderr, "Error: Failed to update configuration")
		_, _ = fmt.Fprintf(deps.Stderr, "Details: %v\n", err)
		_, _ = fmt.Fprintf(deps.Stderr, "Hint: Valid settings: %s\n", strings.Join(configKeys, ", "))
		deps.Exit(1)
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Set %s = %s\n", key, value)
}
