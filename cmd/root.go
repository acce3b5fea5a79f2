package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/service"
	"github.com/xolan/wogger/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "wogger",
	Short: "A prompting work logger",
	Long: `wogger asks what you worked on at regular intervals and keeps the
answers in a local entry log.

Usage:
  wogger                                        List today's entries
  wogger watch                                  Prompt for each scheduled interval
  wogger log <task> --from 09:00 --to 10:30     Log a range by hand
  wogger list --date 2024-07-01                 List a day's entries
  wogger gaps                                   Show unlogged gaps
  wogger import <file>                          Merge a CSV or JSON export
  wogger rename <old> <new>                     Rename a task everywhere
  wogger validate                               Check storage file health
  wogger restore [n]                            Restore from backup (default: most recent)

Durations: Yh (hours), Ym (minutes), YhYm (combined) or plain minutes.
Examples: 2h, 30m, 1h30m, 45`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		listDay(deps.Now(), 1, nil)
	},
}

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check storage file health",
	Long:  `Validate the storage file and report on its health status, including any corrupted entries.`,
	Run: func(cmd *cobra.Command, args []string) {
		validateStorage()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(version, commit, date string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(
		"wogger version {{.Version}}\n" +
			"commit: " + commit + "\n" +
			"built: " + date + "\n",
	)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadServices builds the services, reporting failure the same way every
// command does. ok is false once the error has been printed.
func loadServices() (s *service.Services, ok bool) {
	s, err := deps.Services()
	if err != nil {
		_, _ = fmt.Fprintln(deps.Stderr, "Error: Failed to initialize wogger")
		_, _ = fmt.Fprintf(deps.Stderr, "Details: %v\n", err)
		_, _ = fmt.Fprintln(deps.Stderr, "Hint: Check your config file with 'wogger config' and that the data directory is writable")
		deps.Exit(1)
		return nil, false
	}
	return s, true
}

// formatCorruptionWarning formats a ParseWarning into a human-readable string
// with line number, truncated content (max 50 chars), and error description.
func formatCorruptionWarning(warning storage.ParseWarning) string {
	content := warning.Content
	if len(content) > 50 {
		content = content[:47] + "..."
	}
	return fmt.Sprintf("  Line %d: %s (error: %s)", warning.LineNumber, content, warning.Error)
}

// validateStorage checks the storage file health and reports status
func validateStorage() {
	services, ok := loadServices()
	if !ok {
		return
	}

	health, err := services.Store.Validate()
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "Error: Failed to validate storage: %v\n", err)
		deps.Exit(1)
		return
	}

	_, _ = fmt.Fprintf(deps.Stdout, "Storage file: %s\n", services.Store.Path())
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("=", 50))

	_, _ = fmt.Fprintf(deps.Stdout, "Total lines:       %d\n", health.TotalLines)
	_, _ = fmt.Fprintf(deps.Stdout, "Valid entries:     %d\n", health.ValidEntries)
	_, _ = fmt.Fprintf(deps.Stdout, "Corrupted entries: %d\n", health.CorruptedEntries)

	if len(health.Warnings) > 0 {
		_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("=", 50))
		_, _ = fmt.Fprintln(deps.Stdout, "Corrupted lines:")
		for _, warning := range health.Warnings {
			_, _ = fmt.Fprintln(deps.Stdout, formatCorruptionWarning(warning))
		}
	}

	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("=", 50))
	if health.CorruptedEntries == 0 {
		_, _ = fmt.Fprintln(deps.Stdout, "Status: ✓ Storage file is healthy")
	} else {
		_, _ = fmt.Fprintf(deps.Stderr, "Status: ⚠ Storage file has %d corrupted line(s)\n", health.CorruptedEntries)
	}
}

// formatDuration formats minutes as a human-readable string
func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// pluralize returns the singular or plural form of a word based on count
func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
