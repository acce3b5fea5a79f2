package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/timeutil"
)

// logCmd represents the log command
var logCmd = &cobra.Command{
	Use:   "log <task> [--from HH:MM] [--to HH:MM]",
	Short: "Log a time range by hand",
	Long: `Log a task over an explicit time range.

Without --from the range starts where the last entry ended (or 15 minutes
ago when nothing is logged yet). Without --to it ends now. The range may
not overlap any logged entry.

Examples:
  wogger log standup --from 09:00 --to 09:15
  wogger log "code review" --from 14:00
  wogger log email --date 2024-07-01 --from 08:30 --to 09:00`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logManualEntry(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().String("from", "", "Start time (HH:MM)")
	logCmd.Flags().String("to", "", "End time (HH:MM)")
	logCmd.Flags().String("date", "", "Day of the range (YYYY-MM-DD, DD/MM/YYYY or yesterday, default today)")
}

// logManualEntry resolves the range from the flags and records the entry
func logManualEntry(cmd *cobra.Command, args []string) {
	task := strings.TrimSpace(strings.Join(args, " "))
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	dateStr, _ := cmd.Flags().GetString("date")

	services, ok := loadServices()
	if !ok {
		return
	}

	now := deps.Now()
	day, ok := parseDayFlag(dateStr, 1)
	if !ok {
		return
	}

	start, end, err := services.Reconciler.ManualEntryDefaults(now)
	if err != nil {
		reportError("Failed to read entries from storage", err)
		return
	}
	if fromStr != "" {
		if start, err = timeutil.ParseClock(day, fromStr); err != nil {
			_, _ = fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
			deps.Exit(1)
			return
		}
	}
	if toStr != "" {
		if end, err = timeutil.ParseClock(day, toStr); err != nil {
			_, _ = fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
			deps.Exit(1)
			return
		}
	}

	e, err := services.Reconciler.ManualEntry(task, start, end)
	if err != nil {
		reportError("Failed to log entry", err)
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Logged: %s %s (%s)\n",
		e.Task, timeSpan(e.Start, e.End, false), formatDuration(e.Minutes))
}
