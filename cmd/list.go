package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/filter"
	"github.com/xolan/wogger/internal/timeutil"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged entries",
	Long: `List the entries touching a day, or several days ending on it.

Examples:
  wogger list                       Today's entries
  wogger list --date 2024-07-01     Entries of July 1st
  wogger list --days 7              The last seven days
  wogger list -s review -c work     Review tasks in the work category`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dateStr, _ := cmd.Flags().GetString("date")
		days, _ := cmd.Flags().GetInt("days")
		search, _ := cmd.Flags().GetString("search")
		category, _ := cmd.Flags().GetString("category")

		day, ok := parseDayFlag(dateStr, days)
		if !ok {
			return
		}
		listDay(day, days, filter.NewFilter(search, category))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("date", "", "Day to list (YYYY-MM-DD, DD/MM/YYYY or yesterday, default today)")
	listCmd.Flags().Int("days", 1, "Number of days ending on --date to include")
	listCmd.Flags().StringP("search", "s", "", "Only entries whose task contains this text")
	listCmd.Flags().StringP("category", "c", "", "Only entries in this category")
}

// parseDayFlag resolves a --date value and checks --days, reporting
// invalid input.
func parseDayFlag(dateStr string, days int) (time.Time, bool) {
	day, err := timeutil.ParseDay(dateStr, deps.Now())
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "Error: Invalid date: %v\n", err)
		deps.Exit(1)
		return time.Time{}, false
	}
	if days < 1 {
		_, _ = fmt.Fprintf(deps.Stderr, "Error: --days must be at least 1 (got %d)\n", days)
		deps.Exit(1)
		return time.Time{}, false
	}
	return day, true
}

// listDay prints the entries overlapping the days days ending on day that
// match f.
func listDay(day time.Time, days int, f *filter.Filter) {
	services, ok := loadServices()
	if !ok {
		return
	}

	result, err := services.Store.AllWithWarnings()
	if err != nil {
		reportError("Failed to read entries from storage", err)
		return
	}
	if len(result.Warnings) > 0 {
		_, _ = fmt.Fprintf(deps.Stderr, "Warning: Found %d corrupted line(s) in storage file:\n", len(result.Warnings))
		for _, warning := range result.Warnings {
			_, _ = fmt.Fprintln(deps.Stderr, formatCorruptionWarning(warning))
		}
		_, _ = fmt.Fprintln(deps.Stderr)
	}

	start, end := timeutil.DayRange(day, days)
	period := timeutil.FormatPeriod(start, end)
	if !f.IsEmpty() {
		period += " matching " + f.String()
	}

	var filtered []entry.Entry
	for _, e := range result.Entries {
		if e.Start.Before(end) && e.End.After(start) {
			filtered = append(filtered, e)
		}
	}
	filtered = filter.FilterEntries(filtered, f)
	if len(filtered) == 0 {
		_, _ = fmt.Fprintf(deps.Stdout, "No entries found for %s\n", period)
		return
	}
	sort.SliceStable(filtered, func(i, j int) bool { return entry.Less(filtered[i], filtered[j]) })

	st := newStyles(deps.Stdout)
	totalMinutes := 0
	for _, e := range filtered {
		totalMinutes += e.Minutes
	}

	_, _ = fmt.Fprintln(deps.Stdout, st.Title.Render("Entries for "+period+":"))
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("-", 50))

	// Width for right-aligned indices
	maxIndexWidth := len(fmt.Sprintf("%d", len(filtered)))
	for i, e := range filtered {
		line := fmt.Sprintf("%s %s  %s (%s)",
			st.Index.Render(fmt.Sprintf("[%*d]", maxIndexWidth, i+1)),
			st.Time.Render(timeSpan(e.Start, e.End, days > 1)),
			st.Task.Render(e.Task),
			st.Duration.Render(formatDuration(e.Minutes)))
		if e.Category != "" {
			line += " " + st.Category.Render("@"+e.Category)
		}
		_, _ = fmt.Fprintln(deps.Stdout, line)
	}
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("-", 50))
	_, _ = fmt.Fprintf(deps.Stdout, "Total: %s\n", formatDuration(totalMinutes))
}

// timeSpan formats start and end as "15:04 - 15:04", with dates when
// withDate is set.
func timeSpan(start, end time.Time, withDate bool) string {
	layout := "15:04"
	if withDate {
		layout = "01/02 15:04"
	}
	return start.Format(layout) + " - " + end.Format(layout)
}
