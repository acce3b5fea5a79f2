package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/filter"
	"github.com/xolan/wogger/internal/stats"
	"github.com/xolan/wogger/internal/timeutil"
)

// totalsCmd represents the totals command
var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Show logged time per task and category",
	Long: `Summarize the time logged over a period, per task and per category.

Examples:
  wogger totals                       Today
  wogger totals --days 7              The last seven days
  wogger totals --date 2024-07-01     July 1st
  wogger totals --days 7 -c work      Work time over the last week`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dateStr, _ := cmd.Flags().GetString("date")
		days, _ := cmd.Flags().GetInt("days")
		category, _ := cmd.Flags().GetString("category")

		day, ok := parseDayFlag(dateStr, days)
		if !ok {
			return
		}
		showTotals(day, days, filter.NewFilter("", category))
	},
}

func init() {
	rootCmd.AddCommand(totalsCmd)
	totalsCmd.Flags().String("date", "", "Last day of the period (YYYY-MM-DD, default today)")
	totalsCmd.Flags().Int("days", 1, "Number of days in the period")
	totalsCmd.Flags().StringP("category", "c", "", "Only count entries in this category")
}

// showTotals prints statistics for the days days ending on day, counting
// only entries matching f.
func showTotals(day time.Time, days int, f *filter.Filter) {
	services, ok := loadServices()
	if !ok {
		return
	}
	entries, err := services.Store.All()
	if err != nil {
		reportError("Failed to read entries from storage", err)
		return
	}

	start, end := timeutil.DayRange(day, days)
	period := timeutil.FormatPeriod(start, end)
	if !f.IsEmpty() {
		period += " matching " + f.String()
	}
	entries = filter.FilterEntries(entries, f)

	summary := stats.CalculateStatistics(entries, start, end)
	if summary.EntryCount == 0 {
		_, _ = fmt.Fprintf(deps.Stdout, "No entries found for %s\n", period)
		return
	}

	st := newStyles(deps.Stdout)
	_, _ = fmt.Fprintln(deps.Stdout, st.Title.Render("Totals for "+period+":"))
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("=", 50))
	_, _ = fmt.Fprintf(deps.Stdout, "Total:        %s (%d %s)\n",
		formatDuration(summary.TotalMinutes), summary.EntryCount, pluralize("entry", summary.EntryCount))
	if days > 1 {
		_, _ = fmt.Fprintf(deps.Stdout, "Days logged:  %d of %d\n", summary.DaysWithEntries, days)
		_, _ = fmt.Fprintf(deps.Stdout, "Daily avg:    %s\n", formatDuration(int(summary.AverageMinutesPerDay+0.5)))
	}

	_, _ = fmt.Fprintln(deps.Stdout)
	_, _ = fmt.Fprintln(deps.Stdout, "By task:")
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("-", 50))
	for _, b := range stats.CalculateTaskBreakdown(entries, start, end) {
		line := fmt.Sprintf("  %s  %s", st.Duration.Render(fmt.Sprintf("%8s", formatDuration(b.TotalMinutes))), st.Task.Render(b.Task))
		if b.Category != "" {
			line += " " + st.Category.Render("@"+b.Category)
		}
		_, _ = fmt.Fprintln(deps.Stdout, line)
	}

	_, _ = fmt.Fprintln(deps.Stdout)
	_, _ = fmt.Fprintln(deps.Stdout, "By category:")
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("-", 50))
	for _, b := range stats.CalculateCategoryBreakdown(entries, start, end) {
		_, _ = fmt.Fprintf(deps.Stdout, "  %s  %s\n",
			st.Duration.Render(fmt.Sprintf("%8s", formatDuration(b.TotalMinutes))), st.Category.Render(b.Category))
	}
}
