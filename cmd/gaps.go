package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/gaps"
	"github.com/xolan/wogger/internal/timeutil"
)

// gapsCmd represents the gaps command
var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Show short unlogged gaps between entries",
	Long: `List the unlogged gaps between entries that are no longer than the
configured gap_threshold_minutes.

Examples:
  wogger gaps                          List gaps
  wogger gaps --ignore 2               Never show gap 2 again
  wogger gaps --fill 1 --task email    Log gap 1 as "email"`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ignore, _ := cmd.Flags().GetInt("ignore")
		fill, _ := cmd.Flags().GetInt("fill")
		task, _ := cmd.Flags().GetString("task")
		handleGaps(ignore, fill, task)
	},
}

func init() {
	rootCmd.AddCommand(gapsCmd)
	gapsCmd.Flags().Int("ignore", 0, "Index of a gap to ignore from now on")
	gapsCmd.Flags().Int("fill", 0, "Index of a gap to log")
	gapsCmd.Flags().String("task", "", "Task for --fill")
}

func handleGaps(ignore, fill int, task string) {
	if ignore != 0 && fill != 0 {
		_, _ = fmt.Fprintln(deps.Stderr, "Error: --ignore and --fill cannot be used together")
		deps.Exit(1)
		return
	}
	if fill != 0 && strings.TrimSpace(task) == "" {
		_, _ = fmt.Fprintln(deps.Stderr, "Error: --fill requires --task")
		_, _ = fmt.Fprintln(deps.Stderr, "Usage: wogger gaps --fill <index> --task <task>")
		deps.Exit(1)
		return
	}

	services, ok := loadServices()
	if !ok {
		return
	}
	list, err := services.Gaps.List()
	if err != nil {
		reportError("Failed to detect gaps", err)
		return
	}

	switch {
	case ignore != 0:
		g, ok := pickGap(list, ignore)
		if !ok {
			return
		}
		if err := services.Gaps.Ignore(g); err != nil {
			reportError("Failed to ignore gap", err)
			return
		}
		_, _ = fmt.Fprintf(deps.Stdout, "Ignored gap %s\n", formatGap(g))
	case fill != 0:
		g, ok := pickGap(list, fill)
		if !ok {
			return
		}
		e, err := services.Gaps.Fill(g, task)
		if err != nil {
			reportError("Failed to fill gap", err)
			return
		}
		_, _ = fmt.Fprintf(deps.Stdout, "Logged: %s %s (%s)\n",
			e.Task, timeSpan(e.Start, e.End, false), formatDuration(e.Minutes))
	default:
		printGaps(list)
	}
}

// pickGap resolves a 1-based index, reporting out-of-range values.
func pickGap(list []gaps.Gap, index int) (gaps.Gap, bool) {
	if index < 1 || index > len(list) {
		_, _ = fmt.Fprintf(deps.Stderr, "Error: Gap %d is out of range\n", index)
		if len(list) > 0 {
			_, _ = fmt.Fprintf(deps.Stderr, "Valid range: 1-%d\n", len(list))
		}
		_, _ = fmt.Fprintln(deps.Stderr, "Hint: List gaps with 'wogger gaps' to see all indices")
		deps.Exit(1)
		return gaps.Gap{}, false
	}
	return list[index-1], true
}

func formatGap(g gaps.Gap) string {
	return fmt.Sprintf("%s %s (%s)", g.Start.Format(timeutil.DateLayout), timeSpan(g.Start, g.End, false), formatDuration(g.Minutes()))
}

func printGaps(list []gaps.Gap) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(deps.Stdout, "No gaps found")
		return
	}
	st := newStyles(deps.Stdout)
	_, _ = fmt.Fprintln(deps.Stdout, st.Title.Render(fmt.Sprintf("Found %d %s:", len(list), pluralize("gap", len(list)))))
	maxIndexWidth := len(fmt.Sprintf("%d", len(list)))
	for i, g := range list {
		_, _ = fmt.Fprintf(deps.Stdout, "%s %s\n",
			st.Index.Render(fmt.Sprintf("[%*d]", maxIndexWidth, i+1)), formatGap(g))
	}
}
