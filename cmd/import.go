package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/service"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge entries exported from another logger",
	Long: `Merge a wogger CSV export (.csv) or a JF LoggR export (.json) into the
entry log.

By default logged entries win: imported entries are clipped to the time
that is still free. With --prefer-imported the imported entries win and
overlapping logged entries are trimmed or dropped instead.

The current entry file is backed up before it is replaced.

Examples:
  wogger import export.csv
  wogger import loggr.json --prefer-imported
  wogger import export.csv --dry-run`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		preferImported, _ := cmd.Flags().GetBool("prefer-imported")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		importEntries(args[0], preferImported, dryRun)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("prefer-imported", false, "Let imported entries replace overlapping logged time")
	importCmd.Flags().Bool("dry-run", false, "Show what would change without writing")
}

func importEntries(path string, preferImported, dryRun bool) {
	services, ok := loadServices()
	if !ok {
		return
	}

	var (
		result service.ImportResult
		err    error
	)
	if dryRun {
		result, err = services.Import.Preview(path, preferImported)
	} else {
		result, err = services.Import.Import(path, preferImported)
	}
	if err != nil {
		reportError(fmt.Sprintf("Failed to import '%s'", path), err)
		return
	}

	if dryRun {
		_, _ = fmt.Fprintln(deps.Stdout, "Dry run: nothing was written")
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Read %d %s from %s\n", result.Parsed, pluralize("entry", result.Parsed), path)
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("-", 50))
	_, _ = fmt.Fprintf(deps.Stdout, "Imported:          %d\n", len(result.Applied))
	_, _ = fmt.Fprintf(deps.Stdout, "Overlapping:       %d\n", result.OverlappedCount)
	if preferImported {
		_, _ = fmt.Fprintf(deps.Stdout, "Existing trimmed:  %d (%s removed)\n",
			result.ExistingEntriesTrimmed, formatDuration(result.ExistingMinutesRemoved))
	} else {
		_, _ = fmt.Fprintf(deps.Stdout, "Discarded:         %d (%s)\n",
			result.DiscardedImportCount, formatDuration(result.DiscardedImportMinutes))
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Total entries:     %d\n", len(result.Merged))
}
