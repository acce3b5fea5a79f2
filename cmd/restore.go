package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/storage"
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore [backup_number]",
	Short: "Restore from a backup file",
	Long: `Restore the entries file from a backup.

Backups are written before every import and restore. By default, restores
from the most recent backup (.bak.1). Optionally specify a backup number
to restore from (1-3). The file being replaced is itself backed up.

Examples:
  wogger restore       Restore from most recent backup
  wogger restore 2     Restore from backup #2`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		restoreFromBackup(args)
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

// restoreFromBackup handles the restore command logic
func restoreFromBackup(args []string) {
	services, ok := loadServices()
	if !ok {
		return
	}

	backups := services.Store.ListBackups()
	if len(backups) == 0 {
		_, _ = fmt.Fprintln(deps.Stdout, "No backups available")
		deps.Exit(1)
		return
	}

	_, _ = fmt.Fprintln(deps.Stdout, "Available backups:")
	for _, backup := range backups {
		if backup.Number == 1 {
			_, _ = fmt.Fprintf(deps.Stdout, "  %d: %s (most recent)\n", backup.Number, backup.Path)
		} else {
			_, _ = fmt.Fprintf(deps.Stdout, "  %d: %s\n", backup.Number, backup.Path)
		}
	}
	_, _ = fmt.Fprintln(deps.Stdout)

	backupNum := 1
	if len(args) > 0 {
		num, err := strconv.Atoi(args[0])
		if err != nil {
			_, _ = fmt.Fprintf(deps.Stderr, "Error: Invalid backup number '%s'\n", args[0])
			deps.Exit(1)
			return
		}
		if num < 1 || num > storage.MaxBackupCount {
			_, _ = fmt.Fprintf(deps.Stderr, "Error: Backup number must be between 1 and %d (got %d)\n", storage.MaxBackupCount, num)
			deps.Exit(1)
			return
		}
		backupNum = num
	}

	if err := services.Store.RestoreBackup(backupNum); err != nil {
		reportError(fmt.Sprintf("Failed to restore backup %d", backupNum), err)
		return
	}
	services.Reconciler.NotifyEntriesReplaced()

	_, _ = fmt.Fprintf(deps.Stdout, "Successfully restored from backup %d\n", backupNum)
}
