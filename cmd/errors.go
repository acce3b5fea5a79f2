package cmd

import (
	"errors"
	"fmt"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/reconciler"
)

// reportError prints a failed action with the error details and a hint
// chosen by error kind, then exits with status 1.
func reportError(action string, err error) {
	_, _ = fmt.Fprintf(deps.Stderr, "Error: %s\n", action)
	_, _ = fmt.Fprintf(deps.Stderr, "Details: %v\n", err)
	printConflicts(err)
	if hint := hintFor(err); hint != "" {
		_, _ = fmt.Fprintf(deps.Stderr, "Hint: %s\n", hint)
	}
	deps.Exit(1)
}

func hintFor(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindPersistence:
		return "Check that the data directory is writable and that no other wogger process holds the lock"
	case apperr.KindConflict:
		return "Pick a range that does not overlap logged entries; see 'wogger list'"
	case apperr.KindNotFound:
		return "The item may already have been handled or removed"
	default:
		return ""
	}
}

// printConflicts lists the entries behind a conflict error, if any.
func printConflicts(err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return
	}
	conflicts, ok := e.Detail.([]reconciler.Conflict)
	if !ok {
		return
	}
	for _, c := range conflicts {
		_, _ = fmt.Fprintf(deps.Stderr, "  %s - %s  %s (overlaps %s - %s)\n",
			c.Entry.Start.Format("15:04"), c.Entry.End.Format("15:04"), c.Entry.Task,
			c.Overlap.Start.Format("15:04"), c.Overlap.End.Format("15:04"))
	}
}
