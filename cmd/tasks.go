package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/stats"
)

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List known tasks, most used first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		listTasks()
	},
}

// renameCmd represents the rename command
var renameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a task in every entry",
	Long: `Rename a task across the whole entry log.

Examples:
  wogger rename "code reveiw" "code review"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		renameTask(args[0], args[1])
	},
}

// categoryCmd represents the category command
var categoryCmd = &cobra.Command{
	Use:   "category <task> [category]",
	Short: "Assign a category to every entry of a task",
	Long: `Set the category of every entry logged against a task.
Leave the category out to clear it.

With --check, report tasks whose entries disagree on their category.
A task with one category and some uncategorized entries can be fixed
with --fix; a task with several categories needs an explicit choice.

Examples:
  wogger category standup meetings
  wogger category standup
  wogger category --check
  wogger category --fix`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		check, _ := cmd.Flags().GetBool("check")
		fix, _ := cmd.Flags().GetBool("fix")
		if check || fix {
			if len(args) > 0 {
				_, _ = fmt.Fprintln(deps.Stderr, "Error: --check and --fix take no arguments")
				deps.Exit(1)
				return
			}
			checkCategories(fix)
			return
		}
		if len(args) == 0 {
			_, _ = fmt.Fprintln(deps.Stderr, "Error: a task is required")
			_, _ = fmt.Fprintln(deps.Stderr, "Usage: wogger category <task> [category]")
			deps.Exit(1)
			return
		}
		category := ""
		if len(args) == 2 {
			category = args[1]
		}
		assignCategory(args[0], category)
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(categoryCmd)
	categoryCmd.Flags().Bool("check", false, "Report tasks logged under inconsistent categories")
	categoryCmd.Flags().Bool("fix", false, "Give uncategorized entries their task's only category")
}

func listTasks() {
	services, ok := loadServices()
	if !ok {
		return
	}
	counts, err := services.Reconciler.TaskSuggestions()
	if err != nil {
		reportError("Failed to read entries from storage", err)
		return
	}
	if len(counts) == 0 {
		_, _ = fmt.Fprintln(deps.Stdout, "No tasks logged yet")
		return
	}
	st := newStyles(deps.Stdout)
	for _, c := range counts {
		_, _ = fmt.Fprintf(deps.Stdout, "%s %s\n",
			st.Task.Render(c.Task), st.Muted.Render(fmt.Sprintf("(%d %s)", c.Count, pluralize("entry", c.Count))))
	}
}

func renameTask(oldTask, newTask string) {
	services, ok := loadServices()
	if !ok {
		return
	}
	n, err := services.Reconciler.RenameTask(oldTask, newTask)
	if err != nil {
		reportError("Failed to rename task", err)
		return
	}
	if n == 0 {
		_, _ = fmt.Fprintf(deps.Stdout, "No entries found for task '%s'\n", strings.TrimSpace(oldTask))
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Renamed '%s' to '%s' in %d %s\n",
		strings.TrimSpace(oldTask), strings.TrimSpace(newTask), n, pluralize("entry", n))
}

func assignCategory(task, category string) {
	services, ok := loadServices()
	if !ok {
		return
	}
	n, err := services.Reconciler.AssignCategory(task, category)
	if err != nil {
		reportError("Failed to assign category", err)
		return
	}
	if n == 0 {
		_, _ = fmt.Fprintf(deps.Stdout, "No entries changed for task '%s'\n", strings.TrimSpace(task))
		return
	}
	if strings.TrimSpace(category) == "" {
		_, _ = fmt.Fprintf(deps.Stdout, "Cleared category on %d %s\n", n, pluralize("entry", n))
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Set category '%s' on %d %s\n", strings.TrimSpace(category), n, pluralize("entry", n))
}

// checkCategories reports category inconsistencies per task. With fix, the
// unambiguous ones are applied.
func checkCategories(fix bool) {
	services, ok := loadServices()
	if !ok {
		return
	}
	entries, err := services.Store.All()
	if err != nil {
		reportError("Failed to read entries from storage", err)
		return
	}
	assignments, conflicts := stats.CategoryConsistency(entries)
	if len(assignments) == 0 && len(conflicts) == 0 {
		_, _ = fmt.Fprintln(deps.Stdout, "Categories are consistent")
		return
	}

	st := newStyles(deps.Stdout)
	for _, a := range assignments {
		if !fix {
			_, _ = fmt.Fprintf(deps.Stdout, "%s %s\n", st.Task.Render(a.Task),
				st.Muted.Render(fmt.Sprintf("%d uncategorized %s, can be set to '%s'",
					a.Missing, pluralize("entry", a.Missing), a.Category)))
			continue
		}
		n, err := services.Reconciler.AssignCategory(a.Task, a.Category)
		if err != nil {
			reportError("Failed to assign category", err)
			return
		}
		_, _ = fmt.Fprintf(deps.Stdout, "Set category '%s' on %d %s of %s\n",
			a.Category, n, pluralize("entry", n), st.Task.Render(a.Task))
	}

	for _, c := range conflicts {
		parts := make([]string, 0, len(c.Counts))
		for _, cc := range c.Counts {
			name := cc.Category
			if name == "" {
				name = stats.NoCategory
			}
			parts = append(parts, fmt.Sprintf("%s: %d", name, cc.Count))
		}
		_, _ = fmt.Fprintf(deps.Stdout, "%s %s\n", st.Task.Render(c.Task),
			st.Warning.Render("mixed categories ("+strings.Join(parts, ", ")+")"))
		_, _ = fmt.Fprintf(deps.Stdout, "  %s\n", st.Muted.Render(fmt.Sprintf(
			"choose one with: wogger category %q %s", c.Task, c.DefaultCategory())))
	}
	if len(assignments) > 0 && !fix {
		_, _ = fmt.Fprintln(deps.Stdout, st.Muted.Render("Run 'wogger category --fix' to apply the suggested categories"))
	}
}
