package stats

import (
	"sort"
	"strings"

	"github.com/xolan/wogger/internal/entry"
)

// CategoryAssignment proposes a category for the uncategorized entries of
// a task that has exactly one category elsewhere.
type CategoryAssignment struct {
	Task     string
	Category string
	// Missing is the number of entries without a category.
	Missing int
}

// CategoryCount is how many entries of a task carry a category. An empty
// Category counts the uncategorized entries.
type CategoryCount struct {
	Category string
	Count    int
}

// CategoryConflict is a task logged under more than one category.
type CategoryConflict struct {
	Task string
	// Counts is ordered by count, most used first, then by name.
	Counts []CategoryCount
}

// DefaultCategory returns the most used non-empty category.
func (c CategoryConflict) DefaultCategory() string {
	for _, cc := range c.Counts {
		if cc.Category != "" {
			return cc.Category
		}
	}
	return ""
}

// CategoryConsistency checks that every task is logged under one category.
// Tasks with a single category and some uncategorized entries can be fixed
// automatically; tasks with several categories need a decision. Both lists
// are sorted by task, ignoring case.
func CategoryConsistency(entries []entry.Entry) ([]CategoryAssignment, []CategoryConflict) {
	grouped := make(map[string]map[string]int)
	for _, e := range entries {
		task := strings.TrimSpace(e.Task)
		if task == "" {
			continue
		}
		if grouped[task] == nil {
			grouped[task] = make(map[string]int)
		}
		grouped[task][strings.TrimSpace(e.Category)]++
	}

	var assignments []CategoryAssignment
	var conflicts []CategoryConflict
	for task, counts := range grouped {
		var categories []string
		for category := range counts {
			if category != "" {
				categories = append(categories, category)
			}
		}

		switch {
		case len(categories) == 1:
			if missing := counts[""]; missing > 0 {
				assignments = append(assignments, CategoryAssignment{Task: task, Category: categories[0], Missing: missing})
			}
		case len(categories) > 1:
			conflicts = append(conflicts, CategoryConflict{Task: task, Counts: orderedCounts(counts)})
		}
	}

	sort.Slice(assignments, func(i, j int) bool {
		return lessFold(assignments[i].Task, assignments[j].Task)
	})
	sort.Slice(conflicts, func(i, j int) bool {
		return lessFold(conflicts[i].Task, conflicts[j].Task)
	})
	return assignments, conflicts
}

func orderedCounts(counts map[string]int) []CategoryCount {
	ordered := make([]CategoryCount, 0, len(counts))
	for category, n := range counts {
		ordered = append(ordered, CategoryCount{Category: category, Count: n})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Count != ordered[j].Count {
			return ordered[i].Count > ordered[j].Count
		}
		return lessFold(ordered[i].Category, ordered[j].Category)
	})
	return ordered
}

// lessFold orders case-insensitively and falls back to the exact text so
// the order is stable.
func lessFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
