// Package stats aggregates logged minutes over a period, overall and per
// task and category.
package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/xolan/wogger/internal/entry"
)

// NoCategory labels entries without a category in breakdowns.
const NoCategory = "(no category)"

// Statistics contains aggregated statistics for a set of entries
type Statistics struct {
	TotalMinutes         int
	AverageMinutesPerDay float64
	EntryCount           int
	DaysWithEntries      int
}

// TaskBreakdown contains statistics for a single task
type TaskBreakdown struct {
	Task string
	// Category is the most recent non-empty category logged for the task.
	Category     string
	TotalMinutes int
	EntryCount   int
}

// CategoryBreakdown contains statistics for a single category
type CategoryBreakdown struct {
	Category     string
	TotalMinutes int
	EntryCount   int
}

// inPeriod reports whether e starts within [start, end).
func inPeriod(e entry.Entry, start, end time.Time) bool {
	return !e.Start.Before(start) && e.Start.Before(end)
}

// CalculateStatistics computes statistics for entries starting in [start, end).
// The average is taken over every day of the period, logged or not.
func CalculateStatistics(entries []entry.Entry, start, end time.Time) Statistics {
	stats := Statistics{}

	daysWithEntries := make(map[string]bool)
	for _, e := range entries {
		if !inPeriod(e, start, end) {
			continue
		}
		stats.TotalMinutes += e.Minutes
		stats.EntryCount++
		daysWithEntries[e.Start.Format("2006-01-02")] = true
	}
	stats.DaysWithEntries = len(daysWithEntries)

	totalDays := int(math.Round(end.Sub(start).Hours() / 24))
	if totalDays > 0 {
		stats.AverageMinutesPerDay = float64(stats.TotalMinutes) / float64(totalDays)
	}
	return stats
}

// CalculateTaskBreakdown groups entries by task, most minutes first and
// then by task name (case-insensitive).
func CalculateTaskBreakdown(entries []entry.Entry, start, end time.Time) []TaskBreakdown {
	taskMap := make(map[string]*TaskBreakdown)
	categorySeen := make(map[string]time.Time)

	for _, e := range entries {
		if !inPeriod(e, start, end) {
			continue
		}
		b, exists := taskMap[e.Task]
		if !exists {
			b = &TaskBreakdown{Task: e.Task}
			taskMap[e.Task] = b
		}
		b.TotalMinutes += e.Minutes
		b.EntryCount++
		if e.Category != "" {
			if seen, ok := categorySeen[e.Task]; !ok || !e.Start.Before(seen) {
				b.Category = e.Category
				categorySeen[e.Task] = e.Start
			}
		}
	}

	breakdowns := make([]TaskBreakdown, 0, len(taskMap))
	for _, b := range taskMap {
		breakdowns = append(breakdowns, *b)
	}
	sort.Slice(breakdowns, func(i, j int) bool {
		if breakdowns[i].TotalMinutes != breakdowns[j].TotalMinutes {
			return breakdowns[i].TotalMinutes > breakdowns[j].TotalMinutes
		}
		return strings.ToLower(breakdowns[i].Task) < strings.ToLower(breakdowns[j].Task)
	})
	return breakdowns
}

// CalculateCategoryBreakdown groups entries by category, most minutes first.
// Entries without a category are reported under NoCategory.
func CalculateCategoryBreakdown(entries []entry.Entry, start, end time.Time) []CategoryBreakdown {
	categoryMap := make(map[string]*CategoryBreakdown)

	for _, e := range entries {
		if !inPeriod(e, start, end) {
			continue
		}
		name := e.Category
		if name == "" {
			name = NoCategory
		}
		b, exists := categoryMap[name]
		if !exists {
			b = &CategoryBreakdown{Category: name}
			categoryMap[name] = b
		}
		b.TotalMinutes += e.Minutes
		b.EntryCount++
	}

	breakdowns := make([]CategoryBreakdown, 0, len(categoryMap))
	for _, b := range categoryMap {
		breakdowns = append(breakdowns, *b)
	}
	sort.Slice(breakdowns, func(i, j int) bool {
		if breakdowns[i].TotalMinutes != breakdowns[j].TotalMinutes {
			return breakdowns[i].TotalMinutes > breakdowns[j].TotalMinutes
		}
		return breakdowns[i].Category < breakdowns[j].Category
	})
	return breakdowns
}
