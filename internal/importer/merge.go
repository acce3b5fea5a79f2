// Package importer parses entries exported by other tools and merges them
// into the existing timeline.
package importer

import (
	"sort"

	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/timerange"
)

// MergeResult is the outcome of Merge.
type MergeResult struct {
	// Merged is the full timeline to store, sorted by (start, end, task).
	Merged []entry.Entry
	// Applied are the imported entries (or their remainders) that made it in.
	Applied []entry.Entry

	DiscardedImportCount   int
	DiscardedImportMinutes int
	// OverlappedCount is the number of imported entries that overlapped any
	// existing entry before trimming, whatever the policy.
	OverlappedCount        int
	ExistingEntriesTrimmed int
	ExistingMinutesRemoved int
}

// Merge combines existing and imported entries. With preferImported the
// imported entries are kept whole and existing entries lose whatever time
// they overlap. Otherwise existing entries are untouched and each imported
// entry keeps only the time not already occupied, including by imports
// accepted before it.
func Merge(existing, imported []entry.Entry, preferImported bool) MergeResult {
	existingSorted := sortedCopy(existing)
	importedSorted := sortedCopy(imported)
	existingRanges := ranges(existingSorted)
	importRanges := ranges(importedSorted)

	overlapped := countOverlaps(importRanges, existingRanges)

	var result MergeResult
	if preferImported {
		result = preferImportedMerge(existingSorted, importedSorted, importRanges)
	} else {
		result = preferExistingMerge(existingSorted, importedSorted, existingRanges)
	}
	result.OverlappedCount = overlapped
	return result
}

func preferImportedMerge(existing, imported []entry.Entry, importRanges []timerange.Range) MergeResult {
	var result MergeResult
	merged := make([]entry.Entry, 0, len(existing)+len(imported))

	for _, e := range existing {
		base := e.Range()
		remainders := timerange.Subtract(base, importRanges)

		if len(remainders) == 1 && timerange.Equal(remainders[0], base) {
			merged = append(merged, e)
			continue
		}
		result.ExistingEntriesTrimmed++
		if len(remainders) == 0 {
			result.ExistingMinutesRemoved += e.Minutes
			continue
		}

		remaining := 0
		for _, r := range remainders {
			piece := entry.FromRange(e.Task, e.Category, r)
			remaining += piece.Minutes
			merged = append(merged, piece)
		}
		result.ExistingMinutesRemoved += max(0, e.Minutes-remaining)
	}

	merged = append(merged, imported...)
	sortEntries(merged)
	result.Merged = merged
	result.Applied = append([]entry.Entry{}, imported...)
	return result
}

func preferExistingMerge(existing, imported []entry.Entry, existingRanges []timerange.Range) MergeResult {
	var result MergeResult
	merged := append([]entry.Entry{}, existing...)
	occupied := append([]timerange.Range{}, existingRanges...)
	applied := []entry.Entry{}

	for _, e := range imported {
		base := e.Range()
		remainders := timerange.Subtract(base, occupied)

		if len(remainders) == 0 {
			result.DiscardedImportCount++
			result.DiscardedImportMinutes += e.Minutes
			continue
		}
		if len(remainders) == 1 && timerange.Equal(remainders[0], base) {
			applied = append(applied, e)
			merged = append(merged, e)
			occupied = append(occupied, base)
			continue
		}

		remaining := 0
		for _, r := range remainders {
			piece := entry.FromRange(e.Task, e.Category, r)
			remaining += piece.Minutes
			applied = append(applied, piece)
			merged = append(merged, piece)
			occupied = append(occupied, r)
		}
		result.DiscardedImportMinutes += max(0, e.Minutes-remaining)
	}

	sortEntries(merged)
	result.Merged = merged
	result.Applied = applied
	return result
}

func countOverlaps(targets, others []timerange.Range) int {
	count := 0
	for _, t := range targets {
		for _, o := range others {
			if timerange.Overlaps(t, o) {
				count++
				break
			}
		}
	}
	return count
}

func ranges(entries []entry.Entry) []timerange.Range {
	out := make([]timerange.Range, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Range())
	}
	return out
}

func sortedCopy(entries []entry.Entry) []entry.Entry {
	out := append([]entry.Entry{}, entries...)
	sortEntries(out)
	return out
}

func sortEntries(entries []entry.Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entry.Less(entries[i], entries[j]) })
}
