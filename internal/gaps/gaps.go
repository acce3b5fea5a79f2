// Package gaps finds short unlogged stretches between entries and remembers
// the ones the user chose to ignore.
package gaps

import (
	"sort"
	"time"

	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/timerange"
)

// Gap is an unlogged stretch between two entries.
type Gap struct {
	Start time.Time
	End   time.Time
}

// Key identifies a gap by its formatted bounds.
type Key struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Minutes returns the gap length in whole minutes, at least 1.
func (g Gap) Minutes() int {
	return timerange.Range{Start: g.Start, End: g.End}.Minutes()
}

// Key returns the identity used to ignore g.
func (g Gap) Key() Key {
	return Key{Start: entry.FormatTimestamp(g.Start), End: entry.FormatTimestamp(g.End)}
}

// Detect returns the gaps between entries of at most thresholdMinutes,
// skipping ignored ones. Overlapping entries are handled by measuring from
// the furthest end seen so far. A threshold of zero or less disables
// detection.
func Detect(entries []entry.Entry, thresholdMinutes int, ignored map[Key]bool) []Gap {
	if thresholdMinutes <= 0 || len(entries) < 2 {
		return []Gap{}
	}

	ordered := append([]entry.Entry{}, entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].Start.Before(ordered[j].Start)
		}
		return ordered[i].End.Before(ordered[j].End)
	})

	out := []Gap{}
	seen := map[Key]bool{}
	reach := ordered[0].End
	for _, current := range ordered[1:] {
		if current.Start.After(reach) {
			minutes := timerange.MinutesBetween(reach, current.Start)
			if minutes > 0 && minutes <= thresholdMinutes {
				g := Gap{Start: reach, End: current.Start}
				k := g.Key()
				if !ignored[k] && !seen[k] {
					out = append(out, g)
					seen[k] = true
				}
			}
		}
		if current.End.After(reach) {
			reach = current.End
		}
	}
	return out
}
