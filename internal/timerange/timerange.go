// Package timerange implements exact algebra over half-open time ranges.
// A Range covers [Start, End): two ranges that merely touch do not overlap.
package timerange

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrInvalidRange is returned when a range would be empty or inverted.
	ErrInvalidRange = errors.New("range end must be after start")
	// ErrDisjoint is returned by Merge for ranges that neither overlap nor touch.
	ErrDisjoint = errors.New("ranges must overlap or touch to merge")
)

// Range is a half-open interval [Start, End) with End strictly after Start.
type Range struct {
	Start time.Time
	End   time.Time
}

// New builds a Range, failing if end is not after start.
func New(start, end time.Time) (Range, error) {
	if !end.After(start) {
		return Range{}, fmt.Errorf("%w: %s..%s", ErrInvalidRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Range{Start: start, End: end}, nil
}

// MustNew is New for callers that have already validated the bounds.
// It panics on an invalid range.
func MustNew(start, end time.Time) Range {
	r, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Minutes returns the whole minutes covered by the range, never less than 1.
func (r Range) Minutes() int {
	m := MinutesBetween(r.Start, r.End)
	if m < 1 {
		return 1
	}
	return m
}

// String formats the range as "15:04-15:04".
func (r Range) String() string {
	return r.Start.Format("15:04") + "-" + r.End.Format("15:04")
}

// Overlaps reports whether a and b share any instant.
func Overlaps(a, b Range) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Touches reports whether a and b are adjacent end-to-start.
func Touches(a, b Range) bool {
	return a.End.Equal(b.Start) || a.Start.Equal(b.End)
}

// Equal reports whether a and b cover exactly the same instants.
func Equal(a, b Range) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// Merge returns the smallest range spanning a and b.
func Merge(a, b Range) (Range, error) {
	if !Overlaps(a, b) && !Touches(a, b) {
		return Range{}, ErrDisjoint
	}
	return Range{Start: earliest(a.Start, b.Start), End: latest(a.End, b.End)}, nil
}

// Intersect returns the common part of a and b. ok is false when the
// intersection would be empty.
func Intersect(a, b Range) (r Range, ok bool) {
	start := latest(a.Start, b.Start)
	end := earliest(a.End, b.End)
	if !end.After(start) {
		return Range{}, false
	}
	return Range{Start: start, End: end}, true
}

// Sort returns a copy of ranges ordered by (Start, End).
func Sort(ranges []Range) []Range {
	out := make([]Range, len(ranges))
	copy(out, ranges)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].End.Before(out[j].End)
	})
	return out
}

// Coalesce merges overlapping and touching ranges. The result is sorted and
// pairwise disjoint, and covers exactly the same instants as the input.
func Coalesce(ranges []Range) []Range {
	ordered := Sort(ranges)
	if len(ordered) == 0 {
		return nil
	}

	merged := []Range{ordered[0]}
	for _, cur := range ordered[1:] {
		last := &merged[len(merged)-1]
		if Overlaps(*last, cur) || Touches(*last, cur) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Subtract removes every subtractor from base and returns what is left,
// sorted and non-overlapping. If no subtractor intersects base the result is
// exactly [base]; if base is fully covered the result is empty.
func Subtract(base Range, subtractors []Range) []Range {
	var relevant []Range
	for _, s := range subtractors {
		if in, ok := Intersect(base, s); ok {
			relevant = append(relevant, in)
		}
	}
	if len(relevant) == 0 {
		return []Range{base}
	}

	var out []Range
	cursor := base.Start
	for _, r := range Coalesce(relevant) {
		if r.Start.After(cursor) {
			out = append(out, Range{Start: cursor, End: r.Start})
		}
		cursor = latest(cursor, r.End)
	}
	if base.End.After(cursor) {
		out = append(out, Range{Start: cursor, End: base.End})
	}
	return out
}

// SubtractMany applies Subtract to every base independently and returns the
// concatenated remainders sorted by (Start, End).
func SubtractMany(bases, subtractors []Range) []Range {
	var out []Range
	for _, b := range bases {
		out = append(out, Subtract(b, subtractors)...)
	}
	return Sort(out)
}

// MinutesBetween returns the whole minutes from start to end, or 0 when end
// is not after start.
func MinutesBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
