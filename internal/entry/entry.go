package entry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xolan/wogger/internal/timerange"
)

// TimestampLayout is the on-disk timestamp format: ISO-8601, second
// precision, local wall clock.
const TimestampLayout = "2006-01-02T15:04:05"

// Entry represents a logged work segment
type Entry struct {
	ID       string
	Task     string
	Category string // optional
	Start    time.Time
	End      time.Time
	Minutes  int
}

// record is the JSON Lines wire shape of an Entry.
type record struct {
	ID       string `json:"entry_id"`
	Task     string `json:"task"`
	Category string `json:"category,omitempty"`
	Start    string `json:"segment_start"`
	End      string `json:"segment_end"`
	Minutes  int    `json:"minutes"`
}

// NewID returns a fresh opaque identifier (32 hex characters).
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// New builds an entry for [start, end) with a fresh ID.
func New(task string, start, end time.Time, minutes int) Entry {
	return Entry{
		ID:      NewID(),
		Task:    task,
		Start:   start,
		End:     end,
		Minutes: minutes,
	}
}

// FromRange builds an entry covering r with minutes derived from r.
func FromRange(task, category string, r timerange.Range) Entry {
	e := New(task, r.Start, r.End, r.Minutes())
	e.Category = category
	return e
}

// Range returns the entry's interval. Entries decoded from storage are
// validated, so this cannot produce an inverted range for them.
func (e Entry) Range() timerange.Range {
	return timerange.Range{Start: e.Start, End: e.End}
}

// MarshalJSON encodes the entry in its JSON Lines form.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		ID:       e.ID,
		Task:     e.Task,
		Category: e.Category,
		Start:    FormatTimestamp(e.Start),
		End:      FormatTimestamp(e.End),
		Minutes:  e.Minutes,
	})
}

// UnmarshalJSON decodes and validates a stored entry. Lines without an
// entry_id get a fresh one.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	start, err := ParseTimestamp(r.Start)
	if err != nil {
		return fmt.Errorf("segment_start: %w", err)
	}
	end, err := ParseTimestamp(r.End)
	if err != nil {
		return fmt.Errorf("segment_end: %w", err)
	}
	if strings.TrimSpace(r.Task) == "" {
		return fmt.Errorf("task is empty")
	}
	if !end.After(start) {
		return fmt.Errorf("segment_end %s is not after segment_start %s", r.End, r.Start)
	}
	if r.Minutes < 1 {
		return fmt.Errorf("minutes must be positive, got %d", r.Minutes)
	}
	if r.ID == "" {
		r.ID = NewID()
	}

	*e = Entry{
		ID:       r.ID,
		Task:     r.Task,
		Category: r.Category,
		Start:    start,
		End:      end,
		Minutes:  r.Minutes,
	}
	return nil
}

// FormatTimestamp renders t in TimestampLayout on the local wall clock.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout (interpreted in local time) and RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Less orders entries by (start, end, lower-cased task).
func Less(a, b Entry) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if !a.End.Equal(b.End) {
		return a.End.Before(b.End)
	}
	return strings.ToLower(a.Task) < strings.ToLower(b.Task)
}

// ScheduledSegment is a candidate interval awaiting a task assignment.
// It only lives in memory.
type ScheduledSegment struct {
	ID      string
	Start   time.Time
	End     time.Time
	Minutes int
}

// NewSegment builds a segment for r with a fresh ID.
func NewSegment(r timerange.Range) ScheduledSegment {
	return ScheduledSegment{
		ID:      NewID(),
		Start:   r.Start,
		End:     r.End,
		Minutes: r.Minutes(),
	}
}

// Range returns the segment's interval.
func (s ScheduledSegment) Range() timerange.Range {
	return timerange.Range{Start: s.Start, End: s.End}
}

// Label formats the segment as "15:04 - 15:04".
func (s ScheduledSegment) Label() string {
	return s.Start.Format("15:04") + " - " + s.End.Format("15:04")
}

// SplitPart is one task's share of a split segment.
type SplitPart struct {
	Task    string
	Minutes int
}
