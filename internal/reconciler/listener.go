package reconciler

import "github.com/xolan/wogger/internal/entry"

// Listener receives reconciler events. Methods are called synchronously on
// the goroutine that caused the change.
type Listener interface {
	// SegmentReady announces a segment waiting for a task. remainders is
	// non-empty when the segment was fragmented by existing entries; those
	// must be completed together via CompleteRemainders(seg.ID, ...).
	SegmentReady(seg entry.ScheduledSegment, remainders []entry.ScheduledSegment)
	SegmentCompleted(id string, e entry.Entry)
	SegmentSplit(id string, entries []entry.Entry)
	SegmentDismissed(id, reason string)
	Error(err error)
	ManualEntrySaved(e entry.Entry)
	EntriesReplaced()
}

// NopListener implements Listener with no-ops. Embed it to handle only
// some events.
type NopListener struct{}

func (NopListener) SegmentReady(entry.ScheduledSegment, []entry.ScheduledSegment) {}
func (NopListener) SegmentCompleted(string, entry.Entry)                           {}
func (NopListener) SegmentSplit(string, []entry.Entry)                             {}
func (NopListener) SegmentDismissed(string, string)                                {}
func (NopListener) Error(error)                                                    {}
func (NopListener) ManualEntrySaved(entry.Entry)                                   {}
func (NopListener) EntriesReplaced()                                               {}
