// Package reconciler turns scheduled segments into stored entries. It tracks
// the segments still waiting for a task, subtracts time that is already
// logged, and commits completions, splits and manual entries to the store.
package reconciler

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/storage"
	"github.com/xolan/wogger/internal/timerange"
)

// Dismiss reasons used by the reconciler itself.
const (
	ReasonAlreadyLogged = "already_logged"
	ReasonUser          = "user"
)

// Store is the subset of *storage.Store the reconciler needs.
type Store interface {
	AppendBatch(entries []entry.Entry) ([]entry.Entry, error)
	Overlapping(start, end time.Time) ([]entry.Entry, error)
	Last() (entry.Entry, bool, error)
	TaskCounts() ([]storage.TaskCount, error)
	RenameTask(oldTask, newTask string) (int, error)
	AssignCategory(task, category string) (int, error)
}

// Conflict describes one stored entry overlapping a requested range.
type Conflict struct {
	Requested timerange.Range
	Overlap   timerange.Range // the part of Requested the entry occupies
	Entry     entry.Entry
}

// Reconciler owns the pending segments. All methods are safe for concurrent
// use; state changes are serialized and listeners run synchronously after
// each change, outside the internal lock.
type Reconciler struct {
	mu      sync.Mutex
	store   Store
	logger  *slog.Logger
	pending map[string]entry.ScheduledSegment
	// groups maps a fragmented segment's ID to its remainder segment IDs,
	// sorted by start. members is the reverse index.
	groups    map[string][]string
	members   map[string]string
	lastTask  string
	listeners []Listener
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New returns a Reconciler persisting to store.
func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		logger:  slog.Default(),
		pending: make(map[string]entry.ScheduledSegment),
		groups:  make(map[string][]string),
		members: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers l for every future event.
func (r *Reconciler) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// HandleSegment receives a segment from the scheduler. Time that is already
// logged is subtracted first:
//   - nothing left: the segment is dismissed as already logged;
//   - one remainder: the segment is narrowed to it and queued;
//   - several remainders: each becomes a pending segment of a group that
//     must be completed as a whole with CompleteRemainders.
//
// If the store cannot be read the whole segment is queued and an Error
// event is emitted, so the interval is never lost.
func (r *Reconciler) HandleSegment(seg entry.ScheduledSegment) error {
	r.mu.Lock()
	remainders, err := r.remainders(seg)
	if err != nil {
		r.pending[seg.ID] = seg
		r.mu.Unlock()
		r.logger.Error("Unable to compute segment remainders",
			"event", "prompt_remainders_failed", "segment_id", seg.ID, "error", err)
		r.emit(func(l Listener) { l.Error(err) })
		r.emit(func(l Listener) { l.SegmentReady(seg, nil) })
		return err
	}

	switch {
	case len(remainders) == 0:
		r.mu.Unlock()
		r.logger.Info("Segment already logged",
			"event", "prompt_dismissed", "segment_id", seg.ID, "reason", ReasonAlreadyLogged)
		r.emit(func(l Listener) { l.SegmentDismissed(seg.ID, ReasonAlreadyLogged) })
		return nil

	case len(remainders) == 1:
		if !timerange.Equal(remainders[0], seg.Range()) {
			seg.Start, seg.End = remainders[0].Start, remainders[0].End
			seg.Minutes = remainders[0].Minutes()
			r.logger.Debug("Segment restricted to remainder",
				"event", "segment_restricted", "segment_id", seg.ID,
				"start", entry.FormatTimestamp(seg.Start), "end", entry.FormatTimestamp(seg.End),
				"minutes", seg.Minutes)
		}
		r.pending[seg.ID] = seg
		r.mu.Unlock()
		r.logger.Info("Prompt created",
			"event", "prompt_created", "segment_id", seg.ID,
			"start", entry.FormatTimestamp(seg.Start), "end", entry.FormatTimestamp(seg.End),
			"minutes", seg.Minutes)
		r.emit(func(l Listener) { l.SegmentReady(seg, nil) })
		return nil
	}

	virtual := make([]entry.ScheduledSegment, 0, len(remainders))
	ids := make([]string, 0, len(remainders))
	for _, rem := range remainders {
		v := entry.NewSegment(rem)
		r.pending[v.ID] = v
		r.members[v.ID] = seg.ID
		virtual = append(virtual, v)
		ids = append(ids, v.ID)
	}
	r.groups[seg.ID] = ids
	r.mu.Unlock()

	r.logger.Info("Prompt created with remainders",
		"event", "prompt_created", "segment_id", seg.ID,
		"start", entry.FormatTimestamp(seg.Start), "end", entry.FormatTimestamp(seg.End),
		"remainders", len(virtual))
	r.emit(func(l Listener) { l.SegmentReady(seg, virtual) })
	return nil
}

// Remainders returns the parts of seg not covered by stored entries, sorted.
// Pieces shorter than a minute cannot be logged and are left out.
func (r *Reconciler) Remainders(seg entry.ScheduledSegment) ([]timerange.Range, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remainders(seg)
}

func (r *Reconciler) remainders(seg entry.ScheduledSegment) ([]timerange.Range, error) {
	entries, err := r.store.Overlapping(seg.Start, seg.End)
	if err != nil {
		return nil, err
	}
	base := seg.Range()
	if len(entries) == 0 {
		return []timerange.Range{base}, nil
	}
	subtractors := make([]timerange.Range, 0, len(entries))
	for _, e := range entries {
		subtractors = append(subtractors, e.Range())
	}
	out := []timerange.Range{}
	for _, rem := range timerange.Subtract(base, subtractors) {
		if timerange.MinutesBetween(rem.Start, rem.End) >= 1 {
			out = append(out, rem)
		}
	}
	return out, nil
}

// Complete logs the whole of a pending segment against task. Members of a
// remainder group cannot be completed on their own. On a store failure the
// segment stays pending and the error is returned.
func (r *Reconciler) Complete(id, task string) (entry.Entry, error) {
	const op = "reconciler.complete"
	task = strings.TrimSpace(task)
	if task == "" {
		return entry.Entry{}, apperr.Validation(op, "task cannot be empty")
	}

	r.mu.Lock()
	if group, ok := r.members[id]; ok {
		r.mu.Unlock()
		return entry.Entry{}, apperr.Validation(op,
			"segment %s is one of several remainders; complete all of group %s together", id, group)
	}
	seg, ok := r.pending[id]
	if !ok {
		r.mu.Unlock()
		return entry.Entry{}, apperr.NotFound(op, "unknown segment %s", id)
	}
	delete(r.pending, id)

	e := entry.New(task, seg.Start, seg.End, seg.Minutes)
	if _, err := r.store.AppendBatch([]entry.Entry{e}); err != nil {
		r.pending[id] = seg
		r.mu.Unlock()
		r.logger.Error("Failed to persist segment",
			"event", "prompt_persist_failed", "segment_id", id, "error", err)
		r.emit(func(l Listener) { l.Error(err) })
		return entry.Entry{}, err
	}
	r.lastTask = task
	r.mu.Unlock()

	r.logger.Info("Segment completed",
		"event", "prompt_completed", "segment_id", id, "task", task, "minutes", seg.Minutes)
	r.emit(func(l Listener) { l.SegmentCompleted(id, e) })
	return e, nil
}

// CompleteRemainders logs every remainder of a group, tasks[i] going to the
// i-th remainder in time order. Either every remainder is written or none.
func (r *Reconciler) CompleteRemainders(groupID string, tasks []string) ([]entry.Entry, error) {
	const op = "reconciler.complete_remainders"

	r.mu.Lock()
	ids, ok := r.groups[groupID]
	if !ok {
		r.mu.Unlock()
		return nil, apperr.NotFound(op, "unknown remainder group %s", groupID)
	}
	if len(tasks) != len(ids) {
		r.mu.Unlock()
		return nil, apperr.Validation(op, "got %d tasks for %d remainders", len(tasks), len(ids))
	}

	entries := make([]entry.Entry, 0, len(ids))
	for i, id := range ids {
		task := strings.TrimSpace(tasks[i])
		if task == "" {
			r.mu.Unlock()
			return nil, apperr.Validation(op, "task is required for remainder %d", i+1)
		}
		seg := r.pending[id]
		entries = append(entries, entry.New(task, seg.Start, seg.End, seg.Minutes))
	}

	persisted, err := r.store.AppendBatch(entries)
	if err != nil {
		r.mu.Unlock()
		r.logger.Error("Failed to persist remainder entries",
			"event", "remainder_persist_failed", "segment_id", groupID, "error", err)
		r.emit(func(l Listener) { l.Error(err) })
		return nil, err
	}
	r.dropGroup(groupID)
	r.lastTask = entries[len(entries)-1].Task
	r.mu.Unlock()

	entryIDs := make([]string, 0, len(persisted))
	for _, e := range persisted {
		entryIDs = append(entryIDs, e.ID)
	}
	r.logger.Info("Remainder entries saved",
		"event", "remainder_entries_saved", "segment_id", groupID,
		"count", len(persisted), "entry_ids", entryIDs)
	r.emit(func(l Listener) { l.SegmentSplit(groupID, persisted) })
	return persisted, nil
}

// Split divides a pending segment into contiguous entries, one per part,
// starting at the segment start. Parts must number at least two, each at
// least a minute, and add up exactly to the segment's minutes.
func (r *Reconciler) Split(id string, parts []entry.SplitPart) ([]entry.Entry, error) {
	const op = "reconciler.split"
	if len(parts) < 2 {
		return nil, apperr.Validation(op, "at least two parts required for split")
	}
	total := 0
	for _, p := range parts {
		if strings.TrimSpace(p.Task) == "" {
			return nil, apperr.Validation(op, "every split part needs a task")
		}
		if p.Minutes < 1 {
			return nil, apperr.Validation(op, "split minutes must be >= 1")
		}
		total += p.Minutes
	}

	r.mu.Lock()
	if group, ok := r.members[id]; ok {
		r.mu.Unlock()
		return nil, apperr.Validation(op,
			"segment %s is one of several remainders; complete all of group %s together", id, group)
	}
	seg, ok := r.pending[id]
	if !ok {
		r.mu.Unlock()
		return nil, apperr.NotFound(op, "unknown segment %s", id)
	}
	if total != seg.Minutes {
		r.mu.Unlock()
		return nil, apperr.Validation(op, "split minutes sum to %d, segment is %d", total, seg.Minutes)
	}
	delete(r.pending, id)

	entries := make([]entry.Entry, 0, len(parts))
	cursor := seg.Start
	for _, p := range parts {
		next := cursor.Add(time.Duration(p.Minutes) * time.Minute)
		entries = append(entries, entry.New(strings.TrimSpace(p.Task), cursor, next, p.Minutes))
		cursor = next
	}

	persisted, err := r.store.AppendBatch(entries)
	if err != nil {
		r.pending[id] = seg
		r.mu.Unlock()
		r.logger.Error("Failed to persist split entries",
			"event", "prompt_split_failed", "segment_id", id, "error", err)
		r.emit(func(l Listener) { l.Error(err) })
		return nil, err
	}
	r.lastTask = entries[len(entries)-1].Task
	r.mu.Unlock()

	r.logger.Info("Segment split saved",
		"event", "prompt_split_saved", "segment_id", id, "parts", len(persisted))
	r.emit(func(l Listener) { l.SegmentSplit(id, persisted) })
	return persisted, nil
}

// Dismiss drops a pending segment without logging it. Dismissing a group,
// or any member of one, drops the whole group. Unknown IDs are ignored.
func (r *Reconciler) Dismiss(id, reason string) {
	r.mu.Lock()
	target := id
	if group, ok := r.members[id]; ok {
		target = group
	}
	if _, ok := r.groups[target]; ok {
		r.dropGroup(target)
	} else if _, ok := r.pending[target]; ok {
		delete(r.pending, target)
	} else {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.logger.Info("Segment dismissed",
		"event", "prompt_dismissed", "segment_id", target, "reason", reason)
	r.emit(func(l Listener) { l.SegmentDismissed(target, reason) })
}

// Requeue puts seg back in the pending set as a standalone segment, for
// example a remainder the user dismissed earlier.
func (r *Reconciler) Requeue(seg entry.ScheduledSegment) error {
	const op = "reconciler.requeue"
	if timerange.MinutesBetween(seg.Start, seg.End) < 1 {
		return apperr.Validation(op, "segment %s is shorter than a minute", seg.ID)
	}
	r.mu.Lock()
	if group, ok := r.members[seg.ID]; ok {
		r.mu.Unlock()
		return apperr.Validation(op, "segment %s still belongs to group %s", seg.ID, group)
	}
	if seg.ID == "" {
		seg.ID = entry.NewID()
	}
	r.pending[seg.ID] = seg
	r.mu.Unlock()

	r.logger.Info("Segment requeued", "event", "prompt_requeued", "segment_id", seg.ID)
	r.emit(func(l Listener) { l.SegmentReady(seg, nil) })
	return nil
}

// ManualEntry logs task over [start, end). A range that overlaps any stored
// entry is rejected with a KindConflict error whose Detail is the []Conflict;
// nothing is trimmed or written in that case.
func (r *Reconciler) ManualEntry(task string, start, end time.Time) (entry.Entry, error) {
	const op = "reconciler.manual_entry"
	task = strings.TrimSpace(task)
	if task == "" {
		return entry.Entry{}, apperr.Validation(op, "task cannot be empty")
	}
	base, err := timerange.New(start, end)
	if err != nil {
		return entry.Entry{}, apperr.Validation(op, "end must be after start")
	}
	minutes := timerange.MinutesBetween(start, end)
	if minutes < 1 {
		return entry.Entry{}, apperr.Validation(op, "manual entry must be at least one minute long")
	}

	r.mu.Lock()
	conflicts, err := r.conflicts(base)
	if err != nil {
		r.mu.Unlock()
		return entry.Entry{}, err
	}
	if len(conflicts) > 0 {
		r.mu.Unlock()
		r.logger.Warn("Manual entry overlaps existing entries",
			"event", "manual_entry_conflict", "conflict_count", len(conflicts))
		return entry.Entry{}, apperr.Conflict(op, conflicts, "the selected time range overlaps %d existing entries", len(conflicts))
	}

	e := entry.New(task, start, end, minutes)
	if _, err := r.store.AppendBatch([]entry.Entry{e}); err != nil {
		r.mu.Unlock()
		r.logger.Error("Failed to persist manual entry", "event", "manual_entry_failed", "error", err)
		return entry.Entry{}, err
	}
	r.lastTask = task
	r.mu.Unlock()

	r.logger.Info("Manual entry recorded",
		"event", "manual_entry_saved", "task", task,
		"start", entry.FormatTimestamp(start), "end", entry.FormatTimestamp(end),
		"minutes", minutes, "entry_id", e.ID)
	r.emit(func(l Listener) { l.ManualEntrySaved(e) })
	return e, nil
}

// RangeConflicts lists every stored entry overlapping [start, end) with the
// extent of the overlap. An empty or inverted range has no conflicts.
func (r *Reconciler) RangeConflicts(start, end time.Time) ([]Conflict, error) {
	base, err := timerange.New(start, end)
	if err != nil {
		return []Conflict{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts(base)
}

func (r *Reconciler) conflicts(base timerange.Range) ([]Conflict, error) {
	entries, err := r.store.Overlapping(base.Start, base.End)
	if err != nil {
		return nil, err
	}
	out := []Conflict{}
	for _, e := range entries {
		if overlap, ok := timerange.Intersect(base, e.Range()); ok {
			out = append(out, Conflict{Requested: base, Overlap: overlap, Entry: e})
		}
	}
	return out, nil
}

// ManualEntryDefaults suggests a range for a manual entry: from the end of
// the last entry (or 15 minutes ago) until now, truncated to the minute.
// The end is pushed to a minute after the start when needed.
func (r *Reconciler) ManualEntryDefaults(now time.Time) (start, end time.Time, err error) {
	end = now.Truncate(time.Minute)
	last, ok, err := r.store.Last()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if ok {
		start = last.End
	} else {
		start = end.Add(-15 * time.Minute)
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}
	return start, end, nil
}

// Pending returns the segments waiting for a task, sorted by start.
func (r *Reconciler) Pending() []entry.ScheduledSegment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entry.ScheduledSegment, 0, len(r.pending))
	for _, seg := range r.pending {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Group returns the remainder segments of a fragmented segment in time
// order, or false if groupID is not an open group.
func (r *Reconciler) Group(groupID string) ([]entry.ScheduledSegment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids, ok := r.groups[groupID]
	if !ok {
		return nil, false
	}
	out := make([]entry.ScheduledSegment, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.pending[id])
	}
	return out, true
}

// LastTask returns the most recently used task, or "" if nothing is logged.
func (r *Reconciler) LastTask() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastTask != "" {
		return r.lastTask, nil
	}
	last, ok, err := r.store.Last()
	if err != nil || !ok {
		return "", err
	}
	r.lastTask = last.Task
	return r.lastTask, nil
}

// TaskSuggestions returns known tasks, most used first.
func (r *Reconciler) TaskSuggestions() ([]storage.TaskCount, error) {
	return r.store.TaskCounts()
}

// RenameTask renames a task across the store and keeps the cached last
// task in step.
func (r *Reconciler) RenameTask(oldTask, newTask string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.store.RenameTask(oldTask, newTask)
	if err == nil && n > 0 && r.lastTask == strings.TrimSpace(oldTask) {
		r.lastTask = strings.TrimSpace(newTask)
	}
	return n, err
}

// AssignCategory sets the category of every entry of task.
func (r *Reconciler) AssignCategory(task, category string) (int, error) {
	return r.store.AssignCategory(task, category)
}

// NotifyEntriesReplaced tells listeners the store was rewritten wholesale,
// for example by an import, and forgets the cached last task.
func (r *Reconciler) NotifyEntriesReplaced() {
	r.mu.Lock()
	r.lastTask = ""
	r.mu.Unlock()
	r.emit(func(l Listener) { l.EntriesReplaced() })
}

// dropGroup removes a group and all its members. Callers hold mu.
func (r *Reconciler) dropGroup(groupID string) {
	for _, id := range r.groups[groupID] {
		delete(r.pending, id)
		delete(r.members, id)
	}
	delete(r.groups, groupID)
}

func (r *Reconciler) emit(fn func(Listener)) {
	r.mu.Lock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()
	for _, l := range listeners {
		fn(l)
	}
}
