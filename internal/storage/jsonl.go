package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/timerange"
)

// maxLineSize bounds a single JSON line. Longer lines are reported as
// malformed without being decoded.
const maxLineSize = 1 << 20

// ParseWarning represents a warning about a corrupted or malformed entry
type ParseWarning struct {
	LineNumber int    // Line number in the file (1-indexed)
	Content    string // Raw content of the corrupted line
	Error      string // Description of the parsing error
}

// ReadResult contains the results of reading entries from storage,
// including both successfully parsed entries and any warnings about
// corrupted or malformed lines.
type ReadResult struct {
	Entries  []entry.Entry  // Successfully parsed entries
	Warnings []ParseWarning // Warnings about corrupted lines
}

// line is one non-blank line of the file. Malformed lines keep their raw
// text so whole-file rewrites do not drop them.
type line struct {
	raw   string
	entry *entry.Entry
}

// TaskCount is a task name with the number of entries logged against it.
type TaskCount struct {
	Task  string
	Count int
}

// StorageHealth contains information about the health status of the storage file.
type StorageHealth struct {
	TotalLines       int            // Total number of non-blank lines in the storage file
	ValidEntries     int            // Number of successfully parsed entries
	CorruptedEntries int            // Number of corrupted/malformed lines
	Warnings         []ParseWarning // Detailed information about each corrupted line
}

// AppendBatch durably appends entries as one unit. Every line is written
// and synced under an exclusive lock; if any write fails the file is
// truncated back to its previous length before the error is returned, so
// either the whole batch is visible or none of it is.
func (s *Store) AppendBatch(entries []entry.Entry) ([]entry.Entry, error) {
	const op = "storage.append_batch"
	if len(entries) == 0 {
		return nil, nil
	}

	lines := make([][]byte, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, apperr.Validation(op, "%v", err)
		}
		data, err := json.Marshal(e)
		if err != nil {
			return nil, apperr.Validation(op, "unable to encode entry %s: %v", e.ID, err)
		}
		lines = append(lines, append(data, '\n'))
		ids = append(ids, e.ID)
	}

	s.logger.Info("Adding batch of entries", "event", "entries_add_batch", "count", len(entries), "entry_ids", ids)

	err := s.withLock(op, true, func() error {
		f, err := s.openForAppend(s.path)
		if err != nil {
			return apperr.Persistence(op, err, "unable to open %s", s.path)
		}
		defer func() { _ = f.Close() }()

		start, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return apperr.Persistence(op, err, "unable to seek %s", s.path)
		}
		// A file cut off mid-line must not swallow the first new line.
		if start > 0 {
			last := make([]byte, 1)
			if _, err := f.ReadAt(last, start-1); err != nil {
				return apperr.Persistence(op, err, "unable to read %s", s.path)
			}
			if last[0] != '\n' {
				s.logger.Warn("Entries file does not end with a newline; terminating the partial line",
					"event", "entries_partial_line")
				if _, err := f.Write([]byte{'\n'}); err != nil {
					return s.rollback(op, f, start, err)
				}
			}
		}
		for _, l := range lines {
			if _, err := f.Write(l); err != nil {
				return s.rollback(op, f, start, err)
			}
		}
		if err := f.Sync(); err != nil {
			return s.rollback(op, f, start, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]entry.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// rollback truncates f back to size after a failed write.
func (s *Store) rollback(op string, f appendFile, size int64, cause error) error {
	if err := f.Truncate(size); err != nil {
		cause = errors.Join(cause, err)
	} else if err := f.Sync(); err != nil {
		cause = errors.Join(cause, err)
	}
	s.logger.Error("Failed to write batch; truncated partial data",
		"event", "entries_add_batch_failed", "error", cause)
	return apperr.Persistence(op, cause, "unable to persist entries batch")
}

// Append stores a single new entry and returns it.
func (s *Store) Append(task string, start, end time.Time, minutes int) (entry.Entry, error) {
	e := entry.New(task, start, end, minutes)
	s.logger.Info("Adding entry",
		"event", "entries_add_one", "task", task, "entry_id", e.ID, "minutes", minutes)
	if _, err := s.AppendBatch([]entry.Entry{e}); err != nil {
		return entry.Entry{}, err
	}
	return e, nil
}

// AllWithWarnings reads every entry under a shared lock. Malformed lines
// are skipped, logged and reported as warnings rather than failing the read.
func (s *Store) AllWithWarnings() (ReadResult, error) {
	result := ReadResult{Entries: []entry.Entry{}, Warnings: []ParseWarning{}}
	err := s.withLock("storage.read", false, func() error {
		lines, warnings, err := s.readLines()
		if err != nil {
			return err
		}
		for _, l := range lines {
			if l.entry != nil {
				result.Entries = append(result.Entries, *l.entry)
			}
		}
		result.Warnings = warnings
		return nil
	})
	return result, err
}

// All returns every well-formed entry in file order.
func (s *Store) All() ([]entry.Entry, error) {
	result, err := s.AllWithWarnings()
	return result.Entries, err
}

// Overlapping returns the entries that overlap [start, end). An empty or
// inverted range overlaps nothing.
func (s *Store) Overlapping(start, end time.Time) ([]entry.Entry, error) {
	base, err := timerange.New(start, end)
	if err != nil {
		return []entry.Entry{}, nil
	}
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	out := []entry.Entry{}
	for _, e := range all {
		if timerange.Overlaps(e.Range(), base) {
			out = append(out, e)
		}
	}
	return out, nil
}

// InRange returns entries lying entirely within [start, end], sorted.
func (s *Store) InRange(start, end time.Time) ([]entry.Entry, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	out := []entry.Entry{}
	for _, e := range all {
		if !e.Start.Before(start) && !e.End.After(end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return entry.Less(out[i], out[j]) })
	return out, nil
}

// Last returns the entry with the greatest (end, start). ok is false when
// the store is empty.
func (s *Store) Last() (last entry.Entry, ok bool, err error) {
	all, err := s.All()
	if err != nil {
		return entry.Entry{}, false, err
	}
	for _, e := range all {
		if !ok || e.End.After(last.End) || (e.End.Equal(last.End) && e.Start.After(last.Start)) {
			last, ok = e, true
		}
	}
	return last, ok, nil
}

// TaskCounts lists every task with its entry count, most used first and
// then alphabetically (case-insensitive).
func (s *Store) TaskCounts() ([]TaskCount, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, e := range all {
		counts[e.Task]++
	}
	out := make([]TaskCount, 0, len(counts))
	for task, n := range counts {
		out = append(out, TaskCount{Task: task, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.ToLower(out[i].Task) < strings.ToLower(out[j].Task)
	})
	return out, nil
}

// RenameTask renames every entry of oldTask to newTask by rewriting the
// whole file under an exclusive lock, and returns how many entries changed.
// Nothing is rewritten when no entry matches.
func (s *Store) RenameTask(oldTask, newTask string) (int, error) {
	const op = "storage.rename_task"
	oldTask = strings.TrimSpace(oldTask)
	newTask = strings.TrimSpace(newTask)
	if oldTask == "" || newTask == "" {
		return 0, apperr.Validation(op, "task names must be non-empty")
	}
	if oldTask == newTask {
		return 0, nil
	}

	s.logger.Info("Renaming task", "event", "entries_task_rename", "from", oldTask, "to", newTask)
	updated, err := s.rewrite(op, func(e *entry.Entry) bool {
		if e.Task != oldTask {
			return false
		}
		e.Task = newTask
		return true
	})
	if err != nil {
		s.logger.Error("Failed to rename task", "event", "entries_task_rename_failed", "error", err)
	}
	return updated, err
}

// AssignCategory sets category on every entry of task; an empty category
// clears it. Returns the number of entries changed.
func (s *Store) AssignCategory(task, category string) (int, error) {
	const op = "storage.assign_category"
	task = strings.TrimSpace(task)
	category = strings.TrimSpace(category)
	if task == "" {
		return 0, apperr.Validation(op, "task name must be non-empty")
	}
	return s.rewrite(op, func(e *entry.Entry) bool {
		if e.Task != task || e.Category == category {
			return false
		}
		e.Category = category
		return true
	})
}

// rewrite applies change to every entry under an exclusive lock and, if
// anything changed, replaces the file atomically. Malformed lines are
// carried over untouched.
func (s *Store) rewrite(op string, change func(e *entry.Entry) bool) (int, error) {
	updated := 0
	err := s.withLock(op, true, func() error {
		lines, _, err := s.readLines()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		for _, l := range lines {
			if l.entry != nil && change(l.entry) {
				updated++
			}
			if l.entry == nil {
				buf.WriteString(l.raw)
			} else {
				data, _ := json.Marshal(*l.entry)
				buf.Write(data)
			}
			buf.WriteByte('\n')
		}
		if updated == 0 {
			return nil
		}
		if err := atomic.WriteFile(s.path, &buf); err != nil {
			updated = 0
			return apperr.Persistence(op, err, "unable to rewrite %s", s.path)
		}
		return nil
	})
	return updated, err
}

// ReplaceAll overwrites the store with entries sorted by (start, end,
// lower-cased task). The new file is swapped in atomically under the
// exclusive lock; on failure the previous content is left intact.
func (s *Store) ReplaceAll(entries []entry.Entry) error {
	const op = "storage.replace_all"
	ordered := make([]entry.Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return entry.Less(ordered[i], ordered[j]) })

	var buf bytes.Buffer
	for _, e := range ordered {
		if err := validateEntry(e); err != nil {
			return apperr.Validation(op, "%v", err)
		}
		data, err := json.Marshal(e)
		if err != nil {
			return apperr.Validation(op, "unable to encode entry %s: %v", e.ID, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	s.logger.Info("Replacing all entries", "event", "entries_replace_all", "count", len(ordered))
	return s.withLock(op, true, func() error {
		if err := atomic.WriteFile(s.path, &buf); err != nil {
			s.logger.Error("Failed to replace entries", "event", "entries_replace_failed", "error", err)
			return apperr.Persistence(op, err, "unable to persist imported entries")
		}
		return nil
	})
}

// Validate analyzes the storage file and returns health status information.
func (s *Store) Validate() (StorageHealth, error) {
	health := StorageHealth{Warnings: []ParseWarning{}}
	err := s.withLock("storage.validate", false, func() error {
		lines, warnings, err := s.readLines()
		if err != nil {
			return err
		}
		health.TotalLines = len(lines)
		health.CorruptedEntries = len(warnings)
		health.ValidEntries = len(lines) - len(warnings)
		health.Warnings = warnings
		return nil
	})
	return health, err
}

// readLines parses the file. Callers hold the lock. A missing file reads
// as empty.
func (s *Store) readLines() ([]line, []ParseWarning, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, []ParseWarning{}, nil
		}
		return nil, nil, apperr.Persistence("storage.read", err, "unable to read %s", s.path)
	}
	defer func() { _ = file.Close() }()

	var lines []line
	warnings := []ParseWarning{}
	reader := bufio.NewReader(file)
	lineNumber := 0
	for {
		data, readErr := reader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, nil, apperr.Persistence("storage.read", readErr, "unable to read %s", s.path)
		}
		if len(data) == 0 && readErr == io.EOF {
			break
		}
		lineNumber++
		data = bytes.TrimSuffix(bytes.TrimSuffix(data, []byte{'\n'}), []byte{'\r'})
		raw := string(data)
		if strings.TrimSpace(raw) != "" {
			lines = append(lines, s.parseLine(raw, lineNumber, &warnings))
		}
		if readErr == io.EOF {
			break
		}
	}
	return lines, warnings, nil
}

// parseLine decodes one line, recording a warning when it is malformed.
func (s *Store) parseLine(raw string, lineNumber int, warnings *[]ParseWarning) line {
	var e entry.Entry
	var err error
	if len(raw) > maxLineSize {
		err = fmt.Errorf("line is %d bytes, longer than the %d byte limit", len(raw), maxLineSize)
	} else {
		err = json.Unmarshal([]byte(raw), &e)
	}
	if err != nil {
		s.logger.Warn("Skipping malformed entry",
			"event", "entries_skip_invalid", "line_index", lineNumber, "error", err)
		*warnings = append(*warnings, ParseWarning{LineNumber: lineNumber, Content: raw, Error: err.Error()})
		return line{raw: raw}
	}
	return line{raw: raw, entry: &e}
}

func validateEntry(e entry.Entry) error {
	switch {
	case e.ID == "":
		return errors.New("entry id is required")
	case strings.TrimSpace(e.Task) == "":
		return errors.New("task cannot be empty")
	case !e.End.After(e.Start):
		return errors.New("entry end must be after start")
	case e.Minutes < 1:
		return errors.New("entry minutes must be at least 1")
	}
	return nil
}
