package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/logging"
)

// Helper to create a store backed by a temp file with the given content
func createTempStore(t *testing.T, content string) *Store {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test_entries.jsonl")
	if content != "" {
		if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create temp file: %v", err)
		}
	}
	s, err := Open(tmpFile, WithLogger(logging.Discard()), WithLockTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("Open() returned unexpected error: %v", err)
	}
	return s
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.Local)
}

func mkEntry(task string, start, end time.Time) entry.Entry {
	return entry.New(task, start, end, int(end.Sub(start)/time.Minute))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return data
}

const existingLine = `{"entry_id":"e0","task":"existing","segment_start":"2024-01-15T08:00:00","segment_end":"2024-01-15T09:00:00","minutes":60}` + "\n"

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", EntriesFile)
	if _, err := Open(path, WithLogger(logging.Discard())); err != nil {
		t.Fatalf("Open() returned unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Open() did not create %s: %v", path, err)
	}
}

func TestAppendBatch(t *testing.T) {
	s := createTempStore(t, existingLine)
	batch := []entry.Entry{
		mkEntry("review", at(15, 9, 0), at(15, 9, 30)),
		mkEntry("fix bug #123 \"critical\"", at(15, 9, 30), at(15, 10, 0)),
	}

	persisted, err := s.AppendBatch(batch)
	if err != nil {
		t.Fatalf("AppendBatch() returned unexpected error: %v", err)
	}
	if len(persisted) != 2 {
		t.Errorf("AppendBatch() returned %d entries, expected 2", len(persisted))
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All() returned unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("All() returned %d entries, expected 3", len(all))
	}
	if all[2].Task != "fix bug #123 \"critical\"" || all[2].ID != batch[1].ID {
		t.Errorf("last entry = %+v, expected %+v", all[2], batch[1])
	}
	if !all[1].Start.Equal(at(15, 9, 0)) || all[1].Minutes != 30 {
		t.Errorf("round-tripped entry = %+v", all[1])
	}

	if lines := strings.Count(string(readFile(t, s.Path())), "\n"); lines != 3 {
		t.Errorf("file has %d lines, expected 3", lines)
	}
}

func TestAppendBatch_Empty(t *testing.T) {
	s := createTempStore(t, existingLine)
	persisted, err := s.AppendBatch(nil)
	if err != nil || len(persisted) != 0 {
		t.Errorf("AppendBatch(nil) = %v, %v, expected empty and no error", persisted, err)
	}
}

func TestAppendBatch_ValidationBeforeWrite(t *testing.T) {
	tests := []struct {
		name  string
		entry entry.Entry
	}{
		{"empty task", mkEntry(" ", at(15, 9, 0), at(15, 9, 30))},
		{"inverted", entry.New("a", at(15, 10, 0), at(15, 9, 0), 10)},
		{"zero minutes", entry.New("a", at(15, 9, 0), at(15, 9, 30), 0)},
		{"missing id", entry.Entry{Task: "a", Start: at(15, 9, 0), End: at(15, 9, 30), Minutes: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTempStore(t, existingLine)
			good := mkEntry("ok", at(15, 11, 0), at(15, 11, 30))
			_, err := s.AppendBatch([]entry.Entry{good, tt.entry})
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("AppendBatch() error = %v, expected validation error", err)
			}
			if got := string(readFile(t, s.Path())); got != existingLine {
				t.Errorf("file changed after rejected batch: %q", got)
			}
		})
	}
}

// failingFile writes successfully failAfter times, then writes half of the
// next buffer and fails.
type failingFile struct {
	*os.File
	failAfter int
	writes    int
}

func (f *failingFile) Write(p []byte) (int, error) {
	if f.writes >= f.failAfter {
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errors.New("disk full")
	}
	f.writes++
	return f.File.Write(p)
}

func TestAppendBatch_RollsBackPartialWrite(t *testing.T) {
	s := createTempStore(t, existingLine)
	s.openForAppend = func(path string) (appendFile, error) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return nil, err
		}
		return &failingFile{File: f, failAfter: 1}, nil
	}
	before := readFile(t, s.Path())

	batch := []entry.Entry{
		mkEntry("one", at(15, 9, 0), at(15, 9, 30)),
		mkEntry("two", at(15, 9, 30), at(15, 10, 0)),
		mkEntry("three", at(15, 10, 0), at(15, 10, 30)),
	}
	_, err := s.AppendBatch(batch)
	if !apperr.Is(err, apperr.KindPersistence) {
		t.Fatalf("AppendBatch() error = %v, expected persistence error", err)
	}

	after := readFile(t, s.Path())
	if !bytes.Equal(before, after) {
		t.Errorf("file not restored after failed batch:\nbefore: %q\nafter:  %q", before, after)
	}
}

func TestAllWithWarnings_SkipsMalformedLines(t *testing.T) {
	content := existingLine +
		"{not json}\n" +
		"\n" +
		`{"entry_id":"e1","task":"","segment_start":"2024-01-15T09:00:00","segment_end":"2024-01-15T09:30:00","minutes":30}` + "\n" +
		`{"entry_id":"e2","task":"later","segment_start":"2024-01-15T10:00:00","segment_end":"2024-01-15T10:30:00","minutes":30}` + "\n"
	s := createTempStore(t, content)

	result, err := s.AllWithWarnings()
	if err != nil {
		t.Fatalf("AllWithWarnings() returned unexpected error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("got %d entries, expected 2", len(result.Entries))
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("got %d warnings, expected 2", len(result.Warnings))
	}
	if result.Warnings[0].LineNumber != 2 || result.Warnings[1].LineNumber != 4 {
		t.Errorf("warning line numbers = %d, %d, expected 2, 4",
			result.Warnings[0].LineNumber, result.Warnings[1].LineNumber)
	}
}

func TestAll_MissingFile(t *testing.T) {
	s := createTempStore(t, "")
	if err := os.Remove(s.Path()); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	all, err := s.All()
	if err != nil || len(all) != 0 {
		t.Errorf("All() on missing file = %v, %v, expected empty", all, err)
	}
}

func TestAllWithWarnings_OversizedLine(t *testing.T) {
	later := `{"entry_id":"e2","task":"later","segment_start":"2024-01-15T10:00:00","segment_end":"2024-01-15T10:30:00","minutes":30}` + "\n"
	junk := strings.Repeat("x", 2*maxLineSize)
	s := createTempStore(t, existingLine+junk+"\n"+later)

	result, err := s.AllWithWarnings()
	if err != nil {
		t.Fatalf("AllWithWarnings() returned unexpected error: %v", err)
	}
	if len(result.Entries) != 2 || result.Entries[0].Task != "existing" || result.Entries[1].Task != "later" {
		t.Errorf("got entries %+v, expected existing and later", result.Entries)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].LineNumber != 2 {
		t.Fatalf("got warnings %d, expected one for line 2", len(result.Warnings))
	}
	if !strings.Contains(result.Warnings[0].Error, "byte limit") {
		t.Errorf("warning error = %q, expected a size message", result.Warnings[0].Error)
	}

	// A rewrite keeps the oversized line verbatim.
	if _, err := s.RenameTask("later", "afterwards"); err != nil {
		t.Fatalf("RenameTask() returned unexpected error: %v", err)
	}
	if !strings.Contains(string(readFile(t, s.Path())), junk+"\n") {
		t.Error("oversized line lost by rewrite")
	}
}

func TestAppendBatch_TerminatesPartialLine(t *testing.T) {
	partial := `{"entry_id":"cut","task":"cut off`
	s := createTempStore(t, existingLine+partial)

	if _, err := s.AppendBatch([]entry.Entry{mkEntry("new", at(15, 9, 0), at(15, 9, 30))}); err != nil {
		t.Fatalf("AppendBatch() returned unexpected error: %v", err)
	}

	result, err := s.AllWithWarnings()
	if err != nil {
		t.Fatalf("AllWithWarnings() returned unexpected error: %v", err)
	}
	if len(result.Entries) != 2 || result.Entries[1].Task != "new" {
		t.Errorf("got entries %+v, expected existing and new", result.Entries)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Content != partial {
		t.Errorf("got warnings %+v, expected the partial line alone", result.Warnings)
	}
	if !strings.HasPrefix(string(readFile(t, s.Path())), existingLine+partial+"\n") {
		t.Error("partial line was not terminated before the new entry")
	}
}

func seedStore(t *testing.T, entries ...entry.Entry) *Store {
	t.Helper()
	s := createTempStore(t, "")
	if _, err := s.AppendBatch(entries); err != nil {
		t.Fatalf("AppendBatch() returned unexpected error: %v", err)
	}
	return s
}

func TestOverlapping(t *testing.T) {
	s := seedStore(t,
		mkEntry("before", at(15, 8, 0), at(15, 9, 0)),
		mkEntry("inside", at(15, 9, 10), at(15, 9, 20)),
		mkEntry("straddle", at(15, 9, 50), at(15, 10, 30)),
		mkEntry("after", at(15, 10, 30), at(15, 11, 0)),
	)

	got, err := s.Overlapping(at(15, 9, 0), at(15, 10, 0))
	if err != nil {
		t.Fatalf("Overlapping() returned unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Task != "inside" || got[1].Task != "straddle" {
		t.Errorf("Overlapping() = %v, expected inside and straddle", got)
	}

	got, err = s.Overlapping(at(15, 10, 0), at(15, 9, 0))
	if err != nil || len(got) != 0 {
		t.Errorf("Overlapping() with inverted range = %v, %v, expected empty", got, err)
	}
}

func TestInRange(t *testing.T) {
	s := seedStore(t,
		mkEntry("b", at(15, 10, 0), at(15, 11, 0)),
		mkEntry("a", at(15, 9, 0), at(15, 10, 0)),
		mkEntry("next day", at(16, 9, 0), at(16, 10, 0)),
	)
	got, err := s.InRange(at(15, 0, 0), at(16, 0, 0))
	if err != nil {
		t.Fatalf("InRange() returned unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Task != "a" || got[1].Task != "b" {
		t.Errorf("InRange() = %v, expected a, b", got)
	}
}

func TestLast(t *testing.T) {
	s := createTempStore(t, "")
	if _, ok, err := s.Last(); ok || err != nil {
		t.Errorf("Last() on empty store = ok %v, err %v", ok, err)
	}

	s = seedStore(t,
		mkEntry("late end", at(15, 9, 0), at(15, 11, 0)),
		mkEntry("same end later start", at(15, 10, 0), at(15, 11, 0)),
		mkEntry("early", at(15, 8, 0), at(15, 9, 0)),
	)
	last, ok, err := s.Last()
	if err != nil || !ok {
		t.Fatalf("Last() = ok %v, err %v", ok, err)
	}
	if last.Task != "same end later start" {
		t.Errorf("Last() = %q, expected %q", last.Task, "same end later start")
	}
}

func TestTaskCounts(t *testing.T) {
	s := seedStore(t,
		mkEntry("beta", at(15, 8, 0), at(15, 9, 0)),
		mkEntry("Alpha", at(15, 9, 0), at(15, 10, 0)),
		mkEntry("gamma", at(15, 10, 0), at(15, 11, 0)),
		mkEntry("gamma", at(15, 11, 0), at(15, 12, 0)),
	)
	counts, err := s.TaskCounts()
	if err != nil {
		t.Fatalf("TaskCounts() returned unexpected error: %v", err)
	}
	expected := []TaskCount{{"gamma", 2}, {"Alpha", 1}, {"beta", 1}}
	if len(counts) != len(expected) {
		t.Fatalf("TaskCounts() = %v, expected %v", counts, expected)
	}
	for i := range expected {
		if counts[i] != expected[i] {
			t.Errorf("counts[%d] = %v, expected %v", i, counts[i], expected[i])
		}
	}
}

func TestRenameTask(t *testing.T) {
	s := seedStore(t,
		mkEntry("old", at(15, 8, 0), at(15, 9, 0)),
		mkEntry("other", at(15, 9, 0), at(15, 10, 0)),
		mkEntry("old", at(15, 10, 0), at(15, 11, 0)),
	)
	// A malformed line must survive the rewrite.
	f, _ := os.OpenFile(s.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	_, _ = f.WriteString("garbage\n")
	_ = f.Close()

	n, err := s.RenameTask(" old ", "new")
	if err != nil {
		t.Fatalf("RenameTask() returned unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("RenameTask() = %d, expected 2", n)
	}

	result, _ := s.AllWithWarnings()
	for _, e := range result.Entries {
		if e.Task == "old" {
			t.Errorf("entry %s still has old task", e.ID)
		}
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Content != "garbage" {
		t.Errorf("malformed line not preserved: %+v", result.Warnings)
	}
}

func TestRenameTask_NoOpAndValidation(t *testing.T) {
	s := seedStore(t, mkEntry("old", at(15, 8, 0), at(15, 9, 0)))
	before := readFile(t, s.Path())

	if n, err := s.RenameTask("missing", "new"); n != 0 || err != nil {
		t.Errorf("RenameTask() unmatched = %d, %v, expected 0, nil", n, err)
	}
	if n, err := s.RenameTask("old", "old"); n != 0 || err != nil {
		t.Errorf("RenameTask() same name = %d, %v, expected 0, nil", n, err)
	}
	if _, err := s.RenameTask("", "new"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("RenameTask() empty old error = %v, expected validation", err)
	}
	if _, err := s.RenameTask("old", "  "); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("RenameTask() empty new error = %v, expected validation", err)
	}
	if !bytes.Equal(before, readFile(t, s.Path())) {
		t.Error("file changed by no-op rename")
	}
}

func TestAssignCategory(t *testing.T) {
	s := seedStore(t,
		mkEntry("standup", at(15, 8, 0), at(15, 8, 15)),
		mkEntry("code", at(15, 8, 15), at(15, 9, 0)),
		mkEntry("standup", at(16, 8, 0), at(16, 8, 15)),
	)
	n, err := s.AssignCategory("standup", "meetings")
	if err != nil || n != 2 {
		t.Fatalf("AssignCategory() = %d, %v, expected 2, nil", n, err)
	}
	all, _ := s.All()
	for _, e := range all {
		if (e.Task == "standup") != (e.Category == "meetings") {
			t.Errorf("entry %q has category %q", e.Task, e.Category)
		}
	}

	if n, err := s.AssignCategory("standup", ""); err != nil || n != 2 {
		t.Errorf("clearing category = %d, %v, expected 2, nil", n, err)
	}
}

func TestReplaceAll(t *testing.T) {
	s := seedStore(t, mkEntry("to be replaced", at(15, 8, 0), at(15, 9, 0)))
	replacement := []entry.Entry{
		mkEntry("zeta", at(15, 10, 0), at(15, 11, 0)),
		mkEntry("Beta", at(15, 9, 0), at(15, 10, 0)),
		mkEntry("alpha", at(15, 9, 0), at(15, 10, 0)),
	}

	if err := s.ReplaceAll(replacement); err != nil {
		t.Fatalf("ReplaceAll() returned unexpected error: %v", err)
	}
	all, _ := s.All()
	var tasks []string
	for _, e := range all {
		tasks = append(tasks, e.Task)
	}
	if strings.Join(tasks, ",") != "alpha,Beta,zeta" {
		t.Errorf("ReplaceAll() order = %v, expected alpha,Beta,zeta", tasks)
	}

	if err := s.ReplaceAll(nil); err != nil {
		t.Fatalf("ReplaceAll(nil) returned unexpected error: %v", err)
	}
	if data := readFile(t, s.Path()); len(data) != 0 {
		t.Errorf("ReplaceAll(nil) left %q", data)
	}
}

func TestValidate(t *testing.T) {
	s := createTempStore(t, existingLine+"oops\n"+existingLine)
	health, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
	if health.TotalLines != 3 || health.ValidEntries != 2 || health.CorruptedEntries != 1 {
		t.Errorf("Validate() = %+v", health)
	}
}

func TestLockTimeout(t *testing.T) {
	s := createTempStore(t, existingLine)

	holder := flock.New(s.Path() + LockSuffix)
	if err := holder.Lock(); err != nil {
		t.Fatalf("failed to take lock: %v", err)
	}
	defer func() { _ = holder.Unlock() }()

	if _, err := s.All(); !apperr.Is(err, apperr.KindPersistence) {
		t.Errorf("All() under foreign exclusive lock error = %v, expected persistence", err)
	}
	_, err := s.AppendBatch([]entry.Entry{mkEntry("x", at(15, 9, 0), at(15, 9, 30))})
	if !apperr.Is(err, apperr.KindPersistence) {
		t.Errorf("AppendBatch() under foreign lock error = %v, expected persistence", err)
	}
	if got := string(readFile(t, s.Path())); got != existingLine {
		t.Errorf("file changed while locked: %q", got)
	}
}
