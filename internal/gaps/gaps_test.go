package gaps

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/logging"
	"github.com/xolan/wogger/internal/timerange"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.June, 3, hour, minute, 0, 0, time.Local)
}

func mk(h1, m1, h2, m2 int) entry.Entry {
	return entry.FromRange("task", "", timerange.MustNew(at(h1, m1), at(h2, m2)))
}

func TestDetect(t *testing.T) {
	entries := []entry.Entry{
		mk(13, 0, 14, 0),
		mk(9, 0, 10, 0),
		mk(10, 15, 11, 30), // 15 minute gap before
		mk(10, 30, 11, 0),  // nested inside the previous entry
		mk(11, 45, 12, 0),  // 15 minute gap measured from 11:30
	}

	tests := []struct {
		name      string
		threshold int
		expected  []Gap
	}{
		{"disabled", 0, []Gap{}},
		{"short only", 20, []Gap{{at(10, 0), at(10, 15)}, {at(11, 30), at(11, 45)}}},
		{"includes hour gap", 60, []Gap{{at(10, 0), at(10, 15)}, {at(11, 30), at(11, 45)}, {at(12, 0), at(13, 0)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(entries, tt.threshold, nil)
			if len(got) != len(tt.expected) {
				t.Fatalf("Detect() = %v, expected %v", got, tt.expected)
			}
			for i := range got {
				if !got[i].Start.Equal(tt.expected[i].Start) || !got[i].End.Equal(tt.expected[i].End) {
					t.Errorf("gap[%d] = %v, expected %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestDetect_SkipsIgnored(t *testing.T) {
	entries := []entry.Entry{mk(9, 0, 10, 0), mk(10, 15, 11, 0), mk(11, 5, 12, 0)}
	ignored := map[Key]bool{Gap{at(10, 0), at(10, 15)}.Key(): true}

	got := Detect(entries, 30, ignored)
	if len(got) != 1 || !got[0].Start.Equal(at(11, 0)) || got[0].Minutes() != 5 {
		t.Errorf("Detect() = %v, expected only 11:00-11:05", got)
	}
}

func TestIgnoreStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", IgnoredFile)
	store, err := NewIgnoreStore(path, logging.Discard())
	if err != nil {
		t.Fatalf("NewIgnoreStore() returned unexpected error: %v", err)
	}

	ignored, err := store.Ignored()
	if err != nil || len(ignored) != 0 {
		t.Fatalf("Ignored() on new store = %v, %v", ignored, err)
	}

	g := Gap{Start: at(10, 0), End: at(10, 15)}
	for i := 0; i < 2; i++ {
		if err := store.Dismiss(g); err != nil {
			t.Fatalf("Dismiss() returned unexpected error: %v", err)
		}
	}
	ignored, _ = store.Ignored()
	if len(ignored) != 1 || !ignored[g.Key()] {
		t.Errorf("Ignored() = %v, expected only %v", ignored, g.Key())
	}

	// A second store on the same file sees the dismissal.
	reopened, _ := NewIgnoreStore(path, logging.Discard())
	if ignored, _ := reopened.Ignored(); !ignored[g.Key()] {
		t.Error("dismissal not persisted")
	}
}

func TestIgnoreStore_ResetsCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), IgnoredFile)
	if err := os.WriteFile(path, []byte("{not a list"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	store, err := NewIgnoreStore(path, logging.Discard())
	if err != nil {
		t.Fatalf("NewIgnoreStore() returned unexpected error: %v", err)
	}

	ignored, err := store.Ignored()
	if err != nil || len(ignored) != 0 {
		t.Fatalf("Ignored() = %v, %v, expected empty", ignored, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]" {
		t.Errorf("corrupted file content after reset = %q, expected []", data)
	}
}
