package gaps

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/osutil"
)

// IgnoredFile is the name of the file holding dismissed gaps.
const IgnoredFile = "ignored_gaps.json"

// GetIgnoredPath returns the ignored gaps file inside dataDir, or inside the
// app directory when dataDir is empty.
func GetIgnoredPath(dataDir string) (string, error) {
	return osutil.AppFile(dataDir, IgnoredFile)
}

// IgnoreStore persists dismissed gaps as a JSON array of {start, end}.
type IgnoreStore struct {
	path   string
	logger *slog.Logger
}

// NewIgnoreStore returns a store at path, creating an empty list if the
// file does not exist.
func NewIgnoreStore(path string, logger *slog.Logger) (*IgnoreStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IgnoreStore{path: path, logger: logger}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperr.Persistence("gaps.open", err, "unable to create directory for %s", path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write([]Key{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Ignored returns the dismissed gap keys. A corrupted file is reset to an
// empty list.
func (s *IgnoreStore) Ignored() (map[Key]bool, error) {
	keys, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[Key]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}

// Dismiss records g as ignored. Dismissing the same gap twice is a no-op.
func (s *IgnoreStore) Dismiss(g Gap) error {
	keys, err := s.load()
	if err != nil {
		return err
	}
	k := g.Key()
	for _, existing := range keys {
		if existing == k {
			return nil
		}
	}
	s.logger.Info("Gap dismissed", "event", "gap_dismissed", "start", k.Start, "end", k.End)
	return s.write(append(keys, k))
}

func (s *IgnoreStore) load() ([]Key, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Key{}, nil
		}
		return nil, apperr.Persistence("gaps.load", err, "unable to read %s", s.path)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("Ignored gaps file is corrupted; resetting",
			"event", "gaps_file_reset", "path", s.path, "error", err)
		return []Key{}, s.write([]Key{})
	}
	keys := make([]Key, 0, len(raw))
	for _, item := range raw {
		var k Key
		if json.Unmarshal(item, &k) != nil || k.Start == "" || k.End == "" {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *IgnoreStore) write(keys []Key) error {
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return apperr.Persistence("gaps.write", err, "unable to encode ignored gaps")
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return apperr.Persistence("gaps.write", err, "unable to write %s", s.path)
	}
	return nil
}
