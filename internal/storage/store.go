package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/osutil"
)

const (
	// EntriesFile is the name of the JSON Lines storage file
	EntriesFile = "entries.jsonl"
	// LockSuffix is appended to the storage path to name its lock file
	LockSuffix = ".lock"
	// DefaultLockTimeout bounds how long an operation waits for the file lock
	DefaultLockTimeout = 10 * time.Second

	lockRetryDelay = 25 * time.Millisecond
)

// appendFile is the subset of *os.File used by AppendBatch.
type appendFile interface {
	io.Writer
	io.ReaderAt
	io.Seeker
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Store is the durable, lock-protected entry log. Reads take a shared lock
// and writes an exclusive one, both on a sidecar lock file, so other
// processes using the same file are excluded too.
type Store struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	logger      *slog.Logger

	// mu orders goroutines of this process; the file lock orders processes.
	mu sync.RWMutex

	openForAppend func(path string) (appendFile, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets the maximum wait for the file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// GetStoragePath returns the entries file path inside dataDir, or inside
// the app directory when dataDir is empty. The directory is created.
func GetStoragePath(dataDir string) (string, error) {
	return osutil.AppFile(dataDir, EntriesFile)
}

// Open returns a Store for path, creating the file and its directory if
// they do not exist.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:          path,
		lockPath:      path + LockSuffix,
		lockTimeout:   DefaultLockTimeout,
		logger:        slog.Default(),
		openForAppend: openForAppend,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperr.Persistence("storage.open", err, "unable to create directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, apperr.Persistence("storage.open", err, "unable to create %s", path)
	}
	_ = f.Close()
	s.logger.Debug("Entries file ready", "event", "entries_file_init", "path", path)
	return s, nil
}

// Path returns the entries file path.
func (s *Store) Path() string { return s.path }

func openForAppend(path string) (appendFile, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
}

// withLock runs fn while holding the process mutex and the file lock.
// Failing to get the file lock within the timeout is a persistence error.
func (s *Store) withLock(op string, exclusive bool, fn func() error) error {
	if exclusive {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()

	fl := flock.New(s.lockPath)
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !locked {
		s.logger.Error("Unable to lock entries file",
			"event", "entries_lock_failed", "op", op, "exclusive", exclusive, "error", err)
		return apperr.Persistence(op, err, "unable to lock %s within %s", s.path, s.lockTimeout)
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}
