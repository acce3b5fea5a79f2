package service

import (
	"log/slog"

	"github.com/xolan/wogger/internal/importer"
	"github.com/xolan/wogger/internal/reconciler"
	"github.com/xolan/wogger/internal/storage"
)

// ImportResult reports what an import did.
type ImportResult struct {
	importer.MergeResult
	Parsed int // entries read from the file
}

// ImportService merges exported entries from other tools into the store.
type ImportService struct {
	store      *storage.Store
	reconciler *reconciler.Reconciler
	logger     *slog.Logger
}

// NewImportService creates a new ImportService
func NewImportService(store *storage.Store, rec *reconciler.Reconciler, logger *slog.Logger) *ImportService {
	return &ImportService{store: store, reconciler: rec, logger: logger}
}

// Preview parses path and computes the merge without writing anything.
func (s *ImportService) Preview(path string, preferImported bool) (ImportResult, error) {
	imported, err := importer.ParseFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	existing, err := s.store.All()
	if err != nil {
		return ImportResult{}, err
	}
	return ImportResult{
		MergeResult: importer.Merge(existing, imported, preferImported),
		Parsed:      len(imported),
	}, nil
}

// Import parses path, merges it with the stored entries and replaces the
// store with the result. The previous file is backed up first.
func (s *ImportService) Import(path string, preferImported bool) (ImportResult, error) {
	result, err := s.Preview(path, preferImported)
	if err != nil {
		return ImportResult{}, err
	}
	if err := s.store.CreateBackup(); err != nil {
		return ImportResult{}, err
	}
	if err := s.store.ReplaceAll(result.Merged); err != nil {
		return ImportResult{}, err
	}

	s.logger.Info("Entries imported",
		"event", "entries_imported", "path", path, "prefer_imported", preferImported,
		"parsed", result.Parsed, "applied", len(result.Applied),
		"discarded", result.DiscardedImportCount, "trimmed", result.ExistingEntriesTrimmed)
	s.reconciler.NotifyEntriesReplaced()
	return result, nil
}
