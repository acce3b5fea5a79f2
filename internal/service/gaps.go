package service

import (
	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/gaps"
	"github.com/xolan/wogger/internal/reconciler"
	"github.com/xolan/wogger/internal/storage"
)

// GapService reports short unlogged gaps between entries.
type GapService struct {
	store      *storage.Store
	reconciler *reconciler.Reconciler
	ignore     *gaps.IgnoreStore
	config     *ConfigService
}

// NewGapService creates a new GapService
func NewGapService(store *storage.Store, rec *reconciler.Reconciler, ignore *gaps.IgnoreStore, cfg *ConfigService) *GapService {
	return &GapService{store: store, reconciler: rec, ignore: ignore, config: cfg}
}

// List returns the gaps not yet ignored, up to the configured threshold.
func (s *GapService) List() ([]gaps.Gap, error) {
	entries, err := s.store.All()
	if err != nil {
		return nil, err
	}
	ignored, err := s.ignore.Ignored()
	if err != nil {
		return nil, err
	}
	return gaps.Detect(entries, s.config.Get().GapThresholdMinutes, ignored), nil
}

// Ignore hides g from future listings.
func (s *GapService) Ignore(g gaps.Gap) error {
	return s.ignore.Dismiss(g)
}

// Fill logs task over the whole of g.
func (s *GapService) Fill(g gaps.Gap, task string) (entry.Entry, error) {
	return s.reconciler.ManualEntry(task, g.Start, g.End)
}
