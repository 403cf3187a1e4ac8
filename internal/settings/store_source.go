package settings

import (
	"context"
	"fmt"

	"limitd/internal/models"
	"limitd/internal/storage"
)

// StoreSource reads platform settings from the local storage backend. Used
// when this process both serves the admin API and enforces the limits, so no
// network hop is needed.
type StoreSource struct {
	store storage.Storage
}

// NewStoreSource creates a storage-backed settings source.
func NewStoreSource(store storage.Storage) *StoreSource {
	return &StoreSource{store: store}
}

// Fetch implements Source.
func (s *StoreSource) Fetch(ctx context.Context) (*models.PlatformSettings, error) {
	ps, err := s.store.PlatformSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings from store: %w", err)
	}
	return ps, nil
}
