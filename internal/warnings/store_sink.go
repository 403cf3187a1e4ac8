package warnings

import (
	"context"
	"fmt"

	"limitd/internal/models"
	"limitd/internal/storage"
)

// StoreSink persists warnings into the local storage backend.
type StoreSink struct {
	store storage.Storage
}

// NewStoreSink creates a storage-backed warning sink.
func NewStoreSink(store storage.Storage) *StoreSink {
	return &StoreSink{store: store}
}

// Deliver implements Sink.
func (s *StoreSink) Deliver(ctx context.Context, w models.Warning) error {
	if err := s.store.InsertWarning(ctx, &w); err != nil {
		return fmt.Errorf("insert warning: %w", err)
	}
	return nil
}
