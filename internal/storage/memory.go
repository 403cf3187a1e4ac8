package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"limitd/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data
// structures. Ideal for development and testing; data is lost on restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	enabled  bool
	updated  time.Time
	limits   map[models.RouteType]models.RouteLimit
	warnings []*models.Warning
}

// NewMemoryStorage creates a new memory-based storage instance.
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		enabled: true,
		limits:  make(map[models.RouteType]models.RouteLimit),
	}, nil
}

// RouteLimits returns all stored route limits in category order.
func (m *MemoryStorage) RouteLimits(ctx context.Context) ([]models.RouteLimit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RouteLimit, 0, len(m.limits))
	for _, rt := range models.RouteTypes {
		if rl, ok := m.limits[rt]; ok {
			out = append(out, rl)
		}
	}
	return out, nil
}

// GetRouteLimit retrieves the configuration for one route category.
func (m *MemoryStorage) GetRouteLimit(ctx context.Context, routeType models.RouteType) (*models.RouteLimit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rl, ok := m.limits[routeType]
	if !ok {
		return nil, ErrNotFound
	}
	c := rl
	return &c, nil
}

// SaveRouteLimit stores or updates one route category's configuration.
func (m *MemoryStorage) SaveRouteLimit(ctx context.Context, limit *models.RouteLimit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.limits[limit.RouteType] = *limit
	m.updated = time.Now().UTC()
	return nil
}

// DeleteRouteLimit removes a route category's configuration.
func (m *MemoryStorage) DeleteRouteLimit(ctx context.Context, routeType models.RouteType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.limits[routeType]; !ok {
		return ErrNotFound
	}
	delete(m.limits, routeType)
	m.updated = time.Now().UTC()
	return nil
}

// PlatformSettings returns the stored settings in wire form.
func (m *MemoryStorage) PlatformSettings(ctx context.Context) (*models.PlatformSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ps := &models.PlatformSettings{
		RateLimitingEnabled: m.enabled,
		UpdatedAt:           m.updated,
	}
	for _, rt := range models.RouteTypes {
		if rl, ok := m.limits[rt]; ok {
			ps.RateLimitConfigurations = append(ps.RateLimitConfigurations, rl)
		}
	}
	return ps, nil
}

// SavePlatformSettings replaces the flag and all route limits.
func (m *MemoryStorage) SavePlatformSettings(ctx context.Context, settings *models.PlatformSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = settings.RateLimitingEnabled
	m.limits = make(map[models.RouteType]models.RouteLimit, len(settings.RateLimitConfigurations))
	for _, rl := range settings.RateLimitConfigurations {
		m.limits[rl.RouteType] = rl
	}
	m.updated = time.Now().UTC()
	return nil
}

// InsertWarning appends a warning record.
func (m *MemoryStorage) InsertWarning(ctx context.Context, warning *models.Warning) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *warning
	if c.ID == "" {
		c.ID = models.NewWarningID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.warnings = append(m.warnings, &c)
	return nil
}

// Warnings returns the most recent warning records, newest first.
func (m *MemoryStorage) Warnings(ctx context.Context, limit int) ([]*models.Warning, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = defaultWarningsLimit
	}

	out := make([]*models.Warning, len(m.warnings))
	for i, w := range m.warnings {
		c := *w
		out[i] = &c
	}
	sort.Slice(out, func(i, j int) bool {
		return out[j].CreatedAt.Before(out[i].CreatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteWarningsBefore removes warning records older than the cutoff.
func (m *MemoryStorage) DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.warnings[:0]
	var deleted int64
	for _, w := range m.warnings {
		if w.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, w)
	}
	m.warnings = kept
	return deleted, nil
}

// Ping verifies the storage backend is reachable and operational.
func (m *MemoryStorage) Ping(_ context.Context) error {
	return nil
}

// Close clears all data.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.limits = make(map[models.RouteType]models.RouteLimit)
	m.warnings = nil
	return nil
}
