package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"limitd/internal/models"
)

// jsonData is the on-disk document for JSONStorage.
type jsonData struct {
	RateLimitingEnabled bool                `json:"rate_limiting_enabled"`
	UpdatedAt           time.Time           `json:"updated_at"`
	RouteLimits         []models.RouteLimit `json:"route_limits"`
	Warnings            []*models.Warning   `json:"warnings"`
}

// JSONStorage implements the Storage interface using a single JSON file.
// Suitable for small deployments without a database. All mutations rewrite
// the file atomically (write to temp file, then rename).
type JSONStorage struct {
	mu   sync.RWMutex
	path string
	data jsonData
}

// NewJSONStorage creates a JSON file storage instance, loading existing data
// when the file is present.
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required for JSON storage")
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	js := &JSONStorage{
		path: config.Path,
		data: jsonData{RateLimitingEnabled: true},
	}

	raw, err := os.ReadFile(config.Path)
	switch {
	case os.IsNotExist(err):
		// Fresh file on first persist.
	case err != nil:
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	default:
		if err := json.Unmarshal(raw, &js.data); err != nil {
			return nil, fmt.Errorf("failed to parse storage file: %w", err)
		}
	}

	return js, nil
}

// persist writes the document to disk. Callers must hold mu for writing.
func (js *JSONStorage) persist() error {
	raw, err := json.MarshalIndent(js.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage data: %w", err)
	}

	tmp := js.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := os.Rename(tmp, js.path); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}

// RouteLimits returns all stored route limits.
func (js *JSONStorage) RouteLimits(ctx context.Context) ([]models.RouteLimit, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	out := make([]models.RouteLimit, len(js.data.RouteLimits))
	copy(out, js.data.RouteLimits)
	return out, nil
}

// GetRouteLimit retrieves the configuration for one route category.
func (js *JSONStorage) GetRouteLimit(ctx context.Context, routeType models.RouteType) (*models.RouteLimit, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	for _, rl := range js.data.RouteLimits {
		if rl.RouteType == routeType {
			c := rl
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// SaveRouteLimit stores or updates one route category's configuration.
func (js *JSONStorage) SaveRouteLimit(ctx context.Context, limit *models.RouteLimit) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	replaced := false
	for i, rl := range js.data.RouteLimits {
		if rl.RouteType == limit.RouteType {
			js.data.RouteLimits[i] = *limit
			replaced = true
			break
		}
	}
	if !replaced {
		js.data.RouteLimits = append(js.data.RouteLimits, *limit)
	}
	js.data.UpdatedAt = time.Now().UTC()
	return js.persist()
}

// DeleteRouteLimit removes a route category's configuration.
func (js *JSONStorage) DeleteRouteLimit(ctx context.Context, routeType models.RouteType) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	for i, rl := range js.data.RouteLimits {
		if rl.RouteType == routeType {
			js.data.RouteLimits = append(js.data.RouteLimits[:i], js.data.RouteLimits[i+1:]...)
			js.data.UpdatedAt = time.Now().UTC()
			return js.persist()
		}
	}
	return ErrNotFound
}

// PlatformSettings returns the stored settings in wire form.
func (js *JSONStorage) PlatformSettings(ctx context.Context) (*models.PlatformSettings, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	ps := &models.PlatformSettings{
		RateLimitingEnabled: js.data.RateLimitingEnabled,
		UpdatedAt:           js.data.UpdatedAt,
	}
	ps.RateLimitConfigurations = make([]models.RouteLimit, len(js.data.RouteLimits))
	copy(ps.RateLimitConfigurations, js.data.RouteLimits)
	return ps, nil
}

// SavePlatformSettings replaces the flag and all route limits.
func (js *JSONStorage) SavePlatformSettings(ctx context.Context, settings *models.PlatformSettings) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	js.data.RateLimitingEnabled = settings.RateLimitingEnabled
	js.data.RouteLimits = make([]models.RouteLimit, len(settings.RateLimitConfigurations))
	copy(js.data.RouteLimits, settings.RateLimitConfigurations)
	js.data.UpdatedAt = time.Now().UTC()
	return js.persist()
}

// InsertWarning appends a warning record.
func (js *JSONStorage) InsertWarning(ctx context.Context, warning *models.Warning) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	c := *warning
	if c.ID == "" {
		c.ID = models.NewWarningID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	js.data.Warnings = append(js.data.Warnings, &c)
	return js.persist()
}

// Warnings returns the most recent warning records, newest first.
func (js *JSONStorage) Warnings(ctx context.Context, limit int) ([]*models.Warning, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	if limit <= 0 {
		limit = defaultWarningsLimit
	}

	out := make([]*models.Warning, len(js.data.Warnings))
	for i, w := range js.data.Warnings {
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
func (js *JSONStorage) DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	kept := js.data.Warnings[:0]
	var deleted int64
	for _, w := range js.data.Warnings {
		if w.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, w)
	}
	js.data.Warnings = kept
	if deleted > 0 {
		if err := js.persist(); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// Ping verifies the storage file's directory is still writable.
func (js *JSONStorage) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(js.path))
	return err
}

// Close persists any in-memory state.
func (js *JSONStorage) Close() error {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.persist()
}
