package storage

import (
	"context"
	"time"

	"limitd/internal/models"
)

// Storage defines the interface for limit configuration and warning record
// persistence. It provides a clean abstraction that can be implemented by
// different backends such as in-memory maps, JSON files, or databases.
type Storage interface {
	// RouteLimits returns the limit configuration for every route category
	// that has one.
	RouteLimits(ctx context.Context) ([]models.RouteLimit, error)

	// GetRouteLimit retrieves the configuration for one route category.
	// Returns ErrNotFound when the category has no stored configuration.
	GetRouteLimit(ctx context.Context, routeType models.RouteType) (*models.RouteLimit, error)

	// SaveRouteLimit stores or updates one route category's configuration.
	SaveRouteLimit(ctx context.Context, limit *models.RouteLimit) error

	// DeleteRouteLimit removes a route category's configuration.
	// Returns ErrNotFound when none exists.
	DeleteRouteLimit(ctx context.Context, routeType models.RouteType) error

	// PlatformSettings returns the global flag together with all stored
	// route limits in wire form.
	PlatformSettings(ctx context.Context) (*models.PlatformSettings, error)

	// SavePlatformSettings replaces the global flag and all route limits.
	SavePlatformSettings(ctx context.Context, settings *models.PlatformSettings) error

	// InsertWarning appends a warning record.
	InsertWarning(ctx context.Context, warning *models.Warning) error

	// Warnings returns the most recent warning records, newest first,
	// capped at limit (0 means a backend-chosen default).
	Warnings(ctx context.Context, limit int) ([]*models.Warning, error)

	// DeleteWarningsBefore removes warning records created before the
	// cutoff and reports how many were removed.
	DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies the storage backend is reachable and operational.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources.
	Close() error
}

// Config holds configuration for storage backends.
type Config struct {
	// Type specifies the storage backend type (memory, json, postgres, sqlite).
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends.
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`
}

// defaultWarningsLimit caps Warnings listings when the caller passes 0.
const defaultWarningsLimit = 100
