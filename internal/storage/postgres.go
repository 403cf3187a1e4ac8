package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"limitd/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS platform_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	rate_limiting_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS route_limits (
	route_type TEXT PRIMARY KEY,
	max_requests INTEGER NOT NULL,
	window_minutes INTEGER NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS rate_limit_warnings (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	pathname TEXT NOT NULL,
	request_count INTEGER NOT NULL,
	max_requests INTEGER NOT NULL,
	window_seconds INTEGER NOT NULL,
	ip_address TEXT NOT NULL,
	user_agent TEXT NOT NULL,
	blocked BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_warnings_created_at ON rate_limit_warnings (created_at);
`

// PostgresStorage implements the Storage interface using PostgreSQL via a
// pgx connection pool. The schema is created on first connect.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	pool, err := pgxpool.New(context.Background(), config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// RouteLimits returns all stored route limits.
func (ps *PostgresStorage) RouteLimits(ctx context.Context) ([]models.RouteLimit, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT route_type, max_requests, window_minutes, enabled FROM route_limits ORDER BY route_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query route limits: %w", err)
	}
	defer rows.Close()

	var out []models.RouteLimit
	for rows.Next() {
		var rl models.RouteLimit
		if err := rows.Scan(&rl.RouteType, &rl.MaxRequests, &rl.WindowMinutes, &rl.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan route limit: %w", err)
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}

// GetRouteLimit retrieves the configuration for one route category.
func (ps *PostgresStorage) GetRouteLimit(ctx context.Context, routeType models.RouteType) (*models.RouteLimit, error) {
	var rl models.RouteLimit
	err := ps.pool.QueryRow(ctx,
		`SELECT route_type, max_requests, window_minutes, enabled FROM route_limits WHERE route_type = $1`,
		string(routeType)).Scan(&rl.RouteType, &rl.MaxRequests, &rl.WindowMinutes, &rl.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route limit: %w", err)
	}
	return &rl, nil
}

// SaveRouteLimit stores or updates one route category's configuration.
func (ps *PostgresStorage) SaveRouteLimit(ctx context.Context, limit *models.RouteLimit) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO route_limits (route_type, max_requests, window_minutes, enabled)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (route_type) DO UPDATE SET
		   max_requests = EXCLUDED.max_requests,
		   window_minutes = EXCLUDED.window_minutes,
		   enabled = EXCLUDED.enabled`,
		string(limit.RouteType), limit.MaxRequests, limit.WindowMinutes, limit.Enabled)
	if err != nil {
		return fmt.Errorf("failed to save route limit: %w", err)
	}
	return ps.touchSettings(ctx)
}

// DeleteRouteLimit removes a route category's configuration.
func (ps *PostgresStorage) DeleteRouteLimit(ctx context.Context, routeType models.RouteType) error {
	tag, err := ps.pool.Exec(ctx,
		`DELETE FROM route_limits WHERE route_type = $1`, string(routeType))
	if err != nil {
		return fmt.Errorf("failed to delete route limit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return ps.touchSettings(ctx)
}

// PlatformSettings returns the flag row plus all route limits in wire form.
func (ps *PostgresStorage) PlatformSettings(ctx context.Context) (*models.PlatformSettings, error) {
	settings := &models.PlatformSettings{RateLimitingEnabled: true}

	var enabled bool
	var updated *time.Time
	err := ps.pool.QueryRow(ctx,
		`SELECT rate_limiting_enabled, updated_at FROM platform_settings WHERE id = 1`).
		Scan(&enabled, &updated)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// No row yet; defaults stand.
	case err != nil:
		return nil, fmt.Errorf("failed to get platform settings: %w", err)
	default:
		settings.RateLimitingEnabled = enabled
		if updated != nil {
			settings.UpdatedAt = *updated
		}
	}

	limits, err := ps.RouteLimits(ctx)
	if err != nil {
		return nil, err
	}
	settings.RateLimitConfigurations = limits
	return settings, nil
}

// SavePlatformSettings replaces the flag and all route limits in one
// transaction.
func (ps *PostgresStorage) SavePlatformSettings(ctx context.Context, settings *models.PlatformSettings) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO platform_settings (id, rate_limiting_enabled, updated_at)
		 VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET
		   rate_limiting_enabled = EXCLUDED.rate_limiting_enabled,
		   updated_at = EXCLUDED.updated_at`,
		settings.RateLimitingEnabled, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save settings flag: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM route_limits`); err != nil {
		return fmt.Errorf("failed to clear route limits: %w", err)
	}

	for _, rl := range settings.RateLimitConfigurations {
		if _, err := tx.Exec(ctx,
			`INSERT INTO route_limits (route_type, max_requests, window_minutes, enabled)
			 VALUES ($1, $2, $3, $4)`,
			string(rl.RouteType), rl.MaxRequests, rl.WindowMinutes, rl.Enabled); err != nil {
			return fmt.Errorf("failed to insert route limit %s: %w", rl.RouteType, err)
		}
	}

	return tx.Commit(ctx)
}

// InsertWarning appends a warning record.
func (ps *PostgresStorage) InsertWarning(ctx context.Context, warning *models.Warning) error {
	id := warning.ID
	if id == "" {
		id = models.NewWarningID()
	}
	created := warning.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := ps.pool.Exec(ctx,
		`INSERT INTO rate_limit_warnings
		 (id, client_id, pathname, request_count, max_requests, window_seconds, ip_address, user_agent, blocked, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, warning.ClientID, warning.Pathname, warning.RequestCount, warning.MaxRequests,
		warning.WindowSeconds, warning.IPAddress, warning.UserAgent, warning.Blocked, created)
	if err != nil {
		return fmt.Errorf("failed to insert warning: %w", err)
	}
	return nil
}

// Warnings returns the most recent warning records, newest first.
func (ps *PostgresStorage) Warnings(ctx context.Context, limit int) ([]*models.Warning, error) {
	if limit <= 0 {
		limit = defaultWarningsLimit
	}

	rows, err := ps.pool.Query(ctx,
		`SELECT id, client_id, pathname, request_count, max_requests, window_seconds,
		        ip_address, user_agent, blocked, created_at
		 FROM rate_limit_warnings ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()

	var out []*models.Warning
	for rows.Next() {
		var w models.Warning
		if err := rows.Scan(&w.ID, &w.ClientID, &w.Pathname, &w.RequestCount, &w.MaxRequests,
			&w.WindowSeconds, &w.IPAddress, &w.UserAgent, &w.Blocked, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// DeleteWarningsBefore removes warning records older than the cutoff.
func (ps *PostgresStorage) DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := ps.pool.Exec(ctx,
		`DELETE FROM rate_limit_warnings WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete warnings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping verifies the storage backend is reachable and operational.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the storage connection.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

// touchSettings bumps the settings timestamp so pollers see the change.
func (ps *PostgresStorage) touchSettings(ctx context.Context) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO platform_settings (id, rate_limiting_enabled, updated_at)
		 VALUES (1, TRUE, $1)
		 ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update settings timestamp: %w", err)
	}
	return nil
}
