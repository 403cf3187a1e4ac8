package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"limitd/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS platform_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	rate_limiting_enabled INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS route_limits (
	route_type TEXT PRIMARY KEY,
	max_requests INTEGER NOT NULL,
	window_minutes INTEGER NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1
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
	blocked INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_warnings_created_at ON rate_limit_warnings (created_at);
`

// SQLiteStorage implements the Storage interface using SQLite via the pure-Go
// modernc.org/sqlite driver. The schema is created on first open.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// RouteLimits returns all stored route limits.
func (ss *SQLiteStorage) RouteLimits(ctx context.Context) ([]models.RouteLimit, error) {
	rows, err := ss.db.QueryContext(ctx,
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
func (ss *SQLiteStorage) GetRouteLimit(ctx context.Context, routeType models.RouteType) (*models.RouteLimit, error) {
	var rl models.RouteLimit
	err := ss.db.QueryRowContext(ctx,
		`SELECT route_type, max_requests, window_minutes, enabled FROM route_limits WHERE route_type = ?`,
		string(routeType)).Scan(&rl.RouteType, &rl.MaxRequests, &rl.WindowMinutes, &rl.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route limit: %w", err)
	}
	return &rl, nil
}

// SaveRouteLimit stores or updates one route category's configuration.
func (ss *SQLiteStorage) SaveRouteLimit(ctx context.Context, limit *models.RouteLimit) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO route_limits (route_type, max_requests, window_minutes, enabled)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(route_type) DO UPDATE SET
		   max_requests = excluded.max_requests,
		   window_minutes = excluded.window_minutes,
		   enabled = excluded.enabled`,
		string(limit.RouteType), limit.MaxRequests, limit.WindowMinutes, limit.Enabled)
	if err != nil {
		return fmt.Errorf("failed to save route limit: %w", err)
	}
	return ss.touchSettings(ctx)
}

// DeleteRouteLimit removes a route category's configuration.
func (ss *SQLiteStorage) DeleteRouteLimit(ctx context.Context, routeType models.RouteType) error {
	res, err := ss.db.ExecContext(ctx,
		`DELETE FROM route_limits WHERE route_type = ?`, string(routeType))
	if err != nil {
		return fmt.Errorf("failed to delete route limit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ss.touchSettings(ctx)
}

// PlatformSettings returns the flag row plus all route limits in wire form.
func (ss *SQLiteStorage) PlatformSettings(ctx context.Context) (*models.PlatformSettings, error) {
	ps := &models.PlatformSettings{RateLimitingEnabled: true}

	var enabled bool
	var updated sql.NullTime
	err := ss.db.QueryRowContext(ctx,
		`SELECT rate_limiting_enabled, updated_at FROM platform_settings WHERE id = 1`).
		Scan(&enabled, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No row yet; defaults stand.
	case err != nil:
		return nil, fmt.Errorf("failed to get platform settings: %w", err)
	default:
		ps.RateLimitingEnabled = enabled
		if updated.Valid {
			ps.UpdatedAt = updated.Time
		}
	}

	limits, err := ss.RouteLimits(ctx)
	if err != nil {
		return nil, err
	}
	ps.RateLimitConfigurations = limits
	return ps, nil
}

// SavePlatformSettings replaces the flag and all route limits in one
// transaction.
func (ss *SQLiteStorage) SavePlatformSettings(ctx context.Context, settings *models.PlatformSettings) error {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO platform_settings (id, rate_limiting_enabled, updated_at)
		 VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   rate_limiting_enabled = excluded.rate_limiting_enabled,
		   updated_at = excluded.updated_at`,
		settings.RateLimitingEnabled, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save settings flag: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM route_limits`); err != nil {
		return fmt.Errorf("failed to clear route limits: %w", err)
	}

	for _, rl := range settings.RateLimitConfigurations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO route_limits (route_type, max_requests, window_minutes, enabled)
			 VALUES (?, ?, ?, ?)`,
			string(rl.RouteType), rl.MaxRequests, rl.WindowMinutes, rl.Enabled); err != nil {
			return fmt.Errorf("failed to insert route limit %s: %w", rl.RouteType, err)
		}
	}

	return tx.Commit()
}

// InsertWarning appends a warning record.
func (ss *SQLiteStorage) InsertWarning(ctx context.Context, warning *models.Warning) error {
	id := warning.ID
	if id == "" {
		id = models.NewWarningID()
	}
	created := warning.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO rate_limit_warnings
		 (id, client_id, pathname, request_count, max_requests, window_seconds, ip_address, user_agent, blocked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, warning.ClientID, warning.Pathname, warning.RequestCount, warning.MaxRequests,
		warning.WindowSeconds, warning.IPAddress, warning.UserAgent, warning.Blocked, created)
	if err != nil {
		return fmt.Errorf("failed to insert warning: %w", err)
	}
	return nil
}

// Warnings returns the most recent warning records, newest first.
func (ss *SQLiteStorage) Warnings(ctx context.Context, limit int) ([]*models.Warning, error) {
	if limit <= 0 {
		limit = defaultWarningsLimit
	}

	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, client_id, pathname, request_count, max_requests, window_seconds,
		        ip_address, user_agent, blocked, created_at
		 FROM rate_limit_warnings ORDER BY created_at DESC LIMIT ?`, limit)
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
func (ss *SQLiteStorage) DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := ss.db.ExecContext(ctx,
		`DELETE FROM rate_limit_warnings WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete warnings: %w", err)
	}
	return res.RowsAffected()
}

// Ping verifies the storage backend is reachable and operational.
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// touchSettings bumps the settings timestamp so pollers see the change.
func (ss *SQLiteStorage) touchSettings(ctx context.Context) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO platform_settings (id, rate_limiting_enabled, updated_at)
		 VALUES (1, 1, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update settings timestamp: %w", err)
	}
	return nil
}
