// Package ratelimit implements request-volume limiting for HTTP requests
// using fixed-window counters. Requests are classified into route categories,
// matched against a dynamically refreshed limit table, and counted per client
// key. Exceeded limits produce 429 responses with standard rate limit headers
// and asynchronous warning records; auth traffic is observed but never
// blocked.
package ratelimit

import (
	"context"
	"time"

	"limitd/internal/models"
)

// CounterStore tracks request counts per client key within fixed windows.
// Implementations must be safe for concurrent use.
type CounterStore interface {
	// Incr increments the counter for key, starting a new window of the
	// given length when none is active, and returns the count within the
	// current window together with the window's reset time.
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)

	// Close stops background goroutines and releases resources.
	Close()
}

// SettingsProvider supplies the current limit table. Implementations never
// fail: on any refresh problem they return the last known table or the
// built-in defaults.
type SettingsProvider interface {
	Limits(ctx context.Context) models.LimitTable
}

// WarningSink accepts warning records for asynchronous delivery. Record must
// not block the request path.
type WarningSink interface {
	Record(w models.Warning)
}

// Decision is the outcome of evaluating one request.
type Decision struct {
	Allowed  bool
	Exceeded bool // count is past the limit (true even for allowed auth traffic)
	Route    models.RouteType

	// Header values. Limit of zero means the request bypassed counting
	// (exempt route or limiting disabled) and no headers apply.
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}
