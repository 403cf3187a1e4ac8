package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"limitd/internal/models"
)

// Limiter is the decision engine. It combines the route classifier, the
// dynamically refreshed limit table, the counter store, and the warning sink
// into a single per-request evaluation. It is constructed once at startup
// and shared by reference; all state lives in the injected collaborators.
//
// Limiter never fails a request for its own reasons: counter store errors
// and missing configuration both degrade to allowing the request.
type Limiter struct {
	classifier *Classifier
	settings   SettingsProvider
	counters   CounterStore
	warnings   WarningSink
}

// NewLimiter assembles a decision engine. warnings may be nil, in which case
// exceeded limits are only logged.
func NewLimiter(classifier *Classifier, settings SettingsProvider, counters CounterStore, warnings WarningSink) *Limiter {
	return &Limiter{
		classifier: classifier,
		settings:   settings,
		counters:   counters,
		warnings:   warnings,
	}
}

// Check evaluates one request and returns the decision. It consults only the
// request's path and client-identity headers.
func (l *Limiter) Check(ctx context.Context, r *http.Request) Decision {
	route := l.classifier.Classify(r.URL.Path)

	// Exempt paths bypass limiting entirely, before any configuration is
	// consulted. Public browsing traffic must never be throttled by a
	// misconfigured table.
	if route == models.RouteExempt {
		return Decision{Allowed: true, Route: route}
	}

	table := l.settings.Limits(ctx)
	if !table.Enabled {
		return Decision{Allowed: true, Route: route}
	}

	limit := table.For(route)
	if !limit.Enabled {
		return Decision{Allowed: true, Route: route}
	}

	key := ClientKey(r)
	count, resetAt, err := l.counters.Incr(ctx, key, limit.Window())
	if err != nil {
		slog.Warn("counter store unavailable, allowing request",
			"key", key,
			"path", r.URL.Path,
			"error", err)
		return Decision{Allowed: true, Route: route}
	}

	d := Decision{
		Route:     route,
		Limit:     limit.MaxRequests,
		Remaining: limit.MaxRequests - count,
		ResetAt:   resetAt,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}

	if count <= limit.MaxRequests {
		d.Allowed = true
		return d
	}

	d.Exceeded = true
	d.RetryAfter = time.Until(resetAt)
	if d.RetryAfter < 0 {
		d.RetryAfter = 0
	}

	// Auth traffic is observe-only: count it, warn once when the threshold
	// is first crossed, but never block a login flow on volume alone.
	if route == models.RouteAuth {
		d.Allowed = true
		if count == limit.MaxRequests+1 {
			l.record(r, key, count, limit, false)
		}
		slog.Warn("auth rate limit exceeded (not blocking)",
			"key", key,
			"path", r.URL.Path,
			"count", count,
			"limit", limit.MaxRequests)
		return d
	}

	l.record(r, key, count, limit, true)
	slog.Warn("rate limit exceeded",
		"key", key,
		"path", r.URL.Path,
		"route", string(route),
		"count", count,
		"limit", limit.MaxRequests)
	return d
}

// record hands a warning to the sink; delivery is asynchronous and
// best-effort.
func (l *Limiter) record(r *http.Request, key string, count int, limit models.RouteLimit, blocked bool) {
	if l.warnings == nil {
		return
	}
	l.warnings.Record(models.Warning{
		ID:            models.NewWarningID(),
		ClientID:      key,
		Pathname:      r.URL.Path,
		RequestCount:  count,
		MaxRequests:   limit.MaxRequests,
		WindowSeconds: int(limit.Window().Seconds()),
		IPAddress:     ClientIP(r),
		UserAgent:     r.Header.Get("User-Agent"),
		Blocked:       blocked,
		CreatedAt:     time.Now().UTC(),
	})
}

// Close releases the counter store.
func (l *Limiter) Close() {
	l.counters.Close()
}
