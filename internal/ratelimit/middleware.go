package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"limitd/internal/models"
)

// Metrics records decision outcomes. Implemented by the observability
// package; a nil Metrics disables recording.
type Metrics interface {
	RecordDecision(r *http.Request, route models.RouteType, allowed bool)
}

// MiddlewareOption configures optional middleware behavior.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	metrics Metrics
}

// WithMetrics attaches decision metrics recording to the middleware.
func WithMetrics(m Metrics) MiddlewareOption {
	return func(o *middlewareOptions) { o.metrics = m }
}

// Middleware returns HTTP middleware that evaluates every request against the
// limiter. Rate limit headers are attached on both allowed and rejected
// responses whenever the request was actually counted.
func Middleware(limiter *Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	var o middlewareOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Check(r.Context(), r)

			if o.metrics != nil {
				o.metrics.RecordDecision(r, d.Route, d.Allowed)
			}

			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", d.ResetAt.Unix()))
			}

			if !d.Allowed {
				retryAfterSecs := int(d.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				resp := models.RateLimitedResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests, please slow down",
					RetryAfter: retryAfterSecs,
				}
				if err := json.NewEncoder(w).Encode(resp); err != nil {
					slog.Error("failed to encode 429 response", "error", err)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
