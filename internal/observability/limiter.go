package observability

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"limitd/internal/models"
)

// LimiterMetrics records rate limit decisions as OpenTelemetry counters,
// labelled by route category and outcome.
type LimiterMetrics struct {
	decisions metric.Int64Counter
}

// NewLimiterMetrics creates the decision counter on the global meter.
func NewLimiterMetrics() (*LimiterMetrics, error) {
	meter := otel.Meter("limitd/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &LimiterMetrics{decisions: decisions}, nil
}

// RecordDecision counts one decision for the given route category.
func (m *LimiterMetrics) RecordDecision(r *http.Request, route models.RouteType, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.decisions.Add(r.Context(), 1,
		metric.WithAttributes(
			attribute.String("route", string(route)),
			attribute.String("outcome", outcome),
		),
	)
}
