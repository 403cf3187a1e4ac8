package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"limitd/internal/models"
	"limitd/internal/storage"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("limitd/storage")
	meter := otel.Meter("limitd/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) RouteLimits(ctx context.Context) ([]models.RouteLimit, error) {
	ctx, span := s.startSpan(ctx, "RouteLimits")
	start := time.Now()
	result, err := s.inner.RouteLimits(ctx)
	s.record(ctx, span, "RouteLimits", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetRouteLimit(ctx context.Context, routeType models.RouteType) (*models.RouteLimit, error) {
	ctx, span := s.startSpan(ctx, "GetRouteLimit", attribute.String("route_type", string(routeType)))
	start := time.Now()
	result, err := s.inner.GetRouteLimit(ctx, routeType)
	s.record(ctx, span, "GetRouteLimit", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveRouteLimit(ctx context.Context, limit *models.RouteLimit) error {
	ctx, span := s.startSpan(ctx, "SaveRouteLimit", attribute.String("route_type", string(limit.RouteType)))
	start := time.Now()
	err := s.inner.SaveRouteLimit(ctx, limit)
	s.record(ctx, span, "SaveRouteLimit", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteRouteLimit(ctx context.Context, routeType models.RouteType) error {
	ctx, span := s.startSpan(ctx, "DeleteRouteLimit", attribute.String("route_type", string(routeType)))
	start := time.Now()
	err := s.inner.DeleteRouteLimit(ctx, routeType)
	s.record(ctx, span, "DeleteRouteLimit", start, err)
	return err
}

func (s *InstrumentedStorage) PlatformSettings(ctx context.Context) (*models.PlatformSettings, error) {
	ctx, span := s.startSpan(ctx, "PlatformSettings")
	start := time.Now()
	result, err := s.inner.PlatformSettings(ctx)
	s.record(ctx, span, "PlatformSettings", start, err)
	return result, err
}

func (s *InstrumentedStorage) SavePlatformSettings(ctx context.Context, settings *models.PlatformSettings) error {
	ctx, span := s.startSpan(ctx, "SavePlatformSettings")
	start := time.Now()
	err := s.inner.SavePlatformSettings(ctx, settings)
	s.record(ctx, span, "SavePlatformSettings", start, err)
	return err
}

func (s *InstrumentedStorage) InsertWarning(ctx context.Context, warning *models.Warning) error {
	ctx, span := s.startSpan(ctx, "InsertWarning",
		attribute.String("pathname", warning.Pathname),
	)
	start := time.Now()
	err := s.inner.InsertWarning(ctx, warning)
	s.record(ctx, span, "InsertWarning", start, err)
	return err
}

func (s *InstrumentedStorage) Warnings(ctx context.Context, limit int) ([]*models.Warning, error) {
	ctx, span := s.startSpan(ctx, "Warnings", attribute.Int("limit", limit))
	start := time.Now()
	result, err := s.inner.Warnings(ctx, limit)
	s.record(ctx, span, "Warnings", start, err)
	return result, err
}

func (s *InstrumentedStorage) DeleteWarningsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := s.startSpan(ctx, "DeleteWarningsBefore")
	start := time.Now()
	deleted, err := s.inner.DeleteWarningsBefore(ctx, cutoff)
	s.record(ctx, span, "DeleteWarningsBefore", start, err)
	return deleted, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
