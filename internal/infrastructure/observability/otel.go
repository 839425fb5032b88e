package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds all application metrics
type Metrics struct {
	EnrichmentCount    metric.Int64Counter
	PhaseDuration      metric.Float64Histogram
	PhaseErrors        metric.Int64Counter
	CacheHitCount      metric.Int64Counter
	CacheMissCount     metric.Int64Counter
	RadiusEscalations  metric.Int64Counter
	SystemMessageCount metric.Int64Counter
}

// Setup initializes OpenTelemetry
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace provider
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Shutdown function
	shutdown := func(ctx context.Context) error {
		return tracerProvider.Shutdown(ctx)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/kakehashi-app/kakehashi-backend")

	enrichmentCount, err := meter.Int64Counter(
		"enrichment.run.count",
		metric.WithDescription("Number of enrichment pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	phaseDuration, err := meter.Float64Histogram(
		"enrichment.phase.duration",
		metric.WithDescription("Enrichment phase duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	phaseErrors, err := meter.Int64Counter(
		"enrichment.phase.errors",
		metric.WithDescription("Number of enrichment phase failures"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"translation.cache.hit.count",
		metric.WithDescription("Number of translation cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"translation.cache.miss.count",
		metric.WithDescription("Number of translation cache misses"),
	)
	if err != nil {
		return nil, err
	}

	radiusEscalations, err := meter.Int64Counter(
		"facility.search.radius_escalation.count",
		metric.WithDescription("Number of facility search radius escalations"),
	)
	if err != nil {
		return nil, err
	}

	systemMessageCount, err := meter.Int64Counter(
		"consultation.system_message.count",
		metric.WithDescription("Number of system messages sent by the consultation flow"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		EnrichmentCount:    enrichmentCount,
		PhaseDuration:      phaseDuration,
		PhaseErrors:        phaseErrors,
		CacheHitCount:      cacheHitCount,
		CacheMissCount:     cacheMissCount,
		RadiusEscalations:  radiusEscalations,
		SystemMessageCount: systemMessageCount,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer("github.com/kakehashi-app/kakehashi-backend")
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordPhaseMetric records one pipeline phase execution
func RecordPhaseMetric(ctx context.Context, metrics *Metrics, phase string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("enrichment.phase", phase),
	}
	metrics.PhaseDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		metrics.PhaseErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordCacheHit records a translation cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1)
}

// RecordCacheMiss records a translation cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1)
}
