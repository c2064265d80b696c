package cache

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type event string

const (
	eventHit        event = "hit"
	eventMiss       event = "miss"
	eventDedup      event = "dedup"
	eventFailure    event = "failure"
	eventInvalidate event = "invalidate"
	eventAbandon    event = "abandon"
)

type cacheMetricsCollection struct {
	eventCount     metric.Int64Counter
	createDuration metric.Float64Histogram
}

var metrics cacheMetricsCollection

func init() {
	const name = "docprompt/cache"
	meter := otel.Meter(name)

	eventCount, err := meter.Int64Counter(
		"cache/event_count",
		metric.WithDescription("Cache lookups by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create event count metric: %w", err))
	}

	createDuration, err := meter.Float64Histogram(
		"cache/create_duration_seconds",
		metric.WithDescription("Time spent materializing cache entries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create create duration metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		eventCount:     eventCount,
		createDuration: createDuration,
	}
}

func recordEvent(ctx context.Context, cacheName string, e event) {
	metrics.eventCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cacheName),
		attribute.String("event", string(e)),
	))
}

func recordCreateDuration(ctx context.Context, cacheName string, duration time.Duration, failed bool) {
	metrics.createDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("cache", cacheName),
		attribute.Bool("failed", failed),
	))
}
