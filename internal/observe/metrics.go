// Package observe provides application-wide observability primitives for the
// acquisition pipeline: OpenTelemetry metrics, tracing, and the Prometheus
// exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pipeline metrics.
const meterName = "github.com/krjackso/gw2-data-repo"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per fetch source ---

	// APIFetchDuration tracks game-API request latency.
	APIFetchDuration metric.Float64Histogram

	// WikiFetchDuration tracks wiki page fetch latency.
	WikiFetchDuration metric.Float64Histogram

	// ExtractDuration tracks model-backed extraction latency per item.
	ExtractDuration metric.Float64Histogram

	// --- Counters ---

	// FetchRequests counts outbound fetches. Use with attributes:
	//   attribute.String("source", ...), attribute.String("status", ...)
	FetchRequests metric.Int64Counter

	// ItemsProcessed counts walked items by terminal status. Use with
	// attribute: attribute.String("status", ...)
	ItemsProcessed metric.Int64Counter

	// AcquisitionsResolved counts resolved acquisitions by kind. Use with
	// attribute: attribute.String("kind", ...)
	AcquisitionsResolved metric.Int64Counter

	// CacheLookups counts disk cache hits and misses. Use with attributes:
	//   attribute.String("tag", ...), attribute.String("outcome", ...)
	CacheLookups metric.Int64Counter

	// --- Error counters ---

	// ResolutionErrors counts per-entry failures. Use with attribute:
	//   attribute.String("kind", ...) — ambiguous, classification, source_unavailable
	ResolutionErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of item ids waiting in the walk queue.
	QueueDepth metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote fetches and model calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.APIFetchDuration, err = m.Float64Histogram("gw2data.api.fetch.duration",
		metric.WithDescription("Latency of game-API requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WikiFetchDuration, err = m.Float64Histogram("gw2data.wiki.fetch.duration",
		metric.WithDescription("Latency of wiki page fetches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractDuration, err = m.Float64Histogram("gw2data.extract.duration",
		metric.WithDescription("Latency of model-backed acquisition extraction per item."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FetchRequests, err = m.Int64Counter("gw2data.fetch.requests",
		metric.WithDescription("Total outbound fetches by source and status."),
	); err != nil {
		return nil, err
	}
	if met.ItemsProcessed, err = m.Int64Counter("gw2data.items.processed",
		metric.WithDescription("Total walked items by terminal status."),
	); err != nil {
		return nil, err
	}
	if met.AcquisitionsResolved, err = m.Int64Counter("gw2data.acquisitions.resolved",
		metric.WithDescription("Total resolved acquisitions by kind."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("gw2data.cache.lookups",
		metric.WithDescription("Disk cache lookups by tag and outcome."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ResolutionErrors, err = m.Int64Counter("gw2data.resolution.errors",
		metric.WithDescription("Per-entry resolution failures by error kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("gw2data.walk.queue_depth",
		metric.WithDescription("Item ids currently waiting in the walk queue."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFetch is a convenience method that records a fetch counter increment
// with the standard attribute set.
func (m *Metrics) RecordFetch(ctx context.Context, source, status string) {
	m.FetchRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
}

// RecordItem is a convenience method that records a walked item's terminal
// status.
func (m *Metrics) RecordItem(ctx context.Context, status string) {
	m.ItemsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordAcquisition is a convenience method that records a resolved
// acquisition by kind.
func (m *Metrics) RecordAcquisition(ctx context.Context, kind string) {
	m.AcquisitionsResolved.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordCacheLookup is a convenience method that records a cache hit or miss
// for a tag.
func (m *Metrics) RecordCacheLookup(ctx context.Context, tag string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tag", tag),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordResolutionError is a convenience method that records a per-entry
// failure by error kind.
func (m *Metrics) RecordResolutionError(ctx context.Context, kind string) {
	m.ResolutionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
