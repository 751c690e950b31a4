package observe

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Transport is an [http.RoundTripper] that instruments outbound fetches:
//
//  1. Starts an OTel client span for the request.
//  2. Injects W3C Trace Context into the outgoing headers.
//  3. Records request latency to the source's fetch histogram and increments
//     [Metrics.FetchRequests] with the response status.
//
// Source labels the fetch origin for metrics ("api" or "wiki").
type Transport struct {
	// Base is the underlying round tripper. Defaults to
	// [http.DefaultTransport].
	Base http.RoundTripper

	// Source labels the fetch origin in metrics and spans.
	Source string

	// Metrics receives the recorded instruments. Defaults to
	// [DefaultMetrics].
	Metrics *Metrics
}

var _ http.RoundTripper = (*Transport)(nil)

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	m := t.Metrics
	if m == nil {
		m = DefaultMetrics()
	}

	start := time.Now()
	ctx, span := StartSpan(req.Context(), "HTTP "+req.Method+" "+t.Source,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.URL.Path),
		),
	)
	defer span.End()

	prop := propagation.TraceContext{}
	req = req.WithContext(ctx)
	prop.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := base.RoundTrip(req)

	duration := time.Since(start)
	hist := t.histogram(m)
	if hist != nil {
		hist.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("source", t.Source)),
		)
	}

	status := "error"
	if err == nil {
		status = fmt.Sprintf("%d", resp.StatusCode)
		span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	}
	m.RecordFetch(ctx, t.Source, status)
	return resp, err
}

func (t *Transport) histogram(m *Metrics) metric.Float64Histogram {
	switch t.Source {
	case "wiki":
		return m.WikiFetchDuration
	default:
		return m.APIFetchDuration
	}
}
