package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMeterName is the instrumentation scope of the HTTP server metrics.
const HTTPMeterName = "github.com/stitchflow-website/dirsync/http"

// latencyBuckets spans fast status reads up to stage requests that enqueue under load.
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type httpInstruments struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		in  httpInstruments
		err error
	)
	if in.duration, err = meter.Float64Histogram("dirsync_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	if in.requests, err = meter.Int64Counter("dirsync_http_requests_total",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if in.inFlight, err = meter.Int64UpDownCounter("dirsync_http_active_requests",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active request counter: %w", err)
	}
	return &in, nil
}

// observe labels each request by method, chi route pattern and status code.
// Scrapes of /metrics are not counted.
func (in *httpInstruments) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		// r.Context() may be cancelled by the time the handler returns.
		ctx := r.Context()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		in.inFlight.Add(ctx, 1)
		defer in.inFlight.Add(ctx, -1)
		next.ServeHTTP(ww, r)

		labels := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", routePattern(r)),
			attribute.String("status_code", strconv.Itoa(ww.Status())),
		)
		in.requests.Add(ctx, 1, labels)
		in.duration.Record(ctx, time.Since(start).Seconds(), labels)
	})
}

// MetricsMiddleware records request metrics on provider. A nil provider yields
// a middleware that returns its handler unchanged.
func MetricsMiddleware(provider metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	if provider == nil {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	in, err := newHTTPInstruments(provider.Meter(HTTPMeterName))
	if err != nil {
		return nil, err
	}
	return in.observe, nil
}
