package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	})
}

func TestNewHTTPInstruments(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	in, err := newHTTPInstruments(mp.Meter(HTTPMeterName))
	require.NoError(t, err)
	assert.NotNil(t, in.duration)
	assert.NotNil(t, in.requests)
	assert.NotNil(t, in.inFlight)
}

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	mw, err := MetricsMiddleware(mp)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(mw)
	r.Method(http.MethodPost, "/internal/v1/stages/{stage}", statusHandler(http.StatusAccepted))
	r.Method(http.MethodGet, "/v1/sync/status", statusHandler(http.StatusBadRequest))
	r.Method(http.MethodGet, "/metrics", statusHandler(http.StatusOK))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/internal/v1/stages/users", nil),
		httptest.NewRequest(http.MethodPost, "/internal/v1/stages/grants", nil),
		httptest.NewRequest(http.MethodGet, "/v1/sync/status", nil),
		httptest.NewRequest(http.MethodGet, "/metrics", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	m := collectMetric(t, reader, HTTPMeterName, "dirsync_http_requests_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected sum data type")

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("route"))
		code, _ := dp.Attributes.Value(attribute.Key("status_code"))
		counts[route.AsString()+" "+code.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{
		"/internal/v1/stages/{stage} 202": 2,
		"/v1/sync/status 400":             1,
	}, counts)

	active := collectMetric(t, reader, HTTPMeterName, "dirsync_http_active_requests")
	activeSum, ok := active.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range activeSum.DataPoints {
		assert.Zero(t, dp.Value, "every request finished")
	}
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider func(t *testing.T) *sdkmetric.MeterProvider
		noop     bool
	}{
		{name: "nil provider passes through", noop: false},
		{name: "noop provider", noop: true},
		{
			name: "sdk provider",
			provider: func(t *testing.T) *sdkmetric.MeterProvider {
				mp := sdkmetric.NewMeterProvider()
				t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
				return mp
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				mw  func(http.Handler) http.Handler
				err error
			)
			switch {
			case tt.provider != nil:
				mw, err = MetricsMiddleware(tt.provider(t))
			case tt.noop:
				mw, err = MetricsMiddleware(noop.NewMeterProvider())
			default:
				mw, err = MetricsMiddleware(nil)
			}
			require.NoError(t, err)
			require.NotNil(t, mw)

			rr := httptest.NewRecorder()
			mw(statusHandler(http.StatusCreated)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sync", nil))
			assert.Equal(t, http.StatusCreated, rr.Code)
		})
	}
}

func TestRoutePattern(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown_route", routePattern(httptest.NewRequest(http.MethodGet, "/v1/sync", nil)))

	var got string
	r := chi.NewRouter()
	r.Get("/v1/runs/{id}", func(_ http.ResponseWriter, req *http.Request) {
		got = routePattern(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/runs/123", nil))
	assert.Equal(t, "/v1/runs/{id}", got)
}
