package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the SDK providers built from a Config.
// Disabled signals are served by no-op providers.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *prometheus.Registry

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds the providers enabled in cfg. A nil cfg disables everything.
// Callers must call Shutdown to flush pending exports.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	tel := &Telemetry{}
	if !cfg.tracingEnabled() && !cfg.metricsEnabled() {
		slog.Debug("Telemetry disabled")
		return tel, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.tracingEnabled() {
		tel.tracerProvider, err = newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
	}

	if cfg.metricsEnabled() {
		// A private registry keeps /metrics limited to this provider's instruments.
		if cfg.Metrics.Prometheus {
			tel.registry = prometheus.NewRegistry()
		}
		tel.meterProvider, err = newMeterProvider(ctx, cfg, res, tel.registry)
		if err != nil {
			_ = tel.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create meter provider: %w", err)
		}
	}

	slog.Info("Telemetry initialized",
		"service_name", cfg.GetServiceName(),
		"service_version", cfg.GetServiceVersion(),
		"endpoint", cfg.GetEndpoint(),
		"tracing", tel.tracerProvider != nil,
		"metrics", tel.meterProvider != nil,
		"prometheus", tel.registry != nil,
	)
	if cfg.Insecure {
		slog.Warn("Telemetry exports are sent over plain HTTP")
	}
	return tel, nil
}

// TracerProvider returns the SDK tracer provider, or a no-op one when tracing is off.
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	if t.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return t.tracerProvider
}

// MeterProvider returns the SDK meter provider, or a no-op one when metrics are off.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return t.meterProvider
}

// Tracer is shorthand for TracerProvider().Tracer.
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return t.TracerProvider().Tracer(name, opts...)
}

// Meter is shorthand for MeterProvider().Meter.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.MeterProvider().Meter(name, opts...)
}

// MetricsHandler serves the Prometheus registry, or is nil when scraping is off.
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}

// Shutdown flushes and stops the SDK providers. Only the first call does work;
// later calls return its result.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.shutdownOnce.Do(func() {
		var errs []error
		if t.tracerProvider != nil {
			if err := t.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
			}
		}
		if t.meterProvider != nil {
			if err := t.meterProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
			}
		}
		t.shutdownErr = errors.Join(errs...)
		slog.Debug("Telemetry shutdown complete", "error", t.shutdownErr)
	})
	return t.shutdownErr
}
