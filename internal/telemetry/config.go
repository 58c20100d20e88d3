// Package telemetry sets up OpenTelemetry tracing and metrics for dirsync.
// Spans and metrics are pushed to an OTLP/HTTP collector; metrics can also be
// scraped from the API server.
package telemetry

import (
	"errors"
	"fmt"
)

// Defaults applied when the matching Config field is zero.
const (
	DefaultServiceName = "dirsync-api"
	DefaultEndpoint    = "localhost:4318"
	DefaultSampling    = 0.05
)

// Config is the telemetry section of the service configuration.
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector host:port; the exporters append /v1/traces and /v1/metrics.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Insecure sends exports over plain HTTP.
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Sampling is the head sampling ratio for new traces. Zero means DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Prometheus serves metrics at /metrics on the API server.
	Prometheus bool `yaml:"prometheus,omitempty"`
	// DisableOTLP stops the periodic push to the collector.
	DisableOTLP bool `yaml:"disableOtlp,omitempty"`
}

// GetServiceName returns ServiceName or DefaultServiceName.
func (c *Config) GetServiceName() string {
	return orDefault(c.ServiceName, DefaultServiceName)
}

// GetServiceVersion returns ServiceVersion or "unknown".
func (c *Config) GetServiceVersion() string {
	return orDefault(c.ServiceVersion, "unknown")
}

// GetEndpoint returns Endpoint or DefaultEndpoint.
func (c *Config) GetEndpoint() string {
	return orDefault(c.Endpoint, DefaultEndpoint)
}

// GetInsecure reports whether exports skip TLS.
func (c *Config) GetInsecure() bool {
	return c.Insecure
}

func (c *Config) tracingEnabled() bool {
	return c != nil && c.Enabled && c.Tracing != nil && c.Tracing.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c != nil && c.Enabled && c.Metrics != nil && c.Metrics.Enabled
}

// GetSampling returns the configured ratio. An explicit 0 cannot be told apart
// from an unset field, so both yield DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// Validate checks the enabled sections. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate rejects sampling ratios outside [0, 1].
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.Sampling < 0 || c.Sampling > 1 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}
	return nil
}

// Validate requires at least one exporter when metrics are enabled.
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.DisableOTLP && !c.Prometheus {
		return errors.New("at least one exporter is required: enable prometheus or OTLP")
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
