package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/api"
	"github.com/stitchflow-website/dirsync/internal/app/storage"
	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/provider"
	"github.com/stitchflow-website/dirsync/internal/queue"
	"github.com/stitchflow-website/dirsync/internal/service"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
	"github.com/stitchflow-website/dirsync/internal/sync/coordinator"
	"github.com/stitchflow-website/dirsync/internal/sync/dispatch"
	"github.com/stitchflow-website/dirsync/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	syncTracerName    = "github.com/stitchflow-website/dirsync/sync"
	serviceTracerName = "github.com/stitchflow-website/dirsync/service"
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects the inputs of NewSyncApp. Component overrides
// exist for tests; production wiring leaves them nil.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	fetcher        provider.Fetcher
	clock          clock.Clock

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		clock:          clock.RealClock{},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewSyncApp builds every component of the sync service from the configuration
func NewSyncApp(
	ctx context.Context,
	opts ...SyncAppOptions,
) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config, storage.WithClock(cfg.clock))
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded && cfg.storageFactory != nil {
			cfg.storageFactory.Cleanup()
		}
	}()

	components, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	components.SyncService, err = buildServiceComponents(ctx, cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build service components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is handled by the app from here on
	cleanupNeeded = false

	factory := cfg.storageFactory
	cancelFunc := func() {
		cancel()
		factory.Cleanup()
	}

	return &SyncApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		switch host {
		case "localhost":
			host = "127.0.0.1"
		case "":
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithFetcher allows injecting a custom provider fetcher (for testing)
func WithFetcher(f provider.Fetcher) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.fetcher = f
		return nil
	}
}

// WithClock sets the clock shared by the stores, the processor and the service
func WithClock(clk clock.Clock) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if clk == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		cfg.clock = clk
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP, stage and queue metrics
func WithMeterProvider(mp metric.MeterProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for request and stage spans
func WithTracerProvider(tp trace.TracerProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves handler at /metrics
func WithMetricsHandler(h http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// WithTelemetry wires the providers and the scrape handler of tel
func WithTelemetry(tel *telemetry.Telemetry) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if tel == nil {
			return nil
		}
		cfg.meterProvider = tel.MeterProvider()
		cfg.tracerProvider = tel.TracerProvider()
		cfg.metricsHandler = tel.MetricsHandler()
		return nil
	}
}

// buildSyncComponents builds the stores, the stage trigger, the processor and the coordinator
func buildSyncComponents(
	ctx context.Context,
	b *syncAppConfig,
) (*AppComponents, error) {
	slog.Info("Initializing sync components")

	runs, err := b.storageFactory.CreateRunStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}

	entities, err := b.storageFactory.CreateEntityWriter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity writer: %w", err)
	}

	q, err := b.storageFactory.CreateQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage queue: %w", err)
	}

	trigger, err := dispatch.New(b.config, q)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage trigger: %w", err)
	}

	if b.fetcher == nil {
		providerOpts, err := provider.OptionsFromConfig(&b.config.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to configure provider client: %w", err)
		}
		b.fetcher = provider.NewFetcher(providerOpts)
	}

	processorOpts := []pkgsync.ProcessorOption{pkgsync.WithClock(b.clock)}
	var coordOpts []coordinator.Option

	if b.tracerProvider != nil {
		processorOpts = append(processorOpts, pkgsync.WithTracer(b.tracerProvider.Tracer(syncTracerName)))
	}

	if b.meterProvider != nil {
		stageMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		if stageMetrics != nil {
			processorOpts = append(processorOpts, pkgsync.WithStageMetrics(stageMetrics))
			slog.Info("Stage metrics enabled")
		}

		queueMetrics, err := telemetry.NewQueueMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create queue metrics: %w", err)
		}
		if queueMetrics != nil {
			coordOpts = append(coordOpts, coordinator.WithQueueMetrics(queueMetrics))
			slog.Info("Queue metrics enabled")
		}
	}

	processor := pkgsync.NewStageProcessor(runs, entities, b.fetcher, trigger, processorOpts...)
	syncCoordinator := coordinator.New(processor, q, b.config, coordOpts...)

	slog.Info("Sync components initialized successfully",
		"dispatch_mode", b.config.Pipeline.GetDispatchMode(),
		"workers", b.config.Pipeline.GetWorkers())

	return &AppComponents{
		SyncCoordinator: syncCoordinator,
		RunStore:        runs,
		Queue:           q,
		Trigger:         trigger,
	}, nil
}

// buildServiceComponents builds the status query service
func buildServiceComponents(
	_ context.Context,
	b *syncAppConfig,
	components *AppComponents,
) (service.SyncService, error) {
	slog.Info("Initializing service components")

	serviceOpts := []service.ServiceOption{
		service.WithClock(b.clock),
		service.WithReadinessCheck(b.storageFactory.Ready),
	}
	if b.tracerProvider != nil {
		serviceOpts = append(serviceOpts, service.WithTracer(b.tracerProvider.Tracer(serviceTracerName)))
	}
	if b.meterProvider != nil {
		corrections, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create correction metrics: %w", err)
		}
		if corrections != nil {
			serviceOpts = append(serviceOpts, service.WithCorrectionMetrics(corrections))
		}
	}

	svc, err := service.NewSyncService(components.RunStore, components.Trigger, b.config.Pipeline.GetStalenessPolicy(), serviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync service: %w", err)
	}

	slog.Info("Service components initialized successfully")
	return svc, nil
}

// buildHTTPServer mounts the API on a router wrapped in middlewareChain
//
//nolint:unparam // same shape as the other build steps
func buildHTTPServer(
	_ context.Context,
	b *syncAppConfig,
	components *AppComponents,
) (*http.Server, error) {
	chain, err := middlewareChain(b)
	if err != nil {
		return nil, err
	}

	serverOpts := []api.ServerOption{api.WithMiddlewares(chain...)}
	if stageTrigger := stageEndpointTrigger(b.config, components.Queue); stageTrigger != nil {
		serverOpts = append(serverOpts, api.WithStageEndpoint(stageTrigger))
		slog.Info("Internal stage endpoint enabled", "path", api.StagesPath)
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
		slog.Info("Prometheus scrape endpoint enabled", "path", "/metrics")
	}

	server := &http.Server{
		Addr:              b.address,
		Handler:           api.NewServer(components.SyncService, serverOpts...),
		ReadHeaderTimeout: b.readTimeout,
		ReadTimeout:       b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}
	slog.Info("HTTP server configured", "address", b.address, "middlewares", len(chain))
	return server, nil
}

// middlewareChain returns the configured middlewares, or the default stack,
// behind the telemetry middlewares that are enabled. Metrics come first so
// they time the whole request including its span.
func middlewareChain(b *syncAppConfig) ([]func(http.Handler) http.Handler, error) {
	base := b.middlewares
	if base == nil {
		base = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	var chain []func(http.Handler) http.Handler
	if b.meterProvider != nil {
		observe, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		chain = append(chain, observe)
	}
	if b.tracerProvider != nil {
		chain = append(chain, telemetry.TracingMiddleware(b.tracerProvider))
	}
	return append(chain, base...), nil
}

// stageEndpointTrigger returns the trigger behind the internal stage endpoint.
// Only http dispatch posts to that endpoint, and the endpoint enqueues locally.
func stageEndpointTrigger(cfg *config.Config, q queue.Queue) pkgsync.Trigger {
	if cfg.Pipeline.GetDispatchMode() != config.DispatchModeHTTP {
		return nil
	}
	return dispatch.NewQueueTrigger(q)
}
