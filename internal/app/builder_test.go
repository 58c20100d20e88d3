package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/stitchflow-website/dirsync/internal/app/storage"
	storagemocks "github.com/stitchflow-website/dirsync/internal/app/storage/mocks"
	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/provider"
	providermocks "github.com/stitchflow-website/dirsync/internal/provider/mocks"
	"github.com/stitchflow-website/dirsync/internal/status"
	"github.com/stitchflow-website/dirsync/internal/telemetry"
)

// createValidTestConfig creates a memory-backed config that passes validation
func createValidTestConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Type: config.StorageTypeMemory},
		Provider: config.ProviderConfig{
			BaseURL:  "http://directory.invalid",
			TokenURL: "http://directory.invalid/token",
			ClientID: "dirsync-test",
		},
		Pipeline: config.PipelineConfig{
			Workers:      1,
			StageTimeout: "30s",
			PartialAfter: "2m",
			FailAfter:    "5m",
		},
	}
}

func httpDispatchConfig() *config.Config {
	cfg := createValidTestConfig()
	cfg.Pipeline.Dispatch = config.DispatchConfig{
		Mode:        config.DispatchModeHTTP,
		InternalURL: "http://127.0.0.1:8080",
	}
	return cfg
}

func TestBaseConfig(t *testing.T) {
	t.Parallel()

	cfg, err := baseConfig(WithConfig(createValidTestConfig()))
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPAddress, cfg.address)
	assert.Equal(t, defaultRequestTimeout, cfg.requestTimeout)
	assert.Equal(t, defaultReadTimeout, cfg.readTimeout)
	assert.Equal(t, defaultWriteTimeout, cfg.writeTimeout)
	assert.Equal(t, defaultIdleTimeout, cfg.idleTimeout)
	assert.NotNil(t, cfg.clock)

	_, err = baseConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	_, err = baseConfig(WithConfig(createValidTestConfig()), WithAddress(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address cannot be empty")
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "port only", address: ":8080"},
		{name: "ephemeral port", address: ":0"},
		{name: "localhost", address: "localhost:9090"},
		{name: "ipv4 host", address: "10.0.0.1:8080"},
		{name: "empty", address: "", wantErr: true},
		{name: "missing port", address: "127.0.0.1:", wantErr: true},
		{name: "no separator", address: "8080", wantErr: true},
		{name: "bad port", address: ":http", wantErr: true},
		{name: "port out of range", address: ":70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &syncAppConfig{}
			err := WithAddress(tt.address)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, cfg.address)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.address, cfg.address)
		})
	}
}

func TestWithOptions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := storagemocks.NewMockFactory(ctrl)
	fetcher := providermocks.NewMockFetcher(ctrl)
	clk := testingclock.NewFakeClock(time.Now())
	mp := noop.NewMeterProvider()
	handler := http.NotFoundHandler()
	passthrough := func(next http.Handler) http.Handler { return next }

	cfg := &syncAppConfig{}
	for _, opt := range []SyncAppOptions{
		WithStorageFactory(factory),
		WithFetcher(fetcher),
		WithClock(clk),
		WithMeterProvider(mp),
		WithMetricsHandler(handler),
		WithMiddlewares(passthrough),
	} {
		require.NoError(t, opt(cfg))
	}

	assert.Same(t, factory, cfg.storageFactory)
	assert.Same(t, fetcher, cfg.fetcher)
	assert.Same(t, clk, cfg.clock)
	assert.Equal(t, mp, cfg.meterProvider)
	assert.NotNil(t, cfg.metricsHandler)
	assert.Len(t, cfg.middlewares, 1)

	require.Error(t, WithClock(nil)(cfg))
}

func TestWithTelemetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := &syncAppConfig{}
	require.NoError(t, WithTelemetry(nil)(cfg))
	assert.Nil(t, cfg.meterProvider)

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled: true,
		Metrics: &telemetry.MetricsConfig{Enabled: true, Prometheus: true, DisableOTLP: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	require.NoError(t, WithTelemetry(tel)(cfg))
	assert.NotNil(t, cfg.meterProvider)
	assert.NotNil(t, cfg.tracerProvider)
	assert.NotNil(t, cfg.metricsHandler)
}

func TestBuildSyncComponents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  func() *config.Config
		setup   func(f *storagemocks.MockFactory)
		wantErr string
	}{
		{
			name:   "run store failure",
			config: createValidTestConfig,
			setup: func(f *storagemocks.MockFactory) {
				f.EXPECT().CreateRunStore(gomock.Any()).Return(nil, errors.New("boom"))
			},
			wantErr: "failed to create run store",
		},
		{
			name:   "entity writer failure",
			config: createValidTestConfig,
			setup: func(f *storagemocks.MockFactory) {
				f.EXPECT().CreateRunStore(gomock.Any()).Return(nil, nil)
				f.EXPECT().CreateEntityWriter(gomock.Any()).Return(nil, errors.New("boom"))
			},
			wantErr: "failed to create entity writer",
		},
		{
			name:   "queue failure",
			config: createValidTestConfig,
			setup: func(f *storagemocks.MockFactory) {
				f.EXPECT().CreateRunStore(gomock.Any()).Return(nil, nil)
				f.EXPECT().CreateEntityWriter(gomock.Any()).Return(nil, nil)
				f.EXPECT().CreateQueue(gomock.Any()).Return(nil, errors.New("boom"))
			},
			wantErr: "failed to create stage queue",
		},
		{
			name:   "queue dispatch without a queue",
			config: createValidTestConfig,
			setup: func(f *storagemocks.MockFactory) {
				f.EXPECT().CreateRunStore(gomock.Any()).Return(nil, nil)
				f.EXPECT().CreateEntityWriter(gomock.Any()).Return(nil, nil)
				f.EXPECT().CreateQueue(gomock.Any()).Return(nil, nil)
			},
			wantErr: "failed to create stage trigger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			factory := storagemocks.NewMockFactory(ctrl)
			tt.setup(factory)

			b, err := baseConfig(WithConfig(tt.config()), WithStorageFactory(factory))
			require.NoError(t, err)

			_, err = buildSyncComponents(context.Background(), b)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildSyncComponents_Memory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name   string
		config func() *config.Config
	}{
		{name: "queue dispatch", config: createValidTestConfig},
		{name: "http dispatch", config: httpDispatchConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.config()
			factory, err := storage.NewStorageFactory(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(factory.Cleanup)

			b, err := baseConfig(
				WithConfig(cfg),
				WithStorageFactory(factory),
				WithMeterProvider(noop.NewMeterProvider()),
			)
			require.NoError(t, err)

			components, err := buildSyncComponents(ctx, b)
			require.NoError(t, err)
			assert.NotNil(t, components.SyncCoordinator)
			assert.NotNil(t, components.RunStore)
			assert.NotNil(t, components.Queue)
			assert.NotNil(t, components.Trigger)
			assert.NotNil(t, b.fetcher, "a provider client is built from the config")

			svc, err := buildServiceComponents(ctx, b, components)
			require.NoError(t, err)
			require.NoError(t, svc.CheckReadiness(ctx))
		})
	}
}

func TestBuildHTTPServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name            string
		config          func() *config.Config
		metricsHandler  http.Handler
		wantStageRoute  bool
		wantMetricsPath bool
	}{
		{name: "queue dispatch", config: createValidTestConfig},
		{name: "http dispatch mounts stage endpoint", config: httpDispatchConfig, wantStageRoute: true},
		{
			name:   "scrape endpoint",
			config: createValidTestConfig,
			metricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("dirsync_stage_queue_depth 0\n"))
			}),
			wantMetricsPath: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.config()
			factory, err := storage.NewStorageFactory(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(factory.Cleanup)

			opts := []SyncAppOptions{
				WithConfig(cfg),
				WithStorageFactory(factory),
				WithAddress("127.0.0.1:0"),
			}
			if tt.metricsHandler != nil {
				opts = append(opts, WithMetricsHandler(tt.metricsHandler))
			}
			b, err := baseConfig(opts...)
			require.NoError(t, err)

			components, err := buildSyncComponents(ctx, b)
			require.NoError(t, err)
			components.SyncService, err = buildServiceComponents(ctx, b, components)
			require.NoError(t, err)

			server, err := buildHTTPServer(ctx, b, components)
			require.NoError(t, err)
			assert.Equal(t, "127.0.0.1:0", server.Addr)
			assert.Equal(t, defaultReadTimeout, server.ReadTimeout)
			assert.Equal(t, defaultWriteTimeout, server.WriteTimeout)
			assert.Equal(t, defaultIdleTimeout, server.IdleTimeout)
			assert.Equal(t, defaultReadTimeout, server.ReadHeaderTimeout)

			chain, err := middlewareChain(b)
			require.NoError(t, err)
			assert.Len(t, chain, 5, "default middlewares")

			rr := httptest.NewRecorder()
			server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, rr.Code)

			// An empty body is rejected by the stage endpoint, and not routed at all without it.
			rr = httptest.NewRecorder()
			server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/v1/stages/users", nil))
			if tt.wantStageRoute {
				assert.Equal(t, http.StatusBadRequest, rr.Code)
			} else {
				assert.Equal(t, http.StatusNotFound, rr.Code)
			}

			rr = httptest.NewRecorder()
			server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			if tt.wantMetricsPath {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Contains(t, rr.Body.String(), "dirsync_stage_queue_depth")
			} else {
				assert.Equal(t, http.StatusNotFound, rr.Code)
			}
		})
	}
}

func TestBuildHTTPServer_TelemetryMiddlewares(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	cfg := createValidTestConfig()
	factory, err := storage.NewStorageFactory(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(factory.Cleanup)

	b, err := baseConfig(
		WithConfig(cfg),
		WithStorageFactory(factory),
		WithMeterProvider(mp),
		WithTracerProvider(tracenoop.NewTracerProvider()),
	)
	require.NoError(t, err)

	components, err := buildSyncComponents(ctx, b)
	require.NoError(t, err)
	components.SyncService, err = buildServiceComponents(ctx, b, components)
	require.NoError(t, err)

	_, err = buildHTTPServer(ctx, b, components)
	require.NoError(t, err)

	chain, err := middlewareChain(b)
	require.NoError(t, err)
	assert.Len(t, chain, 7, "metrics and tracing are prepended to the defaults")

	custom, err := baseConfig(WithConfig(cfg), WithMiddlewares(middleware.NoCache), WithMeterProvider(mp))
	require.NoError(t, err)
	chain, err = middlewareChain(custom)
	require.NoError(t, err)
	assert.Len(t, chain, 2, "custom middlewares replace the defaults only")
}

func TestNewSyncApp_StorageFactoryErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := storagemocks.NewMockFactory(ctrl)
	factory.EXPECT().CreateRunStore(gomock.Any()).Return(nil, errors.New("connection refused"))
	factory.EXPECT().Cleanup().Times(1)

	app, err := NewSyncApp(context.Background(),
		WithConfig(createValidTestConfig()),
		WithStorageFactory(factory),
	)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "failed to build sync components")
}

func TestNewSyncApp_UnknownStorage(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig()
	cfg.Storage.Type = "file"

	_, err := NewSyncApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type")
}

func TestNewSyncApp_RunFailsOnRejectedCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	fetcher := providermocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Open(gomock.Any(), gomock.Any()).
		Return(nil, &provider.Error{Kind: provider.ErrorKindPermanent, Message: "invalid_grant"}).
		AnyTimes()

	app, err := NewSyncApp(ctx,
		WithConfig(createValidTestConfig()),
		WithFetcher(fetcher),
		WithAddress("127.0.0.1:0"),
	)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = app.GetComponents().SyncCoordinator.Start(app.ctx)
	}()
	t.Cleanup(func() {
		_ = app.GetComponents().SyncCoordinator.Stop()
		<-done
		app.cancelFunc()
	})

	handler := app.GetHTTPServer().Handler

	body, err := json.Marshal(map[string]any{
		"organizationId": "org-1",
		"credentials":    map[string]any{"accessToken": "ya29.expired"},
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sync", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rr.Code)

	var started struct {
		SyncRunID uuid.UUID `json:"syncRunId"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&started))
	require.NotEqual(t, uuid.Nil, started.SyncRunID)

	var run status.SyncRun
	require.Eventually(t, func() bool {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sync/status?syncId="+started.SyncRunID.String(), nil))
		if rr.Code != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(rr.Body).Decode(&run); err != nil {
			return false
		}
		return run.Status.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, status.RunStatusFailed, run.Status)
	assert.Equal(t, "org-1", run.OrganizationID)
	assert.Equal(t, "users", run.Stage)
}
