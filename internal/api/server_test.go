package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stitchflow-website/dirsync/internal/api"
	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/provider"
	"github.com/stitchflow-website/dirsync/internal/queue"
	"github.com/stitchflow-website/dirsync/internal/service"
	"github.com/stitchflow-website/dirsync/internal/service/mocks"
	"github.com/stitchflow-website/dirsync/internal/status"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
	"github.com/stitchflow-website/dirsync/internal/sync/dispatch"
	syncmocks "github.com/stitchflow-website/dirsync/internal/sync/mocks"
)

func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// No expectations needed - health check doesn't call service
	server := api.NewServer(mocks.NewMockSyncService(ctrl))

	rr := serve(t, server, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		readinessErr   error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "service ready",
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			name:           "service not ready",
			readinessErr:   fmt.Errorf("database unreachable"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "database unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockSvc := mocks.NewMockSyncService(ctrl)
			mockSvc.EXPECT().CheckReadiness(gomock.Any()).Return(tt.readinessErr)

			rr := serve(t, api.NewServer(mockSvc), http.MethodGet, "/readiness", "")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := serve(t, api.NewServer(mocks.NewMockSyncService(ctrl)), http.MethodGet, "/version", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Contains(t, response, "version")
	assert.Contains(t, response, "go_version")
	assert.Contains(t, response, "platform")
}

func TestStartSync(t *testing.T) {
	t.Parallel()

	runID := uuid.New()

	tests := []struct {
		name           string
		body           string
		setupMock      func(*mocks.MockSyncService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "started",
			body: `{"organizationId":"O1","credentials":{"accessToken":"at","refreshToken":"rt","expiry":"2026-03-01T13:00:00Z"}}`,
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().
					StartSync(gomock.Any(), "O1", provider.Credentials{
						AccessToken:  "at",
						RefreshToken: "rt",
						Expiry:       time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
					}).
					Return(runID, nil)
			},
			expectedStatus: http.StatusAccepted,
			expectedBody:   `{"syncRunId":"` + runID.String() + `"}`,
		},
		{
			name: "missing fields",
			body: `{"organizationId":""}`,
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().StartSync(gomock.Any(), "", provider.Credentials{}).
					Return(uuid.Nil, fmt.Errorf("%w: missing organizationId", service.ErrInvalidRequest))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid request: missing organizationId"}`,
		},
		{
			name:           "malformed body",
			body:           `{"organizationId":`,
			setupMock:      func(*mocks.MockSyncService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			body: `{"organizationId":"O1","credentials":{"accessToken":"at"}}`,
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().StartSync(gomock.Any(), "O1", gomock.Any()).Return(uuid.Nil, errors.New("connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Failed to start sync"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockSvc := mocks.NewMockSyncService(ctrl)
			tt.setupMock(mockSvc)

			rr := serve(t, api.NewServer(mockSvc), http.MethodPost, "/v1/sync", tt.body)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			}
		})
	}
}

func TestGetSyncStatus(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	run := &status.SyncRun{
		ID:             runID,
		OrganizationID: "O1",
		Status:         status.RunStatusPartial,
		Progress:       30,
		Message:        "Sync stalled after the users stage at 30%; partial data is available",
		Stage:          "users",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC),
	}

	tests := []struct {
		name           string
		query          string
		setupMock      func(*mocks.MockSyncService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "neither id",
			query:          "",
			setupMock:      func(*mocks.MockSyncService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"syncId or orgId is required"}`,
		},
		{
			name:           "blank ids",
			query:          "?syncId=%20&orgId=",
			setupMock:      func(*mocks.MockSyncService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"syncId or orgId is required"}`,
		},
		{
			name:           "invalid sync id",
			query:          "?syncId=not-a-uuid",
			setupMock:      func(*mocks.MockSyncService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "by sync id",
			query: "?syncId=" + runID.String() + "&orgId=ignored",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().GetStatus(gomock.Any(), runID).Return(run, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{
				"id": "` + runID.String() + `",
				"organizationId": "O1",
				"status": "PARTIAL",
				"progress": 30,
				"message": "Sync stalled after the users stage at 30%; partial data is available",
				"stage": "users",
				"createdAt": "2026-03-01T12:00:00Z",
				"updatedAt": "2026-03-01T12:01:00Z"
			}`,
		},
		{
			name:  "by organization",
			query: "?orgId=O1",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().GetLatestStatus(gomock.Any(), "O1").Return(run, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "unknown run",
			query: "?syncId=" + runID.String(),
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().GetStatus(gomock.Any(), runID).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `null`,
		},
		{
			name:  "store failure",
			query: "?orgId=O1",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().GetLatestStatus(gomock.Any(), "O1").Return(nil, errors.New("connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Failed to get sync status"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockSvc := mocks.NewMockSyncService(ctrl)
			tt.setupMock(mockSvc)

			rr := serve(t, api.NewServer(mockSvc), http.MethodGet, "/v1/sync/status"+tt.query, "")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			}
		})
	}
}

func stageBody(t *testing.T, task *pkgsync.Task) string {
	t.Helper()
	data, err := json.Marshal(task)
	require.NoError(t, err)
	return string(data)
}

func validTask(stage pkgsync.Stage) *pkgsync.Task {
	return &pkgsync.Task{
		Stage:          stage,
		OrganizationID: "O1",
		SyncRunID:      uuid.New(),
		Credentials:    provider.Credentials{AccessToken: "at"},
		Carryover: pkgsync.Carryover{
			UserIDs:  map[string]uuid.UUID{},
			GrantIDs: map[string]uuid.UUID{},
		},
	}
}

func TestStageEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		body           func(t *testing.T) string
		triggerErr     error
		expectTrigger  bool
		expectedStatus int
	}{
		{
			name:           "accepted",
			path:           "/internal/v1/stages/grants",
			body:           func(t *testing.T) string { return stageBody(t, validTask(pkgsync.StageGrants)) },
			expectTrigger:  true,
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "queue full",
			path:           "/internal/v1/stages/grants",
			body:           func(t *testing.T) string { return stageBody(t, validTask(pkgsync.StageGrants)) },
			triggerErr:     queue.ErrQueueFull,
			expectTrigger:  true,
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "enqueue failure",
			path:           "/internal/v1/stages/grants",
			body:           func(t *testing.T) string { return stageBody(t, validTask(pkgsync.StageGrants)) },
			triggerErr:     errors.New("connection refused"),
			expectTrigger:  true,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "unknown stage",
			path:           "/internal/v1/stages/groups",
			body:           func(t *testing.T) string { return stageBody(t, validTask(pkgsync.StageGrants)) },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "stage mismatch",
			path:           "/internal/v1/stages/scopes",
			body:           func(t *testing.T) string { return stageBody(t, validTask(pkgsync.StageGrants)) },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing carryover",
			path: "/internal/v1/stages/grants",
			body: func(t *testing.T) string {
				task := validTask(pkgsync.StageGrants)
				task.Carryover.UserIDs = nil
				return stageBody(t, task)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body",
			path:           "/internal/v1/stages/users",
			body:           func(*testing.T) string { return `{"stage":` },
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			trigger := syncmocks.NewMockTrigger(ctrl)
			if tt.expectTrigger {
				trigger.EXPECT().Trigger(gomock.Any(), gomock.Any()).Return(tt.triggerErr)
			}

			server := api.NewServer(mocks.NewMockSyncService(ctrl), api.WithStageEndpoint(trigger))
			rr := serve(t, server, http.MethodPost, tt.path, tt.body(t))

			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestStageEndpoint_NotMountedByDefault(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := serve(t, api.NewServer(mocks.NewMockSyncService(ctrl)), http.MethodPost,
		"/internal/v1/stages/users", stageBody(t, validTask(pkgsync.StageUsers)))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStageEndpoint_EnqueuesLocally(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	q := queue.NewMemoryQueue(1)
	server := api.NewServer(mocks.NewMockSyncService(ctrl), api.WithStageEndpoint(dispatch.NewQueueTrigger(q)))

	// The HTTP trigger of another replica posts here.
	target := httptest.NewServer(server)
	t.Cleanup(target.Close)

	task := validTask(pkgsync.StageScopes)
	trigger, err := dispatch.New(httpDispatchConfig(target.URL), nil)
	require.NoError(t, err)
	require.NoError(t, trigger.Trigger(context.Background(), task))

	lease, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	decoded, err := pkgsync.DecodeTask(lease.Payload)
	require.NoError(t, err)
	assert.Equal(t, task.SyncRunID, decoded.SyncRunID)
	assert.Equal(t, pkgsync.StageScopes, decoded.Stage)

	// A second task does not fit.
	err = trigger.Trigger(context.Background(), validTask(pkgsync.StageScopes))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dirsync_stage_duration_seconds_count 1\n"))
	})
	server := api.NewServer(mocks.NewMockSyncService(ctrl), api.WithMetricsHandler(metrics))

	rr := serve(t, server, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "dirsync_stage_duration_seconds_count")
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	server := api.NewServer(mocks.NewMockSyncService(ctrl), api.WithMiddlewares(api.LoggingMiddleware))
	rr := serve(t, server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func httpDispatchConfig(internalURL string) *config.Config {
	return &config.Config{Pipeline: config.PipelineConfig{
		Dispatch: config.DispatchConfig{Mode: config.DispatchModeHTTP, InternalURL: internalURL},
	}}
}
