package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/otel"
	"github.com/stitchflow-website/dirsync/internal/provider"
	"github.com/stitchflow-website/dirsync/internal/status"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
	"github.com/stitchflow-website/dirsync/internal/sync/state"
)

const (
	// ServiceTracerName is the name used for the sync service tracer
	ServiceTracerName = "github.com/stitchflow-website/dirsync/internal/service"

	// StartedMessage is the message of a freshly started run
	StartedMessage = "Sync started"

	// maxCorrectionAttempts bounds the compare-and-set loop of a status read
	maxCorrectionAttempts = 3
)

// CorrectionMetrics receives every persisted staleness correction
type CorrectionMetrics interface {
	RecordCorrection(ctx context.Context, to status.RunStatus)
}

// syncService is the default SyncService
type syncService struct {
	runs      state.RunStore
	trigger   pkgsync.Trigger
	policy    status.StalenessPolicy
	clock     clock.PassiveClock
	tracer    trace.Tracer
	metrics   CorrectionMetrics
	readiness func(ctx context.Context) error
}

var _ SyncService = (*syncService)(nil)

// ServiceOption configures the sync service
type ServiceOption func(*syncService)

// WithClock sets the clock used for run timestamps and staleness checks
func WithClock(clk clock.PassiveClock) ServiceOption {
	return func(s *syncService) {
		s.clock = clk
	}
}

// WithTracer enables spans for service operations
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *syncService) {
		s.tracer = tracer
	}
}

// WithCorrectionMetrics sets the metrics recorder for staleness corrections
func WithCorrectionMetrics(metrics CorrectionMetrics) ServiceOption {
	return func(s *syncService) {
		s.metrics = metrics
	}
}

// WithReadinessCheck sets the probe used by CheckReadiness, typically a database ping
func WithReadinessCheck(check func(ctx context.Context) error) ServiceOption {
	return func(s *syncService) {
		s.readiness = check
	}
}

// NewSyncService creates the sync service
func NewSyncService(
	runs state.RunStore,
	trigger pkgsync.Trigger,
	policy status.StalenessPolicy,
	opts ...ServiceOption,
) (SyncService, error) {
	if runs == nil {
		return nil, fmt.Errorf("run store is required")
	}
	if trigger == nil {
		return nil, fmt.Errorf("stage trigger is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid staleness policy: %w", err)
	}

	s := &syncService{
		runs:    runs,
		trigger: trigger,
		policy:  policy,
		clock:   clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckReadiness implements SyncService
func (s *syncService) CheckReadiness(ctx context.Context) error {
	if s.readiness == nil {
		return nil
	}
	if err := s.readiness(ctx); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	return nil
}

// StartSync implements SyncService
func (s *syncService) StartSync(ctx context.Context, organizationID string, creds provider.Credentials) (uuid.UUID, error) {
	organizationID = strings.TrimSpace(organizationID)

	var missing []string
	if organizationID == "" {
		missing = append(missing, "organizationId")
	}
	if creds.AccessToken == "" {
		missing = append(missing, "credentials.accessToken")
	}
	if len(missing) > 0 {
		return uuid.Nil, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "SyncService.StartSync",
		trace.WithAttributes(otel.AttrOrganizationID.String(organizationID)))
	defer span.End()

	now := s.clock.Now().UTC()
	run := &status.SyncRun{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Status:         status.RunStatusInProgress,
		Progress:       status.ProgressStarted,
		Message:        StartedMessage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		otel.Fail(span, "", err)
		return uuid.Nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	span.SetAttributes(otel.AttrSyncRunID.String(run.ID.String()))

	logger := slog.With("organization_id", organizationID, "sync_run_id", run.ID)
	logger.Info("Sync run started")

	err := s.trigger.Trigger(ctx, &pkgsync.Task{
		Stage:          pkgsync.StageUsers,
		OrganizationID: organizationID,
		SyncRunID:      run.ID,
		Credentials:    creds,
	})
	if err != nil {
		// The caller already owns a run id; the failure is observed by polling it.
		otel.Fail(span, "", err)
		logger.Error("Failed to start the users stage", "error", err)

		_, updateErr := s.runs.UpdateRun(ctx, run.ID, status.RunUpdate{
			Status:  status.RunStatusFailed,
			Message: pkgsync.FailureMessage(pkgsync.StageUsers, fmt.Errorf("failed to start the stage: %w", err)),
			Stage:   string(pkgsync.StageUsers),
		})
		if updateErr != nil {
			logger.Error("Failed to record start failure", "error", updateErr)
		}
	}

	return run.ID, nil
}

// GetStatus implements SyncService
func (s *syncService) GetStatus(ctx context.Context, syncRunID uuid.UUID) (*status.SyncRun, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "SyncService.GetStatus",
		trace.WithAttributes(otel.AttrSyncRunID.String(syncRunID.String())))
	defer span.End()

	run, err := s.runs.GetRun(ctx, syncRunID)
	if errors.Is(err, state.ErrRunNotFound) {
		return nil, nil
	}
	if err != nil {
		otel.Fail(span, "", err)
		return nil, fmt.Errorf("failed to read sync run: %w", err)
	}
	return s.reconcile(ctx, run)
}

// GetLatestStatus implements SyncService
func (s *syncService) GetLatestStatus(ctx context.Context, organizationID string) (*status.SyncRun, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "SyncService.GetLatestStatus",
		trace.WithAttributes(otel.AttrOrganizationID.String(organizationID)))
	defer span.End()

	run, err := s.runs.GetLatestRun(ctx, organizationID)
	if errors.Is(err, state.ErrRunNotFound) {
		return nil, nil
	}
	if err != nil {
		otel.Fail(span, "", err)
		return nil, fmt.Errorf("failed to read latest sync run: %w", err)
	}
	return s.reconcile(ctx, run)
}

// reconcile applies the staleness policy to run and persists a correction.
// When another writer gets there first the fresh record is evaluated again.
func (s *syncService) reconcile(ctx context.Context, run *status.SyncRun) (*status.SyncRun, error) {
	for range maxCorrectionAttempts {
		corrected, changed := s.policy.Evaluate(run, s.clock.Now())
		if !changed {
			return run, nil
		}

		stored, err := s.runs.CompareAndSwap(ctx, run.UpdatedAt, corrected)
		switch {
		case err == nil:
			slog.Info("Sync run reclassified",
				"sync_run_id", run.ID,
				"organization_id", run.OrganizationID,
				"from", run.Status,
				"to", stored.Status,
				"idle", s.clock.Since(run.UpdatedAt))
			if s.metrics != nil {
				s.metrics.RecordCorrection(ctx, stored.Status)
			}
			return stored, nil

		case errors.Is(err, state.ErrConditionFailed):
			fresh, getErr := s.runs.GetRun(ctx, run.ID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to re-read sync run: %w", getErr)
			}
			run = fresh

		default:
			// The correction is a pure function of the record, so the next read
			// derives and retries it.
			slog.Warn("Failed to persist sync run correction",
				"sync_run_id", run.ID,
				"error", err)
			return corrected, nil
		}
	}

	corrected, _ := s.policy.Evaluate(run, s.clock.Now())
	return corrected, nil
}
