package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/otel"
	"github.com/stitchflow-website/dirsync/internal/provider"
	"github.com/stitchflow-website/dirsync/internal/status"
	"github.com/stitchflow-website/dirsync/internal/sync/state"
	"github.com/stitchflow-website/dirsync/internal/sync/writer"
)

// finalWriteTimeout bounds the FAILED write issued after a stage was cancelled
const finalWriteTimeout = 10 * time.Second

// Processor executes one stage of a sync run
//
//go:generate mockgen -destination=mocks/mock_processor.go -package=mocks github.com/stitchflow-website/dirsync/internal/sync Processor
type Processor interface {
	// Process runs the stage described by task. Failures are recorded on the
	// run before Process returns; the returned error is informational.
	// ErrRunFinalized means the run was already terminal and nothing ran.
	// ErrStageInterrupted means ctx was cancelled and nothing was recorded.
	Process(ctx context.Context, task *Task) error
}

// StageMetrics receives the outcome of every stage execution
type StageMetrics interface {
	RecordStage(ctx context.Context, stage string, outcome string, duration time.Duration)
}

type checkpoint struct {
	started        int
	startedMessage string
	exit           int
	next           Stage
}

var checkpoints = map[Stage]checkpoint{
	StageUsers:  {started: 10, startedMessage: "Fetching directory users", exit: 30, next: StageGrants},
	StageGrants: {started: 40, startedMessage: "Fetching application grants", exit: 70, next: StageScopes},
	StageScopes: {started: 80, startedMessage: "Fetching grant scopes", exit: status.ProgressComplete},
}

// StageProcessor is the Processor of the directory pipeline
type StageProcessor struct {
	runs     state.RunStore
	entities writer.EntityWriter
	fetcher  provider.Fetcher
	trigger  Trigger
	clock    clock.PassiveClock
	tracer   trace.Tracer
	metrics  StageMetrics
}

var _ Processor = (*StageProcessor)(nil)

// ProcessorOption configures a StageProcessor
type ProcessorOption func(*StageProcessor)

// WithClock sets the clock used to time stages
func WithClock(clk clock.PassiveClock) ProcessorOption {
	return func(p *StageProcessor) {
		p.clock = clk
	}
}

// WithTracer enables a span per stage
func WithTracer(tracer trace.Tracer) ProcessorOption {
	return func(p *StageProcessor) {
		p.tracer = tracer
	}
}

// WithStageMetrics enables stage metrics
func WithStageMetrics(m StageMetrics) ProcessorOption {
	return func(p *StageProcessor) {
		p.metrics = m
	}
}

// NewStageProcessor creates a StageProcessor
func NewStageProcessor(
	runs state.RunStore,
	entities writer.EntityWriter,
	fetcher provider.Fetcher,
	trigger Trigger,
	opts ...ProcessorOption,
) *StageProcessor {
	p := &StageProcessor{
		runs:     runs,
		entities: entities,
		fetcher:  fetcher,
		trigger:  trigger,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process implements Processor
func (p *StageProcessor) Process(ctx context.Context, task *Task) (err error) {
	start := p.clock.Now()
	logger := slog.With(
		"stage", task.Stage,
		"sync_run_id", task.SyncRunID,
		"organization_id", task.OrganizationID)

	ctx, span := otel.StartSpan(ctx, p.tracer, "sync.stage",
		trace.WithAttributes(otel.RunAttributes(task.OrganizationID, task.SyncRunID.String(), string(task.Stage))...))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Stage panicked", "panic", r, "stack", string(debug.Stack()))
			err = &Error{Kind: ErrorKindInternal, Stage: task.Stage, Message: fmt.Sprintf("unexpected internal error: %v", r)}
			p.recordFailure(ctx, task, err, logger)
		}

		outcome := "completed"
		switch {
		case errors.Is(err, ErrRunFinalized):
			outcome = "skipped"
		case errors.Is(err, ErrStageInterrupted):
			outcome = "interrupted"
		case err != nil:
			outcome = string(KindOf(err))
			otel.Fail(span, outcome, err)
		}
		if p.metrics != nil {
			p.metrics.RecordStage(ctx, string(task.Stage), outcome, p.clock.Since(start))
		}
	}()

	if err := task.Validate(); err != nil {
		logger.Warn("Rejecting stage task", "error", err)
		if task.SyncRunID != uuid.Nil {
			p.recordFailure(ctx, task, err, logger)
		}
		return err
	}

	run, err := p.runs.GetRun(ctx, task.SyncRunID)
	if err != nil {
		if errors.Is(err, state.ErrRunNotFound) {
			return &Error{Kind: ErrorKindValidation, Stage: task.Stage, Message: "sync run does not exist", Err: err}
		}
		return persistenceError(task.Stage, "failed to read sync run", err)
	}
	if run.OrganizationID != task.OrganizationID {
		err := &Error{Kind: ErrorKindValidation, Stage: task.Stage, Message: "task organization does not own the sync run"}
		logger.Warn("Rejecting stage task", "run_organization_id", run.OrganizationID)
		return err
	}
	if run.Status.IsTerminal() {
		logger.Info("Sync run already finalized, skipping stage", "status", run.Status)
		return ErrRunFinalized
	}

	cp := checkpoints[task.Stage]
	if err := p.report(ctx, task, status.RunStatusInProgress, cp.started, cp.startedMessage); err != nil {
		return p.stageFailed(ctx, task, err, logger)
	}

	next, summary, err := p.runStage(ctx, task)
	if err != nil {
		return p.stageFailed(ctx, task, err, logger)
	}

	if next == nil {
		if err := p.report(ctx, task, status.RunStatusCompleted, status.ProgressComplete, summary); err != nil {
			return p.stageFailed(ctx, task, err, logger)
		}
		logger.Info("Sync run completed", "summary", summary)
		return nil
	}

	if err := p.report(ctx, task, status.RunStatusInProgress, cp.exit, summary); err != nil {
		return p.stageFailed(ctx, task, err, logger)
	}

	if err := p.trigger.Trigger(ctx, next); err != nil {
		return p.stageFailed(ctx, task, &Error{
			Kind:    ErrorKindDispatch,
			Stage:   task.Stage,
			Message: fmt.Sprintf("failed to start the %s stage", next.Stage),
			Err:     err,
		}, logger)
	}

	logger.Info("Stage finished", "next_stage", next.Stage, "summary", summary)
	return nil
}

// runStage fetches, stores and builds the task of the next stage. A nil task
// means the run is complete. The summary describes what was imported.
func (p *StageProcessor) runStage(ctx context.Context, task *Task) (*Task, string, error) {
	session, err := p.fetcher.Open(ctx, task.Credentials)
	if err != nil {
		return nil, "", upstreamError(task.Stage, "failed to authenticate with the directory provider", err)
	}

	switch task.Stage {
	case StageUsers:
		return p.importUsers(ctx, task, session)
	case StageGrants:
		return p.importGrants(ctx, task, session)
	case StageScopes:
		return p.importScopes(ctx, task, session)
	default:
		return nil, "", &Error{Kind: ErrorKindValidation, Stage: task.Stage, Message: "unknown stage"}
	}
}

func (p *StageProcessor) importUsers(ctx context.Context, task *Task, session provider.Session) (*Task, string, error) {
	items, err := session.FetchAll(ctx, provider.Request{Collection: provider.CollectionUsers})
	if err != nil {
		return nil, "", upstreamError(task.Stage, "failed to fetch users from the directory provider", err)
	}

	batch := normalizeUsers(items)
	if batch.placeholders > 0 {
		slog.Warn("Stored placeholders for malformed users", "sync_run_id", task.SyncRunID, "count", batch.placeholders)
	}

	ids, err := p.entities.UpsertUsers(ctx, task.OrganizationID, batch.users)
	if err != nil {
		return nil, "", persistenceError(task.Stage, "failed to store users", err)
	}

	next := task.next(StageGrants, session.Credentials(), Carryover{
		UserIDs:             ids,
		SynthesizedUserKeys: batch.synthesized,
	})
	return next, fmt.Sprintf("Imported %d users", len(ids)), nil
}

func (p *StageProcessor) importGrants(ctx context.Context, task *Task, session provider.Session) (*Task, string, error) {
	userKeys := slices.DeleteFunc(sortedKeys(task.Carryover.UserIDs), func(key string) bool {
		return slices.Contains(task.Carryover.SynthesizedUserKeys, key)
	})
	reqs := make([]provider.Request, len(userKeys))
	for i, key := range userKeys {
		reqs[i] = provider.Request{Collection: provider.CollectionGrants, UserKey: key}
	}

	results, err := session.FetchEach(ctx, reqs)
	if err != nil {
		return nil, "", upstreamError(task.Stage, "failed to fetch grants from the directory provider", err)
	}

	batch := normalizeGrants(userKeys, results, task.Carryover.UserIDs)
	if batch.placeholders > 0 {
		slog.Warn("Stored placeholders for malformed grants", "sync_run_id", task.SyncRunID, "count", batch.placeholders)
	}

	ids, err := p.entities.UpsertGrants(ctx, task.OrganizationID, batch.applications, batch.grants)
	if err != nil {
		return nil, "", persistenceError(task.Stage, "failed to store grants", err)
	}

	next := task.next(StageScopes, session.Credentials(), Carryover{GrantIDs: ids, GrantRefs: batch.refs})
	return next, fmt.Sprintf("Imported %d grants to %d applications", len(ids), len(batch.applications)), nil
}

func (p *StageProcessor) importScopes(ctx context.Context, task *Task, session provider.Session) (*Task, string, error) {
	var (
		keys = sortedKeys(task.Carryover.GrantIDs)
		refs = make(map[string]GrantRef, len(keys))
		reqs = make([]provider.Request, 0, len(keys))
	)
	for _, key := range keys {
		ref, ok := grantRefFor(key, task.Carryover.GrantRefs)
		if !ok {
			return nil, "", &Error{
				Kind:    ErrorKindValidation,
				Stage:   task.Stage,
				Message: fmt.Sprintf("cannot locate grant %q at the provider", key),
			}
		}
		refs[key] = ref
		reqs = append(reqs, provider.Request{
			Collection: provider.CollectionScopes,
			UserKey:    ref.UserKey,
			ClientID:   ref.ClientID,
		})
	}

	results, err := session.FetchEach(ctx, reqs)
	if err != nil {
		return nil, "", upstreamError(task.Stage, "failed to fetch grant scopes from the directory provider", err)
	}

	batch := normalizeScopes(keys, results, task.Carryover.GrantIDs, refs)
	if batch.skipped > 0 {
		slog.Warn("Skipped malformed scopes", "sync_run_id", task.SyncRunID, "count", batch.skipped)
	}

	written, err := p.entities.UpsertScopes(ctx, task.OrganizationID, batch.scopes, batch.applicationRisk)
	if err != nil {
		return nil, "", persistenceError(task.Stage, "failed to store grant scopes", err)
	}

	return nil, fmt.Sprintf("Sync completed: imported %d scopes", written), nil
}

// report writes a progress update. A run that was finalized meanwhile yields ErrRunFinalized.
func (p *StageProcessor) report(ctx context.Context, task *Task, st status.RunStatus, progress int, message string) error {
	_, err := p.runs.UpdateRun(ctx, task.SyncRunID, status.RunUpdate{
		Status:   st,
		Progress: progress,
		Message:  message,
		Stage:    string(task.Stage),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrConditionFailed):
		return ErrRunFinalized
	default:
		return persistenceError(task.Stage, "failed to update sync status", err)
	}
}

// stageFailed records err on the run unless the run is already terminal or
// the stage was interrupted
func (p *StageProcessor) stageFailed(ctx context.Context, task *Task, err error, logger *slog.Logger) error {
	if errors.Is(err, ErrRunFinalized) {
		logger.Info("Sync run finalized while the stage was running, stopping")
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Warn("Stage interrupted, leaving the run for redelivery", "error", err)
		return fmt.Errorf("%w: %w", ErrStageInterrupted, err)
	}
	logger.Error("Stage failed", "error_kind", KindOf(err), "error", err)
	p.recordFailure(ctx, task, err, logger)
	return err
}

// recordFailure marks the run FAILED. The write survives cancellation of ctx so
// a stage hitting its deadline still leaves a terminal record.
func (p *StageProcessor) recordFailure(ctx context.Context, task *Task, cause error, logger *slog.Logger) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	_, err := p.runs.UpdateRun(writeCtx, task.SyncRunID, status.RunUpdate{
		Status:  status.RunStatusFailed,
		Message: FailureMessage(task.Stage, cause),
		Stage:   string(task.Stage),
	})
	if err != nil && !errors.Is(err, state.ErrConditionFailed) {
		logger.Error("Failed to record sync failure", "error", err, "cause", cause)
	}
}

// FailureMessage is the status message of a run that failed in stage
func FailureMessage(stage Stage, cause error) string {
	if stage == "" {
		return fmt.Sprintf("Sync failed: %v", cause)
	}
	return fmt.Sprintf("Sync failed during the %s stage: %v", stage, cause)
}
