package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/db/sqlc"
	"github.com/stitchflow-website/dirsync/internal/status"
)

type dbRunStore struct {
	pool  *pgxpool.Pool
	clock clock.PassiveClock
}

// NewDBRunStore creates a PostgreSQL-backed run store
func NewDBRunStore(pool *pgxpool.Pool, clk clock.PassiveClock) RunStore {
	return &dbRunStore{
		pool:  pool,
		clock: clk,
	}
}

func (d *dbRunStore) CreateRun(ctx context.Context, run *status.SyncRun) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	queries := sqlc.New(d.pool).WithTx(tx)

	created, err := queries.InsertSyncRun(ctx, sqlc.InsertSyncRunParams{
		ID:             run.ID,
		OrganizationID: run.OrganizationID,
		Status:         toDBStatus(run.Status),
		Progress:       int32(run.Progress),
		Message:        run.Message,
		Stage:          run.Stage,
		CreatedAt:      run.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	err = queries.UpsertOrganizationLatestSync(ctx, sqlc.UpsertOrganizationLatestSyncParams{
		OrganizationID: run.OrganizationID,
		SyncRunID:      created.ID,
		UpdatedAt:      created.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to update latest sync of organization: %w", err)
	}

	return tx.Commit(ctx)
}

func (d *dbRunStore) GetRun(ctx context.Context, id uuid.UUID) (*status.SyncRun, error) {
	row, err := sqlc.New(d.pool).GetSyncRun(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return dbRunToStatus(row), nil
}

func (d *dbRunStore) GetLatestRun(ctx context.Context, organizationID string) (*status.SyncRun, error) {
	row, err := sqlc.New(d.pool).GetLatestSyncRun(ctx, organizationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return dbRunToStatus(row), nil
}

func (d *dbRunStore) UpdateRun(ctx context.Context, id uuid.UUID, update status.RunUpdate) (*status.SyncRun, error) {
	update = update.Normalize()
	queries := sqlc.New(d.pool)

	row, err := queries.UpdateInProgressSyncRun(ctx, sqlc.UpdateInProgressSyncRunParams{
		Status:    toDBStatus(update.Status),
		Progress:  int32(update.Progress),
		Message:   update.Message,
		Stage:     update.Stage,
		UpdatedAt: d.clock.Now().UTC().Truncate(time.Microsecond),
		ID:        id,
	})
	if err == nil {
		return dbRunToStatus(row), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Nothing matched: tell a missing run apart from a terminal one.
	if _, getErr := queries.GetSyncRun(ctx, id); getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, getErr
	}
	return nil, ErrConditionFailed
}

func (d *dbRunStore) CompareAndSwap(
	ctx context.Context,
	expectedUpdatedAt time.Time,
	corrected *status.SyncRun,
) (*status.SyncRun, error) {
	row, err := sqlc.New(d.pool).CompareAndSwapSyncRun(ctx, sqlc.CompareAndSwapSyncRunParams{
		Status:            toDBStatus(corrected.Status),
		Progress:          int32(corrected.Progress),
		Message:           corrected.Message,
		Stage:             corrected.Stage,
		NewUpdatedAt:      corrected.UpdatedAt,
		ID:                corrected.ID,
		ExpectedUpdatedAt: expectedUpdatedAt,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConditionFailed
		}
		return nil, err
	}
	return dbRunToStatus(row), nil
}

// dbRunToStatus converts a database row to a status.SyncRun
func dbRunToStatus(row sqlc.SyncRun) *status.SyncRun {
	return &status.SyncRun{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		Status:         fromDBStatus(row.Status),
		Progress:       int(row.Progress),
		Message:        row.Message,
		Stage:          row.Stage,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func toDBStatus(s status.RunStatus) sqlc.SyncRunStatus {
	switch s {
	case status.RunStatusCompleted:
		return sqlc.SyncRunStatusCOMPLETED
	case status.RunStatusFailed:
		return sqlc.SyncRunStatusFAILED
	case status.RunStatusPartial:
		return sqlc.SyncRunStatusPARTIAL
	default:
		return sqlc.SyncRunStatusINPROGRESS
	}
}

func fromDBStatus(s sqlc.SyncRunStatus) status.RunStatus {
	switch s {
	case sqlc.SyncRunStatusCOMPLETED:
		return status.RunStatusCompleted
	case sqlc.SyncRunStatusFAILED:
		return status.RunStatusFailed
	case sqlc.SyncRunStatusPARTIAL:
		return status.RunStatusPartial
	default:
		return status.RunStatusInProgress
	}
}
