package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/db/sqlc"
)

// postgresQueue stores tasks in the stage_tasks table. Workers lease rows with
// FOR UPDATE SKIP LOCKED, so any number of processes can consume concurrently.
type postgresQueue struct {
	pool         *pgxpool.Pool
	clock        clock.Clock
	lease        time.Duration
	pollInterval time.Duration
}

// NewPostgresQueue creates a queue backed by the stage_tasks table
func NewPostgresQueue(pool *pgxpool.Pool, clk clock.Clock, lease, pollInterval time.Duration) (Queue, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	if lease <= 0 {
		return nil, fmt.Errorf("lease duration must be positive, got %s", lease)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", pollInterval)
	}
	return &postgresQueue{pool: pool, clock: clk, lease: lease, pollInterval: pollInterval}, nil
}

func (q *postgresQueue) now() time.Time {
	return q.clock.Now().UTC().Truncate(time.Microsecond)
}

func (q *postgresQueue) Enqueue(ctx context.Context, stage string, syncRunID uuid.UUID, payload []byte) error {
	err := sqlc.New(q.pool).InsertStageTask(ctx, sqlc.InsertStageTaskParams{
		ID:        uuid.New(),
		Stage:     stage,
		SyncRunID: syncRunID,
		Payload:   payload,
		CreatedAt: q.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", stage, err)
	}
	return nil
}

func (q *postgresQueue) Dequeue(ctx context.Context) (*Lease, error) {
	queries := sqlc.New(q.pool)
	for {
		now := q.now()
		row, err := queries.LeaseStageTask(ctx, sqlc.LeaseStageTaskParams{
			LeaseUntil: now.Add(q.lease),
			Now:        now,
		})
		switch {
		case err == nil:
			if row.Attempts > 1 {
				slog.Info("Redelivering stage task",
					"task_id", row.ID,
					"stage", row.Stage,
					"sync_run_id", row.SyncRunID,
					"attempts", row.Attempts)
			}
			return &Lease{
				ID:        row.ID,
				Stage:     row.Stage,
				SyncRunID: row.SyncRunID,
				Payload:   row.Payload,
				Attempts:  int(row.Attempts),
			}, nil
		case errors.Is(err, pgx.ErrNoRows):
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			slog.Warn("Failed to lease stage task", "error", err)
		}

		if err := wait(ctx, q.clock, q.pollInterval); err != nil {
			return nil, err
		}
	}
}

// Ack deletes the task only if it was not re-leased meanwhile, so a worker whose
// lease expired cannot remove a delivery another worker is running.
func (q *postgresQueue) Ack(ctx context.Context, lease *Lease) error {
	rows, err := sqlc.New(q.pool).DeleteStageTask(ctx, sqlc.DeleteStageTaskParams{
		ID:       lease.ID,
		Attempts: int32(lease.Attempts),
	})
	if err != nil {
		return fmt.Errorf("failed to acknowledge stage task %s: %w", lease.ID, err)
	}
	if rows == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (q *postgresQueue) Depth(ctx context.Context) (int, error) {
	n, err := sqlc.New(q.pool).CountStageTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count stage tasks: %w", err)
	}
	return int(n), nil
}
