// Package queue holds stage tasks between the stage that enqueues them and the
// worker that runs them. Delivery is at-least-once: a task leased by a worker
// that dies before acknowledging it becomes visible again once its lease expires.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/config"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue is at capacity
	ErrQueueFull = errors.New("stage queue is full")

	// ErrLeaseLost is returned by Ack when the lease expired and the task was
	// handed to another worker
	ErrLeaseLost = errors.New("stage task lease lost")
)

// Lease is a task handed to one worker
type Lease struct {
	ID        uuid.UUID
	Stage     string
	SyncRunID uuid.UUID
	Payload   []byte

	// Attempts counts deliveries, this one included
	Attempts int
}

// Queue is a stage task queue
//
//go:generate mockgen -destination=mocks/mock_queue.go -package=mocks github.com/stitchflow-website/dirsync/internal/queue Queue
type Queue interface {
	// Enqueue adds a task. It does not block when the queue is full.
	Enqueue(ctx context.Context, stage string, syncRunID uuid.UUID, payload []byte) error

	// Dequeue blocks until a task is available or ctx is done
	Dequeue(ctx context.Context) (*Lease, error)

	// Ack removes a delivered task for good
	Ack(ctx context.Context, lease *Lease) error

	// Depth returns the number of queued or leased tasks
	Depth(ctx context.Context) (int, error)
}

// New creates the queue matching the configured storage type.
// For database storage, the pool parameter must not be nil.
func New(cfg *config.Config, pool *pgxpool.Pool, clk clock.Clock) (Queue, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewPostgresQueue(pool, clk, cfg.Pipeline.GetLeaseDuration(), cfg.Pipeline.GetPollInterval())
	case config.StorageTypeMemory:
		return NewMemoryQueue(cfg.Pipeline.GetQueueCapacity()), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.GetStorageType())
	}
}

// wait sleeps for d or until ctx is done
func wait(ctx context.Context, clk clock.Clock, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
