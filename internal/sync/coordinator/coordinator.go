package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/queue"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
)

// ackTimeout bounds the acknowledgement of a finished task
const ackTimeout = 10 * time.Second

// ErrAlreadyStarted is returned by Start on a coordinator that was started before
var ErrAlreadyStarted = errors.New("stage workers already started")

// Coordinator manages the stage worker pool
type Coordinator interface {
	// Start runs the workers. It blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the workers and waits for running stages
	Stop() error
}

// QueueMetrics receives queue depth samples
type QueueMetrics interface {
	RecordQueueDepth(ctx context.Context, depth int64)
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	processor pkgsync.Processor
	queue     queue.Queue
	config    *config.Config

	// Lifecycle management
	mu         sync.Mutex
	started    bool
	cancelFunc context.CancelFunc
	done       chan struct{}

	queueMetrics QueueMetrics
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithQueueMetrics sets the queue metrics for the coordinator
func WithQueueMetrics(metrics QueueMetrics) Option {
	return func(c *defaultCoordinator) {
		c.queueMetrics = metrics
	}
}

// New creates a new coordinator with injected dependencies
func New(
	processor pkgsync.Processor,
	q queue.Queue,
	cfg *config.Config,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		processor: processor,
		queue:     q,
		config:    cfg,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start runs the configured number of stage workers
func (c *defaultCoordinator) Start(ctx context.Context) error {
	workers := c.config.Pipeline.GetWorkers()

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Stage workers shut down")
	}()

	slog.Info("Starting stage workers",
		"workers", workers,
		"stage_timeout", c.config.Pipeline.GetStageTimeout())

	g, gctx := errgroup.WithContext(coordCtx)
	for id := range workers {
		g.Go(func() error {
			c.consume(gctx, id)
			return nil
		})
	}
	if c.queueMetrics != nil {
		g.Go(func() error {
			c.reportDepth(gctx)
			return nil
		})
	}

	return g.Wait()
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping stage workers")
		cancel()
		// Wait for workers to finish
		<-c.done
	}
	return nil
}

// consume leases tasks until ctx is done
func (c *defaultCoordinator) consume(ctx context.Context, worker int) {
	for {
		lease, err := c.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Failed to dequeue stage task", "worker", worker, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(calculateRetryDelay()):
			}
			continue
		}

		c.runTask(ctx, worker, lease)
	}
}

// runTask executes one leased task and acknowledges it. An interrupted stage
// stays unacknowledged so its lease expires and another worker picks it up.
func (c *defaultCoordinator) runTask(ctx context.Context, worker int, lease *queue.Lease) {
	logger := slog.With(
		"worker", worker,
		"task_id", lease.ID,
		"stage", lease.Stage,
		"sync_run_id", lease.SyncRunID,
		"attempt", lease.Attempts)

	task, err := pkgsync.DecodeTask(lease.Payload)
	if err != nil {
		// A task that cannot be decoded never will be: drop it.
		logger.Error("Discarding malformed stage task", "error", err)
		c.ack(ctx, logger, lease)
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, c.config.Pipeline.GetStageTimeout())
	defer cancel()

	startTime := time.Now()
	err = c.processor.Process(stageCtx, task)
	duration := time.Since(startTime)

	switch {
	case err == nil:
		logger.Info("Stage task finished", "duration", duration)
	case errors.Is(err, pkgsync.ErrStageInterrupted):
		logger.Info("Stage task interrupted, leaving it for redelivery", "duration", duration)
		return
	case errors.Is(err, pkgsync.ErrRunFinalized):
		logger.Info("Stage task skipped, run already finalized", "duration", duration)
	default:
		logger.Warn("Stage task failed",
			"duration", duration,
			"error_kind", pkgsync.KindOf(err),
			"error", err)
	}
	c.ack(ctx, logger, lease)
}

func (c *defaultCoordinator) ack(ctx context.Context, logger *slog.Logger, lease *queue.Lease) {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()

	err := c.queue.Ack(ackCtx, lease)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrLeaseLost):
		logger.Warn("Stage task lease expired before acknowledgement; it has been redelivered")
	default:
		logger.Error("Failed to acknowledge stage task", "error", err)
	}
}

// reportDepth samples the queue depth until ctx is done
func (c *defaultCoordinator) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(depthReportInterval)
	defer ticker.Stop()

	for {
		if depth, err := c.queue.Depth(ctx); err == nil {
			c.queueMetrics.RecordQueueDepth(ctx, int64(depth))
		} else if ctx.Err() == nil {
			slog.Debug("Failed to read stage queue depth", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
