// Package dispatch hands a stage task to the stage that runs it, either by
// enqueueing it on the local stage queue or by posting it to the internal
// stage endpoint of another replica.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/httpclient"
	"github.com/stitchflow-website/dirsync/internal/queue"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
)

// StagePath is the route of the internal stage endpoint, relative to the
// internal base URL
const StagePath = "/internal/v1/stages/"

// QueueTrigger enqueues stage tasks on a local queue
type QueueTrigger struct {
	queue queue.Queue
}

var _ pkgsync.Trigger = (*QueueTrigger)(nil)

// NewQueueTrigger creates a trigger that enqueues on q
func NewQueueTrigger(q queue.Queue) *QueueTrigger {
	return &QueueTrigger{queue: q}
}

// Trigger implements sync.Trigger
func (t *QueueTrigger) Trigger(ctx context.Context, task *pkgsync.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode %s task: %w", task.Stage, err)
	}
	if err := t.queue.Enqueue(ctx, string(task.Stage), task.SyncRunID, payload); err != nil {
		return err
	}

	slog.Debug("Stage task enqueued",
		"stage", task.Stage,
		"organization_id", task.OrganizationID,
		"sync_run_id", task.SyncRunID)
	return nil
}

// HTTPTrigger posts stage tasks to the internal stage endpoint
type HTTPTrigger struct {
	client  httpclient.Client
	baseURL string
}

var _ pkgsync.Trigger = (*HTTPTrigger)(nil)

// NewHTTPTrigger creates a trigger that posts to baseURL with client
func NewHTTPTrigger(client httpclient.Client, baseURL string) *HTTPTrigger {
	return &HTTPTrigger{client: client, baseURL: baseURL}
}

// Trigger implements sync.Trigger. It returns once the endpoint accepted the task.
func (t *HTTPTrigger) Trigger(ctx context.Context, task *pkgsync.Task) error {
	target, err := url.JoinPath(t.baseURL, StagePath, string(task.Stage))
	if err != nil {
		return fmt.Errorf("invalid stage endpoint: %w", err)
	}
	if _, err := t.client.PostJSON(ctx, target, task); err != nil {
		return err
	}

	slog.Debug("Stage task handed off",
		"stage", task.Stage,
		"organization_id", task.OrganizationID,
		"sync_run_id", task.SyncRunID,
		"endpoint", target)
	return nil
}

// New creates the trigger matching the configured dispatch mode
func New(cfg *config.Config, q queue.Queue) (pkgsync.Trigger, error) {
	switch mode := cfg.Pipeline.GetDispatchMode(); mode {
	case config.DispatchModeQueue:
		if q == nil {
			return nil, fmt.Errorf("stage queue is required in %q dispatch mode", mode)
		}
		return NewQueueTrigger(q), nil
	case config.DispatchModeHTTP:
		client := httpclient.NewDefaultClient(cfg.Pipeline.GetDispatchTimeout())
		return NewHTTPTrigger(client, cfg.Pipeline.Dispatch.InternalURL), nil
	default:
		return nil, fmt.Errorf("unsupported dispatch mode: %s", mode)
	}
}
