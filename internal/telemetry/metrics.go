package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/stitchflow-website/dirsync/internal/status"
)

const (
	// SyncMetricsMeterName is the name used for the sync pipeline meter
	SyncMetricsMeterName = "github.com/stitchflow-website/dirsync/sync"

	// QueueMetricsMeterName is the name used for the stage queue meter
	QueueMetricsMeterName = "github.com/stitchflow-website/dirsync/queue"
)

// SyncMetrics holds the OpenTelemetry instruments for the sync pipeline
type SyncMetrics struct {
	stageDuration metric.Float64Histogram
	corrections   metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	stageDuration, err := meter.Float64Histogram(
		"dirsync_stage_duration_seconds",
		metric.WithDescription("Duration of sync stage executions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	corrections, err := meter.Int64Counter(
		"dirsync_run_corrections_total",
		metric.WithDescription("Number of stalled sync runs reclassified by the staleness monitor"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		stageDuration: stageDuration,
		corrections:   corrections,
	}, nil
}

// RecordStage records the duration and outcome of a single stage execution
func (m *SyncMetrics) RecordStage(ctx context.Context, stage string, outcome string, duration time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	}

	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCorrection counts a run moved to a terminal status on read
func (m *SyncMetrics) RecordCorrection(ctx context.Context, to status.RunStatus) {
	if m == nil || m.corrections == nil {
		return
	}

	m.corrections.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
}

// QueueMetrics holds the OpenTelemetry instruments for the stage queue
type QueueMetrics struct {
	depth metric.Int64Gauge
}

// NewQueueMetrics creates a new QueueMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewQueueMetrics(provider metric.MeterProvider) (*QueueMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(QueueMetricsMeterName)

	depth, err := meter.Int64Gauge(
		"dirsync_stage_queue_depth",
		metric.WithDescription("Number of stage tasks waiting to be processed"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	return &QueueMetrics{depth: depth}, nil
}

// RecordQueueDepth records the current number of pending stage tasks
func (m *QueueMetrics) RecordQueueDepth(ctx context.Context, depth int64) {
	if m == nil || m.depth == nil {
		return
	}

	m.depth.Record(ctx, depth)
}
