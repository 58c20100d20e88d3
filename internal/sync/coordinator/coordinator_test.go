package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/mock/gomock"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/provider"
	providermocks "github.com/stitchflow-website/dirsync/internal/provider/mocks"
	"github.com/stitchflow-website/dirsync/internal/queue"
	queuemocks "github.com/stitchflow-website/dirsync/internal/queue/mocks"
	"github.com/stitchflow-website/dirsync/internal/status"
	pkgsync "github.com/stitchflow-website/dirsync/internal/sync"
	syncmocks "github.com/stitchflow-website/dirsync/internal/sync/mocks"
	"github.com/stitchflow-website/dirsync/internal/sync/state"
	"github.com/stitchflow-website/dirsync/internal/sync/writer"
)

func testConfig(workers int) *config.Config {
	return &config.Config{Pipeline: config.PipelineConfig{
		Workers:      workers,
		StageTimeout: "30s",
	}}
}

func enqueueTask(t *testing.T, q queue.Queue, stage pkgsync.Stage) *pkgsync.Task {
	t.Helper()
	task := &pkgsync.Task{
		Stage:          stage,
		OrganizationID: "org-1",
		SyncRunID:      uuid.New(),
		Credentials:    provider.Credentials{AccessToken: "at"},
		Carryover:      pkgsync.Carryover{UserIDs: map[string]uuid.UUID{}},
	}
	payload, err := json.Marshal(task)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), string(stage), task.SyncRunID, payload))
	return task
}

// blockUntilDone makes a Dequeue expectation behave like an empty queue
func blockUntilDone(ctx context.Context) (*queue.Lease, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// startCoordinator runs c in the background and returns a function that stops
// it and reports what Start returned
func startCoordinator(t *testing.T, c Coordinator) func() error {
	t.Helper()
	result := make(chan error, 1)
	go func() {
		result <- c.Start(context.Background())
	}()
	return func() error {
		require.NoError(t, c.Stop())
		select {
		case err := <-result:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator did not stop")
			return nil
		}
	}
}

func TestCalculateRetryDelay(t *testing.T) {
	t.Parallel()

	for range 100 {
		d := calculateRetryDelay()
		assert.GreaterOrEqual(t, d, baseRetryDelay-retryJitter)
		assert.Less(t, d, baseRetryDelay+retryJitter)
	}
}

func TestCoordinator_Stop_BeforeStart(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := New(syncmocks.NewMockProcessor(ctrl), queuemocks.NewMockQueue(ctrl), testConfig(1))

	// Stop should not block if called before Start
	assert.NoError(t, c.Stop())
}

func TestCoordinator_ProcessesQueuedTasks(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	processor := syncmocks.NewMockProcessor(ctrl)
	q := queue.NewMemoryQueue(10)

	expected := map[uuid.UUID]bool{}
	for _, stage := range pkgsync.Stages {
		expected[enqueueTask(t, q, stage).SyncRunID] = true
	}

	done := make(chan uuid.UUID, len(expected))
	processor.EXPECT().
		Process(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, task *pkgsync.Task) error {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok, "stages run under a timeout")
			assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, 5*time.Second)
			done <- task.SyncRunID
			return nil
		}).
		Times(len(expected))

	stop := startCoordinator(t, New(processor, q, testConfig(2)))

	for range len(expected) {
		select {
		case id := <-done:
			assert.True(t, expected[id])
		case <-time.After(5 * time.Second):
			t.Fatal("task was not processed")
		}
	}

	require.NoError(t, stop())
	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestCoordinator_AcksEveryOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		payload    []byte
		processErr error
		ackErr     error
	}{
		{name: "success"},
		{name: "stage failure", processErr: &pkgsync.Error{Kind: pkgsync.ErrorKindUpstreamPermanent, Message: "denied"}},
		{name: "finalized run", processErr: pkgsync.ErrRunFinalized},
		{name: "malformed payload", payload: []byte(`{"stage":`)},
		{name: "lease lost", ackErr: queue.ErrLeaseLost},
		{name: "ack failure", ackErr: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			processor := syncmocks.NewMockProcessor(ctrl)
			q := queuemocks.NewMockQueue(ctrl)

			payload := tt.payload
			if payload == nil {
				payload = []byte(`{"stage":"users","organizationId":"org-1","syncRunId":"` + uuid.NewString() + `","credentials":{"accessToken":"at"},"carryover":{"userIds":null,"grantIds":null}}`)
			}
			lease := &queue.Lease{ID: uuid.New(), Stage: "users", Payload: payload, Attempts: 1}

			gomock.InOrder(
				q.EXPECT().Dequeue(gomock.Any()).Return(lease, nil),
				q.EXPECT().Dequeue(gomock.Any()).DoAndReturn(blockUntilDone).AnyTimes(),
			)
			if tt.payload == nil {
				processor.EXPECT().Process(gomock.Any(), gomock.Any()).Return(tt.processErr)
			}

			acked := make(chan struct{})
			q.EXPECT().Ack(gomock.Any(), lease).DoAndReturn(func(context.Context, *queue.Lease) error {
				close(acked)
				return tt.ackErr
			})

			stop := startCoordinator(t, New(processor, q, testConfig(1)))

			select {
			case <-acked:
			case <-time.After(5 * time.Second):
				t.Fatal("task was not acknowledged")
			}
			require.NoError(t, stop())
		})
	}
}

func TestCoordinator_RetriesAfterDequeueError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := queuemocks.NewMockQueue(ctrl)

	var calls atomic.Int32
	retried := make(chan struct{})
	q.EXPECT().Dequeue(gomock.Any()).DoAndReturn(func(ctx context.Context) (*queue.Lease, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("database unavailable")
		case 2:
			close(retried)
		}
		return blockUntilDone(ctx)
	}).AnyTimes()

	stop := startCoordinator(t, New(syncmocks.NewMockProcessor(ctrl), q, testConfig(1)))

	select {
	case <-retried:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not retry")
	}
	require.NoError(t, stop())
}

type recordingQueueMetrics struct {
	depths chan int64
}

func (r *recordingQueueMetrics) RecordQueueDepth(_ context.Context, depth int64) {
	select {
	case r.depths <- depth:
	default:
	}
}

func TestCoordinator_ReportsQueueDepth(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := queuemocks.NewMockQueue(ctrl)
	q.EXPECT().Dequeue(gomock.Any()).DoAndReturn(blockUntilDone).AnyTimes()
	q.EXPECT().Depth(gomock.Any()).Return(7, nil).MinTimes(1)

	metrics := &recordingQueueMetrics{depths: make(chan int64, 1)}
	stop := startCoordinator(t, New(syncmocks.NewMockProcessor(ctrl), q, testConfig(1), WithQueueMetrics(metrics)))

	select {
	case depth := <-metrics.depths:
		assert.Equal(t, int64(7), depth)
	case <-time.After(5 * time.Second):
		t.Fatal("queue depth was not reported")
	}
	require.NoError(t, stop())
}

func TestCoordinator_StartTwice(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := queuemocks.NewMockQueue(ctrl)
	running := make(chan struct{}, 1)
	q.EXPECT().Dequeue(gomock.Any()).DoAndReturn(func(ctx context.Context) (*queue.Lease, error) {
		select {
		case running <- struct{}{}:
		default:
		}
		return blockUntilDone(ctx)
	}).AnyTimes()

	c := New(syncmocks.NewMockProcessor(ctrl), q, testConfig(1))
	stop := startCoordinator(t, c)

	select {
	case <-running:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not start")
	}
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, stop())
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted, "a stopped coordinator cannot be restarted")
}

func TestCoordinator_StopLeavesInterruptedStageForRedelivery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)

	runs := state.NewMemoryRunStore(clock.RealClock{})
	run := &status.SyncRun{
		ID:             uuid.New(),
		OrganizationID: "org-1",
		Status:         status.RunStatusInProgress,
		Progress:       status.ProgressStarted,
		Message:        "Sync started",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, runs.CreateRun(ctx, run))

	fetching := make(chan struct{})
	session := providermocks.NewMockSession(ctrl)
	session.EXPECT().
		FetchAll(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ provider.Request) ([]gjson.Result, error) {
			close(fetching)
			<-ctx.Done()
			return nil, &provider.Error{Kind: provider.ErrorKindPermanent, Message: ctx.Err().Error(), Err: ctx.Err()}
		})
	fetcher := providermocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Open(gomock.Any(), gomock.Any()).Return(session, nil)

	processor := pkgsync.NewStageProcessor(runs, writer.NewMemoryEntityWriter(), fetcher, syncmocks.NewMockTrigger(ctrl))

	payload, err := json.Marshal(&pkgsync.Task{
		Stage:          pkgsync.StageUsers,
		OrganizationID: run.OrganizationID,
		SyncRunID:      run.ID,
		Credentials:    provider.Credentials{AccessToken: "at"},
	})
	require.NoError(t, err)
	lease := &queue.Lease{ID: uuid.New(), Stage: "users", SyncRunID: run.ID, Payload: payload, Attempts: 1}

	// No Ack expectation: acknowledging the interrupted task fails the test.
	q := queuemocks.NewMockQueue(ctrl)
	gomock.InOrder(
		q.EXPECT().Dequeue(gomock.Any()).Return(lease, nil),
		q.EXPECT().Dequeue(gomock.Any()).DoAndReturn(blockUntilDone).AnyTimes(),
	)

	stop := startCoordinator(t, New(processor, q, testConfig(1)))

	select {
	case <-fetching:
	case <-time.After(5 * time.Second):
		t.Fatal("stage did not start")
	}
	require.NoError(t, stop())

	got, err := runs.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, status.RunStatusInProgress, got.Status, "shutdown must not fail the run")
	assert.NotEqual(t, status.ProgressFailed, got.Progress)
}
