package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/stitchflow-website/dirsync/database"
	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/status"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T, clk *testingclock.FakeClock) RunStore

func memoryStore(_ *testing.T, clk *testingclock.FakeClock) RunStore {
	return NewMemoryRunStore(clk)
}

func databaseStore(t *testing.T, clk *testingclock.FakeClock) RunStore {
	t.Helper()
	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)
	return NewDBRunStore(pool, clk)
}

func newStartedRun(orgID string, at time.Time) *status.SyncRun {
	return &status.SyncRun{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Status:         status.RunStatusInProgress,
		Progress:       status.ProgressStarted,
		Message:        "Sync started",
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestRunStore(t *testing.T) {
	t.Parallel()

	stores := map[string]storeFactory{
		"memory":   memoryStore,
		"database": databaseStore,
	}

	for name, factory := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			runStoreContract(t, factory)
		})
	}
}

//nolint:thelper // We want to see these lines in the test output
func runStoreContract(t *testing.T, factory storeFactory) {
	ctx := context.Background()
	clk := testingclock.NewFakeClock(epoch)
	store := factory(t, clk)

	t.Run("missing runs are reported as not found", func(t *testing.T) {
		_, err := store.GetRun(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrRunNotFound)

		_, err = store.GetLatestRun(ctx, "org-none")
		assert.ErrorIs(t, err, ErrRunNotFound)

		_, err = store.UpdateRun(ctx, uuid.New(), status.RunUpdate{Status: status.RunStatusInProgress})
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("create makes the run the organization's latest", func(t *testing.T) {
		first := newStartedRun("org-latest", clk.Now())
		require.NoError(t, store.CreateRun(ctx, first))

		clk.Step(time.Second)
		second := newStartedRun("org-latest", clk.Now())
		require.NoError(t, store.CreateRun(ctx, second))

		latest, err := store.GetLatestRun(ctx, "org-latest")
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)

		got, err := store.GetRun(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, status.RunStatusInProgress, got.Status)
		assert.Equal(t, "Sync started", got.Message)
		assert.True(t, got.CreatedAt.Equal(first.CreatedAt))
	})

	t.Run("updates advance the heartbeat even without clock movement", func(t *testing.T) {
		run := newStartedRun("org-heartbeat", clk.Now())
		require.NoError(t, store.CreateRun(ctx, run))

		previous := run.CreatedAt
		for progress := 10; progress <= 30; progress += 10 {
			updated, err := store.UpdateRun(ctx, run.ID, status.RunUpdate{
				Status:   status.RunStatusInProgress,
				Progress: progress,
				Message:  "working",
				Stage:    "users",
			})
			require.NoError(t, err)
			assert.True(t, updated.UpdatedAt.After(previous), "updatedAt must strictly increase")
			assert.Equal(t, progress, updated.Progress)
			previous = updated.UpdatedAt
		}
	})

	t.Run("terminal runs reject stage writes", func(t *testing.T) {
		run := newStartedRun("org-terminal", clk.Now())
		require.NoError(t, store.CreateRun(ctx, run))

		clk.Step(time.Second)
		completed, err := store.UpdateRun(ctx, run.ID, status.RunUpdate{
			Status:   status.RunStatusCompleted,
			Progress: 80,
			Message:  "done",
			Stage:    "scopes",
		})
		require.NoError(t, err)
		assert.Equal(t, status.ProgressComplete, completed.Progress, "completed runs always report 100")

		_, err = store.UpdateRun(ctx, run.ID, status.RunUpdate{
			Status:  status.RunStatusFailed,
			Message: "late failure",
			Stage:   "scopes",
		})
		assert.ErrorIs(t, err, ErrConditionFailed)

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, status.RunStatusCompleted, got.Status)
	})

	t.Run("compare and swap only replaces the observed record", func(t *testing.T) {
		run := newStartedRun("org-cas", clk.Now())
		require.NoError(t, store.CreateRun(ctx, run))

		observed, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)

		clk.Step(10 * time.Minute)
		corrected, changed := status.DefaultStalenessPolicy().Evaluate(observed, clk.Now())
		require.True(t, changed)

		// A stage write lands between the read and the correction.
		_, err = store.UpdateRun(ctx, run.ID, status.RunUpdate{
			Status:   status.RunStatusInProgress,
			Progress: 10,
			Message:  "Fetching users",
			Stage:    "users",
		})
		require.NoError(t, err)

		_, err = store.CompareAndSwap(ctx, observed.UpdatedAt, corrected)
		assert.ErrorIs(t, err, ErrConditionFailed)

		fresh, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, status.RunStatusInProgress, fresh.Status)

		clk.Step(10 * time.Minute)
		corrected, changed = status.DefaultStalenessPolicy().Evaluate(fresh, clk.Now())
		require.True(t, changed)

		swapped, err := store.CompareAndSwap(ctx, fresh.UpdatedAt, corrected)
		require.NoError(t, err)
		assert.Equal(t, status.RunStatusFailed, swapped.Status)
		assert.Equal(t, status.ProgressFailed, swapped.Progress)
		assert.True(t, swapped.UpdatedAt.After(fresh.UpdatedAt))
	})

	t.Run("concurrent updates never move the heartbeat backwards", func(t *testing.T) {
		run := newStartedRun("org-concurrent", clk.Now())
		require.NoError(t, store.CreateRun(ctx, run))

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func(progress int) {
				defer wg.Done()
				_, err := store.UpdateRun(ctx, run.ID, status.RunUpdate{
					Status:   status.RunStatusInProgress,
					Progress: progress,
					Message:  "working",
					Stage:    "grants",
				})
				assert.NoError(t, err)
			}(40 + i)
		}
		wg.Wait()

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(run.CreatedAt))
		assert.GreaterOrEqual(t, got.UpdatedAt.Sub(run.CreatedAt), 10*time.Microsecond)
	})
}

func TestNewRunStore(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(epoch)

	store, err := NewRunStore(&config.Config{}, nil, clk)
	require.NoError(t, err)
	assert.IsType(t, &memoryRunStore{}, store)

	_, err = NewRunStore(&config.Config{Storage: config.StorageConfig{Type: config.StorageTypeDatabase}}, nil, clk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database pool is required")

	_, err = NewRunStore(&config.Config{Storage: config.StorageConfig{Type: "tape"}}, nil, clk)
	require.Error(t, err)
}
