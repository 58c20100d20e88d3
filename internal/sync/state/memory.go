package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/status"
)

// memoryRunStore keeps runs in process memory. The mutex stands in for the
// row-level atomicity a database gives every single-record write.
type memoryRunStore struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*status.SyncRun
	latest map[string]uuid.UUID
	clock  clock.PassiveClock
}

// NewMemoryRunStore creates an in-memory run store
func NewMemoryRunStore(clk clock.PassiveClock) RunStore {
	return &memoryRunStore{
		runs:   make(map[uuid.UUID]*status.SyncRun),
		latest: make(map[string]uuid.UUID),
		clock:  clk,
	}
}

func (m *memoryRunStore) CreateRun(_ context.Context, run *status.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("sync run %s already exists", run.ID)
	}

	stored := run.Clone()
	stored.CreatedAt = stored.CreatedAt.Truncate(time.Microsecond)
	stored.UpdatedAt = stored.CreatedAt
	m.runs[stored.ID] = stored
	m.latest[stored.OrganizationID] = stored.ID
	return nil
}

func (m *memoryRunStore) GetRun(_ context.Context, id uuid.UUID) (*status.SyncRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

func (m *memoryRunStore) GetLatestRun(_ context.Context, organizationID string) (*status.SyncRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.latest[organizationID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return m.runs[id].Clone(), nil
}

func (m *memoryRunStore) UpdateRun(_ context.Context, id uuid.UUID, update status.RunUpdate) (*status.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	if run.Status != status.RunStatusInProgress {
		return nil, ErrConditionFailed
	}

	run.Apply(update, status.NextHeartbeat(run.UpdatedAt, m.clock.Now().UTC()))
	return run.Clone(), nil
}

func (m *memoryRunStore) CompareAndSwap(
	_ context.Context,
	expectedUpdatedAt time.Time,
	corrected *status.SyncRun,
) (*status.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[corrected.ID]
	if !ok {
		return nil, ErrRunNotFound
	}
	if run.Status != status.RunStatusInProgress || !run.UpdatedAt.Equal(expectedUpdatedAt) {
		return nil, ErrConditionFailed
	}

	stored := corrected.Clone()
	stored.OrganizationID = run.OrganizationID
	stored.CreatedAt = run.CreatedAt
	m.runs[stored.ID] = stored
	return stored.Clone(), nil
}
