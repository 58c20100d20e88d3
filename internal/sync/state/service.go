// Package state contains the store of sync run status records.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stitchflow-website/dirsync/internal/status"
)

var (
	// ErrRunNotFound is returned when a run (or an organization's latest run) does not exist.
	ErrRunNotFound = errors.New("sync run not found")

	// ErrConditionFailed is returned when a conditional write finds the run no longer
	// in the expected state, e.g. already terminal or updated by someone else.
	ErrConditionFailed = errors.New("sync run condition failed")
)

// RunStore persists sync run records.
//
// Every write is a single-record operation; no write spans more than one run.
//
//go:generate mockgen -destination=mocks/mock_run_store.go -package=mocks github.com/stitchflow-website/dirsync/internal/sync/state RunStore
type RunStore interface {
	// CreateRun stores a new run and makes it the latest run of its organization
	// in the same atomic step.
	CreateRun(ctx context.Context, run *status.SyncRun) error

	// GetRun returns the run with the given id or ErrRunNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (*status.SyncRun, error)

	// GetLatestRun returns the most recently started run of the organization or ErrRunNotFound.
	GetLatestRun(ctx context.Context, organizationID string) (*status.SyncRun, error)

	// UpdateRun applies update to a run that is still IN_PROGRESS and refreshes its
	// heartbeat. It returns ErrConditionFailed if the run is already terminal.
	UpdateRun(ctx context.Context, id uuid.UUID, update status.RunUpdate) (*status.SyncRun, error)

	// CompareAndSwap replaces the run with corrected if the stored run is still
	// IN_PROGRESS and its UpdatedAt equals expectedUpdatedAt. It returns
	// ErrConditionFailed if either check fails.
	CompareAndSwap(ctx context.Context, expectedUpdatedAt time.Time, corrected *status.SyncRun) (*status.SyncRun, error)
}
