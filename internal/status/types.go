// Package status defines the sync run record that polling clients observe and
// the staleness rules applied to it on every read.
package status

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a sync run
type RunStatus string

const (
	// RunStatusInProgress means a stage is (or should be) executing
	RunStatusInProgress RunStatus = "IN_PROGRESS"

	// RunStatusCompleted means the final stage committed its data
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusFailed means the run stopped on an error or was abandoned
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusPartial means the run stalled after some stages committed
	RunStatusPartial RunStatus = "PARTIAL"
)

// IsTerminal reports whether no further stage writes are expected for the status
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusPartial:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is one of the known statuses
func (s RunStatus) IsValid() bool {
	return s == RunStatusInProgress || s.IsTerminal()
}

const (
	// ProgressFailed is the progress value reserved for failed runs
	ProgressFailed = -1

	// ProgressStarted is the progress of a freshly created run
	ProgressStarted = 0

	// ProgressComplete is the progress of a completed run
	ProgressComplete = 100
)

// SyncRun is the status record of one synchronization attempt for an organization
type SyncRun struct {
	// ID identifies the run; generated at start and never changed
	ID uuid.UUID `json:"id"`

	// OrganizationID is the owning tenant
	OrganizationID string `json:"organizationId"`

	// Status is the current lifecycle state
	Status RunStatus `json:"status"`

	// Progress is a percentage in [-1, 100]; -1 means failed
	Progress int `json:"progress"`

	// Message describes the current stage or the failure cause
	Message string `json:"message"`

	// Stage is the name of the stage that wrote the record last
	Stage string `json:"stage,omitempty"`

	// CreatedAt is set once when the run is started
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is refreshed on every write and acts as the liveness heartbeat
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy of the run that can be mutated independently
func (r *SyncRun) Clone() *SyncRun {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// RunUpdate carries the mutable fields of a run written by one transition
type RunUpdate struct {
	Status   RunStatus
	Progress int
	Message  string
	Stage    string
}

// Normalize enforces the status/progress pairing on the update.
// Completed runs always report 100 and failed runs always report -1.
func (u RunUpdate) Normalize() RunUpdate {
	switch u.Status {
	case RunStatusCompleted:
		u.Progress = ProgressComplete
	case RunStatusFailed:
		u.Progress = ProgressFailed
	default:
		if u.Progress < ProgressStarted {
			u.Progress = ProgressStarted
		}
		if u.Progress > ProgressComplete {
			u.Progress = ProgressComplete
		}
	}
	return u
}

// Apply copies the update onto the run and stamps it with updatedAt
func (r *SyncRun) Apply(u RunUpdate, updatedAt time.Time) {
	u = u.Normalize()
	r.Status = u.Status
	r.Progress = u.Progress
	r.Message = u.Message
	r.Stage = u.Stage
	r.UpdatedAt = updatedAt
}

// NextHeartbeat returns the updatedAt value for the next write of a run.
// The result is strictly greater than previous even when the clock has not advanced.
func NextHeartbeat(previous, now time.Time) time.Time {
	// Postgres keeps microseconds; anything finer would be lost on the round trip.
	now = now.Truncate(time.Microsecond)
	if now.After(previous) {
		return now
	}
	return previous.Add(time.Microsecond)
}
