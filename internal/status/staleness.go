package status

import (
	"fmt"
	"slices"
	"time"
)

const (
	// DefaultPartialAfter is how long a run may sit at a checkpoint before it is reported as partial
	DefaultPartialAfter = 2 * time.Minute

	// DefaultFailAfter is how long a run may go without a heartbeat before it is reported as failed
	DefaultFailAfter = 5 * time.Minute
)

// DefaultCheckpoints are the progress values written when a stage has committed its data
// and handed off to the next one.
var DefaultCheckpoints = []int{30, 70}

// StalenessPolicy holds the thresholds used to reclassify abandoned runs
type StalenessPolicy struct {
	// PartialAfter applies to runs parked at a checkpoint; must be shorter than FailAfter
	PartialAfter time.Duration

	// FailAfter applies to any in-progress run
	FailAfter time.Duration

	// Checkpoints lists progress values at which committed data is usable on its own
	Checkpoints []int
}

// DefaultStalenessPolicy returns the policy used when nothing is configured
func DefaultStalenessPolicy() StalenessPolicy {
	return StalenessPolicy{
		PartialAfter: DefaultPartialAfter,
		FailAfter:    DefaultFailAfter,
		Checkpoints:  slices.Clone(DefaultCheckpoints),
	}
}

// Validate checks the thresholds are usable
func (p StalenessPolicy) Validate() error {
	if p.FailAfter <= 0 {
		return fmt.Errorf("failAfter must be positive, got %s", p.FailAfter)
	}
	if p.PartialAfter <= 0 {
		return fmt.Errorf("partialAfter must be positive, got %s", p.PartialAfter)
	}
	if p.PartialAfter >= p.FailAfter {
		return fmt.Errorf("partialAfter (%s) must be shorter than failAfter (%s)", p.PartialAfter, p.FailAfter)
	}
	for _, c := range p.Checkpoints {
		if c <= ProgressStarted || c >= ProgressComplete {
			return fmt.Errorf("checkpoint %d must be between %d and %d exclusive", c, ProgressStarted, ProgressComplete)
		}
	}
	return nil
}

// Evaluate decides whether run has been abandoned at time now.
//
// It returns the corrected record and true when a correction applies, or the run
// unchanged and false otherwise. The input is never mutated. The result depends only
// on the record and now, so repeated polls of the same record agree.
func (p StalenessPolicy) Evaluate(run *SyncRun, now time.Time) (*SyncRun, bool) {
	if run == nil || run.Status != RunStatusInProgress {
		return run, false
	}

	idle := now.Sub(run.UpdatedAt)

	if idle > p.FailAfter {
		corrected := run.Clone()
		corrected.Apply(RunUpdate{
			Status:  RunStatusFailed,
			Message: timedOutMessage(run, p.FailAfter),
			Stage:   run.Stage,
		}, NextHeartbeat(run.UpdatedAt, now))
		return corrected, true
	}

	if idle > p.PartialAfter && slices.Contains(p.Checkpoints, run.Progress) {
		corrected := run.Clone()
		corrected.Apply(RunUpdate{
			Status:   RunStatusPartial,
			Progress: run.Progress,
			Message:  partialMessage(run),
			Stage:    run.Stage,
		}, NextHeartbeat(run.UpdatedAt, now))
		return corrected, true
	}

	return run, false
}

func timedOutMessage(run *SyncRun, threshold time.Duration) string {
	if run.Stage == "" {
		return fmt.Sprintf("Sync timed out: no progress reported for more than %s", threshold)
	}
	return fmt.Sprintf("Sync timed out during the %s stage: no progress reported for more than %s",
		run.Stage, threshold)
}

func partialMessage(run *SyncRun) string {
	if run.Stage == "" {
		return fmt.Sprintf("Sync stalled at %d%%; partial data is available", run.Progress)
	}
	return fmt.Sprintf("Sync stalled after the %s stage at %d%%; partial data is available",
		run.Stage, run.Progress)
}
