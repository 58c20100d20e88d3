// Package sync implements the stages of the directory synchronization pipeline.
//
// A sync run imports an organization's directory in three stages executed one
// after the other, each as an independent task:
//
//   - users: fetches the directory users and stores them
//   - grants: fetches the OAuth grants of every stored user and derives the
//     applications they were given to
//   - scopes: fetches the scopes of every grant, stores them and rates the risk
//     of each application
//
// # Stage Processing
//
// StageProcessor runs one stage of one run. It reports progress on the run's
// status record before and after its work, persists everything it fetched with
// a single idempotent batch upsert, and hands the next stage a Task carrying the
// id mappings it produced (the carryover) through a Trigger.
//
// Every failure inside a stage, panics included, is converted into a FAILED
// status write at the stage boundary. Writes are conditional on the run still
// being in progress, so a stage never revives a run that was finalized meanwhile.
//
// # Checkpoints
//
//	stage   started  exit
//	users   10       30
//	grants  40       70
//	scopes  80       100 (COMPLETED)
//
// A run parked at an exit checkpoint has committed data that is usable on its
// own, which is what the staleness monitor reports as PARTIAL.
//
// # Subpackages
//
//   - state: the sync run status store
//   - writer: the store of imported entities
//   - dispatch: Trigger implementations handing tasks to the stage queue
//   - coordinator: the worker pool consuming the stage queue
package sync
