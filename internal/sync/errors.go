package sync

import (
	"errors"

	"github.com/stitchflow-website/dirsync/internal/provider"
)

// ErrorKind classifies why a stage failed
type ErrorKind string

const (
	// ErrorKindValidation means required stage input was missing
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindUpstreamTransient means the provider was unreachable or throttling
	ErrorKindUpstreamTransient ErrorKind = "upstream_transient"

	// ErrorKindUpstreamPermanent means the provider rejected the request, usually the credentials
	ErrorKindUpstreamPermanent ErrorKind = "upstream_permanent"

	// ErrorKindPersistence means the imported data could not be stored
	ErrorKindPersistence ErrorKind = "persistence"

	// ErrorKindDispatch means the next stage could not be started
	ErrorKindDispatch ErrorKind = "dispatch"

	// ErrorKindInternal covers everything else, panics included
	ErrorKindInternal ErrorKind = "internal"
)

// ErrRunFinalized is returned when a stage finds its run already terminal.
// Nothing is written in that case.
var ErrRunFinalized = errors.New("sync run is already finalized")

// ErrStageInterrupted is returned when the stage context was cancelled before
// the stage finished, which happens when its worker shuts down. The run is not
// marked FAILED and the task must not be acknowledged, so it is redelivered.
// A stage that runs out of time is not interrupted; it fails.
var ErrStageInterrupted = errors.New("stage interrupted before it finished")

// Error is a classified stage failure
type Error struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a stage error, ErrorKindInternal for anything unclassified
func KindOf(err error) ErrorKind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return ErrorKindInternal
}

func upstreamError(stage Stage, message string, err error) *Error {
	kind := ErrorKindUpstreamPermanent
	if provider.IsTransient(err) {
		kind = ErrorKindUpstreamTransient
	}
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

func persistenceError(stage Stage, message string, err error) *Error {
	return &Error{Kind: ErrorKindPersistence, Stage: stage, Message: message, Err: err}
}
