package run

import (
	"errors"
	"fmt"

	"github.com/openvbs/arena/internal/database/models"
)

// StateConflictError reports an operation invoked outside its legal state.
// The run state is left untouched.
type StateConflictError struct {
	Op     string
	Status models.RunStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("operation %s is not legal in state %s", e.Op, e.Status)
}

func illegalState(op string, status models.RunStatus) error {
	return &StateConflictError{Op: op, Status: status}
}

// RejectedError is returned synchronously when a submission fails a filter or
// is malformed. Reason is the human-readable message of the failing filter.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// ConfigError reports a broken task template discovered at preparation time.
// Preparation is aborted; the task never starts.
type ConfigError struct {
	Task string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("task %s has an invalid configuration: %v", e.Task, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var (
	ErrUnknownTeam      = errors.New("team is not part of this run")
	ErrUnknownRun       = errors.New("no such run")
	ErrUnknownJudgement = errors.New("no pending judgement for this answer set")
	ErrNotRegistered    = errors.New("session is not registered")
	ErrTaskOutOfRange   = errors.New("task index out of range")
)

// IsStateConflict reports whether err is a state-conflict error.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsRejected reports whether err is a submission rejection.
func IsRejected(err error) bool {
	var rj *RejectedError
	return errors.As(err, &rj)
}
