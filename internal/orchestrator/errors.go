// File: internal/orchestrator/errors.go
package orchestrator

import (
	"fmt"
	"time"
)

// SessionCreationError means the remote session could not be provisioned;
// no task ran and there is nothing to clean up.
type SessionCreationError struct {
	Err error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("session creation failed: %v", e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// TimeoutError means the budget elapsed before the remote task settled. The
// session has already been handed to termination by the time the caller sees
// this.
type TimeoutError struct {
	Budget    time.Duration
	SessionID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis timed out after %s (session %s)", e.Budget, e.SessionID)
}

// RemoteTaskError means the remote task itself reported failure.
type RemoteTaskError struct {
	SessionID string
	Err       error
}

func (e *RemoteTaskError) Error() string {
	return fmt.Sprintf("remote task failed (session %s): %v", e.SessionID, e.Err)
}

func (e *RemoteTaskError) Unwrap() error { return e.Err }
