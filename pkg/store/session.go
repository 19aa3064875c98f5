package store

import (
	"errors"
	"fmt"
)

// Run states shared by research and council sessions. Running is the only
// non-terminal state.
const (
	RunStateRunning   = "running"
	RunStateStopped   = "stopped"
	RunStateCompleted = "completed"
)

// Work item statuses, used for research steps and council model responses.
// Transitions are one-way: pending -> running -> (completed | error).
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// TerminalStatus reports whether a status admits no further transitions.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusError
}

// TerminalRunState reports whether a session has finished, either cleanly or
// by being stopped.
func TerminalRunState(state string) bool {
	return state == RunStateStopped || state == RunStateCompleted
}

// ErrNotFound is returned when a session id does not resolve to a live
// session. Sessions are evicted from memory after their retention window.
var ErrNotFound = errors.New("session not found")

// ValidationError flags caller-side misuse detected before any provider
// call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
