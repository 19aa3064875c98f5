package provider

import (
	"errors"
	"fmt"
)

// Error is the failure type surfaced by every external backend call
// (search, page enrichment, chat completion). Callers branch on the type,
// not on the message.
type Error struct {
	Provider  string // "brave", "searxng", "ollama", "openai", "gemini", "huggingface"
	Operation string // "search", "enrich", "chat", "stream"
	Status    int    // HTTP status when the backend answered, 0 otherwise
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s failed: status %d: %v", e.Provider, e.Operation, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps a failure from a concrete backend call.
func NewError(providerName, operation string, status int, err error) *Error {
	return &Error{Provider: providerName, Operation: operation, Status: status, Err: err}
}

// AsError reports whether err, or anything it wraps, is a backend failure.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
