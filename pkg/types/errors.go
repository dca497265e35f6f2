package types

import (
	"errors"
	"fmt"
)

// Domain errors shared across the registry, bridge and analysis layers
var (
	// ErrDocumentNotOpen is returned when a document is requested but not registered
	ErrDocumentNotOpen = errors.New("document not open")
	// ErrProjectNotOpen is returned when a project is requested but not registered
	ErrProjectNotOpen = errors.New("project not open")
	// ErrCancelled is returned when an awaited operation is abandoned because its context ended
	ErrCancelled = errors.New("cancelled")
	// ErrMissingSymbol marks analysis failures caused by declarations that are not indexed yet
	ErrMissingSymbol = errors.New("symbol missing during analysis")
)

// NotOpenError reports a document or project that is not registered.
// It unwraps to ErrDocumentNotOpen or ErrProjectNotOpen.
type NotOpenError struct {
	URI     URI
	Project bool
}

func (e *NotOpenError) Error() string {
	if e.Project {
		return fmt.Sprintf("project not open: %s", e.URI)
	}
	return fmt.Sprintf("document not open: %s", e.URI)
}

func (e *NotOpenError) Unwrap() error {
	if e.Project {
		return ErrProjectNotOpen
	}
	return ErrDocumentNotOpen
}

// Cancelled wraps a context error so that it matches ErrCancelled
func Cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
