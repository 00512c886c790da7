package content

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates no content exists with the requested id.
	ErrNotFound = errors.New("content not found")

	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid content status")

	// ErrInvalidTransition indicates a lifecycle edge that is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoActor indicates the call carried no authenticated actor.
	ErrNoActor = errors.New("authenticated actor required")

	// ErrInsufficientRole indicates the actor lacks the role an operation needs.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrAllSourcesFailed indicates every eligibility source failed.
	ErrAllSourcesFailed = errors.New("all eligibility sources failed")
)

// ValidationError carries every violated rule of a rejected write.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// AuthError is returned when a write has no actor or the actor is not allowed.
type AuthError struct {
	Reason error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %v", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Reason
}

// PersistenceKind classifies backend failures.
type PersistenceKind string

const (
	KindUnavailable      PersistenceKind = "unavailable"
	KindPermissionDenied PersistenceKind = "permission_denied"
	KindMissingIndex     PersistenceKind = "missing_index"
	KindUnknown          PersistenceKind = "unknown"
)

// PersistenceError wraps a document store failure.
type PersistenceError struct {
	Kind       PersistenceKind
	Op         string
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence operation %s on %s failed (%s): %v", e.Op, e.Collection, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying may succeed.
func (e *PersistenceError) Transient() bool {
	return e.Kind == KindUnavailable
}

// SourceFailure records one eligibility source that could not be read.
type SourceFailure struct {
	Source string
	Err    error
}

// AggregationPartialFailure reports sources that failed while others succeeded.
type AggregationPartialFailure struct {
	Failed []SourceFailure
}

func (e *AggregationPartialFailure) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Source, f.Err))
	}
	return "partial aggregation: " + strings.Join(parts, "; ")
}

// Unwrap exposes the per-source errors to errors.Is/As.
func (e *AggregationPartialFailure) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Err)
	}
	return out
}
