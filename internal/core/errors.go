package core

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrInvariant  = errors.New("invariant violation")
	ErrSideEffect = errors.New("side effect failed")
)

// NotFoundError reports a stage, lead, field, or task id that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ErrorKind classifies the error for callers that map errors to statuses.
func (e *NotFoundError) ErrorKind() string { return "not_found" }

// ValidationError reports malformed input. The operation was not applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ErrorKind classifies the error for callers that map errors to statuses.
func (e *ValidationError) ErrorKind() string { return "validation" }

// InvariantViolation reports an operation that would break a structural
// rule of the pipeline. The operation was rejected in full.
type InvariantViolation struct {
	Rule   string
	Detail string
}

const (
	RuleLastStage         = "last_stage"
	RuleRequiredStage     = "required_stage"
	RuleLastRequiredStage = "last_required_stage"
)

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s: %s", e.Rule, e.Detail)
}

// Is matches ErrInvariant.
func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariant }

// ErrorKind classifies the error for callers that map errors to statuses.
func (e *InvariantViolation) ErrorKind() string { return "invariant" }

// SideEffectFailure is a non-fatal warning attached to a successful move:
// the lead changed stage but a transition trigger could not complete.
type SideEffectFailure struct {
	Trigger string
	LeadID  string
	Err     error
}

func (e *SideEffectFailure) Error() string {
	return fmt.Sprintf("%s trigger for lead %s: %v", e.Trigger, e.LeadID, e.Err)
}

// Unwrap returns the collaborator error.
func (e *SideEffectFailure) Unwrap() error { return e.Err }

// Is matches ErrSideEffect.
func (e *SideEffectFailure) Is(target error) bool { return target == ErrSideEffect }

// ErrorKind classifies the error for callers that map errors to statuses.
func (e *SideEffectFailure) ErrorKind() string { return "side_effect" }

func notFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
