package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrGuardViolation   = errors.New("guard violation")
	ErrResourceConflict = errors.New("resource conflict")
	ErrOptimisticLock   = errors.New("stale revision")
	ErrNotFound         = errors.New("not found")
	ErrTenantMismatch   = errors.New("tenant mismatch")
)

// ValidationError reports malformed input. Reason is surfaced verbatim to callers.
type ValidationError struct {
	Field  string
	Reason string
}

func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StateTransitionError is returned when no rule exists for the event in the current state.
type StateTransitionError struct {
	From      string
	Event     string
	ValidNext []string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from %s (valid next states: [%s])",
		ErrStateTransition, e.Event, e.From, strings.Join(e.ValidNext, ", "))
}

func (e *StateTransitionError) Unwrap() error {
	return ErrStateTransition
}

// GuardViolationError means a rule matched but one of its preconditions did not hold.
type GuardViolationError struct {
	Rule  string
	Guard string
}

func (e *GuardViolationError) Error() string {
	return fmt.Sprintf("%s: rule %s requires %s", ErrGuardViolation, e.Rule, e.Guard)
}

func (e *GuardViolationError) Unwrap() error {
	return ErrGuardViolation
}

type ResourceConflictError struct {
	TableID string
	Reason  string
}

func Conflict(tableID, format string, args ...any) *ResourceConflictError {
	return &ResourceConflictError{TableID: tableID, Reason: fmt.Sprintf(format, args...)}
}

func (e *ResourceConflictError) Error() string {
	return fmt.Sprintf("%s: table %s: %s", ErrResourceConflict, e.TableID, e.Reason)
}

func (e *ResourceConflictError) Unwrap() error {
	return ErrResourceConflict
}

// OptimisticLockError is returned when the caller's expected revision no longer matches the stored one.
// Actual is zero when the stored revision is unknown (the conditional update simply missed).
type OptimisticLockError struct {
	Entity   string
	ID       string
	Expected int
	Actual   int
}

func (e *OptimisticLockError) Error() string {
	if e.Actual == 0 {
		return fmt.Sprintf("%s: %s %s expected revision %d", ErrOptimisticLock, e.Entity, e.ID, e.Expected)
	}
	return fmt.Sprintf("%s: %s %s expected revision %d, found %d", ErrOptimisticLock, e.Entity, e.ID, e.Expected, e.Actual)
}

func (e *OptimisticLockError) Unwrap() error {
	return ErrOptimisticLock
}

type NotFoundError struct {
	Entity string
	ID     string
}

func NotFound(entity string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s %s", e.Entity, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

type TenantMismatchError struct {
	Entity string
	ID     string
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("%s: %s %s belongs to another organization", ErrTenantMismatch, e.Entity, e.ID)
}

func (e *TenantMismatchError) Unwrap() error {
	return ErrTenantMismatch
}

// Retryable reports whether the caller may retry the request after re-reading state.
func Retryable(err error) bool {
	return errors.Is(err, ErrOptimisticLock) || errors.Is(err, ErrResourceConflict)
}
