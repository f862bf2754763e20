/*
errors.go - Centralized error types for the split engine

ERROR CATEGORIES:
  1. Validation  - malformed rule, negative revenue, bad adjustment
  2. State       - adjustment or transition not allowed in the payout's status
  3. Arithmetic  - adjustments drove the share below zero
  4. Store       - missing records, optimistic locking conflicts

All structured errors unwrap to a sentinel, so callers use errors.Is():

  if errors.Is(err, split.ErrInvalidState) { ... }
*/
package split

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed rules, negative revenue or bad adjustments.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState is returned when a payout's status forbids the operation.
	ErrInvalidState = errors.New("invalid payout state")

	// ErrNegativeShare is returned when adjustments push a share below zero.
	ErrNegativeShare = errors.New("negative share")

	// ErrConcurrentModification is returned when a version check fails.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrPayoutNotFound = errors.New("payout not found")
	ErrRuleNotFound   = errors.New("split rule not found")

	// ErrDuplicateRule is returned when a new rule reuses an existing ID.
	ErrDuplicateRule = errors.New("duplicate split rule")

	// ErrOverlappingRule is returned when a partner would have two active rules
	// covering the same day.
	ErrOverlappingRule = errors.New("overlapping active split rule")

	// ErrDuplicatePayout is returned when a payout ID is reused or the
	// partner already has a live payout for the period.
	ErrDuplicatePayout = errors.New("duplicate payout")

	// ErrDuplicateReference is returned when revenue with the same reference exists.
	ErrDuplicateReference = errors.New("duplicate revenue reference")

	// ErrStoreRequired is returned when an operation needs an optional store capability.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError is returned when Op is not allowed while the payout is in Status.
type InvalidStateError struct {
	PayoutID PayoutID
	Status   PayoutStatus
	Op       string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("payout %s is %s: cannot %s", e.PayoutID, e.Status, e.Op)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NegativeShareError reports the adjustment that took the running total below zero.
type NegativeShareError struct {
	Index int // position in the adjustment sequence
	Total Cents
}

func (e *NegativeShareError) Error() string {
	return fmt.Sprintf("adjustment #%d brings share to %s", e.Index+1, e.Total)
}

func (e *NegativeShareError) Unwrap() error { return ErrNegativeShare }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the input itself was rejected.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true if the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrOverlappingRule) ||
		errors.Is(err, ErrDuplicateRule) ||
		errors.Is(err, ErrDuplicateReference) ||
		errors.Is(err, ErrDuplicatePayout) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPayoutNotFound) ||
		errors.Is(err, ErrRuleNotFound)
}
