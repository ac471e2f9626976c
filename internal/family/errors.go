package family

import (
	"fmt"

	"github.com/subtrack/family-services/internal/money"
)

// Error codes surfaced in API responses.
const (
	CodeValidation    = "validation_error"
	CodePermission    = "permission_error"
	CodeAuthorization = "authorization_error"
	CodeConflict      = "conflict_error"
	CodeNotFound      = "not_found"
	CodeInvariant     = "invariant_violation"
	CodeSplitMismatch = "split_mismatch"
)

// ValidationError reports malformed input, such as an empty group name or a
// negative amount.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// PermissionError reports that the actor lacks a required permission in the
// group.
type PermissionError struct {
	UserID     string
	Permission string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s does not hold the %s permission", e.UserID, e.Permission)
}

// AuthorizationError reports an identity mismatch, such as responding to an
// invitation addressed to someone else.
type AuthorizationError struct {
	Detail string
}

func (e *AuthorizationError) Error() string {
	return e.Detail
}

// ConflictError reports a duplicate invitation, a response to a terminal
// invitation, or a concurrent-write revision mismatch requiring a retry.
type ConflictError struct {
	Detail string
}

func (e *ConflictError) Error() string {
	return e.Detail
}

// NotFoundError reports a missing group, subscription, invitation, member or
// split entry.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvariantViolation reports a mutation that would break a structural
// invariant, such as removing the last admin of a group.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return e.Detail
}

// SplitMismatchError reports that the proposed splits do not sum to the
// subscription total. Expected and Actual give the caller enough detail to
// present a corrective UI; the engine never rescales splits itself.
type SplitMismatchError struct {
	Expected money.Amount
	Actual   money.Amount
}

// Delta returns the signed difference between the proposed sum and the total.
func (e *SplitMismatchError) Delta() money.Amount {
	return e.Actual - e.Expected
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("splits sum to %s but the total is %s (delta %s)",
		e.Actual, e.Expected, e.Delta())
}
