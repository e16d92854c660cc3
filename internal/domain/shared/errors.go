package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrTenantMismatch indicates the resolved tenant does not match the target
// record's tenant. It is fatal for the request and never downgraded.
type ErrTenantMismatch struct {
	Actor  uuid.UUID
	Target uuid.UUID
}

func (e ErrTenantMismatch) Error() string {
	return fmt.Sprintf("tenant mismatch: actor tenant %s cannot access tenant %s", e.Actor, e.Target)
}

// Is implements the errors.Is interface for ErrTenantMismatch
func (e ErrTenantMismatch) Is(target error) bool {
	_, ok := target.(ErrTenantMismatch)
	return ok
}

// ErrPermissionDenied indicates a role-gated action attempted by an
// unauthorized role. Surfaced to the caller, never retried.
type ErrPermissionDenied struct {
	Role   Role
	Action Action
}

func (e ErrPermissionDenied) Error() string {
	return fmt.Sprintf("permission denied: role %q may not perform %q", e.Role, e.Action)
}

// Is implements the errors.Is interface for ErrPermissionDenied
func (e ErrPermissionDenied) Is(target error) bool {
	_, ok := target.(ErrPermissionDenied)
	return ok
}

// ErrValidation indicates a missing or malformed field. Recoverable locally,
// surfaced to the user, never retried automatically.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Is implements the errors.Is interface for ErrValidation
func (e ErrValidation) Is(target error) bool {
	_, ok := target.(ErrValidation)
	return ok
}
