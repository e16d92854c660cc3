// Package shared holds types used across the storefront core: the
// authenticated actor, role and action definitions, the tenant guard,
// and the change events published on every store mutation.
package shared

import "github.com/google/uuid"

// Role defines what a tenant member is allowed to do
type Role string

const (
	RoleOwner    Role = "owner"
	RoleEmployee Role = "employee"
)

// Action identifies a store operation for authorization purposes
type Action string

const (
	ActionReadTransactions     Action = "transactions:read"
	ActionWriteDraft           Action = "transactions:write_draft"
	ActionAdvanceTransaction   Action = "transactions:advance"
	ActionCompleteTransaction  Action = "transactions:complete"
	ActionCancelTransaction    Action = "transactions:cancel"
	ActionReadLedger           Action = "ledger:read"
	ActionAppendLedger         Action = "ledger:append"
	ActionManageEmployees      Action = "employees:manage"
	ActionReadEmployees        Action = "employees:read"
	ActionGrantAdvance         Action = "advances:grant"
	ActionReadAdvances         Action = "advances:read"
)

// ownerOnly lists the actions reserved for the owner role
var ownerOnly = map[Action]bool{
	ActionCompleteTransaction: true,
	ActionManageEmployees:     true,
	ActionGrantAdvance:        true,
}

// Actor is the authenticated identity resolved by the external auth
// collaborator. TenantID is never taken from client-supplied input.
type Actor struct {
	TenantID uuid.UUID
	Role     Role
	Name     string
}

// Authorize checks that the actor may perform the action against the target
// tenant. The tenant check and the role check are independent: an owner of
// tenant A is still rejected when targeting tenant B. A missing tenant fails
// closed.
func Authorize(actor Actor, tenantID uuid.UUID, action Action) error {
	if actor.TenantID == uuid.Nil || tenantID == uuid.Nil {
		return ErrTenantMismatch{Actor: actor.TenantID, Target: tenantID}
	}
	if actor.TenantID != tenantID {
		return ErrTenantMismatch{Actor: actor.TenantID, Target: tenantID}
	}
	if ownerOnly[action] && actor.Role != RoleOwner {
		return ErrPermissionDenied{Role: actor.Role, Action: action}
	}
	return nil
}
