// Package employee defines tenant staff and their cash advances.
package employee

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scrapyard-ledger/internal/domain/shared"
)

// Employee is a tenant staff member. CurrentAdvances and SessionsHandled are
// derived values maintained by the stores, never set by callers.
type Employee struct {
	ID              uuid.UUID   `json:"id"`
	TenantID        uuid.UUID   `json:"tenant_id"`
	Name            string      `json:"name"`
	Role            shared.Role `json:"role"`
	WeeklySalary    int64       `json:"weekly_salary"` // centavos
	CurrentAdvances int64       `json:"current_advances"`
	SessionsHandled int64       `json:"sessions_handled"`
	CreatedAt       time.Time   `json:"created_at"`
}

// New creates an employee record.
func New(tenantID uuid.UUID, name string, role shared.Role, weeklySalary int64) (*Employee, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrValidation{Field: "tenant_id", Reason: "tenant is required"}
	}
	if name == "" {
		return nil, shared.ErrValidation{Field: "name", Reason: "name is required"}
	}
	if role != shared.RoleOwner && role != shared.RoleEmployee {
		return nil, shared.ErrValidation{Field: "role", Reason: "must be owner or employee"}
	}
	if weeklySalary < 0 {
		return nil, shared.ErrValidation{Field: "weekly_salary", Reason: "must be non-negative"}
	}

	return &Employee{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		Role:         role,
		WeeklySalary: weeklySalary,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// AdvanceStatus defines cash advance states
type AdvanceStatus string

const (
	AdvanceStatusActive   AdvanceStatus = "active"
	AdvanceStatusDeducted AdvanceStatus = "deducted"
)

// CashAdvance is money given to an employee ahead of salary. It is mutated
// only to flip Status to deducted.
type CashAdvance struct {
	ID          uuid.UUID     `json:"id"`
	TenantID    uuid.UUID     `json:"tenant_id"`
	EmployeeID  uuid.UUID     `json:"employee_id"`
	Amount      int64         `json:"amount"` // centavos
	Date        time.Time     `json:"date"`
	Description string        `json:"description"`
	Status      AdvanceStatus `json:"status"`
}

// NewAdvance creates an active cash advance.
func NewAdvance(tenantID, employeeID uuid.UUID, amount int64, description string) (*CashAdvance, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrValidation{Field: "tenant_id", Reason: "tenant is required"}
	}
	if employeeID == uuid.Nil {
		return nil, shared.ErrValidation{Field: "employee_id", Reason: "employee is required"}
	}
	if amount <= 0 {
		return nil, shared.ErrValidation{Field: "amount", Reason: "must be positive"}
	}

	return &CashAdvance{
		ID:          uuid.New(),
		TenantID:    tenantID,
		EmployeeID:  employeeID,
		Amount:      amount,
		Date:        time.Now().UTC(),
		Description: description,
		Status:      AdvanceStatusActive,
	}, nil
}

// Repository manages employee persistence, tenant-scoped.
type Repository interface {
	Create(ctx context.Context, emp *Employee) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Employee, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Employee, error)
	// IncrementSessionsHandled bumps the per-employee completion counter for
	// every name assigned to a completed transaction.
	IncrementSessionsHandled(ctx context.Context, tenantID uuid.UUID, names []string) error
	WithTx(tx pgx.Tx) Repository
}

// AdvanceRepository manages cash advances. Advances live in their own table
// keyed by employee id for query efficiency.
type AdvanceRepository interface {
	Create(ctx context.Context, adv *CashAdvance) error
	ListByEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) ([]*CashAdvance, error)
	// SumActiveByEmployee derives the employee's current outstanding advances.
	SumActiveByEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) (int64, error)
	// MarkDeductedBefore flips all active advances dated before the cutoff to
	// deducted, across all tenants. Returns the number of advances flipped.
	MarkDeductedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ErrEmployeeNotFound indicates a missing employee within the tenant scope
type ErrEmployeeNotFound struct {
	EmployeeID uuid.UUID
}

func (e ErrEmployeeNotFound) Error() string {
	return "employee not found: " + e.EmployeeID.String()
}

// Is implements the errors.Is interface for ErrEmployeeNotFound
func (e ErrEmployeeNotFound) Is(target error) bool {
	t, ok := target.(ErrEmployeeNotFound)
	if !ok {
		return false
	}
	if t.EmployeeID == uuid.Nil {
		return true
	}
	return e.EmployeeID == t.EmployeeID
}
