package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/scrapyard-ledger/internal/domain/ledger"
	"github.com/scrapyard-ledger/internal/domain/outbox"
	"github.com/scrapyard-ledger/internal/domain/shared"
)

// EmployeeServiceImpl implements the EmployeeService interface
type EmployeeServiceImpl struct {
	employeeRepo employee.Repository
	advanceRepo  employee.AdvanceRepository
	outboxRepo   outbox.Repository
	logger       *slog.Logger
}

// NewEmployeeService creates a new employee service
func NewEmployeeService(logger *slog.Logger, employeeRepo employee.Repository, advanceRepo employee.AdvanceRepository, outboxRepo outbox.Repository) EmployeeService {
	return &EmployeeServiceImpl{
		employeeRepo: employeeRepo,
		advanceRepo:  advanceRepo,
		outboxRepo:   outboxRepo,
		logger:       logger,
	}
}

// CreateEmployee registers a new staff member. Owner only.
func (s *EmployeeServiceImpl) CreateEmployee(ctx context.Context, actor shared.Actor, name string, role shared.Role, weeklySalary int64) (*employee.Employee, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionManageEmployees); err != nil {
		return nil, err
	}

	emp, err := employee.New(actor.TenantID, name, role, weeklySalary)
	if err != nil {
		return nil, err
	}

	if err := s.employeeRepo.Create(ctx, emp); err != nil {
		return nil, err
	}

	s.logger.Info("Employee created", "employee_id", emp.ID, "tenant_id", actor.TenantID)
	return emp, nil
}

// GetEmployee retrieves one employee within the actor's tenant
func (s *EmployeeServiceImpl) GetEmployee(ctx context.Context, actor shared.Actor, id uuid.UUID) (*employee.Employee, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadEmployees); err != nil {
		return nil, err
	}
	return s.employeeRepo.GetByID(ctx, actor.TenantID, id)
}

// ListEmployees returns all staff for the actor's tenant
func (s *EmployeeServiceImpl) ListEmployees(ctx context.Context, actor shared.Actor) ([]*employee.Employee, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadEmployees); err != nil {
		return nil, err
	}
	return s.employeeRepo.ListByTenant(ctx, actor.TenantID)
}

// GrantAdvance records a cash advance and stages the matching cash-out entry
// in the ledger. The handed-over cash leaves the drawer now, so the ledger
// sees a negative adjustment; the later payroll deduction moves no cash and
// writes nothing.
func (s *EmployeeServiceImpl) GrantAdvance(ctx context.Context, actor shared.Actor, employeeID uuid.UUID, amount int64, description string) (*employee.CashAdvance, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionGrantAdvance); err != nil {
		return nil, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, actor.TenantID, employeeID)
	if err != nil {
		return nil, err
	}

	adv, err := employee.NewAdvance(actor.TenantID, employeeID, amount, description)
	if err != nil {
		return nil, err
	}

	if err := s.advanceRepo.Create(ctx, adv); err != nil {
		return nil, err
	}

	entry, err := ledger.NewEntry(actor.TenantID, ledger.EntryTypeAdjustment, -amount,
		fmt.Sprintf("cash advance: %s", emp.Name), actor.Name)
	if err != nil {
		return nil, err
	}
	msg, err := outbox.NewMessage(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to stage ledger entry: %w", err)
	}
	if err := s.outboxRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Info("Cash advance granted",
		"advance_id", adv.ID,
		"employee_id", employeeID,
		"tenant_id", actor.TenantID,
		"amount", amount,
	)
	return adv, nil
}

// ListAdvances returns all advances for one employee, newest first
func (s *EmployeeServiceImpl) ListAdvances(ctx context.Context, actor shared.Actor, employeeID uuid.UUID) ([]*employee.CashAdvance, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadAdvances); err != nil {
		return nil, err
	}
	return s.advanceRepo.ListByEmployee(ctx, actor.TenantID, employeeID)
}
