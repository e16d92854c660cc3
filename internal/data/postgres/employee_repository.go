package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/scrapyard-ledger/internal/platform/persistence"
)

// EmployeeRepository implements the employee.Repository interface for PostgreSQL
type EmployeeRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewEmployeeRepository creates a new PostgreSQL employee repository
func NewEmployeeRepository(logger *slog.Logger, db *persistence.PostgresDB) employee.Repository {
	return &EmployeeRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the session counter bump
// commits together with the completion that caused it.
func (r *EmployeeRepository) WithTx(tx pgx.Tx) employee.Repository {
	return &EmployeeRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new employee
func (r *EmployeeRepository) Create(ctx context.Context, emp *employee.Employee) error {
	query := `
		INSERT INTO employees (id, tenant_id, name, role, weekly_salary, sessions_handled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		emp.ID,
		emp.TenantID,
		emp.Name,
		emp.Role,
		emp.WeeklySalary,
		emp.SessionsHandled,
		emp.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create employee", "id", emp.ID.String(), "error", err)
		return fmt.Errorf("failed to create employee: %w", err)
	}

	return nil
}

// GetByID retrieves an employee within the tenant scope. CurrentAdvances is
// derived from the active advances at read time.
func (r *EmployeeRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*employee.Employee, error) {
	query := `
		SELECT e.id, e.tenant_id, e.name, e.role, e.weekly_salary, e.sessions_handled, e.created_at,
			COALESCE((SELECT SUM(a.amount) FROM cash_advances a
				WHERE a.employee_id = e.id AND a.tenant_id = e.tenant_id AND a.status = 'active'), 0)
		FROM employees e
		WHERE e.id = $1 AND e.tenant_id = $2
	`

	var emp employee.Employee
	err := r.querier.QueryRow(ctx, query, id, tenantID).Scan(
		&emp.ID,
		&emp.TenantID,
		&emp.Name,
		&emp.Role,
		&emp.WeeklySalary,
		&emp.SessionsHandled,
		&emp.CreatedAt,
		&emp.CurrentAdvances,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound{EmployeeID: id}
		}
		r.logger.Error("Failed to get employee", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return &emp, nil
}

// ListByTenant returns all employees for a tenant, ordered by name
func (r *EmployeeRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*employee.Employee, error) {
	query := `
		SELECT e.id, e.tenant_id, e.name, e.role, e.weekly_salary, e.sessions_handled, e.created_at,
			COALESCE((SELECT SUM(a.amount) FROM cash_advances a
				WHERE a.employee_id = e.id AND a.tenant_id = e.tenant_id AND a.status = 'active'), 0)
		FROM employees e
		WHERE e.tenant_id = $1
		ORDER BY e.name ASC
	`

	rows, err := r.querier.Query(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("Failed to list employees", "tenant_id", tenantID.String(), "error", err)
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*employee.Employee
	for rows.Next() {
		var emp employee.Employee
		err := rows.Scan(
			&emp.ID,
			&emp.TenantID,
			&emp.Name,
			&emp.Role,
			&emp.WeeklySalary,
			&emp.SessionsHandled,
			&emp.CreatedAt,
			&emp.CurrentAdvances,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, &emp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over employees: %w", err)
	}

	return employees, nil
}

// IncrementSessionsHandled bumps the completion counter for every named
// employee. Names with no matching record are skipped silently; the
// transaction stores names, not ids, so stale assignments are tolerated.
func (r *EmployeeRepository) IncrementSessionsHandled(ctx context.Context, tenantID uuid.UUID, names []string) error {
	if len(names) == 0 {
		return nil
	}

	query := `
		UPDATE employees
		SET sessions_handled = sessions_handled + 1
		WHERE tenant_id = $1 AND name = ANY($2)
	`

	_, err := r.querier.Exec(ctx, query, tenantID, names)
	if err != nil {
		r.logger.Error("Failed to increment sessions handled", "tenant_id", tenantID.String(), "error", err)
		return fmt.Errorf("failed to increment sessions handled: %w", err)
	}

	return nil
}
