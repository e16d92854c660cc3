package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/scrapyard-ledger/internal/platform/persistence"
)

// AdvanceRepository implements the employee.AdvanceRepository interface for PostgreSQL
type AdvanceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAdvanceRepository creates a new PostgreSQL cash advance repository
func NewAdvanceRepository(logger *slog.Logger, db *persistence.PostgresDB) employee.AdvanceRepository {
	return &AdvanceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new cash advance
func (r *AdvanceRepository) Create(ctx context.Context, adv *employee.CashAdvance) error {
	query := `
		INSERT INTO cash_advances (id, tenant_id, employee_id, amount, date, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		adv.ID,
		adv.TenantID,
		adv.EmployeeID,
		adv.Amount,
		adv.Date,
		adv.Description,
		adv.Status,
	)
	if err != nil {
		r.logger.Error("Failed to create cash advance", "id", adv.ID.String(), "error", err)
		return fmt.Errorf("failed to create cash advance: %w", err)
	}

	return nil
}

// ListByEmployee returns all advances for an employee, newest first
func (r *AdvanceRepository) ListByEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) ([]*employee.CashAdvance, error) {
	query := `
		SELECT id, tenant_id, employee_id, amount, date, description, status
		FROM cash_advances
		WHERE tenant_id = $1 AND employee_id = $2
		ORDER BY date DESC
	`

	rows, err := r.querier.Query(ctx, query, tenantID, employeeID)
	if err != nil {
		r.logger.Error("Failed to list cash advances", "employee_id", employeeID.String(), "error", err)
		return nil, fmt.Errorf("failed to list cash advances: %w", err)
	}
	defer rows.Close()

	var advances []*employee.CashAdvance
	for rows.Next() {
		var adv employee.CashAdvance
		err := rows.Scan(
			&adv.ID,
			&adv.TenantID,
			&adv.EmployeeID,
			&adv.Amount,
			&adv.Date,
			&adv.Description,
			&adv.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash advance: %w", err)
		}
		advances = append(advances, &adv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over cash advances: %w", err)
	}

	return advances, nil
}

// SumActiveByEmployee derives the employee's outstanding advances
func (r *AdvanceRepository) SumActiveByEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM cash_advances
		WHERE tenant_id = $1 AND employee_id = $2 AND status = $3
	`

	var sum int64
	err := r.querier.QueryRow(ctx, query, tenantID, employeeID, employee.AdvanceStatusActive).Scan(&sum)
	if err != nil {
		r.logger.Error("Failed to sum active cash advances", "employee_id", employeeID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum active cash advances: %w", err)
	}

	return sum, nil
}

// MarkDeductedBefore flips active advances dated before the cutoff to
// deducted, across all tenants. Used by the weekly payroll job.
func (r *AdvanceRepository) MarkDeductedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE cash_advances
		SET status = $1
		WHERE status = $2 AND date < $3
	`

	result, err := r.querier.Exec(ctx, query, employee.AdvanceStatusDeducted, employee.AdvanceStatusActive, cutoff)
	if err != nil {
		r.logger.Error("Failed to mark cash advances deducted", "error", err)
		return 0, fmt.Errorf("failed to mark cash advances deducted: %w", err)
	}

	return result.RowsAffected(), nil
}
