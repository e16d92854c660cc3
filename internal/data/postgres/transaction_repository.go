// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while keeping status
// transitions conditional so concurrent writers are serialized by the store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scrapyard-ledger/internal/domain/transaction"
	"github.com/scrapyard-ledger/internal/platform/persistence"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateDraft stores a new in-progress transaction. The row exists before the
// user has entered anything, which is what reserves the id for autosave.
func (r *TransactionRepository) CreateDraft(ctx context.Context, txn *transaction.Transaction) error {
	items, err := json.Marshal(txn.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction items: %w", err)
	}

	query := `
		INSERT INTO transactions (id, tenant_id, kind, status, customer_type, customer_name, employee_names,
			location, items, subtotal, expenses, total, session_images, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.querier.Exec(ctx, query,
		txn.ID,
		txn.TenantID,
		txn.Kind,
		txn.Status,
		txn.CustomerType,
		txn.CustomerName,
		txn.EmployeeNames,
		txn.Location,
		items,
		txn.Subtotal,
		txn.Expenses,
		txn.Total,
		txn.SessionImages,
		txn.Version,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create draft transaction", "id", txn.ID.String(), "error", err)
		return fmt.Errorf("failed to create draft transaction: %w", err)
	}

	return nil
}

// UpsertDraft replaces the full mutable snapshot of an in-progress
// transaction. The status guard makes the write a no-op once the transaction
// has been finalized, so a trailing autosave can never resurrect it.
func (r *TransactionRepository) UpsertDraft(ctx context.Context, txn *transaction.Transaction) error {
	items, err := json.Marshal(txn.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction items: %w", err)
	}

	query := `
		UPDATE transactions
		SET kind = $1, customer_type = $2, customer_name = $3, employee_names = $4, location = $5,
			items = $6, subtotal = $7, expenses = $8, total = $9, session_images = $10,
			version = version + 1, updated_at = $11
		WHERE id = $12 AND tenant_id = $13 AND status = $14
		RETURNING version
	`

	err = r.querier.QueryRow(ctx, query,
		txn.Kind,
		txn.CustomerType,
		txn.CustomerName,
		txn.EmployeeNames,
		txn.Location,
		items,
		txn.Subtotal,
		txn.Expenses,
		txn.Total,
		txn.SessionImages,
		txn.UpdatedAt,
		txn.ID,
		txn.TenantID,
		transaction.StatusInProgress,
	).Scan(&txn.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return transaction.ErrStatusConflict{TransactionID: txn.ID}
		}
		r.logger.Error("Failed to upsert draft transaction", "id", txn.ID.String(), "error", err)
		return fmt.Errorf("failed to upsert draft transaction: %w", err)
	}

	return nil
}

const transactionColumns = `id, tenant_id, kind, status, customer_type, customer_name, employee_names,
		location, items, subtotal, expenses, total, session_images, version, created_at, updated_at, completed_at`

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var txn transaction.Transaction
	var items []byte
	err := row.Scan(
		&txn.ID,
		&txn.TenantID,
		&txn.Kind,
		&txn.Status,
		&txn.CustomerType,
		&txn.CustomerName,
		&txn.EmployeeNames,
		&txn.Location,
		&items,
		&txn.Subtotal,
		&txn.Expenses,
		&txn.Total,
		&txn.SessionImages,
		&txn.Version,
		&txn.CreatedAt,
		&txn.UpdatedAt,
		&txn.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &txn.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction items: %w", err)
	}
	return &txn, nil
}

// GetByID retrieves a transaction within the tenant scope. A row owned by
// another tenant reports not found.
func (r *TransactionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1 AND tenant_id = $2
	`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// buildFilter appends WHERE predicates for the optional list filters.
// Argument numbering continues from the supplied args slice.
func buildFilter(filter transaction.ListFilter, args []interface{}) (string, []interface{}) {
	clause := ""
	if filter.Status != "" {
		args = append(args, filter.Status)
		clause += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		clause += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom)
		clause += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo)
		clause += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	return clause, args
}

// List returns offset-paginated transactions for the tenant, newest first.
func (r *TransactionRepository) List(ctx context.Context, tenantID uuid.UUID, filter transaction.ListFilter, limit, offset int) ([]*transaction.Transaction, error) {
	args := []interface{}{tenantID}
	clause, args := buildFilter(filter, args)

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE tenant_id = $1%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, clause, len(args)-1, len(args))

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "tenant_id", tenantID.String(), "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return txns, nil
}

// Count counts transactions matching the filter without transferring records.
func (r *TransactionRepository) Count(ctx context.Context, tenantID uuid.UUID, filter transaction.ListFilter) (int64, error) {
	args := []interface{}{tenantID}
	clause, args := buildFilter(filter, args)

	query := fmt.Sprintf(`SELECT COUNT(*) FROM transactions WHERE tenant_id = $1%s`, clause)

	var count int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "tenant_id", tenantID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// AdvanceToForPayment moves in-progress -> for-payment. The status predicate
// makes the transition conditional; zero rows means the transaction was not
// in-progress (or not visible to this tenant).
func (r *TransactionRepository) AdvanceToForPayment(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, transaction.StatusForPayment, id, tenantID, transaction.StatusInProgress)
	if err != nil {
		r.logger.Error("Failed to advance transaction to for-payment", "id", id.String(), "error", err)
		return fmt.Errorf("failed to advance transaction to for-payment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrStatusConflict{TransactionID: id}
	}

	return nil
}

// Cancel moves in-progress or for-payment -> cancelled.
func (r *TransactionRepository) Cancel(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND status IN ($4, $5)
	`

	result, err := r.querier.Exec(ctx, query,
		transaction.StatusCancelled, id, tenantID,
		transaction.StatusInProgress, transaction.StatusForPayment,
	)
	if err != nil {
		r.logger.Error("Failed to cancel transaction", "id", id.String(), "error", err)
		return fmt.Errorf("failed to cancel transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrStatusConflict{TransactionID: id}
	}

	return nil
}

// Complete moves for-payment -> completed. At most one caller can win the
// conditional write; everyone else gets ErrStatusConflict and must re-read.
func (r *TransactionRepository) Complete(ctx context.Context, tenantID, id uuid.UUID, completedAt time.Time) error {
	query := `
		UPDATE transactions
		SET status = $1, completed_at = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query,
		transaction.StatusCompleted, completedAt, id, tenantID, transaction.StatusForPayment,
	)
	if err != nil {
		r.logger.Error("Failed to complete transaction", "id", id.String(), "error", err)
		return fmt.Errorf("failed to complete transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrStatusConflict{TransactionID: id}
	}

	return nil
}

// MetricsForRange aggregates completed transactions whose completion time
// falls in [from, to]. Cancelled and open transactions never count.
func (r *TransactionRepository) MetricsForRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*transaction.Metrics, error) {
	query := `
		SELECT
			COALESCE(SUM(total) FILTER (WHERE kind = 'buy'), 0),
			COALESCE(SUM(total) FILTER (WHERE kind = 'sell'), 0),
			COALESCE(SUM(expenses), 0),
			COUNT(*) FILTER (WHERE kind = 'buy'),
			COUNT(*) FILTER (WHERE kind = 'sell')
		FROM transactions
		WHERE tenant_id = $1 AND status = $2 AND completed_at >= $3 AND completed_at <= $4
	`

	var m transaction.Metrics
	err := r.querier.QueryRow(ctx, query, tenantID, transaction.StatusCompleted, from, to).Scan(
		&m.TotalBought,
		&m.TotalSold,
		&m.TotalExpenses,
		&m.BuyCount,
		&m.SellCount,
	)
	if err != nil {
		r.logger.Error("Failed to aggregate transaction metrics", "tenant_id", tenantID.String(), "error", err)
		return nil, fmt.Errorf("failed to aggregate transaction metrics: %w", err)
	}

	m.NetProfit = m.TotalSold - m.TotalBought - m.TotalExpenses
	return &m, nil
}
