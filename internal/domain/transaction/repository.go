package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListFilter narrows transaction listings. Zero values mean "no filter".
type ListFilter struct {
	Status   Status
	Kind     Kind
	DateFrom time.Time
	DateTo   time.Time
}

// Repository manages transaction persistence. Every method is tenant-scoped;
// a record belonging to another tenant is indistinguishable from a missing
// one. Status transitions use conditional writes so concurrent callers are
// serialized by the store, not the client.
type Repository interface {
	// CreateDraft inserts a new in-progress transaction.
	CreateDraft(ctx context.Context, tx *Transaction) error

	// UpsertDraft replaces the full snapshot of an in-progress transaction,
	// keyed by id. Replaying the same snapshot is a no-op beyond timestamp
	// and version bookkeeping. It never touches a transaction that has left
	// in-progress.
	UpsertDraft(ctx context.Context, tx *Transaction) error

	// GetByID retrieves a transaction within the tenant scope.
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Transaction, error)

	// List returns offset-paginated transactions, newest first.
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter, limit, offset int) ([]*Transaction, error)

	// Count counts transactions matching the filter without transferring records.
	Count(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (int64, error)

	// AdvanceToForPayment moves in-progress -> for-payment conditionally.
	AdvanceToForPayment(ctx context.Context, tenantID, id uuid.UUID) error

	// Cancel moves in-progress or for-payment -> cancelled conditionally.
	Cancel(ctx context.Context, tenantID, id uuid.UUID) error

	// Complete moves for-payment -> completed conditionally, stamping the
	// completion time. Exactly one caller can succeed; losers get
	// ErrStatusConflict.
	Complete(ctx context.Context, tenantID, id uuid.UUID, completedAt time.Time) error

	// MetricsForRange aggregates completed transactions whose completion time
	// falls in [from, to].
	MetricsForRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*Metrics, error)

	WithTx(tx pgx.Tx) Repository
}

// Metrics summarizes completed activity for a date range. All amounts are
// centavos. NetProfit = TotalSold - TotalBought - TotalExpenses.
type Metrics struct {
	TotalBought   int64 `json:"total_bought"`
	TotalSold     int64 `json:"total_sold"`
	TotalExpenses int64 `json:"total_expenses"`
	NetProfit     int64 `json:"net_profit"`
	BuyCount      int64 `json:"buy_count"`
	SellCount     int64 `json:"sell_count"`
}

// ErrNotFound indicates a missing transaction within the tenant scope
type ErrNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrNotFound
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrStatusConflict indicates a conditional status write lost the race: the
// transaction was no longer in the expected status. Callers must re-fetch the
// current status rather than retry blindly.
type ErrStatusConflict struct {
	TransactionID uuid.UUID
	Status        Status
}

func (e ErrStatusConflict) Error() string {
	if e.Status != "" {
		return "transaction " + e.TransactionID.String() + " is in status " + string(e.Status)
	}
	return "transaction " + e.TransactionID.String() + " changed status concurrently"
}

// Is implements the errors.Is interface for ErrStatusConflict
func (e ErrStatusConflict) Is(target error) bool {
	t, ok := target.(ErrStatusConflict)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrIncompleteTransaction indicates the transaction lacks a field required
// for the requested transition
type ErrIncompleteTransaction struct {
	TransactionID uuid.UUID
	Missing       string
}

func (e ErrIncompleteTransaction) Error() string {
	return "transaction " + e.TransactionID.String() + " is incomplete: requires " + e.Missing
}

// Is implements the errors.Is interface for ErrIncompleteTransaction
func (e ErrIncompleteTransaction) Is(target error) bool {
	_, ok := target.(ErrIncompleteTransaction)
	return ok
}
