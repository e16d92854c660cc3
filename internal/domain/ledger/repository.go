package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository manages the append-only cash ledger. All reads and writes are
// tenant-scoped. Entries are observable in append order within a tenant so
// the balance is deterministic.
type Repository interface {
	// Append writes a new entry. Transaction-completion entries are
	// idempotent by transaction id: a duplicate append returns
	// ErrDuplicateEntry and writes nothing.
	Append(ctx context.Context, entry *Entry) error

	// GetByID retrieves one entry within the tenant scope.
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Entry, error)

	// GetByTransactionID finds the completion entry for a transaction, if any.
	GetByTransactionID(ctx context.Context, tenantID, transactionID uuid.UUID) (*Entry, error)

	// ListByTenant returns offset-paginated entries, newest first.
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Entry, error)

	// CountByTenant counts all entries for the tenant.
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// SumByTenant is the current balance: the sum of all signed amounts for
	// the tenant with timestamp <= asOf.
	SumByTenant(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int64, error)
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	EntryID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.EntryID.String()
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.EntryID == uuid.Nil {
		return true
	}
	return e.EntryID == t.EntryID
}

// ErrDuplicateEntry indicates a second completion entry was attempted for the
// same transaction
type ErrDuplicateEntry struct {
	TransactionID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry for transaction: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}
