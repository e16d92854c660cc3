package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/domain/shared"
)

// EntryType categorizes cash movements
type EntryType string

const (
	EntryTypeOpening     EntryType = "opening"
	EntryTypeAdjustment  EntryType = "adjustment"
	EntryTypeExpense     EntryType = "expense"
	EntryTypeTransaction EntryType = "transaction"
)

// Entry is one append-only cash movement. Amount is signed centavos: cash in
// is positive, cash out is negative. Entries are immutable once written;
// corrections append a new entry. TransactionID is set only on
// transaction-completion entries and serves as their idempotency key.
type Entry struct {
	ID            uuid.UUID  `json:"id" bson:"id"`
	TenantID      uuid.UUID  `json:"tenant_id" bson:"tenant_id"`
	Type          EntryType  `json:"type" bson:"type"`
	Amount        int64      `json:"amount" bson:"amount"` // signed centavos
	Description   string     `json:"description" bson:"description"`
	Employee      string     `json:"employee" bson:"employee"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	Timestamp     time.Time  `json:"timestamp" bson:"timestamp"`
}

// NewEntry builds a manual ledger entry (opening, adjustment, expense).
func NewEntry(tenantID uuid.UUID, entryType EntryType, amount int64, description, employee string) (*Entry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrValidation{Field: "tenant_id", Reason: "tenant is required"}
	}
	switch entryType {
	case EntryTypeOpening, EntryTypeAdjustment, EntryTypeExpense:
	default:
		return nil, shared.ErrValidation{Field: "type", Reason: "manual entries must be opening, adjustment or expense"}
	}

	return &Entry{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Type:        entryType,
		Amount:      amount,
		Description: description,
		Employee:    employee,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// NewTransactionEntry builds the single cash movement produced when a
// transaction completes. The amount is the transaction's signed total.
func NewTransactionEntry(tenantID, transactionID uuid.UUID, amount int64, description, employee string) *Entry {
	txID := transactionID
	return &Entry{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Type:          EntryTypeTransaction,
		Amount:        amount,
		Description:   description,
		Employee:      employee,
		TransactionID: &txID,
		Timestamp:     time.Now().UTC(),
	}
}
