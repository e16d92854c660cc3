// Package transaction defines the buy/sell transaction entity, its status
// machine and the totals math. Monetary amounts are stored in centavos
// (int64 minor units); weights are decimal kilograms.
package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/scrapyard-ledger/internal/domain/shared"
)

// Kind defines the direction of a transaction
type Kind string

const (
	KindBuy  Kind = "buy"
	KindSell Kind = "sell"
)

// Status defines transaction lifecycle states
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusForPayment Status = "for-payment"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no transition is legal out of the status
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// LineItem is one scrap item on a transaction. Exactly one of Weight or
// Pieces is set. LineTotal is derived and recomputed on every save; a stored
// value that disagrees with the recomputation is treated as stale.
type LineItem struct {
	Name      string           `json:"name"`
	Weight    *decimal.Decimal `json:"weight,omitempty"` // kilograms
	Pieces    *int64           `json:"pieces,omitempty"`
	UnitPrice int64            `json:"unit_price"` // centavos
	LineTotal int64            `json:"line_total"` // centavos, derived
	Images    []string         `json:"images,omitempty"`
}

// Total recomputes the line total from quantity and unit price.
// Weight totals round half-up to whole centavos.
func (li LineItem) Total() int64 {
	switch {
	case li.Weight != nil:
		return li.Weight.Mul(decimal.NewFromInt(li.UnitPrice)).Round(0).IntPart()
	case li.Pieces != nil:
		return *li.Pieces * li.UnitPrice
	default:
		return 0
	}
}

// Transaction is one buy or sell event, exclusively owned by one tenant.
// All fields except Status and CompletedAt become immutable once the
// transaction leaves in-progress.
type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	Kind          Kind       `json:"kind"`
	Status        Status     `json:"status"`
	CustomerType  string     `json:"customer_type"`
	CustomerName  string     `json:"customer_name,omitempty"`
	EmployeeNames []string   `json:"employee_names"`
	Location      string     `json:"location,omitempty"`
	Items         []LineItem `json:"items"`
	Subtotal      int64      `json:"subtotal"` // centavos, derived
	Expenses      int64      `json:"expenses"` // centavos, non-negative
	Total         int64      `json:"total"`    // centavos, derived
	SessionImages []string   `json:"session_images,omitempty"`
	Version       int64      `json:"version"` // monotonic, for last-writer-wins
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewDraft creates an empty in-progress transaction, reserving the id and
// tenant scope before any item exists.
func NewDraft(kind Kind, tenantID uuid.UUID) (*Transaction, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrValidation{Field: "tenant_id", Reason: "tenant is required"}
	}
	if kind != KindBuy && kind != KindSell {
		return nil, shared.ErrValidation{Field: "kind", Reason: "must be buy or sell"}
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Kind:      kind,
		Status:    StatusInProgress,
		Items:     []LineItem{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Totals recomputes subtotal and total from items and expenses.
// Expenses add to the total on a buy and subtract on a sell.
func Totals(kind Kind, items []LineItem, expenses int64) (subtotal, total int64) {
	for _, li := range items {
		subtotal += li.Total()
	}
	if kind == KindBuy {
		total = subtotal + expenses
	} else {
		total = subtotal - expenses
	}
	return subtotal, total
}

// RecomputeTotals rewrites the derived fields in place. Stored totals that
// disagree (e.g. a zero total on a partially written draft whose items carry
// prices) are replaced by the recomputed values.
func (t *Transaction) RecomputeTotals() {
	for i := range t.Items {
		t.Items[i].LineTotal = t.Items[i].Total()
	}
	t.Subtotal, t.Total = Totals(t.Kind, t.Items, t.Expenses)
}

// SignedAmount is the ledger contribution of a completed transaction:
// positive for a sell (cash in), negative for a buy (cash out).
func (t *Transaction) SignedAmount() int64 {
	if t.Kind == KindSell {
		return t.Total
	}
	return -t.Total
}

// ValidateForPayment checks the requirements for leaving in-progress:
// at least one line item and at least one assigned employee.
func (t *Transaction) ValidateForPayment() error {
	if t.Status != StatusInProgress {
		return ErrStatusConflict{TransactionID: t.ID, Status: t.Status}
	}
	if len(t.Items) == 0 {
		return ErrIncompleteTransaction{TransactionID: t.ID, Missing: "at least one line item"}
	}
	if len(t.EmployeeNames) == 0 {
		return ErrIncompleteTransaction{TransactionID: t.ID, Missing: "at least one assigned employee"}
	}
	if t.Expenses < 0 {
		return shared.ErrValidation{Field: "expenses", Reason: "must be non-negative"}
	}
	return nil
}
