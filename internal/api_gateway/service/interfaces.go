package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/scrapyard-ledger/internal/domain/ledger"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/scrapyard-ledger/internal/domain/transaction"
)

// DraftSnapshot is the full mutable state of an in-progress transaction as
// sent by the client on each save. Derived totals are recomputed server-side
// and never trusted from the snapshot.
type DraftSnapshot struct {
	CustomerType  string
	CustomerName  string
	EmployeeNames []string
	Location      string
	Items         []transaction.LineItem
	Expenses      int64
	SessionImages []string
}

// TransactionService drives the transaction lifecycle. Every operation
// authorizes the actor before touching any record; a record outside the
// actor's tenant is indistinguishable from a missing one.
type TransactionService interface {
	// CreateDraft persists an empty in-progress transaction immediately,
	// before the user has entered anything.
	CreateDraft(ctx context.Context, actor shared.Actor, kind transaction.Kind) (*transaction.Transaction, error)

	// SaveDraft replaces the draft's snapshot. Replaying an identical
	// snapshot is harmless. Finalized transactions reject the save with
	// ErrStatusConflict.
	SaveDraft(ctx context.Context, actor shared.Actor, id uuid.UUID, snap DraftSnapshot) (*transaction.Transaction, error)

	// GetTransaction retrieves one transaction.
	GetTransaction(ctx context.Context, actor shared.Actor, id uuid.UUID) (*transaction.Transaction, error)

	// ListTransactions returns a filtered page of transactions plus the
	// total count for pagination.
	ListTransactions(ctx context.Context, actor shared.Actor, filter transaction.ListFilter, page, perPage int) ([]*transaction.Transaction, int64, error)

	// CountTransactions counts matches without transferring records.
	CountTransactions(ctx context.Context, actor shared.Actor, filter transaction.ListFilter) (int64, error)

	// AdvanceToForPayment moves in-progress -> for-payment after validating
	// the draft is complete enough to be paid.
	AdvanceToForPayment(ctx context.Context, actor shared.Actor, id uuid.UUID) (*transaction.Transaction, error)

	// Cancel abandons an open transaction. No ledger entry is ever written.
	Cancel(ctx context.Context, actor shared.Actor, id uuid.UUID) (*transaction.Transaction, error)

	// Complete finalizes a for-payment transaction and stages exactly one
	// cash entry for the ledger. Owner only. Concurrent callers race on a
	// conditional write; losers get ErrStatusConflict.
	Complete(ctx context.Context, actor shared.Actor, id uuid.UUID) (*transaction.Transaction, error)

	// Metrics aggregates completed transactions for a date range.
	Metrics(ctx context.Context, actor shared.Actor, from, to time.Time) (*transaction.Metrics, error)
}

// LedgerService exposes the append-only cash ledger. The ledger sum is the
// only source of the cash balance.
type LedgerService interface {
	// Balance is the sum of all entry amounts for the tenant as of now.
	Balance(ctx context.Context, actor shared.Actor) (int64, error)

	// ListEntries returns a page of entries, newest first, plus the total count.
	ListEntries(ctx context.Context, actor shared.Actor, page, perPage int) ([]*ledger.Entry, int64, error)

	// AppendManual stages a manual entry (opening, adjustment, expense). The
	// entry flows through the same outbox as completion entries so appends
	// reach the ledger in order.
	AppendManual(ctx context.Context, actor shared.Actor, entryType ledger.EntryType, amount int64, description string) (*ledger.Entry, error)
}

// EmployeeService manages tenant staff and their cash advances
type EmployeeService interface {
	CreateEmployee(ctx context.Context, actor shared.Actor, name string, role shared.Role, weeklySalary int64) (*employee.Employee, error)
	GetEmployee(ctx context.Context, actor shared.Actor, id uuid.UUID) (*employee.Employee, error)
	ListEmployees(ctx context.Context, actor shared.Actor) ([]*employee.Employee, error)

	// GrantAdvance records a cash advance and stages the matching negative
	// adjustment in the ledger. Owner only.
	GrantAdvance(ctx context.Context, actor shared.Actor, employeeID uuid.UUID, amount int64, description string) (*employee.CashAdvance, error)
	ListAdvances(ctx context.Context, actor shared.Actor, employeeID uuid.UUID) ([]*employee.CashAdvance, error)
}
