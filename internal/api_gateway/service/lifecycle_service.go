package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/scrapyard-ledger/internal/domain/ledger"
	"github.com/scrapyard-ledger/internal/domain/outbox"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/scrapyard-ledger/internal/domain/transaction"
	"github.com/scrapyard-ledger/internal/platform/messaging/producers"
)

// TxRunner runs a function inside a single database transaction. Satisfied by
// persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// LifecycleService implements the TransactionService interface
type LifecycleService struct {
	db              TxRunner
	txRepo          transaction.Repository
	outboxRepo      outbox.Repository
	employeeRepo    employee.Repository
	changeEvents    producers.MessagePublisher
	completeTimeout time.Duration
	logger          *slog.Logger
}

// NewLifecycleService creates the transaction lifecycle service.
// completeTimeout bounds the complete operation end to end.
func NewLifecycleService(
	logger *slog.Logger,
	db TxRunner,
	txRepo transaction.Repository,
	outboxRepo outbox.Repository,
	employeeRepo employee.Repository,
	changeEvents producers.MessagePublisher,
	completeTimeout time.Duration,
) TransactionService {
	return &LifecycleService{
		db:              db,
		txRepo:          txRepo,
		outboxRepo:      outboxRepo,
		employeeRepo:    employeeRepo,
		changeEvents:    changeEvents,
		completeTimeout: completeTimeout,
		logger:          logger,
	}
}

// announceChange broadcasts the post-write record so other sessions of the
// same tenant can merge it. Delivery is best effort: a missed event is
// repaired by the next one, because merging is version-based.
func (s *LifecycleService) announceChange(ctx context.Context, txn *transaction.Transaction) {
	payload, err := json.Marshal(txn)
	if err != nil {
		s.logger.Error("Failed to marshal transaction change event",
			"transaction_id", txn.ID, "error", err)
		return
	}

	event := &shared.ChangeEvent{
		TenantID:   txn.TenantID,
		Entity:     shared.EntityTransaction,
		EntityID:   txn.ID,
		Version:    txn.Version,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.changeEvents.Publish(ctx, txn.TenantID.String(), event); err != nil {
		s.logger.Error("Failed to publish transaction change event",
			"transaction_id", txn.ID, "version", txn.Version, "error", err)
	}
}

// CreateDraft persists an empty in-progress transaction. The id is reserved
// immediately so subsequent autosaves have a stable target.
func (s *LifecycleService) CreateDraft(ctx context.Context, actor shared.Actor, kind transaction.Kind) (*transaction.Transaction, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionWriteDraft); err != nil {
		return nil, err
	}

	txn, err := transaction.NewDraft(kind, actor.TenantID)
	if err != nil {
		return nil, err
	}

	if err := s.txRepo.CreateDraft(ctx, txn); err != nil {
		return nil, err
	}

	s.logger.Info("Draft transaction created",
		"transaction_id", txn.ID,
		"tenant_id", txn.TenantID,
		"kind", string(txn.Kind),
	)
	s.announceChange(ctx, txn)
	return txn, nil
}

// SaveDraft replaces the draft snapshot and recomputes the derived totals.
// The conditional write guarantees a finalized transaction is never
// resurrected by a save that was already in flight when it finalized.
func (s *LifecycleService) SaveDraft(ctx context.Context, actor shared.Actor, id uuid.UUID, snap DraftSnapshot) (*transaction.Transaction, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionWriteDraft); err != nil {
		return nil, err
	}
	if snap.Expenses < 0 {
		return nil, shared.ErrValidation{Field: "expenses", Reason: "must be non-negative"}
	}

	txn, err := s.txRepo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}

	txn.CustomerType = snap.CustomerType
	txn.CustomerName = snap.CustomerName
	txn.EmployeeNames = snap.EmployeeNames
	txn.Location = snap.Location
	txn.Items = snap.Items
	txn.Expenses = snap.Expenses
	txn.SessionImages = snap.SessionImages
	txn.UpdatedAt = time.Now().UTC()
	txn.RecomputeTotals()

	if err := s.txRepo.UpsertDraft(ctx, txn); err != nil {
		return nil, err
	}

	s.announceChange(ctx, txn)
	return txn, nil
}

// GetTransaction retrieves one transaction within the actor's tenant
func (s *LifecycleService) GetTransaction(ctx context.Context, actor shared.Actor, id uuid.UUID) (*transaction.Transaction, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadTransactions); err != nil {
		return nil, err
	}
	return s.txRepo.GetByID(ctx, actor.TenantID, id)
}

// ListTransactions returns a page of transactions plus the total count
func (s *LifecycleService) ListTransactions(ctx context.Context, actor shared.Actor, filter transaction.ListFilter, page, perPage int) ([]*transaction.Transaction, int64, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadTransactions); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	txns, err := s.txRepo.List(ctx, actor.TenantID, filter, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.txRepo.Count(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, 0, err
	}

	return txns, count, nil
}

// CountTransactions counts matches without transferring records
func (s *LifecycleService) CountTransactions(ctx context.Context, actor shared.Actor, filter transaction.ListFilter) (int64, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadTransactions); err != nil {
		return 0, err
	}
	return s.txRepo.Count(ctx, actor.TenantID, filter)
}

// AdvanceToForPayment validates the draft and moves it to for-payment
func (s *LifecycleService) AdvanceToForPayment(ctx context.Context, actor shared.Actor, id uuid.UUID) (*transaction.Transaction, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionAdvanceTransaction); err != nil {
		return nil, err
	}

	txn, err := s.txRepo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if err := txn.ValidateForPayment(); err != nil {
		return nil, err
	}

	if err := s.txRepo.AdvanceToForPayment(ctx, actor.TenantID, id); err != nil {
		return nil, err
	}

	txn.Status = transaction.StatusForPayment
	txn.Version++
	s.logger.Info("Transaction advanced to for-payment", "transaction_id", id, "tenant_id", actor.TenantID)
	s.announceChange(ctx, txn)
	return txn, nil
}

// Cancel abandons an open transaction. Cancellation never writes to the
// ledger; the cash never moved.
func (s *LifecycleService) Cancel(ctx context.Context, actor shared.Actor, id uuid.UUID) (*transaction.Transaction, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionCancelTransaction); err != nil {
		return nil, err
	}

	txn, err := s.txRepo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if txn.Status.Terminal() {
		return nil, transaction.ErrStatusConflict{TransactionID: id, Status: txn.Status}
	}

	if err := s.txRepo.Cancel(ctx, actor.TenantID, id); err != nil {
		return nil, err
	}

	txn.Status = transaction.StatusCancelled
	txn.Version++
	s.logger.Info("Transaction cancelled", "transaction_id", id, "tenant_id", actor.TenantID)
	s.announceChange(ctx, txn)
	return txn, nil
}

// Complete finalizes a for-payment transaction. The status flip, the staged
// cash entry and the per-employee session counters commit in one database
// transaction; the conditional status write means at most one caller can
// stage the entry. The whole operation is bounded by the configured timeout
// so the cashier is never left hanging.
func (s *LifecycleService) Complete(ctx context.Context, actor shared.Actor, id uuid.UUID) (*transaction.Transaction, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionCompleteTransaction); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.completeTimeout)
	defer cancel()

	txn, err := s.txRepo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if txn.Status != transaction.StatusForPayment {
		return nil, transaction.ErrStatusConflict{TransactionID: id, Status: txn.Status}
	}

	completedAt := time.Now().UTC()
	description := fmt.Sprintf("%s: %s", txn.Kind, txn.CustomerName)
	entry := ledger.NewTransactionEntry(txn.TenantID, txn.ID, txn.SignedAmount(), description, actor.Name)

	msg, err := outbox.NewMessage(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to stage ledger entry: %w", err)
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.txRepo.WithTx(tx).Complete(ctx, actor.TenantID, id, completedAt); err != nil {
			return err
		}
		if err := s.outboxRepo.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}
		return s.employeeRepo.WithTx(tx).IncrementSessionsHandled(ctx, actor.TenantID, txn.EmployeeNames)
	})
	if err != nil {
		return nil, err
	}

	txn.Status = transaction.StatusCompleted
	txn.CompletedAt = &completedAt
	txn.Version++
	s.logger.Info("Transaction completed",
		"transaction_id", id,
		"tenant_id", actor.TenantID,
		"amount", entry.Amount,
	)
	s.announceChange(ctx, txn)
	return txn, nil
}

// Metrics aggregates completed transactions for a date range
func (s *LifecycleService) Metrics(ctx context.Context, actor shared.Actor, from, to time.Time) (*transaction.Metrics, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadTransactions); err != nil {
		return nil, err
	}
	return s.txRepo.MetricsForRange(ctx, actor.TenantID, from, to)
}
