package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scrapyard-ledger/internal/domain/ledger"
	"github.com/scrapyard-ledger/internal/domain/outbox"
	"github.com/scrapyard-ledger/internal/domain/shared"
)

// LedgerServiceImpl implements the LedgerService interface
type LedgerServiceImpl struct {
	ledgerRepo ledger.Repository
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(logger *slog.Logger, ledgerRepo ledger.Repository, outboxRepo outbox.Repository) LedgerService {
	return &LedgerServiceImpl{
		ledgerRepo: ledgerRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Balance derives the tenant's cash on hand from the ledger sum. There is no
// cached balance anywhere to drift from it.
func (s *LedgerServiceImpl) Balance(ctx context.Context, actor shared.Actor) (int64, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadLedger); err != nil {
		return 0, err
	}
	return s.ledgerRepo.SumByTenant(ctx, actor.TenantID, time.Now().UTC())
}

// ListEntries returns a page of ledger entries, newest first
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, actor shared.Actor, page, perPage int) ([]*ledger.Entry, int64, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionReadLedger); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	entries, err := s.ledgerRepo.ListByTenant(ctx, actor.TenantID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.ledgerRepo.CountByTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, 0, err
	}

	return entries, count, nil
}

// AppendManual stages a manual cash entry through the outbox. Routing manual
// entries through the same outbox as completion entries keeps the ledger's
// append order deterministic per tenant; the entry becomes visible after the
// next poll.
func (s *LedgerServiceImpl) AppendManual(ctx context.Context, actor shared.Actor, entryType ledger.EntryType, amount int64, description string) (*ledger.Entry, error) {
	if err := shared.Authorize(actor, actor.TenantID, shared.ActionAppendLedger); err != nil {
		return nil, err
	}

	entry, err := ledger.NewEntry(actor.TenantID, entryType, amount, description, actor.Name)
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

	s.logger.Info("Manual ledger entry staged",
		"entry_id", entry.ID,
		"tenant_id", actor.TenantID,
		"type", string(entryType),
		"amount", amount,
	)
	return entry, nil
}
