package ledger_processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scrapyard-ledger/internal/domain/ledger"
	"github.com/scrapyard-ledger/internal/domain/outbox"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/scrapyard-ledger/internal/platform/messaging/producers"
)

// LedgerPublisher moves one staged outbox message into the ledger store and
// announces the new entry on the change event bus.
type LedgerPublisher interface {
	PublishToLedger(ctx context.Context, message *outbox.Message) error
}

// LedgerPublisherImpl implements LedgerPublisher
type LedgerPublisherImpl struct {
	outboxRepo   outbox.Repository
	ledgerRepo   ledger.Repository
	changeEvents producers.MessagePublisher
	logger       *slog.Logger
}

// NewLedgerPublisher creates a new publisher
func NewLedgerPublisher(
	outboxRepo outbox.Repository,
	ledgerRepo ledger.Repository,
	changeEvents producers.MessagePublisher,
	logger *slog.Logger,
) LedgerPublisher {
	return &LedgerPublisherImpl{
		outboxRepo:   outboxRepo,
		ledgerRepo:   ledgerRepo,
		changeEvents: changeEvents,
		logger:       logger,
	}
}

// PublishToLedger appends the staged entry and publishes a change event keyed
// by tenant id, so all events of one tenant land on the same partition and
// stay ordered. The append is idempotent; a retry after a partially
// completed run does no harm. Only after both steps succeed is the outbox
// message removed.
func (p *LedgerPublisherImpl) PublishToLedger(ctx context.Context, message *outbox.Message) error {
	entry, err := message.GetLedgerEntry()
	if err != nil {
		p.logger.Error("Failed to unmarshal ledger entry from outbox payload",
			"outbox_id", message.ID, "entry_id", message.EntryID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to mark outbox message FAILED_TO_PUBLISH after unmarshal error",
				"outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("outbox_id", message.ID, "entry_id", entry.ID.String())

	err = p.ledgerRepo.Append(ctx, entry)
	switch {
	case err == nil:
		logger.Info("Appended ledger entry",
			"tenant_id", entry.TenantID.String(), "type", string(entry.Type), "amount", entry.Amount)
	case errors.Is(err, ledger.ErrDuplicateEntry{}):
		// A previous run appended the entry but died before cleaning up the
		// outbox. The ledger already holds the truth; finish the cleanup.
		logger.Info("Ledger entry already appended, finishing cleanup")
	default:
		return fmt.Errorf("failed to append ledger entry %s: %w", entry.ID, err)
	}

	event := &shared.ChangeEvent{
		TenantID:   entry.TenantID,
		Entity:     shared.EntityCashEntry,
		EntityID:   entry.ID,
		Version:    1, // ledger entries are immutable
		Payload:    message.Payload,
		OccurredAt: time.Now().UTC(),
	}
	if err := p.changeEvents.Publish(ctx, entry.TenantID.String(), event); err != nil {
		return fmt.Errorf("failed to publish change event for entry %s: %w", entry.ID, err)
	}

	if err := p.outboxRepo.Delete(ctx, message.ID); err != nil {
		return fmt.Errorf("ledger write for entry %s OK, but failed to delete outbox %d: %w",
			entry.ID, message.ID, err)
	}

	logger.Info("Outbox message processed")
	return nil
}
