// Package ledger_processor drains the staging outbox into the append-only
// cash ledger. Completing a transaction (or recording a manual entry) writes
// the entry into the outbox inside the same database transaction as the
// status change; this package carries it the rest of the way and broadcasts
// the resulting change event.
package ledger_processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/domain/outbox"
	"github.com/scrapyard-ledger/internal/platform/messaging/producers"
)

// Poller processes pending outbox messages
type Poller struct {
	outboxRepo       outbox.Repository
	ledgerPublisher  LedgerPublisher
	dlq              producers.DeadLetterPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	ledgerPublisher LedgerPublisher,
	dlq producers.DeadLetterPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		ledgerPublisher:  ledgerPublisher,
		dlq:              dlq,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting ledger outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Ledger outbox poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	// Once a tenant's message fails, its younger messages wait for the next
	// poll so entries never reach the ledger out of order within a tenant.
	blocked := make(map[uuid.UUID]bool)

	for _, msg := range messages {
		if blocked[msg.TenantID] {
			p.logger.Debug("Skipping outbox message behind a failed one for the same tenant",
				"outbox_id", msg.ID, "tenant_id", msg.TenantID.String())
			continue
		}

		err := p.ledgerPublisher.PublishToLedger(ctx, msg)
		if err == nil {
			continue
		}
		blocked[msg.TenantID] = true
		p.logger.Error("Failed to publish outbox message to ledger",
			"outbox_id", msg.ID, "entry_id", msg.EntryID, "current_attempts", msg.Attempts, "error", err,
		)

		if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
			p.logger.Error("Failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", errInc)
			continue
		}

		if msg.Attempts+1 >= p.maxRetryAttempts {
			p.logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
				"outbox_id", msg.ID, "entry_id", msg.EntryID, "attempts_made", msg.Attempts+1,
			)
			if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, outbox.StatusFailedToPublish); errUpdate != nil {
				p.logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries",
					"outbox_id", msg.ID, "error", errUpdate)
				continue
			}
			if errDLQ := p.dlq.PublishToDLQ(ctx, msg.TenantID.String(), msg.Payload, err.Error()); errDLQ != nil {
				p.logger.Error("Failed to publish exhausted outbox message to DLQ",
					"outbox_id", msg.ID, "error", errDLQ)
			}
		}
	}
	return nil
}
