// Package reconciler merges change events published by the stores into a
// session-local cache so concurrent sessions of the same tenant converge
// without clobbering in-flight edits.
package reconciler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/scrapyard-ledger/internal/platform/messaging/consumers"
	"github.com/scrapyard-ledger/internal/platform/messaging/producers"
)

// Reconciler consumes tenant-scoped change events and applies them to the
// local cache. Events that cannot be decoded go to the dead letter queue and
// are committed; everything else is committed only after the cache accepted
// or deliberately skipped it.
type Reconciler struct {
	logger   *slog.Logger
	cache    *Cache
	consumer consumers.Consumer
	dlq      producers.DeadLetterPublisher
	cfg      *config.KafkaConfig
}

func NewReconciler(
	logger *slog.Logger,
	cfg *config.KafkaConfig,
	cache *Cache,
	consumer consumers.Consumer,
	dlq producers.DeadLetterPublisher,
) *Reconciler {
	return &Reconciler{
		logger:   logger,
		cache:    cache,
		consumer: consumer,
		dlq:      dlq,
		cfg:      cfg,
	}
}

// Start subscribes to the change event topic. It returns once the
// subscription is established; consumption continues until ctx is canceled.
func (r *Reconciler) Start(ctx context.Context) error {
	return r.consumer.Subscribe(ctx, r.cfg.ChangeEventTopic, r.cfg.ConsumerGroup, r.handleMessage)
}

func (r *Reconciler) handleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.ChangeEvent
	if err := json.Unmarshal(value, &event); err != nil {
		r.logger.Error("Undecodable change event, sending to DLQ",
			"key", string(key),
			"error", err,
		)
		if dlqErr := r.dlq.PublishToDLQ(ctx, string(key), value, err.Error()); dlqErr != nil {
			// Keep the offset uncommitted so the event is redelivered.
			return dlqErr
		}
		return nil
	}

	result := r.cache.Apply(&event)
	switch result {
	case SkippedDirty:
		r.logger.Debug("Change event skipped, local draft is dirty",
			"tenant_id", event.TenantID.String(),
			"entity_id", event.EntityID.String(),
		)
	case SkippedStale:
		r.logger.Debug("Change event dropped, cached version is newer",
			"tenant_id", event.TenantID.String(),
			"entity_id", event.EntityID.String(),
			"version", event.Version,
		)
	default:
		r.logger.Debug("Change event applied",
			"tenant_id", event.TenantID.String(),
			"entity", string(event.Entity),
			"entity_id", event.EntityID.String(),
			"version", event.Version,
		)
	}
	return nil
}

// Close stops the underlying consumer.
func (r *Reconciler) Close() error {
	return r.consumer.Close()
}
