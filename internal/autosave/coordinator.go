// Package autosave keeps an in-progress transaction draft persisted while a
// session is being built. A session registers once per draft; the coordinator
// persists an empty draft immediately, then replays the latest snapshot on a
// fixed interval through the idempotent draft upsert. Save failures are
// logged and retried on the next tick, never surfaced mid-session.
package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/scrapyard-ledger/internal/api_gateway/service"
	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/scrapyard-ledger/internal/domain/transaction"
)

// DraftService is the slice of the transaction service the coordinator needs.
type DraftService interface {
	CreateDraft(ctx context.Context, actor shared.Actor, kind transaction.Kind) (*transaction.Transaction, error)
	SaveDraft(ctx context.Context, actor shared.Actor, id uuid.UUID, snap service.DraftSnapshot) (*transaction.Transaction, error)
}

// ErrSessionNotFound indicates an operation on a draft the coordinator is
// not tracking (never started, or already finalized).
type ErrSessionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrSessionNotFound) Error() string {
	return "no active autosave session for transaction " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrSessionNotFound
func (e ErrSessionNotFound) Is(target error) bool {
	t, ok := target.(ErrSessionNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// session tracks one draft. All mutable fields are guarded by mu; the save
// loop and the flush path both funnel through trySave so at most one save is
// in flight per draft.
type session struct {
	actor shared.Actor
	id    uuid.UUID

	mu        sync.Mutex
	snapshot  service.DraftSnapshot
	seq       uint64 // bumped on every Update; a save clears dirty only if seq is unchanged
	dirty     bool
	inFlight  bool
	finalized bool

	stop     chan struct{}
	stopOnce sync.Once
}

// Coordinator schedules background snapshot saves for active draft sessions.
type Coordinator struct {
	service  DraftService
	pool     *ants.Pool
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session

	pending atomic.Int64
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator backed by a bounded worker pool.
func NewCoordinator(logger *slog.Logger, cfg config.AutosaveConfig, svc DraftService) (*Coordinator, error) {
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		service:  svc,
		pool:     pool,
		interval: cfg.Interval,
		logger:   logger,
		sessions: make(map[uuid.UUID]*session),
	}, nil
}

// StartSession persists an empty draft immediately, reserving the transaction
// id and tenant scope before any item exists, and begins the save loop.
func (c *Coordinator) StartSession(ctx context.Context, actor shared.Actor, kind transaction.Kind) (*transaction.Transaction, error) {
	txn, err := c.service.CreateDraft(ctx, actor, kind)
	if err != nil {
		return nil, err
	}

	s := &session{
		actor: actor,
		id:    txn.ID,
		stop:  make(chan struct{}),
	}

	c.mu.Lock()
	c.sessions[txn.ID] = s
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runLoop(s)

	c.logger.Info("Autosave session started",
		"transaction_id", txn.ID.String(),
		"tenant_id", actor.TenantID.String(),
	)
	return txn, nil
}

// Update replaces the session's pending snapshot and marks it dirty. The
// snapshot is persisted on the next tick, or sooner via Flush.
func (c *Coordinator) Update(id uuid.UUID, snap service.DraftSnapshot) error {
	s, ok := c.lookup(id)
	if !ok {
		return ErrSessionNotFound{TransactionID: id}
	}

	s.mu.Lock()
	s.snapshot = snap
	s.seq++
	s.dirty = true
	s.mu.Unlock()
	return nil
}

// Flush fires a snapshot save without waiting for it to finish. Used on
// session-hide and navigation-away, where blocking the caller is not
// acceptable. The save still skips if one is already in flight.
func (c *Coordinator) Flush(id uuid.UUID) error {
	s, ok := c.lookup(id)
	if !ok {
		return ErrSessionNotFound{TransactionID: id}
	}

	if err := c.pool.Submit(func() { c.trySave(s) }); err != nil {
		c.logger.Error("Failed to submit flush save",
			"transaction_id", id.String(),
			"error", err,
		)
		return err
	}
	return nil
}

// Finalize stops the save loop for a draft that has left in-progress. The
// draft upsert is itself conditional on status, so even a save that slipped
// past this point cannot resurrect the finalized transaction.
func (c *Coordinator) Finalize(id uuid.UUID) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.finalized = true
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
}

// PendingSaves reports the number of in-flight background saves.
func (c *Coordinator) PendingSaves() int64 {
	return c.pending.Load()
}

// ActiveSessions reports the number of drafts currently being tracked.
func (c *Coordinator) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Shutdown stops all session loops and releases the worker pool. In-flight
// saves are allowed to finish.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	for id, s := range c.sessions {
		s.stopOnce.Do(func() { close(s.stop) })
		delete(c.sessions, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("Shutting down autosave pool", "running_workers", c.pool.Running())
	c.pool.Release()
}

func (c *Coordinator) lookup(id uuid.UUID) (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// runLoop fires a scheduled save every interval until the session stops.
func (c *Coordinator) runLoop(s *session) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := c.pool.Submit(func() { c.trySave(s) }); err != nil {
				c.logger.Error("Failed to submit scheduled save",
					"transaction_id", s.id.String(),
					"error", err,
				)
			}
		}
	}
}

// trySave persists the session snapshot if it is worth saving: dirty, has at
// least one item, not finalized, and no save already in flight. A scheduled
// save that finds one in flight is skipped, not queued, bounding staleness
// instead of building a backlog.
func (c *Coordinator) trySave(s *session) {
	s.mu.Lock()
	if s.finalized || s.inFlight || !s.dirty || len(s.snapshot.Items) == 0 {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	seq := s.seq
	snap := s.snapshot
	s.mu.Unlock()

	c.pending.Add(1)
	_, err := c.service.SaveDraft(context.Background(), s.actor, s.id, snap)
	c.pending.Add(-1)

	s.mu.Lock()
	s.inFlight = false
	switch {
	case err == nil:
		if s.seq == seq {
			s.dirty = false
		}
		s.mu.Unlock()
	case errors.Is(err, transaction.ErrStatusConflict{}):
		// The transaction left in-progress behind our back. Stop saving.
		s.finalized = true
		s.mu.Unlock()
		c.logger.Info("Draft finalized elsewhere, stopping autosave",
			"transaction_id", s.id.String(),
		)
		c.Finalize(s.id)
	default:
		s.mu.Unlock()
		c.logger.Error("Draft autosave failed, will retry on next tick",
			"transaction_id", s.id.String(),
			"error", err,
		)
	}
}
