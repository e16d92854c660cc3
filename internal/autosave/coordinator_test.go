package autosave

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/api_gateway/service"
	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/scrapyard-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDraftService records calls and lets tests control how saves behave.
// A testify mock is awkward here because saves fire from background
// goroutines; a channel-signalling fake keeps the timing deterministic.
type fakeDraftService struct {
	mu        sync.Mutex
	saveCalls int
	lastSnap  service.DraftSnapshot

	saveErr   error
	saveBlock chan struct{} // when set, SaveDraft blocks until closed
	saved     chan struct{} // signalled once per completed save
}

func newFakeDraftService() *fakeDraftService {
	return &fakeDraftService{saved: make(chan struct{}, 16)}
}

func (f *fakeDraftService) CreateDraft(_ context.Context, actor shared.Actor, kind transaction.Kind) (*transaction.Transaction, error) {
	return transaction.NewDraft(kind, actor.TenantID)
}

func (f *fakeDraftService) SaveDraft(_ context.Context, _ shared.Actor, _ uuid.UUID, snap service.DraftSnapshot) (*transaction.Transaction, error) {
	f.mu.Lock()
	block := f.saveBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	f.saveCalls++
	f.lastSnap = snap
	err := f.saveErr
	f.mu.Unlock()

	f.saved <- struct{}{}
	if err != nil {
		return nil, err
	}
	return &transaction.Transaction{}, nil
}

func (f *fakeDraftService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

func testCoordinator(t *testing.T, svc DraftService, interval time.Duration) *Coordinator {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	c, err := NewCoordinator(logger, config.AutosaveConfig{Interval: interval, PoolSize: 4}, svc)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func itemSnapshot() service.DraftSnapshot {
	pieces := int64(2)
	return service.DraftSnapshot{
		EmployeeNames: []string{"Rico"},
		Items: []transaction.LineItem{
			{Name: "car battery", Pieces: &pieces, UnitPrice: 15000},
		},
	}
}

func TestCoordinator_StartSession(t *testing.T) {
	svc := newFakeDraftService()
	c := testCoordinator(t, svc, time.Hour)
	actor := shared.Actor{TenantID: uuid.New(), Role: shared.RoleEmployee, Name: "Rico"}

	txn, err := c.StartSession(context.Background(), actor, transaction.KindBuy)
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, transaction.StatusInProgress, txn.Status)
	assert.Empty(t, txn.Items)
	assert.Equal(t, 1, c.ActiveSessions())
}

func TestCoordinator_ScheduledSave(t *testing.T) {
	actor := shared.Actor{TenantID: uuid.New(), Role: shared.RoleEmployee, Name: "Rico"}

	t.Run("persists a dirty snapshot on the tick", func(t *testing.T) {
		svc := newFakeDraftService()
		c := testCoordinator(t, svc, 10*time.Millisecond)

		txn, err := c.StartSession(context.Background(), actor, transaction.KindBuy)
		require.NoError(t, err)
		require.NoError(t, c.Update(txn.ID, itemSnapshot()))

		select {
		case <-svc.saved:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduled save never fired")
		}
		assert.Equal(t, "car battery", svc.lastSnap.Items[0].Name)
	})

	t.Run("clean session does not save again", func(t *testing.T) {
		svc := newFakeDraftService()
		c := testCoordinator(t, svc, 10*time.Millisecond)

		txn, err := c.StartSession(context.Background(), actor, transaction.KindBuy)
		require.NoError(t, err)
		require.NoError(t, c.Update(txn.ID, itemSnapshot()))

		<-svc.saved
		// Let several more ticks pass with nothing new to save.
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, svc.calls())
	})

	t.Run("empty draft is never saved", func(t *testing.T) {
		svc := newFakeDraftService()
		c := testCoordinator(t, svc, 10*time.Millisecond)

		txn, err := c.StartSession(context.Background(), actor, transaction.KindBuy)
		require.NoError(t, err)
		require.NoError(t, c.Update(txn.ID, service.DraftSnapshot{EmployeeNames: []string{"Rico"}}))

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 0, svc.calls())
	})
}

func TestCoordinator_SkipsWhenSaveInFlight(t *testing.T) {
	actor := shared.Actor{TenantID: uuid.New(), Role: shared.RoleEmployee, Name: "Rico"}
	svc := newFakeDraftService()
	block := make(chan struct{})
	svc.saveBlock = block
	c := testCoordinator(t, svc, 10*time.Millisecond)

	txn, err := c.StartSession(context.Background(), actor, transaction.KindBuy)
	require.NoError(t, err)
	require.NoError(t, c.Update(txn.ID, itemSnapshot()))

	// The first tick starts a save that parks on the block channel. Later
	// ticks must skip rather than queue behind it.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(1), c.PendingSaves())

	close(block)
	<-svc.saved
	assert.Equal(t, 1, svc.calls())
}

func TestCoordinator_Flush(t *testing.T) {
	actor := shared.Actor{TenantID: uuid.New(), Role: shared.RoleEmployee, Name: "Rico"}

	t.Run("fires without waiting for the tick", func(t *testing.T) {
		svc := newFakeDraftService()
		c := testCoordinator(t, svc, time.Hour)

		txn, err := c.StartSession(context.Background(), actor, transaction.KindBuy)
		require.NoError(t, err)
		require.NoError(t, c.Update(txn.ID, itemSnapshot()))

		require.NoError(t, c.Flush(txn.ID))
		select {
		case <-svc.saved:
		case <-time.After(2 * time.Second):
			t.Fatal("flush save never fired")
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		svc := newFakeDraftService()
		c := testCoordinator(t, svc, time.Hour)

		err := c.Flush(uuid.New())
		assert.ErrorIs(t, err, ErrSessionNotFound{})
	})
}

func TestCoordinator_Finalize(t *testing.T) {
	actor := shared.Actor{TenantID: uuid.New(), Role: shared.RoleEmployee, Name: "Rico"}

	t.Run("stops the loop and drops the session", func(t *testing.T) {
		svc := newFakeDraftService()
		c := testCoordinator(t, svc, 10*time.Millisecond)

		txn, err := c.StartSession(context.Background(), actor, transaction.KindBuy)
		require.NoError(t, err)
		c.Finalize(txn.ID)

		// Updates after finalize are rejected.
		err = c.Update(txn.ID, itemSnapshot())
		assert.ErrorIs(t, err, ErrSessionNotFound{})

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 0, svc.calls())
		assert.Equal(t, 0, c.ActiveSessions())
	})

	t.Run("status conflict from the store ends the session", func(t *testing.T) {
		svc := newFakeDraftService()
		c := testCoordinator(t, svc, 10*time.Millisecond)

		txn, err := c.StartSession(context.Background(), actor, transaction.KindBuy)
		require.NoError(t, err)

		svc.mu.Lock()
		svc.saveErr = transaction.ErrStatusConflict{TransactionID: txn.ID}
		svc.mu.Unlock()
		require.NoError(t, c.Update(txn.ID, itemSnapshot()))

		<-svc.saved
		assert.Eventually(t, func() bool { return c.ActiveSessions() == 0 },
			2*time.Second, 10*time.Millisecond)
		calls := svc.calls()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, calls, svc.calls())
	})
}
