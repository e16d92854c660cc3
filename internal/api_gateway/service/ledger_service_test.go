package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/domain/ledger"
	"github.com/scrapyard-ledger/internal/domain/outbox"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLedgerFixture() (*MockLedgerRepository, *MockOutboxRepository, LedgerService) {
	ledgerRepo := new(MockLedgerRepository)
	outboxRepo := new(MockOutboxRepository)
	svc := NewLedgerService(testLogger(), ledgerRepo, outboxRepo)
	return ledgerRepo, outboxRepo, svc
}

func TestLedgerService_Balance(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("balance is the ledger sum", func(t *testing.T) {
		ledgerRepo, _, svc := newLedgerFixture()
		ledgerRepo.On("SumByTenant", mock.Anything, tenantID, mock.Anything).Return(int64(123450), nil)

		balance, err := svc.Balance(ctx, employeeActor(tenantID))
		require.NoError(t, err)
		assert.Equal(t, int64(123450), balance)
		ledgerRepo.AssertExpectations(t)
	})

	t.Run("missing tenant fails closed", func(t *testing.T) {
		ledgerRepo, _, svc := newLedgerFixture()

		_, err := svc.Balance(ctx, shared.Actor{Role: shared.RoleOwner})
		assert.ErrorIs(t, err, shared.ErrTenantMismatch{})
		ledgerRepo.AssertNotCalled(t, "SumByTenant", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLedgerService_AppendManual(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	actor := employeeActor(tenantID)

	t.Run("manual entry goes through the outbox", func(t *testing.T) {
		ledgerRepo, outboxRepo, svc := newLedgerFixture()
		outboxRepo.On("Create", mock.Anything, mock.MatchedBy(func(msg *outbox.Message) bool {
			entry, err := msg.GetLedgerEntry()
			if err != nil {
				return false
			}
			return entry.Type == ledger.EntryTypeExpense &&
				entry.Amount == int64(-2500) &&
				entry.TenantID == tenantID &&
				msg.TransactionID == nil
		})).Return(nil)

		entry, err := svc.AppendManual(ctx, actor, ledger.EntryTypeExpense, -2500, "diesel for the truck")
		require.NoError(t, err)
		assert.Equal(t, ledger.EntryTypeExpense, entry.Type)
		assert.Nil(t, entry.TransactionID)
		// The entry reaches mongo via the poller, never directly.
		ledgerRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("transaction type cannot be appended manually", func(t *testing.T) {
		_, outboxRepo, svc := newLedgerFixture()

		_, err := svc.AppendManual(ctx, actor, ledger.EntryTypeTransaction, 100, "sneaky")
		assert.ErrorIs(t, err, shared.ErrValidation{})
		outboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestLedgerService_ListEntries(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("returns page and total", func(t *testing.T) {
		ledgerRepo, _, svc := newLedgerFixture()
		entry, err := ledger.NewEntry(tenantID, ledger.EntryTypeOpening, 500000, "opening balance", "Aling Nena")
		require.NoError(t, err)

		ledgerRepo.On("ListByTenant", mock.Anything, tenantID, 20, 0).Return([]*ledger.Entry{entry}, nil)
		ledgerRepo.On("CountByTenant", mock.Anything, tenantID).Return(int64(1), nil)

		entries, count, err := svc.ListEntries(ctx, employeeActor(tenantID), 1, 20)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, int64(1), count)
		ledgerRepo.AssertExpectations(t)
	})
}
