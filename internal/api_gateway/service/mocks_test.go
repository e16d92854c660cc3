package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/scrapyard-ledger/internal/domain/ledger"
	"github.com/scrapyard-ledger/internal/domain/outbox"
	"github.com/scrapyard-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/mock"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateDraft(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpsertDraft(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, tenantID uuid.UUID, filter transaction.ListFilter, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, tenantID, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Count(ctx context.Context, tenantID uuid.UUID, filter transaction.ListFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) AdvanceToForPayment(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockTransactionRepository) Cancel(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockTransactionRepository) Complete(ctx context.Context, tenantID, id uuid.UUID, completedAt time.Time) error {
	args := m.Called(ctx, tenantID, id, completedAt)
	return args.Error(0)
}

func (m *MockTransactionRepository) MetricsForRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*transaction.Metrics, error) {
	args := m.Called(ctx, tenantID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Metrics), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	m.Called(tx)
	return m
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	m.Called(tx)
	return m
}

type MockEmployeeRepository struct {
	mock.Mock
}

func (m *MockEmployeeRepository) Create(ctx context.Context, emp *employee.Employee) error {
	args := m.Called(ctx, emp)
	return args.Error(0)
}

func (m *MockEmployeeRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*employee.Employee, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*employee.Employee), args.Error(1)
}

func (m *MockEmployeeRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*employee.Employee, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*employee.Employee), args.Error(1)
}

func (m *MockEmployeeRepository) IncrementSessionsHandled(ctx context.Context, tenantID uuid.UUID, names []string) error {
	args := m.Called(ctx, tenantID, names)
	return args.Error(0)
}

func (m *MockEmployeeRepository) WithTx(tx pgx.Tx) employee.Repository {
	m.Called(tx)
	return m
}

type MockAdvanceRepository struct {
	mock.Mock
}

func (m *MockAdvanceRepository) Create(ctx context.Context, adv *employee.CashAdvance) error {
	args := m.Called(ctx, adv)
	return args.Error(0)
}

func (m *MockAdvanceRepository) ListByEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) ([]*employee.CashAdvance, error) {
	args := m.Called(ctx, tenantID, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*employee.CashAdvance), args.Error(1)
}

func (m *MockAdvanceRepository) SumActiveByEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, employeeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdvanceRepository) MarkDeductedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetByTransactionID(ctx context.Context, tenantID, transactionID uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, tenantID, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) SumByTenant(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, asOf)
	return args.Get(0).(int64), args.Error(1)
}

type MockChangeEventPublisher struct {
	mock.Mock
}

func (m *MockChangeEventPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockChangeEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockTxRunner runs the callback against a nil pgx.Tx, which is enough for
// repositories whose WithTx is mocked to return themselves.
type MockTxRunner struct {
	mock.Mock
}

func (m *MockTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(nil)
}
