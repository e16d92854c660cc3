package ledger_processor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/domain/employee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAdvanceRepo for testing
type MockAdvanceRepo struct {
	mock.Mock
}

func (m *MockAdvanceRepo) Create(ctx context.Context, adv *employee.CashAdvance) error {
	args := m.Called(ctx, adv)
	return args.Error(0)
}

func (m *MockAdvanceRepo) ListByEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) ([]*employee.CashAdvance, error) {
	args := m.Called(ctx, tenantID, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*employee.CashAdvance), args.Error(1)
}

func (m *MockAdvanceRepo) SumActiveByEmployee(ctx context.Context, tenantID, employeeID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, employeeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdvanceRepo) MarkDeductedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func TestPayrollScheduler(t *testing.T) {
	logger := slog.Default()

	t.Run("rejects a malformed schedule", func(t *testing.T) {
		repo := &MockAdvanceRepo{}
		s := NewPayrollScheduler(logger, &config.PayrollConfig{DeductionSchedule: "not a cron line"}, repo)

		err := s.Start()
		assert.Error(t, err)
	})

	t.Run("deduction run flips active advances", func(t *testing.T) {
		repo := &MockAdvanceRepo{}
		s := NewPayrollScheduler(logger, &config.PayrollConfig{DeductionSchedule: "0 8 * * 1"}, repo)

		repo.On("MarkDeductedBefore", mock.Anything, mock.AnythingOfType("time.Time")).
			Return(int64(3), nil).Once()

		s.runDeduction()
		repo.AssertExpectations(t)
	})

	t.Run("starts and stops cleanly", func(t *testing.T) {
		repo := &MockAdvanceRepo{}
		s := NewPayrollScheduler(logger, &config.PayrollConfig{DeductionSchedule: "0 8 * * 1"}, repo)

		require.NoError(t, s.Start())
		s.Stop()
	})
}
