package ledger_processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/domain/employee"
)

// PayrollScheduler flips cash advances from active to deducted on the weekly
// payroll run. Deduction has no ledger effect: the cash left the drawer when
// the advance was granted; payroll only settles the employee's balance.
type PayrollScheduler struct {
	cron        *cron.Cron
	schedule    string
	advanceRepo employee.AdvanceRepository
	logger      *slog.Logger
}

func NewPayrollScheduler(
	logger *slog.Logger,
	cfg *config.PayrollConfig,
	advanceRepo employee.AdvanceRepository,
) *PayrollScheduler {
	return &PayrollScheduler{
		cron:        cron.New(),
		schedule:    cfg.DeductionSchedule,
		advanceRepo: advanceRepo,
		logger:      logger,
	}
}

// Start registers the deduction job and starts the cron loop.
func (s *PayrollScheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.runDeduction)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Payroll deduction scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *PayrollScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Payroll deduction scheduler stopped")
}

func (s *PayrollScheduler) runDeduction() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC()
	count, err := s.advanceRepo.MarkDeductedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Payroll deduction run failed", "cutoff", cutoff, "error", err)
		return
	}
	s.logger.Info("Payroll deduction run finished", "cutoff", cutoff, "advances_deducted", count)
}
