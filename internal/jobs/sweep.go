// Package jobs holds the scheduled background passes: payment
// reminders, overdue escalation and on-time rewards.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinhptlocal/credit-bot/internal/domain/account"
	"github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/domain/payment"
	"github.com/tinhptlocal/credit-bot/internal/ledger"
	"github.com/tinhptlocal/credit-bot/internal/notify"
)

const (
	overdueScorePenalty = -5
	onTimeScoreReward   = 1
)

type SweeperDeps struct {
	Tx               ledger.TxRunner
	Payments         payment.Repository
	Loans            loan.Repository
	Users            account.Repository
	Fees             payment.FeePolicy
	Notifier         notify.Notifier
	Logger           *slog.Logger
	ReminderLeadDays int
	Now              func() time.Time
}

// Sweeper runs the daily ledger passes. Every pass is idempotent:
// escalation is gated on pending status, rewards on the rewarded
// stamp, so re-running a sweep after a crash cannot double-penalize
// or double-reward anyone.
type Sweeper struct {
	d SweeperDeps
}

func NewSweeper(d SweeperDeps) *Sweeper {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Fees == nil {
		d.Fees = payment.DefaultFeePolicy()
	}
	if d.ReminderLeadDays <= 0 {
		d.ReminderLeadDays = 7
	}
	return &Sweeper{d: d}
}

// RunOnce executes all passes for the current day. Passes are
// independent; a failure in one does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := s.d.Now()
	s.d.Logger.Info("sweep started")
	if err := s.RemindUpcoming(ctx); err != nil {
		s.d.Logger.Error("reminder pass failed", "error", err)
	}
	if err := s.EscalateOverdue(ctx); err != nil {
		s.d.Logger.Error("escalation pass failed", "error", err)
	}
	if err := s.RewardOnTime(ctx); err != nil {
		s.d.Logger.Error("reward pass failed", "error", err)
	}
	s.d.Logger.Info("sweep finished", "duration", s.d.Now().Sub(start))
}

// RemindUpcoming notifies borrowers whose installment falls due in
// exactly ReminderLeadDays, so each installment is reminded once.
func (s *Sweeper) RemindUpcoming(ctx context.Context) error {
	due := startOfDay(s.d.Now()).AddDate(0, 0, s.d.ReminderLeadDays)
	rows, err := s.d.Payments.ListDueOn(ctx, payment.StatusPending, due)
	if err != nil {
		return fmt.Errorf("list upcoming payments: %w", err)
	}
	for _, p := range rows {
		msg := fmt.Sprintf("Reminder: installment #%d of loan #%d (%d) is due on %s.",
			p.Sequence, p.LoanID, p.Amount, p.DueDate.Format("2006-01-02"))
		if err := s.d.Notifier.NotifyUser(ctx, p.UserID, msg); err != nil {
			s.d.Logger.Warn("reminder delivery failed", "payment_id", p.ID, "user_id", p.UserID, "error", err)
		}
	}
	s.d.Logger.Info("reminder pass done", "reminded", len(rows))
	return nil
}

// EscalateOverdue moves past-due pending installments to overdue,
// records the tiered late fee, flags the loan and docks the borrower's
// credit score. Each installment is escalated in its own transaction
// so one bad row cannot block the rest of the pass.
func (s *Sweeper) EscalateOverdue(ctx context.Context) error {
	today := startOfDay(s.d.Now())
	rows, err := s.d.Payments.ListOverdueCandidates(ctx, today)
	if err != nil {
		return fmt.Errorf("list overdue candidates: %w", err)
	}
	var escalated int
	for _, p := range rows {
		daysLate := daysBetween(startOfDay(p.DueDate), today)
		fee := s.d.Fees.LateFee(p.Amount, daysLate)

		err := s.d.Tx.InTx(ctx, func(ctx context.Context) error {
			ok, err := s.d.Payments.MarkOverdue(ctx, p.ID, fee)
			if err != nil {
				return fmt.Errorf("mark overdue: %w", err)
			}
			if !ok {
				return nil // settled or escalated concurrently
			}
			if _, err := s.d.Loans.UpdateStatus(ctx, p.LoanID, []loan.Status{loan.StatusApproved}, loan.StatusOverdue); err != nil {
				return fmt.Errorf("flag loan: %w", err)
			}
			if _, err := s.d.Users.AdjustCreditScore(ctx, p.UserID, overdueScorePenalty, account.MinCreditScore, account.MaxCreditScore); err != nil {
				return fmt.Errorf("adjust credit score: %w", err)
			}
			escalated++
			return nil
		})
		if err != nil {
			s.d.Logger.Error("escalation failed", "payment_id", p.ID, "error", err)
			continue
		}

		msg := fmt.Sprintf("Installment #%d of loan #%d is %d day(s) overdue. A late fee of %d has been added; total due is now %d.",
			p.Sequence, p.LoanID, daysLate, fee, p.Amount+fee)
		if err := s.d.Notifier.NotifyUser(ctx, p.UserID, msg); err != nil {
			s.d.Logger.Warn("overdue notice delivery failed", "payment_id", p.ID, "error", err)
		}
	}
	s.d.Logger.Info("escalation pass done", "candidates", len(rows), "escalated", escalated)
	return nil
}

// RewardOnTime grants a small credit-score bump for installments paid
// in full on their due date.
func (s *Sweeper) RewardOnTime(ctx context.Context) error {
	today := startOfDay(s.d.Now())
	rows, err := s.d.Payments.ListPaidOnUnrewarded(ctx, today)
	if err != nil {
		return fmt.Errorf("list rewardable payments: %w", err)
	}
	var rewarded int
	for _, p := range rows {
		err := s.d.Tx.InTx(ctx, func(ctx context.Context) error {
			ok, err := s.d.Payments.MarkRewarded(ctx, p.ID, s.d.Now())
			if err != nil {
				return fmt.Errorf("mark rewarded: %w", err)
			}
			if !ok {
				return nil
			}
			if _, err := s.d.Users.AdjustCreditScore(ctx, p.UserID, onTimeScoreReward, account.MinCreditScore, account.MaxCreditScore); err != nil {
				return fmt.Errorf("adjust credit score: %w", err)
			}
			rewarded++
			return nil
		})
		if err != nil {
			s.d.Logger.Error("reward failed", "payment_id", p.ID, "error", err)
			continue
		}

		msg := fmt.Sprintf("Thanks for paying installment #%d of loan #%d on time! Your credit score went up.", p.Sequence, p.LoanID)
		if err := s.d.Notifier.NotifyUser(ctx, p.UserID, msg); err != nil {
			s.d.Logger.Warn("reward notice delivery failed", "payment_id", p.ID, "error", err)
		}
	}
	s.d.Logger.Info("reward pass done", "candidates", len(rows), "rewarded", rewarded)
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
