package orchestrator

import (
	"context"
	"time"

	"kalpe/internal/events"
	"kalpe/internal/models"
	"kalpe/internal/services/reconciliation"
	"kalpe/internal/services/transaction"
)

// Cancel cancels a transaction that has not completed yet.
func (s *Service) Cancel(ctx context.Context, reference, reason string) (*models.Transaction, error) {
	txn, err := s.engine.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Cancel(ctx, txn, reason); err != nil {
		return nil, err
	}
	s.publish(ctx, events.ForTransaction(events.TransactionCancelled, txn, reason))
	return txn, nil
}

// Reverse refunds a completed transaction and returns the refund.
func (s *Service) Reverse(ctx context.Context, reference, reason string) (*models.Transaction, error) {
	original, err := s.engine.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	reversal, err := s.engine.Reverse(ctx, original, reason)
	if err != nil {
		if reversal != nil && reversal.Status == models.TransactionStatusFailed {
			s.publish(ctx, events.ForTransaction(events.TransactionFailed, reversal, err.Error()))
		}
		return reversal, err
	}

	s.wallets.InvalidateSummary(ctx, s.accountsOf(ctx, original)...)
	s.publish(ctx, events.ForTransaction(events.TransactionCompleted, reversal, ""))
	s.publish(ctx, events.ForTransaction(events.TransactionReversed, original, reason))
	return reversal, nil
}

// Reconcile verifies one transaction against the ledger. A transaction
// that does not verify yields false, not an error.
func (s *Service) Reconcile(ctx context.Context, reference, actor string) (bool, error) {
	txn, err := s.engine.GetByReference(ctx, reference)
	if err != nil {
		return false, err
	}
	already := txn.IsReconciled
	ok, err := s.auditor.Reconcile(ctx, txn, actor)
	if err != nil {
		return false, err
	}
	if ok && !already {
		s.publish(ctx, events.ForTransaction(events.TransactionReconciled, txn, actor))
	}
	return ok, nil
}

// ReconcileDay reconciles every completed transaction created on date.
func (s *Service) ReconcileDay(ctx context.Context, date time.Time, actor string) (*reconciliation.BatchResult, error) {
	return s.auditor.ReconcileBatch(ctx, date, actor)
}

// ApproveReview clears the review flag of a transaction.
func (s *Service) ApproveReview(ctx context.Context, reference, reviewer string) (*models.Transaction, error) {
	txn, err := s.engine.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if err := s.engine.ApproveReview(ctx, txn, reviewer); err != nil {
		return nil, err
	}
	return txn, nil
}

// RecoverStale fails transactions stuck in PROCESSING for longer than
// olderThan.
func (s *Service) RecoverStale(ctx context.Context, olderThan time.Duration) (*transaction.RecoveryResult, error) {
	return s.engine.RecoverStale(ctx, olderThan)
}

// DailyStats aggregates the transactions created on date's calendar day.
func (s *Service) DailyStats(ctx context.Context, date time.Time) (*models.DailyStats, error) {
	from, to := reconciliation.DayBounds(date, s.location)
	return s.store.Transactions().DailyStats(ctx, from, to)
}

func (s *Service) LockWallet(ctx context.Context, accountID, reason, actor string) (*models.Wallet, error) {
	w, err := s.wallets.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	w, err = s.wallets.Lock(ctx, w.ID, reason, actor)
	if err != nil {
		return nil, err
	}
	s.wallets.InvalidateSummary(ctx, accountID)
	s.publish(ctx, events.ForWallet(events.WalletLocked, w, reason))
	return w, nil
}

func (s *Service) UnlockWallet(ctx context.Context, accountID string) (*models.Wallet, error) {
	w, err := s.wallets.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	w, err = s.wallets.Unlock(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	s.wallets.InvalidateSummary(ctx, accountID)
	s.publish(ctx, events.ForWallet(events.WalletUnlocked, w, ""))
	return w, nil
}
