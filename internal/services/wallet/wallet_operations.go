package wallet

import (
	"context"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/models"
	"kalpe/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func (s *service) Credit(ctx context.Context, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.mutate(ctx, OperationCredit, walletID, amount)
}

func (s *service) Debit(ctx context.Context, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.mutate(ctx, OperationDebit, walletID, amount)
}

// mutate applies a credit or debit under the wallet's row lock and returns
// the new balance.
func (s *service) mutate(ctx context.Context, op, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(op, time.Since(start))
	}()

	if !validAmount(amount) {
		return decimal.Zero, apperrors.WithCause(apperrors.CodeTransactionFailed, ErrInvalidAmount)
	}

	var before, after decimal.Decimal
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		w, err := s.getWalletForUpdate(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if err := availability(w); err != nil {
			return err
		}

		before = w.Balance
		switch op {
		case OperationDebit:
			if w.Balance.LessThan(amount) {
				return apperrors.InsufficientFunds(w.Balance, amount)
			}
			after = w.Balance.Sub(amount)
		default:
			after = w.Balance.Add(amount)
		}
		return tx.Wallets().UpdateBalance(ctx, w.ID, after)
	})
	if err != nil {
		s.recordFailure(op, err)
		return decimal.Zero, err
	}

	s.metrics.RecordOperationResult(op, "success")
	s.log.WithFields(logrus.Fields{
		"wallet_id": walletID,
		"operation": op,
		"amount":    amount.StringFixed(2),
		"before":    before.StringFixed(2),
		"after":     after.StringFixed(2),
	}).Debug("balance updated")
	return after, nil
}

func (s *service) Lock(ctx context.Context, walletID, reason, actor string) (*models.Wallet, error) {
	return s.updateState(ctx, OperationLock, walletID, func(w *models.Wallet) error {
		now := s.config.Clock().UTC()
		w.IsLocked = true
		w.LockedReason = reason
		w.LockedAt = &now
		w.LockedBy = nil
		if actor != "" {
			w.LockedBy = &actor
		}
		return nil
	})
}

func (s *service) Unlock(ctx context.Context, walletID string) (*models.Wallet, error) {
	return s.updateState(ctx, OperationUnlock, walletID, func(w *models.Wallet) error {
		w.IsLocked = false
		w.LockedReason = ""
		w.LockedAt = nil
		w.LockedBy = nil
		return nil
	})
}

func (s *service) Deactivate(ctx context.Context, walletID string) (*models.Wallet, error) {
	return s.updateState(ctx, OperationDeactivate, walletID, func(w *models.Wallet) error {
		w.IsActive = false
		return nil
	})
}

func (s *service) SetLimits(ctx context.Context, walletID string, daily, monthly decimal.Decimal) (*models.Wallet, error) {
	if !daily.IsPositive() || !monthly.IsPositive() {
		return nil, apperrors.WithCause(apperrors.CodeValidation, ErrInvalidLimits)
	}
	return s.updateState(ctx, "set_limits", walletID, func(w *models.Wallet) error {
		w.DailyLimit = daily.Round(2)
		w.MonthlyLimit = monthly.Round(2)
		return nil
	})
}

func (s *service) updateState(ctx context.Context, op, walletID string, apply func(*models.Wallet) error) (*models.Wallet, error) {
	var updated *models.Wallet
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		w, err := s.getWalletForUpdate(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if err := apply(w); err != nil {
			return err
		}
		if err := tx.Wallets().UpdateState(ctx, w); err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		s.recordFailure(op, err)
		return nil, err
	}
	s.metrics.RecordOperationResult(op, "success")
	s.log.WithFields(logrus.Fields{
		"wallet_id": walletID,
		"operation": op,
		"locked":    updated.IsLocked,
		"active":    updated.IsActive,
	}).Info("wallet state changed")
	return updated, nil
}

// getWalletForUpdate retrieves the wallet holding its row lock for the rest
// of the unit of work.
func (s *service) getWalletForUpdate(ctx context.Context, tx repositories.Store, walletID string) (*models.Wallet, error) {
	w, err := tx.Wallets().GetForUpdate(ctx, walletID)
	if err != nil {
		if apperrors.IsRetryable(err) {
			s.metrics.RecordLockTimeout()
			return nil, err
		}
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, notFound(err)
	}
	return w, nil
}

func (s *service) recordFailure(op string, err error) {
	code := string(apperrors.CodeOf(err))
	s.metrics.RecordOperationResult(op, code)
	s.metrics.RecordError(op, code)
}
