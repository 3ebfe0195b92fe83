package wallet

import (
	"context"
	"errors"
	"time"

	apperrors "kalpe/internal/errors"

	"github.com/shopspring/decimal"
)

// dayWindow returns the bounds of the current calendar day in the
// configured zone.
func (s *service) dayWindow() (time.Time, time.Time) {
	now := s.config.Clock().In(s.config.Location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.config.Location)
	return start, start.AddDate(0, 0, 1)
}

func (s *service) monthWindow() (time.Time, time.Time) {
	now := s.config.Clock().In(s.config.Location)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.config.Location)
	return start, start.AddDate(0, 1, 0)
}

func (s *service) DailySpent(ctx context.Context, walletID string) (decimal.Decimal, error) {
	from, to := s.dayWindow()
	return s.store.Transactions().SumSent(ctx, walletID, from, to)
}

func (s *service) MonthlySpent(ctx context.Context, walletID string) (decimal.Decimal, error) {
	from, to := s.monthWindow()
	return s.store.Transactions().SumSent(ctx, walletID, from, to)
}

// CheckSend returns nil when the wallet may send amount now, or the first
// reason it may not: unavailable, insufficient funds, or a spend limit.
func (s *service) CheckSend(ctx context.Context, walletID string, amount decimal.Decimal) error {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}
	if err := availability(w); err != nil {
		return err
	}
	if w.Balance.LessThan(amount) {
		return apperrors.InsufficientFunds(w.Balance, amount)
	}

	daily, err := s.DailySpent(ctx, walletID)
	if err != nil {
		return err
	}
	if daily.Add(amount).GreaterThan(w.DailyLimit) {
		return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrDailyLimitExceeded)
	}

	monthly, err := s.MonthlySpent(ctx, walletID)
	if err != nil {
		return err
	}
	if monthly.Add(amount).GreaterThan(w.MonthlyLimit) {
		return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrMonthlyLimitExceeded)
	}
	return nil
}

func (s *service) CanSend(ctx context.Context, walletID string, amount decimal.Decimal) (bool, error) {
	err := s.CheckSend(ctx, walletID, amount)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperrors.ErrInsufficientFunds),
		errors.Is(err, apperrors.ErrWalletUnavailable),
		errors.Is(err, ErrDailyLimitExceeded),
		errors.Is(err, ErrMonthlyLimitExceeded):
		return false, nil
	default:
		return false, err
	}
}
