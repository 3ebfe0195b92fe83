package orchestrator

import (
	"context"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/models"

	"github.com/shopspring/decimal"
)

// Transaction looks a transaction up by reference.
func (s *Service) Transaction(ctx context.Context, reference string) (*models.Transaction, error) {
	return s.engine.GetByReference(ctx, reference)
}

func (s *Service) BalanceSummary(ctx context.Context, accountID string) (*models.BalanceSummary, error) {
	return s.wallets.BalanceSummary(ctx, accountID)
}

// History returns the account's transactions of the last days days, newest
// first. Totals count completed transactions only.
func (s *Service) History(ctx context.Context, accountID string, days int) (*History, error) {
	if days == 0 {
		days = DefaultHistoryDays
	}
	if days < 0 || days > MaxHistoryDays {
		return nil, apperrors.WithCause(apperrors.CodeValidation, ErrInvalidHistoryDays)
	}
	w, err := s.wallets.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	since := s.now().AddDate(0, 0, -days)
	txns, err := s.store.Transactions().ListForWallet(ctx, w.ID, since, 0)
	if err != nil {
		return nil, err
	}

	h := &History{
		AccountID:     accountID,
		Days:          days,
		Sent:          []*models.Transaction{},
		Received:      []*models.Transaction{},
		SentTotal:     decimal.Zero,
		ReceivedTotal: decimal.Zero,
	}
	for _, txn := range txns {
		completed := txn.Status == models.TransactionStatusCompleted
		if txn.SenderWalletID != nil && *txn.SenderWalletID == w.ID {
			h.Sent = append(h.Sent, txn)
			if completed {
				h.SentTotal = h.SentTotal.Add(txn.Amount)
			}
		}
		if txn.ReceiverWalletID != nil && *txn.ReceiverWalletID == w.ID {
			h.Received = append(h.Received, txn)
			if completed {
				h.ReceivedTotal = h.ReceivedTotal.Add(txn.Amount)
			}
		}
	}
	h.SentCount = len(h.Sent)
	h.ReceivedCount = len(h.Received)
	return h, nil
}

// LedgerHistory returns the account's most recent ledger entries.
func (s *Service) LedgerHistory(ctx context.Context, accountID string, limit int) ([]*models.LedgerEntry, error) {
	w, err := s.wallets.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, w.ID, limit)
}

// Involves reports whether accountID owns one of the wallets txn touches.
func (s *Service) Involves(ctx context.Context, txn *models.Transaction, accountID string) bool {
	for _, id := range s.accountsOf(ctx, txn) {
		if id == accountID {
			return true
		}
	}
	return false
}
