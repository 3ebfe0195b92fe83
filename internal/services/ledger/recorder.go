// Package ledger writes and reads the append-only double-entry journal.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kalpe/internal/models"
	"kalpe/internal/repositories"

	"github.com/sirupsen/logrus"
)

var ErrMissingWallet = errors.New("ledger: wallet referenced by transaction not found")

// Recorder turns executed transactions into ledger entries.
type Recorder struct {
	store repositories.Store
	log   logrus.FieldLogger
}

func NewRecorder(store repositories.Store, log logrus.FieldLogger) *Recorder {
	if store == nil {
		panic("store is required")
	}
	return &Recorder{store: store, log: log.WithField("component", "ledger")}
}

// WithTx returns a recorder writing through an open unit of work.
func (r *Recorder) WithTx(tx repositories.Store) *Recorder {
	return &Recorder{store: tx, log: r.log}
}

// RecordForTransaction appends one DEBIT entry for the sender and one
// CREDIT entry for the receiver, whichever are present. It must run after
// the balance mutations of txn and in the same unit of work: the wallets'
// current balances are taken as the balances after the entries.
func (r *Recorder) RecordForTransaction(ctx context.Context, txn *models.Transaction) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry

	if txn.SenderWalletID != nil {
		sender, err := r.store.Wallets().GetByID(ctx, *txn.SenderWalletID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingWallet, err)
		}
		total := txn.TotalDebit()
		entries = append(entries, &models.LedgerEntry{
			TransactionID: txn.ID,
			WalletID:      sender.ID,
			EntryType:     models.EntryTypeDebit,
			Amount:        total,
			BalanceBefore: sender.Balance.Add(total),
			BalanceAfter:  sender.Balance,
			Description:   describe(txn, models.EntryTypeDebit),
		})
	}

	if txn.ReceiverWalletID != nil {
		receiver, err := r.store.Wallets().GetByID(ctx, *txn.ReceiverWalletID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingWallet, err)
		}
		entries = append(entries, &models.LedgerEntry{
			TransactionID: txn.ID,
			WalletID:      receiver.ID,
			EntryType:     models.EntryTypeCredit,
			Amount:        txn.Amount,
			BalanceBefore: receiver.Balance.Sub(txn.Amount),
			BalanceAfter:  receiver.Balance,
			Description:   describe(txn, models.EntryTypeCredit),
		})
	}

	if err := r.store.Ledger().Append(ctx, entries...); err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"reference": txn.Reference,
		"entries":   len(entries),
	}).Debug("ledger entries recorded")
	return entries, nil
}

func (r *Recorder) EntriesForTransaction(ctx context.Context, transactionID string) ([]*models.LedgerEntry, error) {
	return r.store.Ledger().ListByTransaction(ctx, transactionID)
}

// History returns the wallet's most recent entries, newest first.
func (r *Recorder) History(ctx context.Context, walletID string, limit int) ([]*models.LedgerEntry, error) {
	return r.store.Ledger().ListByWallet(ctx, walletID, limit)
}

func describe(txn *models.Transaction, side models.EntryType) string {
	kind := strings.ToLower(string(txn.Type))
	return fmt.Sprintf("%s %s %s", kind, strings.ToLower(string(side)), txn.Reference)
}
