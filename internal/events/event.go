// Package events publishes wallet and transaction lifecycle events to
// downstream consumers. Publishing is fire-and-forget: a failed publish is
// logged and never fails the operation that produced the event.
package events

import (
	"context"
	"time"

	"kalpe/internal/models"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	TransactionCompleted  Kind = "transaction.completed"
	TransactionFailed     Kind = "transaction.failed"
	TransactionCancelled  Kind = "transaction.cancelled"
	TransactionReversed   Kind = "transaction.reversed"
	TransactionFlagged    Kind = "transaction.flagged"
	TransactionReconciled Kind = "transaction.reconciled"
	WalletLocked          Kind = "wallet.locked"
	WalletUnlocked        Kind = "wallet.unlocked"
)

// Event is the payload written to the event stream.
type Event struct {
	Kind             Kind                     `json:"kind"`
	OccurredAt       time.Time                `json:"occurred_at"`
	Reference        string                   `json:"reference,omitempty"`
	TransactionType  models.TransactionType   `json:"transaction_type,omitempty"`
	Status           models.TransactionStatus `json:"status,omitempty"`
	Amount           *decimal.Decimal         `json:"amount,omitempty"`
	Currency         string                   `json:"currency,omitempty"`
	SenderWalletID   string                   `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID string                   `json:"receiver_wallet_id,omitempty"`
	WalletID         string                   `json:"wallet_id,omitempty"`
	AccountID        string                   `json:"account_id,omitempty"`
	Reason           string                   `json:"reason,omitempty"`
}

// Key is the partition key; events about one wallet stay ordered.
func (e Event) Key() string {
	switch {
	case e.SenderWalletID != "":
		return e.SenderWalletID
	case e.ReceiverWalletID != "":
		return e.ReceiverWalletID
	default:
		return e.WalletID
	}
}

// Publisher delivers events. Implementations must not block on the network.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
	Close() error
}

// ForTransaction builds an event describing txn.
func ForTransaction(kind Kind, txn *models.Transaction, reason string) Event {
	amount := txn.Amount
	evt := Event{
		Kind:            kind,
		OccurredAt:      time.Now().UTC(),
		Reference:       txn.Reference,
		TransactionType: txn.Type,
		Status:          txn.Status,
		Amount:          &amount,
		Currency:        txn.Currency,
		Reason:          reason,
	}
	if txn.SenderWalletID != nil {
		evt.SenderWalletID = *txn.SenderWalletID
	}
	if txn.ReceiverWalletID != nil {
		evt.ReceiverWalletID = *txn.ReceiverWalletID
	}
	return evt
}

// ForWallet builds an event describing a wallet state change.
func ForWallet(kind Kind, wallet *models.Wallet, reason string) Event {
	return Event{
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		WalletID:   wallet.ID,
		AccountID:  wallet.AccountID,
		Reason:     reason,
	}
}
