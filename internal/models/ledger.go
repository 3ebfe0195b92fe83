package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// LedgerEntry is one side of a transaction as seen by a single wallet.
// Entries are append-only.
type LedgerEntry struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	TransactionID string          `gorm:"type:uuid;not null;index:idx_ledger_txn" json:"transaction_id"`
	WalletID      string          `gorm:"type:uuid;not null;index:idx_ledger_wallet_created,priority:1" json:"wallet_id"`
	EntryType     EntryType       `gorm:"size:10;not null" json:"entry_type"`
	Amount        decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"balance_after"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	CreatedAt     time.Time       `gorm:"index:idx_ledger_wallet_created,priority:2" json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	return nil
}

// Signed returns the amount with credits positive and debits negative.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.EntryType == EntryTypeDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}
