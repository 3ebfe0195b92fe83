package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

// Transaction types
const (
	TransactionTypeTransfer    TransactionType = "TRANSFER"
	TransactionTypePayment     TransactionType = "PAYMENT"
	TransactionTypeHealthcare  TransactionType = "HEALTHCARE_PAYMENT"
	TransactionTypePharmacy    TransactionType = "PHARMACY_PAYMENT"
	TransactionTypeSponsorship TransactionType = "SPONSORSHIP"
	TransactionTypeDeposit     TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal  TransactionType = "WITHDRAWAL"
	TransactionTypeRefund      TransactionType = "REFUND"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeTransfer, TransactionTypePayment, TransactionTypeHealthcare,
		TransactionTypePharmacy, TransactionTypeSponsorship, TransactionTypeDeposit,
		TransactionTypeWithdrawal, TransactionTypeRefund:
		return true
	}
	return false
}

// IsPayment covers the three payment variants that debit sender plus fee.
func (t TransactionType) IsPayment() bool {
	return t == TransactionTypePayment || t == TransactionTypeHealthcare || t == TransactionTypePharmacy
}

// CarriesFee reports whether the type may charge the sender a fee.
func (t TransactionType) CarriesFee() bool {
	return t.IsPayment() || t == TransactionTypeWithdrawal
}

type TransactionStatus string

// Transaction statuses
const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
	TransactionStatusReversed   TransactionStatus = "REVERSED"
)

var transitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:    {TransactionStatusProcessing, TransactionStatusCancelled},
	TransactionStatusProcessing: {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusCompleted:  {TransactionStatusReversed},
}

// CanTransition reports whether a transaction may move from one status to another.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s TransactionStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transaction is a single recorded money movement.
type Transaction struct {
	ID                string            `gorm:"primaryKey;type:uuid" json:"id"`
	Reference         string            `gorm:"size:100;uniqueIndex;not null" json:"reference"`
	Type              TransactionType   `gorm:"size:20;not null;index" json:"type"`
	Status            TransactionStatus `gorm:"size:20;not null;default:'PENDING';index:idx_txn_status_created,priority:1" json:"status"`
	SenderWalletID    *string           `gorm:"type:uuid;index:idx_txn_sender_status,priority:1" json:"sender_wallet_id,omitempty"`
	ReceiverWalletID  *string           `gorm:"type:uuid;index" json:"receiver_wallet_id,omitempty"`
	Amount            decimal.Decimal   `gorm:"type:numeric(15,2);not null" json:"amount"`
	Fee               decimal.Decimal   `gorm:"type:numeric(10,2);not null;default:0" json:"fee"`
	Currency          string            `gorm:"size:3;not null;default:'XOF'" json:"currency"`
	Description       string            `gorm:"type:text" json:"description,omitempty"`
	ExternalReference string            `gorm:"size:100;index" json:"external_reference,omitempty"`
	Metadata          Metadata          `gorm:"type:jsonb" json:"metadata,omitempty"`
	InitiatedBy       *string           `gorm:"size:64" json:"initiated_by,omitempty"`
	FraudScore        int               `gorm:"not null;default:0" json:"fraud_score"`
	IsFlagged         bool              `gorm:"not null;default:false;index" json:"is_flagged"`
	FlaggedReason     string            `gorm:"type:text" json:"flagged_reason,omitempty"`
	ReviewedAt        *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy        *string           `gorm:"size:64" json:"reviewed_by,omitempty"`
	IsReconciled      bool              `gorm:"not null;default:false;index" json:"is_reconciled"`
	ReconciledAt      *time.Time        `json:"reconciled_at,omitempty"`
	ReconciledBy      *string           `gorm:"size:64" json:"reconciled_by,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	FailedAt          *time.Time        `json:"failed_at,omitempty"`
	FailureReason     string            `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt         time.Time         `gorm:"index:idx_txn_status_created,priority:2;index:idx_txn_sender_status,priority:2" json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	return nil
}

// TransitionTo moves the transaction to the given status or fails if the
// move is not allowed by the status graph.
func (t *Transaction) TransitionTo(to TransactionStatus) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("transaction %s cannot move from %s to %s", t.Reference, t.Status, to)
	}
	t.Status = to
	return nil
}

// TotalDebit is the amount taken from the sender, fee included.
func (t *Transaction) TotalDebit() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}

// Clone returns a copy that can be mutated without affecting t.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Metadata = t.Metadata.Clone()
	return &cp
}

// WalletIDs returns the non-empty wallet ids the transaction touches.
func (t *Transaction) WalletIDs() []string {
	ids := make([]string, 0, 2)
	if t.SenderWalletID != nil {
		ids = append(ids, *t.SenderWalletID)
	}
	if t.ReceiverWalletID != nil && (t.SenderWalletID == nil || *t.ReceiverWalletID != *t.SenderWalletID) {
		ids = append(ids, *t.ReceiverWalletID)
	}
	return ids
}

// DailyStats aggregates transactions created on one calendar day.
type DailyStats struct {
	Date         string                              `json:"date"`
	Total        int64                               `json:"total"`
	Volume       decimal.Decimal                     `json:"volume"`
	Fees         decimal.Decimal                     `json:"fees"`
	ByStatus     map[TransactionStatus]int64         `json:"by_status"`
	ByType       map[TransactionType]int64           `json:"by_type"`
	VolumeByType map[TransactionType]decimal.Decimal `json:"volume_by_type"`
	Flagged      int64                               `json:"flagged"`
	Reconciled   int64                               `json:"reconciled"`
}
