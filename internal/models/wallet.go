package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultCurrency = "XOF"

// Wallet holds the balance of exactly one account.
type Wallet struct {
	ID           string          `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID    string          `gorm:"size:64;uniqueIndex;not null" json:"account_id"`
	Balance      decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"balance"`
	Currency     string          `gorm:"size:3;not null;default:'XOF'" json:"currency"`
	IsActive     bool            `gorm:"not null;default:true;index:idx_wallets_state,priority:1" json:"is_active"`
	IsLocked     bool            `gorm:"not null;default:false;index:idx_wallets_state,priority:2" json:"is_locked"`
	LockedReason string          `gorm:"type:text" json:"locked_reason,omitempty"`
	LockedAt     *time.Time      `json:"locked_at,omitempty"`
	LockedBy     *string         `gorm:"size:64" json:"locked_by,omitempty"`
	DailyLimit   decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"daily_limit"`
	MonthlyLimit decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"monthly_limit"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Wallet) TableName() string { return "wallets" }

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = NewID()
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	return nil
}

// Available reports whether the wallet may take part in money movement.
func (w *Wallet) Available() bool {
	return w.IsActive && !w.IsLocked
}

// Clone returns a copy that shares no mutable state with w.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	cp := *w
	return &cp
}

// BalanceSummary is the read model served to account holders.
type BalanceSummary struct {
	AccountID        string          `json:"account_id"`
	WalletID         string          `json:"wallet_id"`
	Balance          decimal.Decimal `json:"balance"`
	Currency         string          `json:"currency"`
	DailyLimit       decimal.Decimal `json:"daily_limit"`
	DailySpent       decimal.Decimal `json:"daily_spent"`
	DailyRemaining   decimal.Decimal `json:"daily_remaining"`
	MonthlyLimit     decimal.Decimal `json:"monthly_limit"`
	MonthlySpent     decimal.Decimal `json:"monthly_spent"`
	MonthlyRemaining decimal.Decimal `json:"monthly_remaining"`
	IsActive         bool            `json:"is_active"`
	IsLocked         bool            `json:"is_locked"`
}

// NewID returns a time-ordered UUID string.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
