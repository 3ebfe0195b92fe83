package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type FraudRuleType string

const (
	FraudRuleAmountThreshold FraudRuleType = "AMOUNT_THRESHOLD"
	FraudRuleVelocity        FraudRuleType = "VELOCITY"
	FraudRulePattern         FraudRuleType = "PATTERN"
	FraudRuleGeolocation     FraudRuleType = "GEOLOCATION"
	FraudRuleBlacklist       FraudRuleType = "BLACKLIST"
)

// FraudRule is an operator-configured scoring rule.
// Only amount threshold and velocity rules are evaluated; the other types
// are stored for later use.
type FraudRule struct {
	ID              string           `gorm:"primaryKey;type:uuid" json:"id"`
	Name            string           `gorm:"size:100;uniqueIndex;not null" json:"name"`
	RuleType        FraudRuleType    `gorm:"size:20;not null" json:"rule_type"`
	IsActive        bool             `gorm:"not null;index" json:"is_active"`
	AmountThreshold *decimal.Decimal `gorm:"type:numeric(15,2)" json:"amount_threshold,omitempty"`
	TimeWindowMins  *int             `json:"time_window_minutes,omitempty"`
	MaxTransactions *int             `json:"max_transactions,omitempty"`
	FraudScore      int              `gorm:"not null;default:0" json:"fraud_score"`
	AutoBlock       bool             `gorm:"not null;default:false" json:"auto_block"`
	Description     string           `gorm:"type:text" json:"description,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (FraudRule) TableName() string { return "fraud_rules" }

func (r *FraudRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	return nil
}

func (r *FraudRule) Clone() *FraudRule {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
