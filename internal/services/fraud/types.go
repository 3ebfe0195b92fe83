package fraud

import (
	"context"

	"kalpe/internal/models"

	"github.com/shopspring/decimal"
)

// Result is the outcome of scoring one transaction. Score is the raw sum;
// callers clamp it with Clamp before persisting.
type Result struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

// Level is the action a score calls for.
type Level int

const (
	LevelNone Level = iota
	LevelReview
	LevelBlock
)

func (l Level) String() string {
	switch l {
	case LevelReview:
		return "review"
	case LevelBlock:
		return "block"
	}
	return "none"
}

// Canceller cancels a transaction blocked by an auto-block rule.
type Canceller interface {
	Cancel(ctx context.Context, txn *models.Transaction, reason string) error
}

// RuleSource provides the active rule set.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]*models.FraudRule, error)
}

// RuleCache stores the active rule set between reads.
type RuleCache interface {
	GetActiveRules(ctx context.Context) ([]*models.FraudRule, bool, error)
	SetActiveRules(ctx context.Context, rules []*models.FraudRule) error
	InvalidateRules(ctx context.Context) error
}

// RuleUpdate carries the fields of a partial rule update. Nil fields are
// left unchanged.
type RuleUpdate struct {
	Name            *string
	IsActive        *bool
	AmountThreshold *decimal.Decimal
	TimeWindowMins  *int
	MaxTransactions *int
	FraudScore      *int
	AutoBlock       *bool
	Description     *string
}
