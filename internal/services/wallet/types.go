package wallet

import (
	"context"
	"time"

	"kalpe/internal/models"

	"github.com/shopspring/decimal"
)

// WalletConfig holds configuration for wallet operations
type WalletConfig struct {
	Currency     string
	Location     *time.Location
	DailyLimit   decimal.Decimal
	MonthlyLimit decimal.Decimal
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// SummaryCache defines the caching operations needed for balance summaries
type SummaryCache interface {
	GetBalance(ctx context.Context, accountID string) (*models.BalanceSummary, bool, error)
	SetBalance(ctx context.Context, summary *models.BalanceSummary) error
	InvalidateBalances(ctx context.Context, accountIDs ...string) error
}
