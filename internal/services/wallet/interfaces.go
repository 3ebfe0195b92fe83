package wallet

import (
	"context"

	"kalpe/internal/models"
	"kalpe/internal/repositories"

	"github.com/shopspring/decimal"
)

// Service defines the main wallet service interface
type Service interface {
	// Wallet management
	CreateWallet(ctx context.Context, accountID, currency string) (*models.Wallet, error)
	GetOrCreate(ctx context.Context, accountID string) (*models.Wallet, error)
	GetWallet(ctx context.Context, walletID string) (*models.Wallet, error)
	GetByAccount(ctx context.Context, accountID string) (*models.Wallet, error)
	Lock(ctx context.Context, walletID, reason, actor string) (*models.Wallet, error)
	Unlock(ctx context.Context, walletID string) (*models.Wallet, error)
	Deactivate(ctx context.Context, walletID string) (*models.Wallet, error)
	SetLimits(ctx context.Context, walletID string, daily, monthly decimal.Decimal) (*models.Wallet, error)

	// Balance operations. Both return the balance after the change.
	Credit(ctx context.Context, walletID string, amount decimal.Decimal) (decimal.Decimal, error)
	Debit(ctx context.Context, walletID string, amount decimal.Decimal) (decimal.Decimal, error)

	// Limits
	DailySpent(ctx context.Context, walletID string) (decimal.Decimal, error)
	MonthlySpent(ctx context.Context, walletID string) (decimal.Decimal, error)
	CanSend(ctx context.Context, walletID string, amount decimal.Decimal) (bool, error)
	CheckSend(ctx context.Context, walletID string, amount decimal.Decimal) error

	// Read model
	BalanceSummary(ctx context.Context, accountID string) (*models.BalanceSummary, error)
	InvalidateSummary(ctx context.Context, accountIDs ...string)

	// WithTx returns a copy of the service bound to an open unit of work.
	WithTx(tx repositories.Store) Service
}
