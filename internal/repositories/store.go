package repositories

import (
	"context"
	"errors"
	"time"

	"kalpe/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrDuplicateWallet     = errors.New("wallet already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("duplicate transaction reference")
	ErrStaleTransaction    = errors.New("transaction status changed concurrently")
	ErrFraudRuleNotFound   = errors.New("fraud rule not found")
	ErrDuplicateFraudRule  = errors.New("fraud rule already exists")
	ErrNoUnitOfWork        = errors.New("row lock requested outside a unit of work")
	ErrUnknownColumn       = errors.New("unknown transaction column")
)

// Transaction column sets written by TransactionRepository.Update. Each
// writer owns its set, so concurrent writers of different sets do not
// overwrite each other.
var (
	StatusColumns    = []string{"status", "completed_at", "failed_at", "failure_reason", "metadata"}
	ScoreColumns     = []string{"fraud_score"}
	FlagColumns      = []string{"is_flagged", "flagged_reason"}
	ReviewColumns    = []string{"is_flagged", "reviewed_at", "reviewed_by"}
	ReconcileColumns = []string{"is_reconciled", "reconciled_at", "reconciled_by"}
)

// Store groups the repositories that share one unit of work.
type Store interface {
	Wallets() WalletRepository
	Transactions() TransactionRepository
	Ledger() LedgerRepository
	FraudRules() FraudRuleRepository

	// ExecuteInTransaction runs fn inside a unit of work. Everything fn writes
	// through the Store it receives commits together or not at all, and row
	// locks taken inside are held until the unit ends. A call made on a Store
	// that is already inside a unit of work joins it.
	ExecuteInTransaction(ctx context.Context, fn func(Store) error) error
}

// WalletRepository defines the wallet persistence operations
type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id string) (*models.Wallet, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Wallet, error)

	// GetForUpdate reads the wallet and takes its exclusive row lock.
	// A lock that cannot be obtained within the configured timeout yields a
	// retryable TRANSACTION_FAILED domain error.
	GetForUpdate(ctx context.Context, id string) (*models.Wallet, error)
	// LockForUpdate takes the row locks of several wallets in ascending id order.
	LockForUpdate(ctx context.Context, ids ...string) error

	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	// UpdateState persists activity, lock and limit fields. Balance is untouched.
	UpdateState(ctx context.Context, wallet *models.Wallet) error
}

// SenderActivity summarises a sender's recent outgoing transactions.
type SenderActivity struct {
	Count int64
	Total decimal.Decimal
}

// TransactionRepository defines the transaction persistence operations
type TransactionRepository interface {
	// Create inserts a new transaction. A reference that already exists yields
	// ErrDuplicateReference.
	Create(ctx context.Context, txn *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*models.Transaction, error)

	// Update writes the given columns of txn, provided the stored status is
	// still from. Otherwise it returns ErrStaleTransaction and writes nothing.
	// On success txn is refreshed with the stored row.
	Update(ctx context.Context, txn *models.Transaction, from models.TransactionStatus, columns ...string) error

	// SumSent totals COMPLETED transactions sent by the wallet and created in [from, to).
	SumSent(ctx context.Context, walletID string, from, to time.Time) (decimal.Decimal, error)
	// SenderActivitySince counts COMPLETED or PROCESSING transactions sent by
	// the wallet and created at or after since.
	SenderActivitySince(ctx context.Context, walletID string, since time.Time) (SenderActivity, error)
	CountCompletedSent(ctx context.Context, walletID string) (int64, error)

	FindUnreconciled(ctx context.Context, from, to time.Time) ([]*models.Transaction, error)
	FindStaleProcessing(ctx context.Context, before time.Time) ([]*models.Transaction, error)
	ListForWallet(ctx context.Context, walletID string, since time.Time, limit int) ([]*models.Transaction, error)
	DailyStats(ctx context.Context, from, to time.Time) (*models.DailyStats, error)
}

// LedgerRepository is append-only: entries are never updated or deleted.
type LedgerRepository interface {
	Append(ctx context.Context, entries ...*models.LedgerEntry) error
	ListByTransaction(ctx context.Context, transactionID string) ([]*models.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID string, limit int) ([]*models.LedgerEntry, error)
}

// FraudRuleRepository defines the fraud rule persistence operations
type FraudRuleRepository interface {
	Create(ctx context.Context, rule *models.FraudRule) error
	GetByID(ctx context.Context, id string) (*models.FraudRule, error)
	GetByName(ctx context.Context, name string) (*models.FraudRule, error)
	Update(ctx context.Context, rule *models.FraudRule) error
	List(ctx context.Context) ([]*models.FraudRule, error)
	ListActive(ctx context.Context) ([]*models.FraudRule, error)
}

func newDailyStats(from time.Time) *models.DailyStats {
	return &models.DailyStats{
		Date:         from.Format("2006-01-02"),
		Volume:       decimal.Zero,
		Fees:         decimal.Zero,
		ByStatus:     map[models.TransactionStatus]int64{},
		ByType:       map[models.TransactionType]int64{},
		VolumeByType: map[models.TransactionType]decimal.Decimal{},
	}
}

func (s SenderActivity) add(amount decimal.Decimal) SenderActivity {
	return SenderActivity{Count: s.Count + 1, Total: s.Total.Add(amount)}
}
