package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "kalpe/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

// GormStore is the PostgreSQL-backed Store.
type GormStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
	inTx        bool
}

func NewGormStore(db *gorm.DB, lockTimeout time.Duration) *GormStore {
	if db == nil {
		panic("db is required")
	}
	return &GormStore{db: db, lockTimeout: lockTimeout}
}

func (s *GormStore) Wallets() WalletRepository {
	return &walletRepository{db: s.db, inTx: s.inTx}
}

func (s *GormStore) Transactions() TransactionRepository {
	return &transactionRepository{db: s.db}
}

func (s *GormStore) Ledger() LedgerRepository {
	return &ledgerRepository{db: s.db}
}

func (s *GormStore) FraudRules() FraudRuleRepository {
	return &fraudRuleRepository{db: s.db}
}

func (s *GormStore) ExecuteInTransaction(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		return fn(&GormStore{db: tx, lockTimeout: s.lockTimeout, inTx: true})
	})
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || pgCode(err) == pgUniqueViolation
}

func isLockTimeout(err error) bool {
	return pgCode(err) == pgLockNotAvailable
}

// lockError maps a failed locking read to a domain error.
func lockError(err error) error {
	if isLockTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.LockTimeout(err)
	}
	return fmt.Errorf("failed to lock wallet: %w", err)
}
