package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"kalpe/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type walletRepository struct {
	db   *gorm.DB
	inTx bool
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateWallet
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetForUpdate(ctx context.Context, id string) (*models.Wallet, error) {
	if !r.inTx {
		return nil, ErrNoUnitOfWork
	}
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, lockError(err)
	}
	return &wallet, nil
}

func (r *walletRepository) LockForUpdate(ctx context.Context, ids ...string) error {
	if !r.inTx {
		return ErrNoUnitOfWork
	}
	ordered := uniqueSorted(ids)
	if len(ordered) == 0 {
		return nil
	}
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ordered).
		Order("id").
		Find(&wallets).Error
	if err != nil {
		return lockError(err)
	}
	if len(wallets) != len(ordered) {
		return ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", id).
		Update("balance", balance.Round(2))
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) UpdateState(ctx context.Context, wallet *models.Wallet) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Select("is_active", "is_locked", "locked_reason", "locked_at", "locked_by", "daily_limit", "monthly_limit").
		Updates(wallet)
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// uniqueSorted returns ids without duplicates or blanks, in ascending order.
// Taking locks in this order keeps two transfers between the same pair of
// wallets from deadlocking.
func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
