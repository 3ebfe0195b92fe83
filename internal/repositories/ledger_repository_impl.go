package repositories

import (
	"context"
	"fmt"

	"kalpe/internal/models"

	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) Append(ctx context.Context, entries ...*models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(entries).Error; err != nil {
		return fmt.Errorf("failed to append ledger entries: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) ListByWallet(ctx context.Context, walletID string, limit int) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}
