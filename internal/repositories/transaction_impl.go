package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kalpe/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

var (
	sentStatuses   = []models.TransactionStatus{models.TransactionStatusCompleted}
	activeStatuses = []models.TransactionStatus{models.TransactionStatusCompleted, models.TransactionStatusProcessing}
)

func (r *transactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *transactionRepository) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return r.first(ctx, "reference = ?", reference)
}

func (r *transactionRepository) first(ctx context.Context, query string, arg interface{}) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where(query, arg).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

func (r *transactionRepository) Update(ctx context.Context, txn *models.Transaction, from models.TransactionStatus, columns ...string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns given", ErrUnknownColumn)
	}
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, from).
		Select(append(append([]string{}, columns...), "updated_at")).
		Updates(txn)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransaction
	}

	stored, err := r.GetByID(ctx, txn.ID)
	if err != nil {
		return err
	}
	*txn = *stored
	return nil
}

func (r *transactionRepository) SumSent(ctx context.Context, walletID string, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("sender_wallet_id = ? AND status IN ? AND created_at >= ? AND created_at < ?", walletID, sentStatuses, from, to).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum sent transactions: %w", err)
	}
	return total, nil
}

func (r *transactionRepository) SenderActivitySince(ctx context.Context, walletID string, since time.Time) (SenderActivity, error) {
	var activity SenderActivity
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COUNT(*), COALESCE(SUM(amount), 0)").
		Where("sender_wallet_id = ? AND status IN ? AND created_at >= ?", walletID, activeStatuses, since).
		Row().
		Scan(&activity.Count, &activity.Total)
	if err != nil {
		return SenderActivity{}, fmt.Errorf("failed to load sender activity: %w", err)
	}
	return activity, nil
}

func (r *transactionRepository) CountCompletedSent(ctx context.Context, walletID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("sender_wallet_id = ? AND status = ?", walletID, models.TransactionStatusCompleted).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sent transactions: %w", err)
	}
	return count, nil
}

func (r *transactionRepository) FindUnreconciled(ctx context.Context, from, to time.Time) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_reconciled = ? AND created_at >= ? AND created_at < ?",
			models.TransactionStatusCompleted, false, from, to).
		Order("created_at").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find unreconciled transactions: %w", err)
	}
	return txns, nil
}

func (r *transactionRepository) FindStaleProcessing(ctx context.Context, before time.Time) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.TransactionStatusProcessing, before).
		Order("updated_at").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale transactions: %w", err)
	}
	return txns, nil
}

func (r *transactionRepository) ListForWallet(ctx context.Context, walletID string, since time.Time, limit int) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	query := r.db.WithContext(ctx).
		Where("(sender_wallet_id = ? OR receiver_wallet_id = ?) AND created_at >= ?", walletID, walletID, since).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (r *transactionRepository) DailyStats(ctx context.Context, from, to time.Time) (*models.DailyStats, error) {
	type Result struct {
		Status     models.TransactionStatus
		Type       models.TransactionType
		Count      int64
		Volume     decimal.Decimal
		Fees       decimal.Decimal
		Flagged    int64
		Reconciled int64
	}
	var results []Result

	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select(`status, type, COUNT(*) AS count,
			COALESCE(SUM(amount), 0) AS volume,
			COALESCE(SUM(fee), 0) AS fees,
			SUM(CASE WHEN is_flagged THEN 1 ELSE 0 END) AS flagged,
			SUM(CASE WHEN is_reconciled THEN 1 ELSE 0 END) AS reconciled`).
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("status, type").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}

	stats := newDailyStats(from)
	for _, res := range results {
		stats.Total += res.Count
		stats.ByStatus[res.Status] += res.Count
		stats.ByType[res.Type] += res.Count
		stats.Flagged += res.Flagged
		stats.Reconciled += res.Reconciled
		if res.Status == models.TransactionStatusCompleted {
			stats.Volume = stats.Volume.Add(res.Volume)
			stats.Fees = stats.Fees.Add(res.Fees)
			stats.VolumeByType[res.Type] = stats.VolumeByType[res.Type].Add(res.Volume)
		}
	}
	return stats, nil
}
