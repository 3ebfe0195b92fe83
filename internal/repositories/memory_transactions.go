package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"kalpe/internal/models"

	"github.com/shopspring/decimal"
)

type memoryTransactions struct {
	s *MemoryStore
}

func (r *memoryTransactions) Create(ctx context.Context, txn *models.Transaction) error {
	d := r.s.data
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.references[txn.Reference]; ok {
		return ErrDuplicateReference
	}
	if txn.ID == "" {
		txn.ID = models.NewID()
	}
	ts := now()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = ts
	}
	txn.UpdatedAt = ts

	d.transactions[txn.ID] = txn.Clone()
	d.references[txn.Reference] = txn.ID
	id, ref := txn.ID, txn.Reference
	r.s.onRollback(func() {
		delete(d.transactions, id)
		delete(d.references, ref)
	})
	return nil
}

func (r *memoryTransactions) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	txn, ok := d.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return txn.Clone(), nil
}

func (r *memoryTransactions) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.references[reference]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return d.transactions[id].Clone(), nil
}

func (r *memoryTransactions) Update(ctx context.Context, txn *models.Transaction, from models.TransactionStatus, columns ...string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns given", ErrUnknownColumn)
	}
	d := r.s.data
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.transactions[txn.ID]
	if !ok {
		return ErrTransactionNotFound
	}
	if current.Status != from {
		return ErrStaleTransaction
	}
	next := current.Clone()
	if err := assignColumns(next, txn.Clone(), columns); err != nil {
		return err
	}
	next.UpdatedAt = now()
	d.transactions[txn.ID] = next
	*txn = *next.Clone()
	r.s.onRollback(func() {
		d.transactions[current.ID] = current
	})
	return nil
}

func assignColumns(dst, src *models.Transaction, columns []string) error {
	for _, column := range columns {
		switch column {
		case "status":
			dst.Status = src.Status
		case "completed_at":
			dst.CompletedAt = src.CompletedAt
		case "failed_at":
			dst.FailedAt = src.FailedAt
		case "failure_reason":
			dst.FailureReason = src.FailureReason
		case "metadata":
			dst.Metadata = src.Metadata
		case "fraud_score":
			dst.FraudScore = src.FraudScore
		case "is_flagged":
			dst.IsFlagged = src.IsFlagged
		case "flagged_reason":
			dst.FlaggedReason = src.FlaggedReason
		case "reviewed_at":
			dst.ReviewedAt = src.ReviewedAt
		case "reviewed_by":
			dst.ReviewedBy = src.ReviewedBy
		case "is_reconciled":
			dst.IsReconciled = src.IsReconciled
		case "reconciled_at":
			dst.ReconciledAt = src.ReconciledAt
		case "reconciled_by":
			dst.ReconciledBy = src.ReconciledBy
		default:
			return fmt.Errorf("%w: %s", ErrUnknownColumn, column)
		}
	}
	return nil
}

// each calls fn for every stored transaction under the read lock.
func (r *memoryTransactions) each(fn func(*models.Transaction)) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, txn := range d.transactions {
		fn(txn)
	}
}

func sentBy(txn *models.Transaction, walletID string) bool {
	return txn.SenderWalletID != nil && *txn.SenderWalletID == walletID
}

func touches(txn *models.Transaction, walletID string) bool {
	return sentBy(txn, walletID) || (txn.ReceiverWalletID != nil && *txn.ReceiverWalletID == walletID)
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (r *memoryTransactions) SumSent(ctx context.Context, walletID string, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	r.each(func(txn *models.Transaction) {
		if sentBy(txn, walletID) && txn.Status == models.TransactionStatusCompleted && inWindow(txn.CreatedAt, from, to) {
			total = total.Add(txn.Amount)
		}
	})
	return total, nil
}

func (r *memoryTransactions) SenderActivitySince(ctx context.Context, walletID string, since time.Time) (SenderActivity, error) {
	activity := SenderActivity{Total: decimal.Zero}
	r.each(func(txn *models.Transaction) {
		if !sentBy(txn, walletID) || txn.CreatedAt.Before(since) {
			return
		}
		if txn.Status == models.TransactionStatusCompleted || txn.Status == models.TransactionStatusProcessing {
			activity = activity.add(txn.Amount)
		}
	})
	return activity, nil
}

func (r *memoryTransactions) CountCompletedSent(ctx context.Context, walletID string) (int64, error) {
	var count int64
	r.each(func(txn *models.Transaction) {
		if sentBy(txn, walletID) && txn.Status == models.TransactionStatusCompleted {
			count++
		}
	})
	return count, nil
}

func (r *memoryTransactions) FindUnreconciled(ctx context.Context, from, to time.Time) ([]*models.Transaction, error) {
	var out []*models.Transaction
	r.each(func(txn *models.Transaction) {
		if txn.Status == models.TransactionStatusCompleted && !txn.IsReconciled && inWindow(txn.CreatedAt, from, to) {
			out = append(out, txn.Clone())
		}
	})
	sortByCreated(out, false)
	return out, nil
}

func (r *memoryTransactions) FindStaleProcessing(ctx context.Context, before time.Time) ([]*models.Transaction, error) {
	var out []*models.Transaction
	r.each(func(txn *models.Transaction) {
		if txn.Status == models.TransactionStatusProcessing && txn.UpdatedAt.Before(before) {
			out = append(out, txn.Clone())
		}
	})
	sortByCreated(out, false)
	return out, nil
}

func (r *memoryTransactions) ListForWallet(ctx context.Context, walletID string, since time.Time, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	r.each(func(txn *models.Transaction) {
		if touches(txn, walletID) && !txn.CreatedAt.Before(since) {
			out = append(out, txn.Clone())
		}
	})
	sortByCreated(out, true)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryTransactions) DailyStats(ctx context.Context, from, to time.Time) (*models.DailyStats, error) {
	stats := newDailyStats(from)
	r.each(func(txn *models.Transaction) {
		if !inWindow(txn.CreatedAt, from, to) {
			return
		}
		stats.Total++
		stats.ByStatus[txn.Status]++
		stats.ByType[txn.Type]++
		if txn.IsFlagged {
			stats.Flagged++
		}
		if txn.IsReconciled {
			stats.Reconciled++
		}
		if txn.Status == models.TransactionStatusCompleted {
			stats.Volume = stats.Volume.Add(txn.Amount)
			stats.Fees = stats.Fees.Add(txn.Fee)
			stats.VolumeByType[txn.Type] = stats.VolumeByType[txn.Type].Add(txn.Amount)
		}
	})
	return stats, nil
}

func sortByCreated(txns []*models.Transaction, desc bool) {
	sort.SliceStable(txns, func(i, j int) bool {
		a, b := txns[i], txns[j]
		if desc {
			a, b = b, a
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
