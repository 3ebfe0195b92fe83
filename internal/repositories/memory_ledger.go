package repositories

import (
	"context"

	"kalpe/internal/models"
)

type memoryLedger struct {
	s *MemoryStore
}

func (r *memoryLedger) Append(ctx context.Context, entries ...*models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	d := r.s.data
	d.mu.Lock()
	defer d.mu.Unlock()

	added := make(map[string]struct{}, len(entries))
	ts := now()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = models.NewID()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = ts
		}
		cp := *e
		d.ledger = append(d.ledger, &cp)
		added[e.ID] = struct{}{}
	}
	r.s.onRollback(func() {
		kept := d.ledger[:0]
		for _, e := range d.ledger {
			if _, ok := added[e.ID]; !ok {
				kept = append(kept, e)
			}
		}
		d.ledger = kept
	})
	return nil
}

func (r *memoryLedger) ListByTransaction(ctx context.Context, transactionID string) ([]*models.LedgerEntry, error) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*models.LedgerEntry
	for _, e := range d.ledger {
		if e.TransactionID == transactionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryLedger) ListByWallet(ctx context.Context, walletID string, limit int) ([]*models.LedgerEntry, error) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*models.LedgerEntry
	for i := len(d.ledger) - 1; i >= 0; i-- {
		e := d.ledger[i]
		if e.WalletID != walletID {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
