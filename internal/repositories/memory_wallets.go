package repositories

import (
	"context"

	"kalpe/internal/models"

	"github.com/shopspring/decimal"
)

type memoryWallets struct {
	s *MemoryStore
}

func (r *memoryWallets) Create(ctx context.Context, wallet *models.Wallet) error {
	d := r.s.data
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[wallet.AccountID]; ok {
		return ErrDuplicateWallet
	}
	if wallet.ID == "" {
		wallet.ID = models.NewID()
	}
	if _, ok := d.wallets[wallet.ID]; ok {
		return ErrDuplicateWallet
	}
	if wallet.Currency == "" {
		wallet.Currency = models.DefaultCurrency
	}
	ts := now()
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = ts
	}
	wallet.UpdatedAt = ts

	d.wallets[wallet.ID] = wallet.Clone()
	d.accounts[wallet.AccountID] = wallet.ID
	id, account := wallet.ID, wallet.AccountID
	r.s.onRollback(func() {
		delete(d.wallets, id)
		delete(d.accounts, account)
	})
	return nil
}

func (r *memoryWallets) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return w.Clone(), nil
}

func (r *memoryWallets) GetByAccountID(ctx context.Context, accountID string) (*models.Wallet, error) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.accounts[accountID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return d.wallets[id].Clone(), nil
}

func (r *memoryWallets) GetForUpdate(ctx context.Context, id string) (*models.Wallet, error) {
	if r.s.unit == nil {
		return nil, ErrNoUnitOfWork
	}
	if !r.exists(id) {
		return nil, ErrWalletNotFound
	}
	if err := r.s.lock(ctx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *memoryWallets) LockForUpdate(ctx context.Context, ids ...string) error {
	if r.s.unit == nil {
		return ErrNoUnitOfWork
	}
	ordered := uniqueSorted(ids)
	for _, id := range ordered {
		if !r.exists(id) {
			return ErrWalletNotFound
		}
	}
	for _, id := range ordered {
		if err := r.s.lock(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryWallets) exists(id string) bool {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.wallets[id]
	return ok
}

func (r *memoryWallets) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return r.update(id, func(w *models.Wallet) {
		w.Balance = balance.Round(2)
	})
}

func (r *memoryWallets) UpdateState(ctx context.Context, wallet *models.Wallet) error {
	return r.update(wallet.ID, func(w *models.Wallet) {
		w.IsActive = wallet.IsActive
		w.IsLocked = wallet.IsLocked
		w.LockedReason = wallet.LockedReason
		w.LockedAt = wallet.LockedAt
		w.LockedBy = wallet.LockedBy
		w.DailyLimit = wallet.DailyLimit
		w.MonthlyLimit = wallet.MonthlyLimit
	})
}

func (r *memoryWallets) update(id string, apply func(*models.Wallet)) error {
	d := r.s.data
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.wallets[id]
	if !ok {
		return ErrWalletNotFound
	}
	next := current.Clone()
	apply(next)
	next.UpdatedAt = now()
	d.wallets[id] = next
	r.s.onRollback(func() {
		d.wallets[id] = current
	})
	return nil
}
