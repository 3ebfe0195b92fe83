package repositories

import (
	"context"
	"sync"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/models"

	"golang.org/x/sync/semaphore"
)

// memoryData is the state shared by a MemoryStore and every unit of work
// opened from it.
type memoryData struct {
	mu           sync.RWMutex
	wallets      map[string]*models.Wallet
	accounts     map[string]string
	transactions map[string]*models.Transaction
	references   map[string]string
	ledger       []*models.LedgerEntry
	rules        map[string]*models.FraudRule
	ruleNames    map[string]string

	lockMu sync.Mutex
	locks  map[string]*semaphore.Weighted
}

func (d *memoryData) semaphore(id string) *semaphore.Weighted {
	d.lockMu.Lock()
	defer d.lockMu.Unlock()
	sem, ok := d.locks[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		d.locks[id] = sem
	}
	return sem
}

// memoryUnit tracks the row locks and undo steps of one unit of work.
// A unit is driven by a single goroutine.
type memoryUnit struct {
	held map[string]*semaphore.Weighted
	undo []func()
}

func (u *memoryUnit) rollback(d *memoryData) {
	d.mu.Lock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	d.mu.Unlock()
	u.undo = nil
}

func (u *memoryUnit) release() {
	for id, sem := range u.held {
		sem.Release(1)
		delete(u.held, id)
	}
}

// MemoryStore is an in-process Store. Writes are applied immediately and
// undone if the unit of work fails; wallet row locks are per-wallet
// semaphores held until the unit ends.
type MemoryStore struct {
	data        *memoryData
	unit        *memoryUnit
	lockTimeout time.Duration
}

func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			wallets:      make(map[string]*models.Wallet),
			accounts:     make(map[string]string),
			transactions: make(map[string]*models.Transaction),
			references:   make(map[string]string),
			rules:        make(map[string]*models.FraudRule),
			ruleNames:    make(map[string]string),
			locks:        make(map[string]*semaphore.Weighted),
		},
		lockTimeout: lockTimeout,
	}
}

func (s *MemoryStore) Wallets() WalletRepository { return &memoryWallets{s} }
func (s *MemoryStore) Transactions() TransactionRepository { return &memoryTransactions{s} }
func (s *MemoryStore) Ledger() LedgerRepository { return &memoryLedger{s} }
func (s *MemoryStore) FraudRules() FraudRuleRepository { return &memoryFraudRules{s} }

func (s *MemoryStore) ExecuteInTransaction(ctx context.Context, fn func(Store) error) (err error) {
	if s.unit != nil {
		return fn(s)
	}
	unit := &memoryUnit{held: make(map[string]*semaphore.Weighted)}
	tx := &MemoryStore{data: s.data, unit: unit, lockTimeout: s.lockTimeout}

	defer func() {
		if r := recover(); r != nil {
			unit.rollback(s.data)
			unit.release()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		unit.rollback(s.data)
		unit.release()
		return err
	}
	if err = ctx.Err(); err != nil {
		unit.rollback(s.data)
		unit.release()
		return err
	}
	unit.undo = nil
	unit.release()
	return nil
}

// onRollback registers an undo step. Callers hold data.mu for writing.
func (s *MemoryStore) onRollback(fn func()) {
	if s.unit != nil {
		s.unit.undo = append(s.unit.undo, fn)
	}
}

func (s *MemoryStore) lock(ctx context.Context, id string) error {
	if s.unit == nil {
		return ErrNoUnitOfWork
	}
	if _, ok := s.unit.held[id]; ok {
		return nil
	}
	sem := s.data.semaphore(id)
	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	if err := sem.Acquire(lockCtx, 1); err != nil {
		return apperrors.LockTimeout(err)
	}
	s.unit.held[id] = sem
	return nil
}

func now() time.Time { return time.Now().UTC() }
