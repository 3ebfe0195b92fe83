package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func seedWallet(t *testing.T, s *MemoryStore, account string, balance int64) *models.Wallet {
	t.Helper()
	w := &models.Wallet{
		AccountID:    account,
		Balance:      decimal.NewFromInt(balance),
		IsActive:     true,
		DailyLimit:   decimal.NewFromInt(500000),
		MonthlyLimit: decimal.NewFromInt(5000000),
	}
	require.NoError(t, s.Wallets().Create(context.Background(), w))
	return w
}

func TestMemoryStore_RollbackUndoesEveryWrite(t *testing.T) {
	s := NewMemoryStore(time.Second)
	ctx := context.Background()
	w := seedWallet(t, s, "alice", 1000)

	var txnID string
	err := s.ExecuteInTransaction(ctx, func(tx Store) error {
		locked, err := tx.Wallets().GetForUpdate(ctx, w.ID)
		require.NoError(t, err)
		require.NoError(t, tx.Wallets().UpdateBalance(ctx, w.ID, locked.Balance.Sub(decimal.NewFromInt(400))))

		txn := &models.Transaction{Reference: "TXN-ROLLBACK", Type: models.TransactionTypeWithdrawal, Status: models.TransactionStatusPending}
		require.NoError(t, tx.Transactions().Create(ctx, txn))
		txnID = txn.ID
		require.NoError(t, tx.Ledger().Append(ctx, &models.LedgerEntry{TransactionID: txn.ID, WalletID: w.ID, EntryType: models.EntryTypeDebit}))
		require.NoError(t, tx.Wallets().Create(ctx, &models.Wallet{AccountID: "bob"}))
		require.NoError(t, tx.FraudRules().Create(ctx, &models.FraudRule{Name: "rule"}))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)))

	_, err = s.Transactions().GetByID(ctx, txnID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	entries, err := s.Ledger().ListByTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = s.Wallets().GetByAccountID(ctx, "bob")
	assert.ErrorIs(t, err, ErrWalletNotFound)
	_, err = s.FraudRules().GetByName(ctx, "rule")
	assert.ErrorIs(t, err, ErrFraudRuleNotFound)

	// the row lock was released with the failed unit
	err = s.ExecuteInTransaction(ctx, func(tx Store) error {
		_, err := tx.Wallets().GetForUpdate(ctx, w.ID)
		return err
	})
	assert.NoError(t, err)
}

func TestMemoryStore_CommitKeepsWrites(t *testing.T) {
	s := NewMemoryStore(time.Second)
	ctx := context.Background()
	w := seedWallet(t, s, "alice", 1000)

	err := s.ExecuteInTransaction(ctx, func(tx Store) error {
		return tx.Wallets().UpdateBalance(ctx, w.ID, decimal.RequireFromString("250.456"))
	})
	require.NoError(t, err)

	got, err := s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "250.46", got.Balance.StringFixed(2))
}

func TestMemoryStore_LockTimeout(t *testing.T) {
	s := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()
	w := seedWallet(t, s, "alice", 0)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.ExecuteInTransaction(ctx, func(tx Store) error {
			if _, err := tx.Wallets().GetForUpdate(ctx, w.ID); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.ExecuteInTransaction(ctx, func(tx Store) error {
		return tx.Wallets().LockForUpdate(ctx, w.ID)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransactionFailed)
	assert.True(t, apperrors.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)
}

func TestMemoryStore_LocksRequireUnitOfWork(t *testing.T) {
	s := NewMemoryStore(time.Second)
	ctx := context.Background()
	w := seedWallet(t, s, "alice", 0)

	_, err := s.Wallets().GetForUpdate(ctx, w.ID)
	assert.ErrorIs(t, err, ErrNoUnitOfWork)
	assert.ErrorIs(t, s.Wallets().LockForUpdate(ctx, w.ID), ErrNoUnitOfWork)

	err = s.ExecuteInTransaction(ctx, func(tx Store) error {
		return tx.Wallets().LockForUpdate(ctx, w.ID, "missing")
	})
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestMemoryStore_NestedUnitJoinsOuter(t *testing.T) {
	s := NewMemoryStore(100 * time.Millisecond)
	ctx := context.Background()
	w := seedWallet(t, s, "alice", 100)

	err := s.ExecuteInTransaction(ctx, func(outer Store) error {
		require.NoError(t, outer.Wallets().LockForUpdate(ctx, w.ID))
		// the inner unit must not wait on the lock its outer unit holds
		err := outer.ExecuteInTransaction(ctx, func(inner Store) error {
			if _, err := inner.Wallets().GetForUpdate(ctx, w.ID); err != nil {
				return err
			}
			return inner.Wallets().UpdateBalance(ctx, w.ID, decimal.NewFromInt(50))
		})
		require.NoError(t, err)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)), "inner write rolls back with the outer unit")
}

func TestMemoryStore_Transactions(t *testing.T) {
	s := NewMemoryStore(time.Second)
	ctx := context.Background()

	txn := &models.Transaction{Reference: "TXN-1", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending}
	require.NoError(t, s.Transactions().Create(ctx, txn))

	t.Run("duplicate reference", func(t *testing.T) {
		dup := &models.Transaction{Reference: "TXN-1", Type: models.TransactionTypeDeposit}
		assert.ErrorIs(t, s.Transactions().Create(ctx, dup), ErrDuplicateReference)
	})

	t.Run("conditional update", func(t *testing.T) {
		next := txn.Clone()
		next.Status = models.TransactionStatusProcessing
		require.NoError(t, s.Transactions().Update(ctx, next, models.TransactionStatusPending, StatusColumns...))

		stale := txn.Clone()
		stale.Status = models.TransactionStatusCancelled
		assert.ErrorIs(t, s.Transactions().Update(ctx, stale, models.TransactionStatusPending, StatusColumns...), ErrStaleTransaction)

		got, err := s.Transactions().GetByReference(ctx, "TXN-1")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusProcessing, got.Status)
	})

	t.Run("returned copies are detached", func(t *testing.T) {
		got, err := s.Transactions().GetByID(ctx, txn.ID)
		require.NoError(t, err)
		got.Status = models.TransactionStatusFailed
		again, err := s.Transactions().GetByID(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusProcessing, again.Status)
	})

	t.Run("writes only the named columns", func(t *testing.T) {
		reviewer := "reviewer-1"
		review := txn.Clone()
		review.Status = models.TransactionStatusProcessing
		review.ReviewedBy = &reviewer
		require.NoError(t, s.Transactions().Update(ctx, review, models.TransactionStatusProcessing, ReviewColumns...))

		// a status write from a snapshot taken before the review
		done := txn.Clone()
		done.Status = models.TransactionStatusCompleted
		require.NoError(t, s.Transactions().Update(ctx, done, models.TransactionStatusProcessing, StatusColumns...))

		got, err := s.Transactions().GetByID(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCompleted, got.Status)
		require.NotNil(t, got.ReviewedBy)
		assert.Equal(t, reviewer, *got.ReviewedBy)
		require.NotNil(t, done.ReviewedBy, "the caller's copy is refreshed")

		assert.ErrorIs(t, s.Transactions().Update(ctx, done, models.TransactionStatusCompleted, "balance"), ErrUnknownColumn)
		assert.ErrorIs(t, s.Transactions().Update(ctx, done, models.TransactionStatusCompleted), ErrUnknownColumn)
	})

	t.Run("unknown id", func(t *testing.T) {
		missing := &models.Transaction{ID: models.NewID()}
		assert.ErrorIs(t, s.Transactions().Update(ctx, missing, models.TransactionStatusPending, StatusColumns...), ErrTransactionNotFound)
	})
}

func TestMemoryStore_DuplicateWallet(t *testing.T) {
	s := NewMemoryStore(time.Second)
	seedWallet(t, s, "alice", 0)
	err := s.Wallets().Create(context.Background(), &models.Wallet{AccountID: "alice"})
	assert.ErrorIs(t, err, ErrDuplicateWallet)
}

func TestMemoryStore_LedgerByWalletNewestFirst(t *testing.T) {
	s := NewMemoryStore(time.Second)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Ledger().Append(ctx, &models.LedgerEntry{
			TransactionID: models.NewID(),
			WalletID:      "w1",
			EntryType:     models.EntryTypeCredit,
			Amount:        decimal.NewFromInt(int64(i)),
		}))
	}
	require.NoError(t, s.Ledger().Append(ctx, &models.LedgerEntry{WalletID: "w2", EntryType: models.EntryTypeCredit}))

	entries, err := s.Ledger().ListByWallet(ctx, "w1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(3)))
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(2)))
}
