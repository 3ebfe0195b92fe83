package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/logger"
	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"
	"kalpe/internal/repositories/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetBalance(ctx context.Context, accountID string) (*models.BalanceSummary, bool, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.BalanceSummary), args.Bool(1), args.Error(2)
}

func (m *MockCache) SetBalance(ctx context.Context, summary *models.BalanceSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockCache) InvalidateBalances(ctx context.Context, accountIDs ...string) error {
	args := m.Called(ctx, accountIDs)
	return args.Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T, cfg WalletConfig) (Service, *repositories.MemoryStore) {
	t.Helper()
	store := repositories.NewMemoryStore(2 * time.Second)
	svc := NewService(store, cache.NoopCache{}, cfg, metrics.NoopCollector{}, logger.Discard())
	return svc, store
}

func fundedWallet(t *testing.T, svc Service, account string, balance string) *models.Wallet {
	t.Helper()
	w, err := svc.CreateWallet(context.Background(), account, "")
	require.NoError(t, err)
	if balance != "0" {
		_, err = svc.Credit(context.Background(), w.ID, dec(balance))
		require.NoError(t, err)
	}
	return w
}

func TestWalletService_CreateWallet(t *testing.T) {
	svc, _ := newTestService(t, WalletConfig{})
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "acc-1", "")
	require.NoError(t, err)
	assert.Equal(t, "XOF", w.Currency)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.IsActive)
	assert.True(t, w.DailyLimit.Equal(dec("500000")))
	assert.True(t, w.MonthlyLimit.Equal(dec("5000000")))

	_, err = svc.CreateWallet(ctx, "acc-1", "")
	assert.ErrorIs(t, err, ErrWalletExists)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateWallet(ctx, "acc-2", "EURO")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	same, err := svc.GetOrCreate(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, same.ID)

	created, err := svc.GetOrCreate(ctx, "acc-3")
	require.NoError(t, err)
	assert.NotEqual(t, w.ID, created.ID)
}

func TestWalletService_Credit(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, svc Service, w *models.Wallet)
		amount  string
		want    string
		wantErr error
	}{
		{
			name:   "successful credit",
			amount: "100.50",
			want:   "100.50",
		},
		{
			name:    "zero amount",
			amount:  "0",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			amount:  "-10",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "more than two decimals",
			amount:  "1.005",
			wantErr: ErrInvalidAmount,
		},
		{
			name: "locked wallet",
			setup: func(t *testing.T, svc Service, w *models.Wallet) {
				_, err := svc.Lock(context.Background(), w.ID, "suspicious activity", "admin-1")
				require.NoError(t, err)
			},
			amount:  "10",
			wantErr: apperrors.ErrWalletUnavailable,
		},
		{
			name: "inactive wallet",
			setup: func(t *testing.T, svc Service, w *models.Wallet) {
				_, err := svc.Deactivate(context.Background(), w.ID)
				require.NoError(t, err)
			},
			amount:  "10",
			wantErr: ErrWalletInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, WalletConfig{})
			w := fundedWallet(t, svc, "acc", "0")
			if tt.setup != nil {
				tt.setup(t, svc, w)
			}

			balance, err := svc.Credit(context.Background(), w.ID, dec(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				stored, getErr := svc.GetWallet(context.Background(), w.ID)
				require.NoError(t, getErr)
				assert.True(t, stored.Balance.IsZero(), "balance must be unchanged")
				return
			}
			require.NoError(t, err)
			assert.True(t, balance.Equal(dec(tt.want)), "got %s", balance)
		})
	}
}

func TestWalletService_Debit(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    string
		wantErr error
	}{
		{name: "partial debit", amount: "40", want: "60"},
		{name: "exact balance", amount: "100", want: "0"},
		{name: "insufficient funds", amount: "100.01", wantErr: apperrors.ErrInsufficientFunds},
		{name: "invalid amount", amount: "0", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, WalletConfig{})
			w := fundedWallet(t, svc, "acc", "100")

			balance, err := svc.Debit(context.Background(), w.ID, dec(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				stored, _ := svc.GetWallet(context.Background(), w.ID)
				assert.True(t, stored.Balance.Equal(dec("100")))
				return
			}
			require.NoError(t, err)
			assert.True(t, balance.Equal(dec(tt.want)), "got %s", balance)
		})
	}
}

func TestWalletService_DebitUnknownWallet(t *testing.T) {
	svc, _ := newTestService(t, WalletConfig{})
	_, err := svc.Debit(context.Background(), models.NewID(), dec("1"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWalletService_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc, _ := newTestService(t, WalletConfig{})
	w := fundedWallet(t, svc, "acc", "500")

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(context.Background(), w.ID, dec("10"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperrors.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	assert.Equal(t, 50, insufficient)
	stored, err := svc.GetWallet(context.Background(), w.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.IsZero(), "got %s", stored.Balance)
}

func TestWalletService_LockUnlock(t *testing.T) {
	svc, _ := newTestService(t, WalletConfig{})
	ctx := context.Background()
	w := fundedWallet(t, svc, "acc", "100")

	locked, err := svc.Lock(ctx, w.ID, "chargeback investigation", "admin-7")
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)
	assert.Equal(t, "chargeback investigation", locked.LockedReason)
	require.NotNil(t, locked.LockedBy)
	assert.Equal(t, "admin-7", *locked.LockedBy)
	assert.NotNil(t, locked.LockedAt)

	_, err = svc.Debit(ctx, w.ID, dec("1"))
	assert.ErrorIs(t, err, ErrWalletLocked)
	assert.Contains(t, err.Error(), "chargeback investigation")

	unlocked, err := svc.Unlock(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, unlocked.IsLocked)
	assert.Empty(t, unlocked.LockedReason)
	assert.Nil(t, unlocked.LockedBy)

	_, err = svc.Debit(ctx, w.ID, dec("1"))
	assert.NoError(t, err)
}

func TestWalletService_CheckSend(t *testing.T) {
	clock := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	plusOne := time.FixedZone("UTC+1", 3600)
	cfg := WalletConfig{Location: plusOne, Clock: func() time.Time { return clock }}

	sent := func(t *testing.T, store *repositories.MemoryStore, w *models.Wallet, amount string, at time.Time, status models.TransactionStatus) {
		t.Helper()
		id := w.ID
		require.NoError(t, store.Transactions().Create(context.Background(), &models.Transaction{
			Reference:      models.NewID(),
			Type:           models.TransactionTypeTransfer,
			Status:         status,
			SenderWalletID: &id,
			Amount:         dec(amount),
			Currency:       "XOF",
			CreatedAt:      at,
		}))
	}

	tests := []struct {
		name    string
		setup   func(t *testing.T, svc Service, store *repositories.MemoryStore, w *models.Wallet)
		amount  string
		wantErr error
	}{
		{
			name:   "within limits",
			amount: "100000",
		},
		{
			name:    "more than balance",
			amount:  "2000001",
			wantErr: apperrors.ErrInsufficientFunds,
		},
		{
			name: "daily limit reached",
			setup: func(t *testing.T, svc Service, store *repositories.MemoryStore, w *models.Wallet) {
				sent(t, store, w, "450000", clock.Add(-time.Hour), models.TransactionStatusCompleted)
			},
			amount:  "60000",
			wantErr: ErrDailyLimitExceeded,
		},
		{
			name: "spend just after local midnight counts as today",
			setup: func(t *testing.T, svc Service, store *repositories.MemoryStore, w *models.Wallet) {
				// 23:30 UTC on the 14th is 00:30 on the 15th in UTC+1.
				sent(t, store, w, "450000", time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC), models.TransactionStatusCompleted)
			},
			amount:  "60000",
			wantErr: ErrDailyLimitExceeded,
		},
		{
			name: "spend before local midnight is yesterday",
			setup: func(t *testing.T, svc Service, store *repositories.MemoryStore, w *models.Wallet) {
				sent(t, store, w, "450000", time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC), models.TransactionStatusCompleted)
			},
			amount: "60000",
		},
		{
			name: "failed transactions do not count",
			setup: func(t *testing.T, svc Service, store *repositories.MemoryStore, w *models.Wallet) {
				sent(t, store, w, "450000", clock.Add(-time.Hour), models.TransactionStatusFailed)
			},
			amount: "60000",
		},
		{
			name: "monthly limit reached",
			setup: func(t *testing.T, svc Service, store *repositories.MemoryStore, w *models.Wallet) {
				sent(t, store, w, "4900000", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), models.TransactionStatusCompleted)
			},
			amount:  "200000",
			wantErr: ErrMonthlyLimitExceeded,
		},
		{
			name: "locked wallet",
			setup: func(t *testing.T, svc Service, store *repositories.MemoryStore, w *models.Wallet) {
				_, err := svc.Lock(context.Background(), w.ID, "review", "")
				require.NoError(t, err)
			},
			amount:  "10",
			wantErr: apperrors.ErrWalletUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, cfg)
			w := fundedWallet(t, svc, "acc", "2000000")
			if tt.setup != nil {
				tt.setup(t, svc, store, w)
			}

			err := svc.CheckSend(context.Background(), w.ID, dec(tt.amount))
			ok, canErr := svc.CanSend(context.Background(), w.ID, dec(tt.amount))
			require.NoError(t, canErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, ok)
				return
			}
			assert.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestWalletService_BalanceSummary(t *testing.T) {
	t.Run("cache miss builds and stores the summary", func(t *testing.T) {
		store := repositories.NewMemoryStore(time.Second)
		mc := new(MockCache)
		svc := NewService(store, mc, WalletConfig{}, nil, logger.Discard())
		_, err := svc.CreateWallet(context.Background(), "acc", "")
		require.NoError(t, err)

		mc.On("GetBalance", mock.Anything, "acc").Return(nil, false, nil).Once()
		mc.On("SetBalance", mock.Anything, mock.MatchedBy(func(s *models.BalanceSummary) bool {
			return s.AccountID == "acc" && s.Balance.IsZero() && s.DailyRemaining.Equal(dec("500000"))
		})).Return(nil).Once()

		summary, err := svc.BalanceSummary(context.Background(), "acc")
		require.NoError(t, err)
		assert.Equal(t, "XOF", summary.Currency)
		assert.True(t, summary.DailySpent.IsZero())
		assert.True(t, summary.MonthlyRemaining.Equal(dec("5000000")))
		mc.AssertExpectations(t)
	})

	t.Run("unknown account is not created", func(t *testing.T) {
		store := repositories.NewMemoryStore(time.Second)
		mc := new(MockCache)
		svc := NewService(store, mc, WalletConfig{}, nil, logger.Discard())

		mc.On("GetBalance", mock.Anything, "ghost").Return(nil, false, nil).Once()

		_, err := svc.BalanceSummary(context.Background(), "ghost")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		_, err = store.Wallets().GetByAccountID(context.Background(), "ghost")
		assert.ErrorIs(t, err, repositories.ErrWalletNotFound)
		mc.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything)
		mc.AssertExpectations(t)
	})

	t.Run("cache hit skips the store", func(t *testing.T) {
		store := repositories.NewMemoryStore(time.Second)
		mc := new(MockCache)
		svc := NewService(store, mc, WalletConfig{}, nil, logger.Discard())

		cached := &models.BalanceSummary{AccountID: "acc", Balance: dec("42")}
		mc.On("GetBalance", mock.Anything, "acc").Return(cached, true, nil).Once()

		summary, err := svc.BalanceSummary(context.Background(), "acc")
		require.NoError(t, err)
		assert.Same(t, cached, summary)

		_, err = svc.GetByAccount(context.Background(), "acc")
		assert.ErrorIs(t, err, apperrors.ErrNotFound, "a cache hit must not create the wallet")
		mc.AssertExpectations(t)
	})

	t.Run("invalidate forwards account ids", func(t *testing.T) {
		store := repositories.NewMemoryStore(time.Second)
		mc := new(MockCache)
		svc := NewService(store, mc, WalletConfig{}, nil, logger.Discard())

		mc.On("InvalidateBalances", mock.Anything, []string{"a", "b"}).Return(nil).Once()
		svc.InvalidateSummary(context.Background(), "a", "b")
		mc.AssertExpectations(t)
	})
}

func TestWalletService_WithTxRollsBackTogether(t *testing.T) {
	svc, store := newTestService(t, WalletConfig{})
	ctx := context.Background()
	a := fundedWallet(t, svc, "a", "100")
	b := fundedWallet(t, svc, "b", "0")

	boom := errors.New("boom")
	err := store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		txSvc := svc.WithTx(tx)
		if _, err := txSvc.Debit(ctx, a.ID, dec("30")); err != nil {
			return err
		}
		if _, err := txSvc.Credit(ctx, b.ID, dec("30")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	gotA, _ := svc.GetWallet(ctx, a.ID)
	gotB, _ := svc.GetWallet(ctx, b.ID)
	assert.True(t, gotA.Balance.Equal(dec("100")))
	assert.True(t, gotB.Balance.IsZero())
}

func TestWalletService_SetLimits(t *testing.T) {
	svc, _ := newTestService(t, WalletConfig{})
	w := fundedWallet(t, svc, "acc", "0")

	updated, err := svc.SetLimits(context.Background(), w.ID, dec("1000"), dec("20000"))
	require.NoError(t, err)
	assert.True(t, updated.DailyLimit.Equal(dec("1000")))

	_, err = svc.SetLimits(context.Background(), w.ID, dec("0"), dec("20000"))
	assert.ErrorIs(t, err, ErrInvalidLimits)
}
