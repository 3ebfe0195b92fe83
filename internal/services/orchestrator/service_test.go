package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/events"
	"kalpe/internal/logger"
	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"
	"kalpe/internal/repositories/cache"
	"kalpe/internal/services/fraud"
	"kalpe/internal/services/ledger"
	"kalpe/internal/services/reconciliation"
	"kalpe/internal/services/transaction"
	"kalpe/internal/services/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc     *Service
	store   *repositories.MemoryStore
	wallets wallet.Service
	engine  *transaction.Engine
	ledger  *ledger.Recorder
	rules   *fraud.RuleService
	events  *events.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()
	store := repositories.NewMemoryStore(10 * time.Second)
	wallets := wallet.NewService(store, cache.NoopCache{}, wallet.WalletConfig{Location: time.UTC}, metrics.NoopCollector{}, log)
	rec := ledger.NewRecorder(store, log)
	engine := transaction.NewEngine(transaction.EngineConfig{
		Store:   store,
		Wallets: wallets,
		Ledger:  rec,
		Log:     log,
	})
	rules := fraud.NewRuleService(store, cache.NoopCache{}, metrics.NoopCollector{}, log)
	publisher := &events.Recorder{}

	svc := NewService(Config{
		Store:     store,
		Wallets:   wallets,
		Engine:    engine,
		Ledger:    rec,
		Scorer:    fraud.NewScorer(store, rules, engine, metrics.NoopCollector{}, log),
		Auditor:   reconciliation.NewAuditor(store, time.UTC, metrics.NoopCollector{}, log),
		Publisher: publisher,
		Log:       log,
	})
	return &testEnv{
		svc:     svc,
		store:   store,
		wallets: wallets,
		engine:  engine,
		ledger:  rec,
		rules:   rules,
		events:  publisher,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (env *testEnv) fund(t *testing.T, account, amount string) {
	t.Helper()
	_, err := env.svc.Deposit(context.Background(), account, dec(amount), "top up", "")
	require.NoError(t, err)
}

func (env *testEnv) balance(t *testing.T, account string) decimal.Decimal {
	t.Helper()
	summary, err := env.svc.BalanceSummary(context.Background(), account)
	require.NoError(t, err)
	return summary.Balance
}

func TestService_ScenarioA_DebitEmptyWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.wallets.CreateWallet(ctx, "alice", "")
	require.NoError(t, err)

	txn, err := env.svc.Withdraw(ctx, "alice", dec("100"), decimal.Zero, "cash out", "")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
	require.NotNil(t, txn)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)
	assert.True(t, env.balance(t, "alice").IsZero())
	assert.Contains(t, env.events.Kinds(), events.TransactionFailed)
}

func TestService_ScenarioB_Transfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "5000")

	txn, err := env.svc.Transfer(ctx, "alice", "bob", dec("1000"), "rent")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.True(t, env.balance(t, "alice").Equal(dec("4000")))
	assert.True(t, env.balance(t, "bob").Equal(dec("1000")))

	entries, err := env.ledger.EntriesForTransaction(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	alice, err := env.wallets.GetByAccount(ctx, "alice")
	require.NoError(t, err)
	bob, err := env.wallets.GetByAccount(ctx, "bob")
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.Amount.Equal(dec("1000")))
		switch e.EntryType {
		case models.EntryTypeDebit:
			assert.Equal(t, alice.ID, e.WalletID)
		case models.EntryTypeCredit:
			assert.Equal(t, bob.ID, e.WalletID)
		}
	}

	assert.Equal(t, events.TransactionCompleted, env.events.Kinds()[len(env.events.Kinds())-1])
}

func TestService_ScenarioC_FirstLargeRoundTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "200000")

	txn, err := env.svc.Transfer(ctx, "alice", "bob", dec("150000"), "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, txn.FraudScore, 15)

	stored, err := env.svc.Transaction(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, txn.FraudScore, stored.FraudScore)
}

func TestService_ScenarioD_Velocity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "100000")

	var last *models.Transaction
	for i := 0; i < 6; i++ {
		txn, err := env.svc.Transfer(ctx, "alice", "bob", dec("1000"), "")
		require.NoError(t, err)
		last = txn
	}
	assert.GreaterOrEqual(t, last.FraudScore, 15)
	assert.True(t, env.balance(t, "alice").Equal(dec("94000")))
}

func TestService_ScenarioE_ReconcilePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, err := env.wallets.CreateWallet(ctx, "alice", "")
	require.NoError(t, err)

	txn := &models.Transaction{Type: models.TransactionTypeDeposit, ReceiverWalletID: &w.ID, Amount: dec("10")}
	require.NoError(t, env.engine.Create(ctx, txn))

	ok, err := env.svc.Reconcile(ctx, txn.Reference, "auditor")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := env.svc.Transaction(ctx, txn.Reference)
	require.NoError(t, err)
	assert.False(t, stored.IsReconciled)
}

func TestService_ConcurrentTransfers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "500")
	_, err := env.wallets.CreateWallet(ctx, "bob", "")
	require.NoError(t, err)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
		other        []error
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Transfer(ctx, "alice", "bob", dec("10"), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperrors.Is(err, apperrors.ErrInsufficientFunds):
				insufficient++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 50, succeeded)
	assert.Equal(t, 50, insufficient)
	assert.True(t, env.balance(t, "alice").IsZero())
	assert.True(t, env.balance(t, "bob").Equal(dec("500")))
}

func TestService_FraudBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "400000")

	threshold := dec("200000")
	require.NoError(t, env.rules.Create(ctx, &models.FraudRule{
		Name:            "large",
		RuleType:        models.FraudRuleAmountThreshold,
		IsActive:        true,
		AmountThreshold: &threshold,
		FraudScore:      25,
	}))

	// first transaction +10, round amount +5, new receiver +15, rule +25
	txn, err := env.svc.Transfer(ctx, "alice", "bob", dec("300000"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFraudBlocked)
	de, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Len(t, de.Reasons, 4)

	assert.Equal(t, models.TransactionStatusCancelled, txn.Status)
	assert.True(t, txn.IsFlagged)
	assert.Equal(t, 55, txn.FraudScore)
	assert.Contains(t, txn.FlaggedReason, "High fraud score (55)")
	assert.True(t, env.balance(t, "alice").Equal(dec("400000")))

	kinds := env.events.Kinds()
	assert.Contains(t, kinds, events.TransactionFlagged)
	assert.Contains(t, kinds, events.TransactionCancelled)
	assert.NotContains(t, kinds[1:], events.TransactionCompleted)
}

func TestService_FraudReviewProceeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "200000")

	// first transaction +10, round amount +5, new receiver +15
	txn, err := env.svc.Transfer(ctx, "alice", "bob", dec("150000"), "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, 30, txn.FraudScore)
	assert.True(t, txn.IsFlagged)
	assert.Contains(t, txn.FlaggedReason, "Medium fraud score (30)")

	approved, err := env.svc.ApproveReview(ctx, txn.Reference, "reviewer")
	require.NoError(t, err)
	assert.False(t, approved.IsFlagged)
	assert.Equal(t, models.TransactionStatusCompleted, approved.Status)
}

func TestService_AutoBlockRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "1000")

	threshold := dec("500")
	require.NoError(t, env.rules.Create(ctx, &models.FraudRule{
		Name:            "stop",
		RuleType:        models.FraudRuleAmountThreshold,
		IsActive:        true,
		AmountThreshold: &threshold,
		AutoBlock:       true,
	}))

	txn, err := env.svc.Payment(ctx, PaymentRequest{
		SenderAccountID:   "alice",
		ReceiverAccountID: "clinic",
		Type:              models.TransactionTypeHealthcare,
		Amount:            dec("600"),
		Fee:               dec("5"),
	})
	assert.ErrorIs(t, err, apperrors.ErrFraudBlocked)
	assert.Equal(t, models.TransactionStatusCancelled, txn.Status)
	assert.Equal(t, "Auto-blocked by rule: stop", txn.FailureReason)
	assert.True(t, env.balance(t, "alice").Equal(dec("1000")))
}

func TestService_HighValueDepositIsFlagged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, err := env.svc.Deposit(ctx, "alice", dec("1000000"), "salary", "BANK-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.True(t, txn.IsFlagged)
	assert.Equal(t, "High-value transaction: 1000000.00 XOF", txn.FlaggedReason)
	assert.Equal(t, "BANK-1", txn.ExternalReference)
	assert.Equal(t, []events.Kind{events.TransactionFlagged, events.TransactionCompleted}, env.events.Kinds())
}

func TestService_Payment(t *testing.T) {
	tests := []struct {
		name         string
		typ          models.TransactionType
		amount       string
		fee          string
		wantErr      error
		wantSender   string
		wantReceiver string
	}{
		{name: "generic payment", amount: "100", fee: "2", wantSender: "898", wantReceiver: "100"},
		{name: "pharmacy", typ: models.TransactionTypePharmacy, amount: "250.50", fee: "0", wantSender: "749.50", wantReceiver: "250.50"},
		{name: "transfer type rejected", typ: models.TransactionTypeTransfer, amount: "100", wantErr: ErrInvalidPaymentType},
		{name: "negative fee", amount: "100", fee: "-1", wantErr: ErrInvalidFee},
		{name: "over balance with fee", amount: "999", fee: "2", wantErr: apperrors.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.fund(t, "patient", "1000")
			fee := decimal.Zero
			if tt.fee != "" {
				fee = dec(tt.fee)
			}

			txn, err := env.svc.Payment(context.Background(), PaymentRequest{
				SenderAccountID:   "patient",
				ReceiverAccountID: "pharmacy",
				Type:              tt.typ,
				Amount:            dec(tt.amount),
				Fee:               fee,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, env.balance(t, "patient").Equal(dec("1000")))
				return
			}
			require.NoError(t, err)
			assert.True(t, txn.Type.IsPayment())
			assert.True(t, env.balance(t, "patient").Equal(dec(tt.wantSender)))
			assert.True(t, env.balance(t, "pharmacy").Equal(dec(tt.wantReceiver)))
		})
	}
}

func TestService_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Transfer(ctx, "alice", "alice", dec("10"), "")
	assert.ErrorIs(t, err, ErrSelfTransfer)

	_, err = env.svc.Transfer(ctx, "alice", "bob", dec("0"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.svc.Sponsorship(ctx, "", "bob", dec("10"), "")
	assert.ErrorIs(t, err, ErrAccountRequired)

	// Validation happens before any wallet is created.
	_, err = env.wallets.GetByAccount(ctx, "alice")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_SponsorshipAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "sponsor", "5000")

	_, err := env.svc.Sponsorship(ctx, "sponsor", "patient", dec("1200"), "consultation")
	require.NoError(t, err)
	_, err = env.svc.Transfer(ctx, "patient", "sponsor", dec("200"), "change")
	require.NoError(t, err)
	_, err = env.svc.Transfer(ctx, "sponsor", "patient", dec("9000"), "too much")
	require.Error(t, err)

	h, err := env.svc.History(ctx, "sponsor", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, h.SentCount)
	assert.Equal(t, 2, h.ReceivedCount)
	assert.True(t, h.SentTotal.Equal(dec("1200")))
	assert.True(t, h.ReceivedTotal.Equal(dec("5200")))

	_, err = env.svc.History(ctx, "sponsor", 400)
	assert.ErrorIs(t, err, ErrInvalidHistoryDays)

	entries, err := env.svc.LedgerHistory(ctx, "patient", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestService_CancelAndReverse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "1000")

	txn, err := env.svc.Transfer(ctx, "alice", "bob", dec("300"), "")
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, txn.Reference, "changed my mind")
	assert.ErrorIs(t, err, transaction.ErrNotCancellable)

	refund, err := env.svc.Reverse(ctx, txn.Reference, "disputed")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRefund, refund.Type)
	assert.True(t, env.balance(t, "alice").Equal(dec("1000")))
	assert.True(t, env.balance(t, "bob").IsZero())

	original, err := env.svc.Transaction(ctx, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusReversed, original.Status)
	assert.Contains(t, env.events.Kinds(), events.TransactionReversed)

	_, err = env.svc.Reverse(ctx, "TXN-UNKNOWN", "x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_LockedWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "1000")
	_, err := env.wallets.CreateWallet(ctx, "bob", "")
	require.NoError(t, err)

	locked, err := env.svc.LockWallet(ctx, "bob", "kyc review", "admin")
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)

	txn, err := env.svc.Transfer(ctx, "alice", "bob", dec("100"), "")
	assert.ErrorIs(t, err, apperrors.ErrWalletUnavailable)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)
	assert.True(t, env.balance(t, "alice").Equal(dec("1000")))

	_, err = env.svc.UnlockWallet(ctx, "bob")
	require.NoError(t, err)
	_, err = env.svc.Transfer(ctx, "alice", "bob", dec("100"), "")
	require.NoError(t, err)

	kinds := env.events.Kinds()
	assert.Contains(t, kinds, events.WalletLocked)
	assert.Contains(t, kinds, events.WalletUnlocked)
}

func TestService_DailyStatsAndReconcileDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "alice", "1000")
	_, err := env.svc.Payment(ctx, PaymentRequest{SenderAccountID: "alice", ReceiverAccountID: "clinic", Amount: dec("100"), Fee: dec("3")})
	require.NoError(t, err)
	_, err = env.svc.Transfer(ctx, "alice", "bob", dec("5000"), "")
	require.Error(t, err)

	stats, err := env.svc.DailyStats(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus[models.TransactionStatusCompleted])
	assert.Equal(t, int64(1), stats.ByStatus[models.TransactionStatusFailed])
	assert.True(t, stats.Volume.Equal(dec("1100")))
	assert.True(t, stats.Fees.Equal(dec("3")))

	result, err := env.svc.ReconcileDay(ctx, time.Now(), "nightly")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Reconciled)
}

func TestWithdrawalFee(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"1000", "100"},
		{"25000", "250"},
		{"123456.78", "1234.57"},
		{"900000", "5000"},
	}
	for _, tt := range tests {
		assert.True(t, WithdrawalFee(dec(tt.amount)).Equal(dec(tt.want)), "fee for %s", tt.amount)
	}
}

func TestParsePaymentType(t *testing.T) {
	tests := []struct {
		name string
		want models.TransactionType
	}{
		{name: "", want: models.TransactionTypePayment},
		{name: "payment", want: models.TransactionTypePayment},
		{name: "healthcare", want: "HEALTHCARE_PAYMENT"},
		{name: "healthcare_payment", want: "HEALTHCARE_PAYMENT"},
		{name: " Pharmacy ", want: "PHARMACY_PAYMENT"},
		{name: "PHARMACY_PAYMENT", want: "PHARMACY_PAYMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := ParsePaymentType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, typ)
			assert.True(t, typ.Valid())
		})
	}

	_, err := ParsePaymentType("gift")
	assert.ErrorIs(t, err, ErrInvalidPaymentType)
}
