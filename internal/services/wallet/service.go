package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type service struct {
	store   repositories.Store
	cache   SummaryCache
	config  WalletConfig
	metrics metrics.Collector
	log     logrus.FieldLogger
}

// NewService creates a new wallet service
func NewService(
	store repositories.Store,
	cache SummaryCache,
	config WalletConfig,
	collector metrics.Collector,
	log logrus.FieldLogger,
) Service {
	if store == nil {
		panic("store is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if log == nil {
		panic("logger is required")
	}

	if config.Currency == "" {
		config.Currency = DefaultCurrency
	}
	if config.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		config.Location = loc
	}
	if !config.DailyLimit.IsPositive() {
		config.DailyLimit = decimal.NewFromInt(DefaultDailyLimit)
	}
	if !config.MonthlyLimit.IsPositive() {
		config.MonthlyLimit = decimal.NewFromInt(DefaultMonthlyLimit)
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	// Metrics is optional
	if collector == nil {
		collector = metrics.NoopCollector{}
	}

	return &service{
		store:   store,
		cache:   cache,
		config:  config,
		metrics: collector,
		log:     log.WithField("component", "wallet"),
	}
}

func (s *service) WithTx(tx repositories.Store) Service {
	cp := *s
	cp.store = tx
	return &cp
}

func (s *service) CreateWallet(ctx context.Context, accountID, currency string) (*models.Wallet, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, apperrors.Validation("account id is required")
	}
	if currency == "" {
		currency = s.config.Currency
	}
	currency = strings.ToUpper(currency)
	if len(currency) != 3 {
		return nil, apperrors.WithCause(apperrors.CodeValidation, ErrInvalidCurrency)
	}

	wallet := &models.Wallet{
		ID:           models.NewID(),
		AccountID:    accountID,
		Balance:      decimal.Zero,
		Currency:     currency,
		IsActive:     true,
		DailyLimit:   s.config.DailyLimit,
		MonthlyLimit: s.config.MonthlyLimit,
	}
	if err := s.store.Wallets().Create(ctx, wallet); err != nil {
		if errors.Is(err, repositories.ErrDuplicateWallet) {
			return nil, apperrors.WithCause(apperrors.CodeValidation, ErrWalletExists)
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"wallet_id":  wallet.ID,
		"account_id": accountID,
	}).Info("wallet created")
	return wallet, nil
}

func (s *service) GetOrCreate(ctx context.Context, accountID string) (*models.Wallet, error) {
	wallet, err := s.GetByAccount(ctx, accountID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	wallet, err = s.CreateWallet(ctx, accountID, "")
	if errors.Is(err, ErrWalletExists) {
		// Lost a creation race; the other caller's wallet is the one.
		return s.GetByAccount(ctx, accountID)
	}
	return wallet, err
}

func (s *service) GetWallet(ctx context.Context, walletID string) (*models.Wallet, error) {
	wallet, err := s.store.Wallets().GetByID(ctx, walletID)
	if err != nil {
		return nil, notFound(err)
	}
	return wallet, nil
}

func (s *service) GetByAccount(ctx context.Context, accountID string) (*models.Wallet, error) {
	wallet, err := s.store.Wallets().GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, notFound(err)
	}
	return wallet, nil
}

// BalanceSummary reads the account's wallet state. It never creates a
// wallet; an unknown account is NOT_FOUND.
func (s *service) BalanceSummary(ctx context.Context, accountID string) (*models.BalanceSummary, error) {
	if summary, found, err := s.cache.GetBalance(ctx, accountID); err == nil && found {
		s.metrics.RecordCacheHit(summaryCacheName)
		return summary, nil
	} else if err != nil {
		s.log.WithError(err).Warn("balance cache read failed")
	}
	s.metrics.RecordCacheMiss(summaryCacheName)

	wallet, err := s.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	daily, err := s.DailySpent(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	monthly, err := s.MonthlySpent(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	summary := &models.BalanceSummary{
		AccountID:        wallet.AccountID,
		WalletID:         wallet.ID,
		Balance:          wallet.Balance,
		Currency:         wallet.Currency,
		DailyLimit:       wallet.DailyLimit,
		DailySpent:       daily,
		DailyRemaining:   wallet.DailyLimit.Sub(daily),
		MonthlyLimit:     wallet.MonthlyLimit,
		MonthlySpent:     monthly,
		MonthlyRemaining: wallet.MonthlyLimit.Sub(monthly),
		IsActive:         wallet.IsActive,
		IsLocked:         wallet.IsLocked,
	}
	if err := s.cache.SetBalance(ctx, summary); err != nil {
		s.log.WithError(err).Warn("balance cache write failed")
	}
	return summary, nil
}

func (s *service) InvalidateSummary(ctx context.Context, accountIDs ...string) {
	if err := s.cache.InvalidateBalances(ctx, accountIDs...); err != nil {
		s.log.WithError(err).WithField("accounts", accountIDs).Warn("balance cache invalidation failed")
	}
}

func notFound(err error) error {
	if errors.Is(err, repositories.ErrWalletNotFound) {
		return apperrors.WithCause(apperrors.CodeNotFound, err)
	}
	return fmt.Errorf("failed to get wallet: %w", err)
}

// availability reports why w cannot take part in money movement, if it can't.
func availability(w *models.Wallet) error {
	if !w.IsActive {
		return apperrors.WithCause(apperrors.CodeWalletUnavailable, ErrWalletInactive)
	}
	if w.IsLocked {
		err := apperrors.WithCause(apperrors.CodeWalletUnavailable, ErrWalletLocked)
		if w.LockedReason != "" {
			err.Message = fmt.Sprintf("%s: %s", ErrWalletLocked, w.LockedReason)
		}
		return err
	}
	return nil
}

// validAmount accepts strictly positive amounts with at most two decimals.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
