// Package orchestrator is the entry point for wallet operations. It
// resolves accounts to wallets, screens transactions for fraud, drives the
// transaction engine and publishes the resulting events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/events"
	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"
	"kalpe/internal/services/fraud"
	"kalpe/internal/services/ledger"
	"kalpe/internal/services/reconciliation"
	"kalpe/internal/services/transaction"
	"kalpe/internal/services/wallet"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store     repositories.Store
	wallets   wallet.Service
	engine    *transaction.Engine
	ledger    *ledger.Recorder
	scorer    *fraud.Scorer
	auditor   *reconciliation.Auditor
	publisher events.Publisher
	metrics   metrics.Collector
	log       logrus.FieldLogger
	location  *time.Location
	now       func() time.Time
}

func NewService(config Config) *Service {
	switch {
	case config.Store == nil:
		panic("store is required")
	case config.Wallets == nil:
		panic("wallet service is required")
	case config.Engine == nil:
		panic("transaction engine is required")
	case config.Ledger == nil:
		panic("ledger recorder is required")
	case config.Scorer == nil:
		panic("fraud scorer is required")
	case config.Auditor == nil:
		panic("auditor is required")
	case config.Publisher == nil:
		panic("event publisher is required")
	case config.Log == nil:
		panic("logger is required")
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoopCollector{}
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Service{
		store:     config.Store,
		wallets:   config.Wallets,
		engine:    config.Engine,
		ledger:    config.Ledger,
		scorer:    config.Scorer,
		auditor:   config.Auditor,
		publisher: config.Publisher,
		metrics:   config.Metrics,
		log:       config.Log.WithField("component", "orchestrator"),
		location:  config.Location,
		now:       config.Clock,
	}
}

// Transfer moves amount from one account holder to another.
func (s *Service) Transfer(ctx context.Context, senderAccountID, receiverAccountID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return s.send(ctx, models.TransactionTypeTransfer, PaymentRequest{
		SenderAccountID:   senderAccountID,
		ReceiverAccountID: receiverAccountID,
		Amount:            amount,
		Fee:               decimal.Zero,
		Description:       description,
	})
}

// Payment pays a provider. The fee is retained by the platform: the sender
// is debited amount plus fee and the receiver credited amount.
func (s *Service) Payment(ctx context.Context, req PaymentRequest) (*models.Transaction, error) {
	if req.Type == "" {
		req.Type = models.TransactionTypePayment
	}
	if !req.Type.IsPayment() {
		return nil, apperrors.WithCause(apperrors.CodeValidation, ErrInvalidPaymentType)
	}
	return s.send(ctx, req.Type, req)
}

// Sponsorship funds a beneficiary's wallet from a sponsor's.
func (s *Service) Sponsorship(ctx context.Context, sponsorAccountID, beneficiaryAccountID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return s.send(ctx, models.TransactionTypeSponsorship, PaymentRequest{
		SenderAccountID:   sponsorAccountID,
		ReceiverAccountID: beneficiaryAccountID,
		Amount:            amount,
		Fee:               decimal.Zero,
		Description:       description,
	})
}

// Deposit credits an account from an external source.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, description, externalRef string) (*models.Transaction, error) {
	if err := validateMoney(amount, decimal.Zero); err != nil {
		return nil, err
	}
	if accountID == "" {
		return nil, apperrors.WithCause(apperrors.CodeValidation, ErrAccountRequired)
	}

	receiver, err := s.wallets.GetOrCreate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	txn := &models.Transaction{
		Type:              models.TransactionTypeDeposit,
		ReceiverWalletID:  &receiver.ID,
		Amount:            amount,
		Fee:               decimal.Zero,
		Currency:          receiver.Currency,
		Description:       description,
		ExternalReference: externalRef,
		InitiatedBy:       &accountID,
	}
	return s.run(ctx, txn, false, accountID)
}

// Withdraw pays amount out of an account to an external destination. The
// sender is debited amount plus fee.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount, fee decimal.Decimal, description, externalRef string) (*models.Transaction, error) {
	if err := validateMoney(amount, fee); err != nil {
		return nil, err
	}
	if accountID == "" {
		return nil, apperrors.WithCause(apperrors.CodeValidation, ErrAccountRequired)
	}

	sender, err := s.wallets.GetOrCreate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	txn := &models.Transaction{
		Type:              models.TransactionTypeWithdrawal,
		SenderWalletID:    &sender.ID,
		Amount:            amount,
		Fee:               fee,
		Currency:          sender.Currency,
		Description:       description,
		ExternalReference: externalRef,
		InitiatedBy:       &accountID,
	}
	return s.run(ctx, txn, true, accountID)
}

// send covers every type that moves money between two account holders.
func (s *Service) send(ctx context.Context, typ models.TransactionType, req PaymentRequest) (*models.Transaction, error) {
	if err := validateMoney(req.Amount, req.Fee); err != nil {
		return nil, err
	}
	if req.SenderAccountID == "" || req.ReceiverAccountID == "" {
		return nil, apperrors.WithCause(apperrors.CodeValidation, ErrAccountRequired)
	}
	if req.SenderAccountID == req.ReceiverAccountID {
		return nil, apperrors.WithCause(apperrors.CodeValidation, ErrSelfTransfer)
	}

	sender, err := s.wallets.GetOrCreate(ctx, req.SenderAccountID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.wallets.GetOrCreate(ctx, req.ReceiverAccountID)
	if err != nil {
		return nil, err
	}

	initiator := req.SenderAccountID
	txn := &models.Transaction{
		Type:              typ,
		SenderWalletID:    &sender.ID,
		ReceiverWalletID:  &receiver.ID,
		Amount:            req.Amount,
		Fee:               req.Fee,
		Currency:          sender.Currency,
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
		Metadata:          req.Metadata.Clone(),
		InitiatedBy:       &initiator,
	}
	return s.run(ctx, txn, true, req.SenderAccountID, req.ReceiverAccountID)
}

// run creates txn, screens it when asked to, and executes it. accounts are
// the holders whose cached summaries change when it completes.
func (s *Service) run(ctx context.Context, txn *models.Transaction, screen bool, accounts ...string) (*models.Transaction, error) {
	if err := s.engine.Create(ctx, txn); err != nil {
		return nil, err
	}

	if screen {
		if err := s.screen(ctx, txn); err != nil {
			return txn, err
		}
	}
	s.flagHighValue(ctx, txn)

	if err := s.engine.Execute(ctx, txn); err != nil {
		s.publish(ctx, events.ForTransaction(events.TransactionFailed, txn, err.Error()))
		return txn, err
	}

	s.wallets.InvalidateSummary(ctx, accounts...)
	s.publish(ctx, events.ForTransaction(events.TransactionCompleted, txn, ""))
	return txn, nil
}

// screen scores txn and applies the score: review band flags, block band
// flags and cancels.
func (s *Service) screen(ctx context.Context, txn *models.Transaction) error {
	result, err := s.scorer.Score(ctx, txn)
	if err != nil {
		if errors.Is(err, apperrors.ErrFraudBlocked) {
			s.publish(ctx, events.ForTransaction(events.TransactionCancelled, txn, err.Error()))
			return err
		}
		s.cancelQuietly(ctx, txn, "fraud screening unavailable")
		return apperrors.Wrap(err, "fraud screening failed")
	}

	score := fraud.Clamp(result.Score)
	if err := s.engine.SetFraudScore(ctx, txn, score); err != nil {
		return err
	}

	level := fraud.Classify(score)
	if level == fraud.LevelNone {
		return nil
	}
	reason := fraud.FlagReason(level, result)
	if err := s.engine.FlagForReview(ctx, txn, reason); err != nil {
		return err
	}
	s.publish(ctx, events.ForTransaction(events.TransactionFlagged, txn, reason))

	if level == fraud.LevelBlock {
		s.cancelQuietly(ctx, txn, blockedCancelReason)
		s.publish(ctx, events.ForTransaction(events.TransactionCancelled, txn, reason))
		s.log.WithFields(logrus.Fields{
			"reference": txn.Reference,
			"score":     score,
		}).Warn("transaction blocked by fraud screening")
		return apperrors.FraudBlocked("Transaction flagged for fraud review", result.Reasons)
	}
	return nil
}

// flagHighValue flags large transactions that screening left unflagged.
func (s *Service) flagHighValue(ctx context.Context, txn *models.Transaction) {
	if txn.IsFlagged || txn.Amount.LessThan(decimal.NewFromInt(HighValueThreshold)) {
		return
	}
	reason := fmt.Sprintf("High-value transaction: %s XOF", txn.Amount.StringFixed(2))
	if err := s.engine.FlagForReview(ctx, txn, reason); err != nil {
		s.log.WithField("reference", txn.Reference).WithError(err).Warn("failed to flag high-value transaction")
		return
	}
	s.publish(ctx, events.ForTransaction(events.TransactionFlagged, txn, reason))
}

func (s *Service) cancelQuietly(ctx context.Context, txn *models.Transaction, reason string) {
	if err := s.engine.Cancel(ctx, txn, reason); err != nil {
		s.log.WithField("reference", txn.Reference).WithError(err).Error("failed to cancel blocked transaction")
	}
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	s.publisher.Publish(ctx, evt)
}

// accountsOf returns the account ids of the wallets txn touches.
func (s *Service) accountsOf(ctx context.Context, txn *models.Transaction) []string {
	var accounts []string
	for _, id := range txn.WalletIDs() {
		w, err := s.wallets.GetWallet(ctx, id)
		if err != nil {
			continue
		}
		accounts = append(accounts, w.AccountID)
	}
	return accounts
}

func validateMoney(amount, fee decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return apperrors.WithCause(apperrors.CodeValidation, ErrInvalidAmount)
	}
	if fee.IsNegative() || !fee.Equal(fee.Round(2)) {
		return apperrors.WithCause(apperrors.CodeValidation, ErrInvalidFee)
	}
	return nil
}

// WithdrawalFee is the default withdrawal fee: 1% of amount, at least 100
// and at most 5000 XOF.
func WithdrawalFee(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(decimal.RequireFromString(withdrawalFeeRate)).Round(2)
	if floor := decimal.NewFromInt(withdrawalFeeMin); fee.LessThan(floor) {
		fee = floor
	}
	if ceiling := decimal.NewFromInt(withdrawalFeeMax); fee.GreaterThan(ceiling) {
		fee = ceiling
	}
	return fee
}

// ParsePaymentType maps client-facing payment type names to transaction
// types. An empty name is a generic payment.
func ParsePaymentType(name string) (models.TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "PAYMENT":
		return models.TransactionTypePayment, nil
	case "HEALTHCARE", "HEALTHCARE_PAYMENT":
		return models.TransactionTypeHealthcare, nil
	case "PHARMACY", "PHARMACY_PAYMENT":
		return models.TransactionTypePharmacy, nil
	}
	return "", apperrors.WithCause(apperrors.CodeValidation, ErrInvalidPaymentType)
}
