// Package transaction drives transactions through their lifecycle and moves
// money between wallets.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"
	"kalpe/internal/services/ledger"
	"kalpe/internal/services/wallet"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Engine creates, executes, cancels and reverses transactions.
type Engine struct {
	store      repositories.Store
	wallets    wallet.Service
	ledger     *ledger.Recorder
	references *ReferenceGenerator
	metrics    metrics.Collector
	log        logrus.FieldLogger
	currency   string
	now        func() time.Time
}

func NewEngine(config EngineConfig) *Engine {
	if config.Store == nil {
		panic("store is required")
	}
	if config.Wallets == nil {
		panic("wallet service is required")
	}
	if config.Ledger == nil {
		panic("ledger recorder is required")
	}
	if config.Log == nil {
		panic("logger is required")
	}
	if config.References == nil {
		config.References = NewReferenceGenerator()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoopCollector{}
	}
	if config.Currency == "" {
		config.Currency = DefaultCurrency
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Engine{
		store:      config.Store,
		wallets:    config.Wallets,
		ledger:     config.Ledger,
		references: config.References,
		metrics:    config.Metrics,
		log:        config.Log.WithField("component", "transaction_engine"),
		currency:   config.Currency,
		now:        config.Clock,
	}
}

// GenerateReference returns a fresh transaction reference.
func (e *Engine) GenerateReference() string {
	return e.references.Next()
}

// Create validates txn, fills in its defaults and stores it as PENDING.
func (e *Engine) Create(ctx context.Context, txn *models.Transaction) error {
	if !txn.Type.Valid() {
		return apperrors.WithCause(apperrors.CodeValidation, ErrInvalidType)
	}
	if !txn.Amount.IsPositive() || !txn.Amount.Equal(txn.Amount.Round(2)) {
		return apperrors.WithCause(apperrors.CodeValidation, ErrInvalidAmount)
	}
	if txn.Fee.IsNegative() || !txn.Fee.Equal(txn.Fee.Round(2)) {
		return apperrors.WithCause(apperrors.CodeValidation, ErrInvalidFee)
	}
	if !txn.Fee.IsZero() && !txn.Type.CarriesFee() {
		return apperrors.WithCause(apperrors.CodeValidation, ErrFeeNotAllowed)
	}

	if txn.ID == "" {
		txn.ID = models.NewID()
	}
	if txn.Reference == "" {
		txn.Reference = e.GenerateReference()
	}
	if txn.Currency == "" {
		txn.Currency = e.currency
	}
	txn.Status = models.TransactionStatusPending

	if err := e.store.Transactions().Create(ctx, txn); err != nil {
		if errors.Is(err, repositories.ErrDuplicateReference) {
			return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrDuplicateReference)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"reference": txn.Reference,
		"type":      txn.Type,
		"amount":    txn.Amount.StringFixed(2),
	}).Debug("transaction created")
	return nil
}

func (e *Engine) Get(ctx context.Context, id string) (*models.Transaction, error) {
	txn, err := e.store.Transactions().GetByID(ctx, id)
	return txn, lookupError(err)
}

func (e *Engine) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	txn, err := e.store.Transactions().GetByReference(ctx, reference)
	return txn, lookupError(err)
}

// Execute moves the money described by a PENDING transaction.
//
// PROCESSING is committed first. The balance mutations, ledger entries and
// the COMPLETED status then commit together in one unit of work. If that
// unit fails nothing it wrote survives; the transaction is marked FAILED
// with the reason and the error is returned. When even the FAILED write
// fails, the transaction stays PROCESSING until RecoverStale picks it up.
func (e *Engine) Execute(ctx context.Context, txn *models.Transaction) (err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordOperationDuration(OperationExecute, time.Since(start))
		e.recordResult(OperationExecute, err)
	}()

	if txn.Status != models.TransactionStatusPending {
		return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrNotPending)
	}

	processing := txn.Clone()
	processing.Status = models.TransactionStatusProcessing
	if err := e.store.Transactions().Update(ctx, processing, models.TransactionStatusPending, repositories.StatusColumns...); err != nil {
		if errors.Is(err, repositories.ErrStaleTransaction) {
			return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrNotPending)
		}
		return fmt.Errorf("failed to mark transaction processing: %w", err)
	}
	*txn = *processing

	var completed *models.Transaction
	err = e.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		if err := e.apply(ctx, tx, txn); err != nil {
			return err
		}
		if _, err := e.ledger.WithTx(tx).RecordForTransaction(ctx, txn); err != nil {
			return err
		}

		done := txn.Clone()
		if err := done.TransitionTo(models.TransactionStatusCompleted); err != nil {
			return err
		}
		completedAt := e.now().UTC()
		done.CompletedAt = &completedAt
		if err := tx.Transactions().Update(ctx, done, models.TransactionStatusProcessing, repositories.StatusColumns...); err != nil {
			if errors.Is(err, repositories.ErrStaleTransaction) {
				return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrConcurrentUpdate)
			}
			return err
		}
		completed = done
		return nil
	})
	if err != nil {
		err = apperrors.Wrap(err, "transaction %s failed", txn.Reference)
		if apperrors.IsRetryable(err) {
			e.metrics.RecordLockTimeout()
		}
		e.markFailed(ctx, txn, err)
		return err
	}

	*txn = *completed
	vol, _ := txn.Amount.Float64()
	e.metrics.RecordTransactionVolume(string(txn.Type), vol)
	e.log.WithFields(logrus.Fields{
		"reference": txn.Reference,
		"type":      txn.Type,
		"amount":    txn.Amount.StringFixed(2),
		"fee":       txn.Fee.StringFixed(2),
	}).Info("transaction completed")
	return nil
}

// apply performs the balance mutations for txn's type. The sender is
// always debited amount plus fee.
func (e *Engine) apply(ctx context.Context, tx repositories.Store, txn *models.Transaction) error {
	hasSender := txn.SenderWalletID != nil && *txn.SenderWalletID != ""
	hasReceiver := txn.ReceiverWalletID != nil && *txn.ReceiverWalletID != ""

	var checkLimits bool
	switch {
	case txn.Type == models.TransactionTypeDeposit:
		if !hasReceiver {
			return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrReceiverRequired)
		}
	case txn.Type == models.TransactionTypeWithdrawal:
		if !hasSender {
			return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrSenderRequired)
		}
	case txn.Type == models.TransactionTypeTransfer,
		txn.Type == models.TransactionTypeSponsorship,
		txn.Type.IsPayment():
		checkLimits = true
		fallthrough
	case txn.Type == models.TransactionTypeRefund:
		if !hasSender || !hasReceiver {
			return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrBothWalletsRequired)
		}
		if *txn.SenderWalletID == *txn.ReceiverWalletID {
			return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrSameWallet)
		}
	default:
		return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrInvalidType)
	}

	if err := e.lockWallets(ctx, tx, txn); err != nil {
		return err
	}

	wallets := e.wallets.WithTx(tx)
	debit := txn.TotalDebit()
	if hasSender {
		if checkLimits {
			if err := wallets.CheckSend(ctx, *txn.SenderWalletID, debit); err != nil {
				return err
			}
		}
		if _, err := wallets.Debit(ctx, *txn.SenderWalletID, debit); err != nil {
			return err
		}
	}
	if hasReceiver {
		if _, err := wallets.Credit(ctx, *txn.ReceiverWalletID, txn.Amount); err != nil {
			return err
		}
	}
	return nil
}

// lockWallets takes every row lock the transaction needs, in ascending id
// order, before any balance is read.
func (e *Engine) lockWallets(ctx context.Context, tx repositories.Store, txn *models.Transaction) error {
	err := tx.Wallets().LockForUpdate(ctx, txn.WalletIDs()...)
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrWalletNotFound) {
		return apperrors.WithCause(apperrors.CodeTransactionFailed, err)
	}
	return err
}

// markFailed persists FAILED outside the rolled-back unit of work.
func (e *Engine) markFailed(ctx context.Context, txn *models.Transaction, cause error) {
	failed := txn.Clone()
	failedAt := e.now().UTC()
	failed.Status = models.TransactionStatusFailed
	failed.FailedAt = &failedAt
	failed.FailureReason = cause.Error()

	fields := logrus.Fields{
		"reference": txn.Reference,
		"type":      txn.Type,
		"code":      apperrors.CodeOf(cause),
		"reason":    cause.Error(),
	}
	if err := e.store.Transactions().Update(context.WithoutCancel(ctx), failed, models.TransactionStatusProcessing, repositories.StatusColumns...); err != nil {
		e.log.WithFields(fields).WithError(err).Error("failed to persist FAILED status; transaction left in PROCESSING")
		return
	}
	*txn = *failed
	e.log.WithFields(fields).Warn("transaction failed")
}

// Cancel moves a PENDING or PROCESSING transaction to CANCELLED. Balances
// are not touched.
func (e *Engine) Cancel(ctx context.Context, txn *models.Transaction, reason string) (err error) {
	defer func() { e.recordResult(OperationCancel, err) }()

	if !models.CanTransition(txn.Status, models.TransactionStatusCancelled) {
		return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrNotCancellable)
	}

	from := txn.Status
	cancelled := txn.Clone()
	cancelledAt := e.now().UTC()
	cancelled.Status = models.TransactionStatusCancelled
	cancelled.FailureReason = reason
	cancelled.FailedAt = &cancelledAt
	if err := e.store.Transactions().Update(ctx, cancelled, from, repositories.StatusColumns...); err != nil {
		if errors.Is(err, repositories.ErrStaleTransaction) {
			return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrConcurrentUpdate)
		}
		return fmt.Errorf("failed to cancel transaction: %w", err)
	}
	*txn = *cancelled

	e.log.WithFields(logrus.Fields{
		"reference": txn.Reference,
		"reason":    reason,
	}).Info("transaction cancelled")
	return nil
}

// Reverse refunds a COMPLETED transaction through a new REFUND transaction
// in the opposite direction, then marks the original REVERSED. The fee is
// not refunded. The reversal is returned even when its execution fails.
func (e *Engine) Reverse(ctx context.Context, original *models.Transaction, reason string) (reversal *models.Transaction, err error) {
	defer func() { e.recordResult(OperationReverse, err) }()

	if original.Status != models.TransactionStatusCompleted {
		return nil, apperrors.WithCause(apperrors.CodeTransactionFailed, ErrNotCompleted)
	}

	reversal = &models.Transaction{
		Type:             models.TransactionTypeRefund,
		SenderWalletID:   original.ReceiverWalletID,
		ReceiverWalletID: original.SenderWalletID,
		Amount:           original.Amount,
		Fee:              decimal.Zero,
		Currency:         original.Currency,
		Description:      fmt.Sprintf("Reversal of %s: %s", original.Reference, reason),
		InitiatedBy:      original.InitiatedBy,
		Metadata: models.Metadata{
			"original_transaction": original.ID,
			"original_reference":   original.Reference,
			"reversal_reason":      reason,
		},
	}
	if err := e.Create(ctx, reversal); err != nil {
		return nil, err
	}
	if err := e.Execute(ctx, reversal); err != nil {
		return reversal, err
	}

	reversed := original.Clone()
	reversed.Status = models.TransactionStatusReversed
	reversed.Metadata = reversed.Metadata.With("reversed_by", reversal.Reference)
	if err := e.store.Transactions().Update(ctx, reversed, models.TransactionStatusCompleted, repositories.StatusColumns...); err != nil {
		e.log.WithFields(logrus.Fields{
			"reference": original.Reference,
			"reversal":  reversal.Reference,
		}).WithError(err).Error("reversal executed but original could not be marked REVERSED")
		if errors.Is(err, repositories.ErrStaleTransaction) {
			return reversal, apperrors.WithCause(apperrors.CodeTransactionFailed, ErrConcurrentUpdate)
		}
		return reversal, fmt.Errorf("failed to mark transaction reversed: %w", err)
	}
	*original = *reversed

	e.log.WithFields(logrus.Fields{
		"reference": original.Reference,
		"reversal":  reversal.Reference,
		"reason":    reason,
	}).Info("transaction reversed")
	return reversal, nil
}

// FlagForReview marks txn for manual review. Status is untouched.
func (e *Engine) FlagForReview(ctx context.Context, txn *models.Transaction, reason string) error {
	return e.annotate(ctx, txn, repositories.FlagColumns, func(t *models.Transaction) {
		t.IsFlagged = true
		t.FlaggedReason = reason
	})
}

// ApproveReview clears the flag and records the reviewer.
func (e *Engine) ApproveReview(ctx context.Context, txn *models.Transaction, reviewer string) error {
	return e.annotate(ctx, txn, repositories.ReviewColumns, func(t *models.Transaction) {
		reviewedAt := e.now().UTC()
		t.IsFlagged = false
		t.ReviewedAt = &reviewedAt
		t.ReviewedBy = &reviewer
	})
}

// SetFraudScore stores the score assigned by fraud screening.
func (e *Engine) SetFraudScore(ctx context.Context, txn *models.Transaction, score int) error {
	return e.annotate(ctx, txn, repositories.ScoreColumns, func(t *models.Transaction) {
		t.FraudScore = score
	})
}

// annotate writes the non-status columns set by apply. It retries once if
// the status moved underneath it, since the annotation does not depend on
// the status.
func (e *Engine) annotate(ctx context.Context, txn *models.Transaction, columns []string, apply func(*models.Transaction)) error {
	for attempt := 0; attempt < 2; attempt++ {
		next := txn.Clone()
		apply(next)
		err := e.store.Transactions().Update(ctx, next, txn.Status, columns...)
		if err == nil {
			*txn = *next
			return nil
		}
		if !errors.Is(err, repositories.ErrStaleTransaction) {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		fresh, getErr := e.store.Transactions().GetByID(ctx, txn.ID)
		if getErr != nil {
			return lookupError(getErr)
		}
		*txn = *fresh
	}
	return apperrors.WithCause(apperrors.CodeTransactionFailed, ErrConcurrentUpdate)
}

// RecoverStale fails transactions that have been PROCESSING for longer than
// olderThan. A crash between the PROCESSING write and the end of execution
// leaves such transactions behind; their money unit of work never
// committed, so FAILED is the accurate outcome.
func (e *Engine) RecoverStale(ctx context.Context, olderThan time.Duration) (*RecoveryResult, error) {
	if olderThan <= 0 {
		olderThan = DefaultStaleAge
	}
	cutoff := e.now().Add(-olderThan)
	stale, err := e.store.Transactions().FindStaleProcessing(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &RecoveryResult{Scanned: len(stale)}
	for _, txn := range stale {
		failed := txn.Clone()
		failedAt := e.now().UTC()
		failed.Status = models.TransactionStatusFailed
		failed.FailedAt = &failedAt
		failed.FailureReason = staleFailureText
		if err := e.store.Transactions().Update(ctx, failed, models.TransactionStatusProcessing, repositories.StatusColumns...); err != nil {
			result.Skipped = append(result.Skipped, txn.Reference)
			e.log.WithField("reference", txn.Reference).WithError(err).Warn("stale transaction not recovered")
			continue
		}
		result.Recovered++
	}

	e.metrics.RecordOperationResult(OperationRecover, "success")
	if result.Scanned > 0 {
		e.log.WithFields(logrus.Fields{
			"scanned":   result.Scanned,
			"recovered": result.Recovered,
		}).Warn("stale PROCESSING transactions swept")
	}
	return result, nil
}

func (e *Engine) recordResult(op string, err error) {
	if err == nil {
		e.metrics.RecordOperationResult(op, "success")
		return
	}
	code := string(apperrors.CodeOf(err))
	e.metrics.RecordOperationResult(op, code)
	e.metrics.RecordError(op, code)
}

func lookupError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrTransactionNotFound) {
		return apperrors.WithCause(apperrors.CodeNotFound, ErrTransactionNotFound)
	}
	return fmt.Errorf("failed to get transaction: %w", err)
}
