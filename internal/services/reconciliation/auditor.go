// Package reconciliation verifies completed transactions against the
// ledger and marks them reconciled.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	OperationReconcile = "reconcile"
	dateLayout         = "2006-01-02"
)

// ErrMismatch marks a transaction that failed verification.
var ErrMismatch = errors.New("verification failed")

var tolerance = decimal.RequireFromString("0.01")

// BatchError describes one transaction that failed reconciliation.
type BatchError struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	Error         string `json:"error"`
}

// BatchResult summarises a day's reconciliation run.
type BatchResult struct {
	Date       string       `json:"date"`
	Total      int          `json:"total"`
	Reconciled int          `json:"reconciled"`
	Failed     int          `json:"failed"`
	Errors     []BatchError `json:"errors"`
}

type Auditor struct {
	store    repositories.Store
	location *time.Location
	metrics  metrics.Collector
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewAuditor(store repositories.Store, location *time.Location, collector metrics.Collector, log logrus.FieldLogger) *Auditor {
	if store == nil {
		panic("store is required")
	}
	if location == nil {
		location = time.UTC
	}
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Auditor{
		store:    store,
		location: location,
		metrics:  collector,
		log:      log.WithField("component", "reconciliation"),
		now:      time.Now,
	}
}

// Reconcile verifies txn and marks it reconciled by actor. It reports false
// when verification fails; an error is returned only when the store does.
func (a *Auditor) Reconcile(ctx context.Context, txn *models.Transaction, actor string) (bool, error) {
	if txn.IsReconciled {
		return true, nil
	}
	err := a.check(ctx, txn, actor)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrMismatch):
		a.log.WithFields(logrus.Fields{
			"reference": txn.Reference,
			"reason":    err.Error(),
		}).Warn("reconciliation check failed")
		return false, nil
	}
	return false, err
}

// check verifies txn and marks it reconciled. Verification failures wrap
// ErrMismatch.
func (a *Auditor) check(ctx context.Context, txn *models.Transaction, actor string) error {
	if err := a.verify(ctx, txn); err != nil {
		if errors.Is(err, ErrMismatch) {
			a.metrics.RecordOperationResult(OperationReconcile, "mismatch")
		}
		return err
	}

	reconciled := txn.Clone()
	reconciledAt := a.now().UTC()
	reconciled.IsReconciled = true
	reconciled.ReconciledAt = &reconciledAt
	reconciled.ReconciledBy = &actor

	err := a.store.Transactions().Update(ctx, reconciled, models.TransactionStatusCompleted, repositories.ReconcileColumns...)
	if errors.Is(err, repositories.ErrStaleTransaction) {
		return fmt.Errorf("%w: transaction changed during reconciliation", ErrMismatch)
	}
	if err != nil {
		return fmt.Errorf("failed to mark transaction reconciled: %w", err)
	}
	*txn = *reconciled
	a.metrics.RecordOperationResult(OperationReconcile, "success")
	return nil
}

func (a *Auditor) verify(ctx context.Context, txn *models.Transaction) error {
	if txn.Status != models.TransactionStatusCompleted {
		return fmt.Errorf("%w: status is %s", ErrMismatch, txn.Status)
	}
	entries, err := a.store.Ledger().ListByTransaction(ctx, txn.ID)
	if err != nil {
		return fmt.Errorf("failed to load ledger entries: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no ledger entries", ErrMismatch)
	}

	// Only transfers must net to zero.
	if txn.Type == models.TransactionTypeTransfer {
		sum := decimal.Zero
		for _, e := range entries {
			sum = sum.Add(e.Signed())
		}
		if sum.Abs().GreaterThan(tolerance) {
			return fmt.Errorf("%w: ledger entries net to %s", ErrMismatch, sum.StringFixed(2))
		}
	}
	return nil
}

// ReconcileBatch reconciles every completed, unreconciled transaction
// created on date's calendar day in the auditor's zone. A failing
// transaction is recorded and the run continues.
func (a *Auditor) ReconcileBatch(ctx context.Context, date time.Time, actor string) (*BatchResult, error) {
	from, to := DayBounds(date, a.location)
	txns, err := a.store.Transactions().FindUnreconciled(ctx, from, to)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Date:   from.Format(dateLayout),
		Total:  len(txns),
		Errors: []BatchError{},
	}
	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		err := a.check(ctx, txn, actor)
		if err == nil {
			result.Reconciled++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, BatchError{
			TransactionID: txn.ID,
			Reference:     txn.Reference,
			Error:         err.Error(),
		})
	}

	a.log.WithFields(logrus.Fields{
		"date":       result.Date,
		"total":      result.Total,
		"reconciled": result.Reconciled,
		"failed":     result.Failed,
		"actor":      actor,
	}).Info("daily reconciliation finished")
	return result, nil
}

// DayBounds returns the start of date's calendar day in loc and the start
// of the following day.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses a YYYY-MM-DD day in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(dateLayout, value, loc)
}
