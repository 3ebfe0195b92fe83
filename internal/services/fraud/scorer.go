// Package fraud scores transactions for fraud risk and manages the
// operator-configured rule set.
package fraud

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

// Scorer computes additive fraud scores from the configured rules and a
// fixed set of heuristics.
type Scorer struct {
	store     repositories.Store
	rules     RuleSource
	canceller Canceller
	metrics   metrics.Collector
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewScorer(
	store repositories.Store,
	rules RuleSource,
	canceller Canceller,
	collector metrics.Collector,
	log logrus.FieldLogger,
) *Scorer {
	if store == nil {
		panic("store is required")
	}
	if rules == nil {
		panic("rule source is required")
	}
	if canceller == nil {
		panic("canceller is required")
	}
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Scorer{
		store:     store,
		rules:     rules,
		canceller: canceller,
		metrics:   collector,
		log:       log.WithField("component", "fraud"),
		now:       time.Now,
	}
}

// Score evaluates txn. A triggered auto-block rule cancels txn and returns
// a FraudBlocked error; no other outcome changes txn.
func (s *Scorer) Score(ctx context.Context, txn *models.Transaction) (Result, error) {
	var result Result

	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load fraud rules: %w", err)
	}
	for _, rule := range rules {
		triggered, reason, err := s.checkRule(ctx, txn, rule)
		if err != nil {
			return result, err
		}
		if !triggered {
			continue
		}
		result.add(rule.FraudScore, reason)

		if rule.AutoBlock {
			if err := s.canceller.Cancel(ctx, txn, autoBlockPrefix+rule.Name); err != nil {
				s.log.WithField("reference", txn.Reference).WithError(err).Error("failed to cancel auto-blocked transaction")
			}
			s.log.WithFields(logrus.Fields{
				"reference": txn.Reference,
				"rule":      rule.Name,
			}).Warn("transaction auto-blocked")
			return result, apperrors.FraudBlocked("blocked by fraud rule "+rule.Name, []string{reason})
		}
	}

	if err := s.checkVelocity(ctx, txn, &result); err != nil {
		return result, err
	}
	if err := s.checkPatterns(ctx, txn, &result); err != nil {
		return result, err
	}

	s.metrics.RecordFraudScore(result.Score)
	if result.Score > 0 {
		s.log.WithFields(logrus.Fields{
			"reference": txn.Reference,
			"score":     result.Score,
			"reasons":   result.Reasons,
		}).Info("fraud score computed")
	}
	return result, nil
}

func (s *Scorer) checkRule(ctx context.Context, txn *models.Transaction, rule *models.FraudRule) (bool, string, error) {
	switch rule.RuleType {
	case models.FraudRuleAmountThreshold:
		if rule.AmountThreshold != nil && txn.Amount.GreaterThanOrEqual(*rule.AmountThreshold) {
			return true, fmt.Sprintf("Amount %s exceeds threshold %s", txn.Amount.StringFixed(2), rule.AmountThreshold.StringFixed(2)), nil
		}
	case models.FraudRuleVelocity:
		if txn.SenderWalletID == nil || rule.TimeWindowMins == nil || rule.MaxTransactions == nil ||
			*rule.TimeWindowMins <= 0 || *rule.MaxTransactions <= 0 {
			return false, "", nil
		}
		since := s.now().Add(-time.Duration(*rule.TimeWindowMins) * time.Minute)
		activity, err := s.store.Transactions().SenderActivitySince(ctx, *txn.SenderWalletID, since)
		if err != nil {
			return false, "", err
		}
		if activity.Count >= int64(*rule.MaxTransactions) {
			return true, fmt.Sprintf("%d transactions in %d minutes", activity.Count, *rule.TimeWindowMins), nil
		}
	}
	return false, "", nil
}

func (s *Scorer) checkVelocity(ctx context.Context, txn *models.Transaction, result *Result) error {
	if txn.SenderWalletID == nil {
		return nil
	}
	activity, err := s.store.Transactions().SenderActivitySince(ctx, *txn.SenderWalletID, s.now().Add(-velocityWindow))
	if err != nil {
		return err
	}
	if activity.Count >= velocityMaxCount {
		result.add(velocityScore, fmt.Sprintf("High velocity: %d transactions in 1 hour", activity.Count))
	}
	if activity.Total.GreaterThanOrEqual(decimal.NewFromInt(volumeThreshold)) {
		result.add(volumeScore, fmt.Sprintf("High volume: %s XOF in 1 hour", activity.Total.StringFixed(2)))
	}
	return nil
}

func (s *Scorer) checkPatterns(ctx context.Context, txn *models.Transaction, result *Result) error {
	if txn.SenderWalletID == nil {
		return nil
	}

	previous, err := s.store.Transactions().CountCompletedSent(ctx, *txn.SenderWalletID)
	if err != nil {
		return err
	}
	if previous == 0 && txn.Amount.GreaterThanOrEqual(decimal.NewFromInt(firstTxnThreshold)) {
		result.add(firstTxnScore, "First transaction with high amount")
	}

	if txn.Amount.Mod(decimal.NewFromInt(roundAmountUnit)).IsZero() {
		result.add(roundAmountScore, "Round amount transaction")
	}

	if txn.ReceiverWalletID != nil {
		receiver, err := s.store.Wallets().GetByID(ctx, *txn.ReceiverWalletID)
		switch {
		case errors.Is(err, repositories.ErrWalletNotFound):
			return nil
		case err != nil:
			return err
		}
		if s.now().Sub(receiver.CreatedAt) < newReceiverAge &&
			txn.Amount.GreaterThanOrEqual(decimal.NewFromInt(newReceiverThreshold)) {
			result.add(newReceiverScore, "Large transfer to new wallet")
		}
	}
	return nil
}

func (r *Result) add(score int, reason string) {
	r.Score += score
	r.Reasons = append(r.Reasons, reason)
}

// Clamp bounds a raw score to the persisted 0..100 range.
func Clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > MaxScore:
		return MaxScore
	}
	return score
}

// Classify maps a score to the action it calls for.
func Classify(score int) Level {
	switch {
	case score >= BlockThreshold:
		return LevelBlock
	case score >= ReviewThreshold:
		return LevelReview
	}
	return LevelNone
}

// FlagReason formats the review reason stored on a flagged transaction.
func FlagReason(level Level, result Result) string {
	band := "Medium"
	if level == LevelBlock {
		band = "High"
	}
	return fmt.Sprintf("%s fraud score (%d): %s", band, result.Score, strings.Join(result.Reasons, "; "))
}
