package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RuleService manages fraud rules. The active set is read through the
// cache and invalidated on every write.
type RuleService struct {
	store   repositories.Store
	cache   RuleCache
	metrics metrics.Collector
	log     logrus.FieldLogger
}

func NewRuleService(store repositories.Store, cache RuleCache, collector metrics.Collector, log logrus.FieldLogger) *RuleService {
	if store == nil {
		panic("store is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &RuleService{
		store:   store,
		cache:   cache,
		metrics: collector,
		log:     log.WithField("component", "fraud_rules"),
	}
}

// ActiveRules returns the active rules ordered by name.
func (s *RuleService) ActiveRules(ctx context.Context) ([]*models.FraudRule, error) {
	rules, found, err := s.cache.GetActiveRules(ctx)
	if err != nil {
		s.log.WithError(err).Warn("fraud rule cache read failed")
	}
	if found {
		s.metrics.RecordCacheHit(rulesCacheName)
		return rules, nil
	}
	s.metrics.RecordCacheMiss(rulesCacheName)

	rules, err = s.store.FraudRules().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetActiveRules(ctx, rules); err != nil {
		s.log.WithError(err).Warn("fraud rule cache write failed")
	}
	return rules, nil
}

func (s *RuleService) List(ctx context.Context) ([]*models.FraudRule, error) {
	return s.store.FraudRules().List(ctx)
}

func (s *RuleService) Get(ctx context.Context, id string) (*models.FraudRule, error) {
	rule, err := s.store.FraudRules().GetByID(ctx, id)
	if err != nil {
		return nil, ruleError(err)
	}
	return rule, nil
}

func (s *RuleService) Create(ctx context.Context, rule *models.FraudRule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.store.FraudRules().Create(ctx, rule); err != nil {
		return ruleError(err)
	}
	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{
		"rule":       rule.Name,
		"type":       rule.RuleType,
		"score":      rule.FraudScore,
		"auto_block": rule.AutoBlock,
	}).Info("fraud rule created")
	return nil
}

// Update applies the non-nil fields of update to the rule.
func (s *RuleService) Update(ctx context.Context, id string, update RuleUpdate) (*models.FraudRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		rule.Name = strings.TrimSpace(*update.Name)
	}
	if update.IsActive != nil {
		rule.IsActive = *update.IsActive
	}
	if update.AmountThreshold != nil {
		threshold := *update.AmountThreshold
		rule.AmountThreshold = &threshold
	}
	if update.TimeWindowMins != nil {
		window := *update.TimeWindowMins
		rule.TimeWindowMins = &window
	}
	if update.MaxTransactions != nil {
		count := *update.MaxTransactions
		rule.MaxTransactions = &count
	}
	if update.FraudScore != nil {
		rule.FraudScore = *update.FraudScore
	}
	if update.AutoBlock != nil {
		rule.AutoBlock = *update.AutoBlock
	}
	if update.Description != nil {
		rule.Description = *update.Description
	}

	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.store.FraudRules().Update(ctx, rule); err != nil {
		return nil, ruleError(err)
	}
	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{"rule": rule.Name, "active": rule.IsActive}).Info("fraud rule updated")
	return rule, nil
}

func (s *RuleService) Deactivate(ctx context.Context, id string) (*models.FraudRule, error) {
	inactive := false
	return s.Update(ctx, id, RuleUpdate{IsActive: &inactive})
}

// Seed creates every rule whose name is not taken yet and returns how many
// were created.
func (s *RuleService) Seed(ctx context.Context, rules []*models.FraudRule) (int, error) {
	created := 0
	for _, rule := range rules {
		_, err := s.store.FraudRules().GetByName(ctx, rule.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, repositories.ErrFraudRuleNotFound) {
			return created, err
		}
		if err := s.Create(ctx, rule); err != nil {
			return created, fmt.Errorf("failed to seed rule %s: %w", rule.Name, err)
		}
		created++
	}
	return created, nil
}

func (s *RuleService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidateRules(ctx); err != nil {
		s.log.WithError(err).Warn("fraud rule cache invalidation failed")
	}
}

func validateRule(rule *models.FraudRule) error {
	if rule.Name == "" {
		return apperrors.WithCause(apperrors.CodeValidation, ErrRuleNameRequired)
	}
	switch rule.RuleType {
	case models.FraudRuleAmountThreshold:
		if rule.AmountThreshold == nil || !rule.AmountThreshold.IsPositive() {
			return apperrors.WithCause(apperrors.CodeValidation, ErrThresholdRequired)
		}
	case models.FraudRuleVelocity:
		if rule.TimeWindowMins == nil || *rule.TimeWindowMins <= 0 ||
			rule.MaxTransactions == nil || *rule.MaxTransactions <= 0 {
			return apperrors.WithCause(apperrors.CodeValidation, ErrWindowRequired)
		}
	case models.FraudRulePattern, models.FraudRuleGeolocation, models.FraudRuleBlacklist:
	default:
		return apperrors.WithCause(apperrors.CodeValidation, ErrInvalidRuleType)
	}
	if rule.FraudScore < 0 || rule.FraudScore > MaxScore {
		return apperrors.WithCause(apperrors.CodeValidation, ErrInvalidRuleScore)
	}
	return nil
}

func ruleError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrFraudRuleNotFound):
		return apperrors.WithCause(apperrors.CodeNotFound, ErrRuleNotFound)
	case errors.Is(err, repositories.ErrDuplicateFraudRule):
		return apperrors.WithCause(apperrors.CodeValidation, ErrRuleExists)
	}
	return err
}

// DefaultRules is the rule set installed on a fresh deployment.
func DefaultRules() []*models.FraudRule {
	threshold := decimal.NewFromInt(2000000)
	window, count := 10, 10
	return []*models.FraudRule{
		{
			Name:            "large_amount",
			RuleType:        models.FraudRuleAmountThreshold,
			IsActive:        true,
			AmountThreshold: &threshold,
			FraudScore:      25,
			Description:     "Single transaction of 2 000 000 XOF or more",
		},
		{
			Name:            "burst_activity",
			RuleType:        models.FraudRuleVelocity,
			IsActive:        true,
			TimeWindowMins:  &window,
			MaxTransactions: &count,
			FraudScore:      30,
			Description:     "Ten or more transactions within ten minutes",
		},
	}
}
