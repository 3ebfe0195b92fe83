package cache

import (
	"context"

	"kalpe/internal/models"
)

// NoopCache satisfies the cache interfaces without storing anything.
type NoopCache struct{}

func (NoopCache) GetBalance(ctx context.Context, accountID string) (*models.BalanceSummary, bool, error) {
	return nil, false, nil
}

func (NoopCache) SetBalance(ctx context.Context, summary *models.BalanceSummary) error { return nil }

func (NoopCache) InvalidateBalances(ctx context.Context, accountIDs ...string) error { return nil }

func (NoopCache) GetActiveRules(ctx context.Context) ([]*models.FraudRule, bool, error) {
	return nil, false, nil
}

func (NoopCache) SetActiveRules(ctx context.Context, rules []*models.FraudRule) error { return nil }

func (NoopCache) InvalidateRules(ctx context.Context) error { return nil }
