// Package cache holds the Redis read-through cache used for balance
// summaries and the active fraud rule set.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kalpe/internal/models"
	cachekeys "kalpe/internal/utils/cache"

	"github.com/redis/go-redis/v9"
)

type CacheService struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewCacheService(client redis.UniversalClient, defaultTTL time.Duration) *CacheService {
	if client == nil {
		panic("redis client is required")
	}
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Balance summaries
func (s *CacheService) GetBalance(ctx context.Context, accountID string) (*models.BalanceSummary, bool, error) {
	var summary models.BalanceSummary
	found, err := s.Get(ctx, cachekeys.BalanceKey(accountID), &summary)
	if err != nil || !found {
		return nil, false, err
	}
	return &summary, true, nil
}

func (s *CacheService) SetBalance(ctx context.Context, summary *models.BalanceSummary) error {
	return s.Set(ctx, cachekeys.BalanceKey(summary.AccountID), summary)
}

func (s *CacheService) InvalidateBalances(ctx context.Context, accountIDs ...string) error {
	cacheKeys := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id != "" {
			cacheKeys = append(cacheKeys, cachekeys.BalanceKey(id))
		}
	}
	return s.Delete(ctx, cacheKeys...)
}

// Fraud rules
func (s *CacheService) GetActiveRules(ctx context.Context) ([]*models.FraudRule, bool, error) {
	var rules []*models.FraudRule
	found, err := s.Get(ctx, cachekeys.ActiveRulesKey(), &rules)
	if err != nil || !found {
		return nil, false, err
	}
	return rules, true, nil
}

func (s *CacheService) SetActiveRules(ctx context.Context, rules []*models.FraudRule) error {
	return s.SetWithTTL(ctx, cachekeys.ActiveRulesKey(), rules, 5*time.Minute)
}

func (s *CacheService) InvalidateRules(ctx context.Context) error {
	return s.Delete(ctx, cachekeys.ActiveRulesKey())
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
