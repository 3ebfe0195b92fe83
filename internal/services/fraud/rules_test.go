package fraud

import (
	"context"
	"testing"
	"time"

	apperrors "kalpe/internal/errors"
	"kalpe/internal/logger"
	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"
	"kalpe/internal/repositories/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRuleCache struct {
	mock.Mock
}

func (m *MockRuleCache) GetActiveRules(ctx context.Context) ([]*models.FraudRule, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]*models.FraudRule), args.Bool(1), args.Error(2)
}

func (m *MockRuleCache) SetActiveRules(ctx context.Context, rules []*models.FraudRule) error {
	args := m.Called(ctx, rules)
	return args.Error(0)
}

func (m *MockRuleCache) InvalidateRules(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestRuleService_Create(t *testing.T) {
	threshold := dec("1000")
	zero := dec("0")
	window, count := 5, 3

	tests := []struct {
		name    string
		rule    *models.FraudRule
		wantErr error
	}{
		{
			name:    "missing name",
			rule:    &models.FraudRule{RuleType: models.FraudRuleBlacklist},
			wantErr: ErrRuleNameRequired,
		},
		{
			name:    "unknown type",
			rule:    &models.FraudRule{Name: "x", RuleType: "GEOFENCE"},
			wantErr: ErrInvalidRuleType,
		},
		{
			name:    "threshold missing",
			rule:    &models.FraudRule{Name: "x", RuleType: models.FraudRuleAmountThreshold},
			wantErr: ErrThresholdRequired,
		},
		{
			name:    "threshold zero",
			rule:    &models.FraudRule{Name: "x", RuleType: models.FraudRuleAmountThreshold, AmountThreshold: &zero},
			wantErr: ErrThresholdRequired,
		},
		{
			name:    "velocity without window",
			rule:    &models.FraudRule{Name: "x", RuleType: models.FraudRuleVelocity, MaxTransactions: &count},
			wantErr: ErrWindowRequired,
		},
		{
			name:    "score out of range",
			rule:    &models.FraudRule{Name: "x", RuleType: models.FraudRuleAmountThreshold, AmountThreshold: &threshold, FraudScore: 101},
			wantErr: ErrInvalidRuleScore,
		},
		{
			name: "valid velocity rule",
			rule: &models.FraudRule{Name: "  busy  ", RuleType: models.FraudRuleVelocity, TimeWindowMins: &window, MaxTransactions: &count, FraudScore: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repositories.NewMemoryStore(time.Second)
			cacheMock := new(MockRuleCache)
			svc := NewRuleService(store, cacheMock, metrics.NoopCollector{}, logger.Discard())

			if tt.wantErr == nil {
				cacheMock.On("InvalidateRules", mock.Anything).Return(nil).Once()
			}
			err := svc.Create(context.Background(), tt.rule)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "busy", tt.rule.Name)
			assert.NotEmpty(t, tt.rule.ID)
			cacheMock.AssertExpectations(t)
		})
	}
}

func TestRuleService_ActiveRulesCache(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore(time.Second)
	cacheMock := new(MockRuleCache)
	svc := NewRuleService(store, cacheMock, metrics.NoopCollector{}, logger.Discard())

	cacheMock.On("InvalidateRules", mock.Anything).Return(nil)
	rule := &models.FraudRule{Name: "blacklist", RuleType: models.FraudRuleBlacklist, IsActive: true}
	require.NoError(t, svc.Create(ctx, rule))

	t.Run("miss loads from store and fills cache", func(t *testing.T) {
		cacheMock.On("GetActiveRules", mock.Anything).Return(nil, false, nil).Once()
		cacheMock.On("SetActiveRules", mock.Anything, mock.MatchedBy(func(rules []*models.FraudRule) bool {
			return len(rules) == 1 && rules[0].Name == "blacklist"
		})).Return(nil).Once()

		rules, err := svc.ActiveRules(ctx)
		require.NoError(t, err)
		require.Len(t, rules, 1)
	})

	t.Run("hit skips the store", func(t *testing.T) {
		cached := []*models.FraudRule{{Name: "cached"}}
		cacheMock.On("GetActiveRules", mock.Anything).Return(cached, true, nil).Once()

		rules, err := svc.ActiveRules(ctx)
		require.NoError(t, err)
		assert.Equal(t, cached, rules)
	})

	t.Run("deactivate invalidates and drops the rule", func(t *testing.T) {
		updated, err := svc.Deactivate(ctx, rule.ID)
		require.NoError(t, err)
		assert.False(t, updated.IsActive)

		cacheMock.On("GetActiveRules", mock.Anything).Return(nil, false, nil).Once()
		cacheMock.On("SetActiveRules", mock.Anything, mock.Anything).Return(nil).Once()
		rules, err := svc.ActiveRules(ctx)
		require.NoError(t, err)
		assert.Empty(t, rules)
	})

	cacheMock.AssertNumberOfCalls(t, "InvalidateRules", 2)
}

func TestRuleService_Update(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore(time.Second)
	cacheMock := new(MockRuleCache)
	cacheMock.On("InvalidateRules", mock.Anything).Return(nil)
	svc := NewRuleService(store, cacheMock, metrics.NoopCollector{}, logger.Discard())

	threshold := dec("1000")
	rule := &models.FraudRule{Name: "big", RuleType: models.FraudRuleAmountThreshold, IsActive: true, AmountThreshold: &threshold, FraudScore: 10}
	require.NoError(t, svc.Create(ctx, rule))
	require.NoError(t, svc.Create(ctx, &models.FraudRule{Name: "other", RuleType: models.FraudRuleBlacklist}))

	score, block := 60, true
	raised := dec("2500")
	updated, err := svc.Update(ctx, rule.ID, RuleUpdate{FraudScore: &score, AutoBlock: &block, AmountThreshold: &raised})
	require.NoError(t, err)
	assert.Equal(t, 60, updated.FraudScore)
	assert.True(t, updated.AutoBlock)
	assert.True(t, updated.AmountThreshold.Equal(raised))

	taken := "other"
	_, err = svc.Update(ctx, rule.ID, RuleUpdate{Name: &taken})
	assert.ErrorIs(t, err, ErrRuleExists)

	_, err = svc.Update(ctx, "missing", RuleUpdate{FraudScore: &score})
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRuleService_Seed(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore(time.Second)
	svc := NewRuleService(store, cache.NoopCache{}, metrics.NoopCollector{}, logger.Discard())

	created, err := svc.Seed(ctx, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultRules()), created)

	created, err = svc.Seed(ctx, DefaultRules())
	require.NoError(t, err)
	assert.Zero(t, created)

	rules, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, len(DefaultRules()))
}
