package repositories

import (
	"context"
	"errors"
	"fmt"

	"kalpe/internal/models"

	"gorm.io/gorm"
)

type fraudRuleRepository struct {
	db *gorm.DB
}

func (r *fraudRuleRepository) Create(ctx context.Context, rule *models.FraudRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateFraudRule
		}
		return fmt.Errorf("failed to create fraud rule: %w", err)
	}
	return nil
}

func (r *fraudRuleRepository) GetByID(ctx context.Context, id string) (*models.FraudRule, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *fraudRuleRepository) GetByName(ctx context.Context, name string) (*models.FraudRule, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *fraudRuleRepository) first(ctx context.Context, query string, arg interface{}) (*models.FraudRule, error) {
	var rule models.FraudRule
	if err := r.db.WithContext(ctx).Where(query, arg).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFraudRuleNotFound
		}
		return nil, fmt.Errorf("failed to get fraud rule: %w", err)
	}
	return &rule, nil
}

func (r *fraudRuleRepository) Update(ctx context.Context, rule *models.FraudRule) error {
	result := r.db.WithContext(ctx).
		Model(&models.FraudRule{}).
		Where("id = ?", rule.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(rule)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return ErrDuplicateFraudRule
		}
		return fmt.Errorf("failed to update fraud rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFraudRuleNotFound
	}
	return nil
}

func (r *fraudRuleRepository) List(ctx context.Context) ([]*models.FraudRule, error) {
	var rules []*models.FraudRule
	if err := r.db.WithContext(ctx).Order("name").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list fraud rules: %w", err)
	}
	return rules, nil
}

func (r *fraudRuleRepository) ListActive(ctx context.Context) ([]*models.FraudRule, error) {
	var rules []*models.FraudRule
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list fraud rules: %w", err)
	}
	return rules, nil
}
