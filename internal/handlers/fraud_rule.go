package handlers

import (
	"kalpe/internal/models"
	"kalpe/internal/services/fraud"
	"kalpe/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type FraudRuleHandler struct {
	rules *fraud.RuleService
}

func NewFraudRuleHandler(rules *fraud.RuleService) *FraudRuleHandler {
	return &FraudRuleHandler{rules: rules}
}

type fraudRuleRequest struct {
	Name            *string `json:"name" validate:"omitempty,max=100"`
	RuleType        string  `json:"rule_type"`
	IsActive        *bool   `json:"is_active"`
	AmountThreshold *string `json:"amount_threshold"`
	TimeWindowMins  *int    `json:"time_window_minutes" validate:"omitempty,gt=0"`
	MaxTransactions *int    `json:"max_transactions" validate:"omitempty,gt=0"`
	FraudScore      *int    `json:"fraud_score" validate:"omitempty,gte=0,lte=100"`
	AutoBlock       *bool   `json:"auto_block"`
	Description     *string `json:"description" validate:"omitempty,max=500"`
}

func (r fraudRuleRequest) threshold() (*decimal.Decimal, error) {
	if r.AmountThreshold == nil {
		return nil, nil
	}
	d, err := utils.ParseAmount("amount_threshold", *r.AmountThreshold)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *FraudRuleHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.rules.List(c.UserContext())
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"rules": rules, "count": len(rules)})
}

// CreateRule creates a rule. Rules are active unless the request says
// otherwise.
func (h *FraudRuleHandler) CreateRule(c *fiber.Ctx) error {
	var input fraudRuleRequest
	if err := utils.BindJSON(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	threshold, err := input.threshold()
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	rule := &models.FraudRule{
		RuleType:        models.FraudRuleType(input.RuleType),
		IsActive:        true,
		FraudScore:      fraud.DefaultRuleScore,
		AmountThreshold: threshold,
		TimeWindowMins:  input.TimeWindowMins,
		MaxTransactions: input.MaxTransactions,
	}
	if input.Name != nil {
		rule.Name = *input.Name
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	if input.FraudScore != nil {
		rule.FraudScore = *input.FraudScore
	}
	if input.AutoBlock != nil {
		rule.AutoBlock = *input.AutoBlock
	}
	if input.Description != nil {
		rule.Description = *input.Description
	}

	if err := h.rules.Create(c.UserContext(), rule); err != nil {
		return utils.Error(c, err)
	}
	return utils.Created(c, fiber.Map{"rule": rule})
}

func (h *FraudRuleHandler) UpdateRule(c *fiber.Ctx) error {
	var input fraudRuleRequest
	if err := utils.BindJSON(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	if input.RuleType != "" {
		return utils.BadRequest(c, "rule_type cannot be changed")
	}
	threshold, err := input.threshold()
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	rule, err := h.rules.Update(c.UserContext(), c.Params("id"), fraud.RuleUpdate{
		Name:            input.Name,
		IsActive:        input.IsActive,
		AmountThreshold: threshold,
		TimeWindowMins:  input.TimeWindowMins,
		MaxTransactions: input.MaxTransactions,
		FraudScore:      input.FraudScore,
		AutoBlock:       input.AutoBlock,
		Description:     input.Description,
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"rule": rule})
}

func (h *FraudRuleHandler) DeactivateRule(c *fiber.Ctx) error {
	rule, err := h.rules.Deactivate(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"rule": rule})
}
