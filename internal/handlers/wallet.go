package handlers

import (
	"kalpe/internal/middleware"
	"kalpe/internal/models"
	"kalpe/internal/services/orchestrator"
	"kalpe/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

type WalletHandler struct {
	wallets *orchestrator.Service
}

func NewWalletHandler(wallets *orchestrator.Service) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type transferRequest struct {
	ReceiverAccountID string `json:"receiver_account_id" validate:"required,max=64"`
	Amount            string `json:"amount" validate:"required"`
	Description       string `json:"description" validate:"max=500"`
}

type paymentRequest struct {
	ProviderAccountID string          `json:"provider_account_id" validate:"required,max=64"`
	Amount            string          `json:"amount" validate:"required"`
	Fee               string          `json:"fee"`
	PaymentType       string          `json:"payment_type"`
	Description       string          `json:"description" validate:"max=500"`
	ExternalReference string          `json:"external_reference" validate:"max=100"`
	Metadata          models.Metadata `json:"metadata"`
}

type externalRequest struct {
	Amount            string `json:"amount" validate:"required"`
	Fee               string `json:"fee"`
	Description       string `json:"description" validate:"max=500"`
	ExternalReference string `json:"external_reference" validate:"max=100"`
}

// extractAccountID returns the caller's account id from the token claims.
func extractAccountID(c *fiber.Ctx) (string, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		return "", false
	}
	return claims.AccountID(), true
}

func (h *WalletHandler) Transfer(c *fiber.Ctx) error {
	accountID, ok := extractAccountID(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input transferRequest
	if err := utils.BindJSON(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	amount, err := utils.ParseAmount("amount", input.Amount)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	txn, err := h.wallets.Transfer(c.UserContext(), accountID, input.ReceiverAccountID, amount, input.Description)
	return transactionResult(c, txn, err)
}

func (h *WalletHandler) Payment(c *fiber.Ctx) error {
	accountID, ok := extractAccountID(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input paymentRequest
	if err := utils.BindJSON(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	amount, err := utils.ParseAmount("amount", input.Amount)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}
	fee, err := utils.ParseAmount("fee", input.Fee)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}
	typ, err := orchestrator.ParsePaymentType(input.PaymentType)
	if err != nil {
		return utils.Error(c, err)
	}

	txn, err := h.wallets.Payment(c.UserContext(), orchestrator.PaymentRequest{
		SenderAccountID:   accountID,
		ReceiverAccountID: input.ProviderAccountID,
		Type:              typ,
		Amount:            amount,
		Fee:               fee,
		Description:       input.Description,
		ExternalReference: input.ExternalReference,
		Metadata:          input.Metadata,
	})
	return transactionResult(c, txn, err)
}

func (h *WalletHandler) Sponsorship(c *fiber.Ctx) error {
	accountID, ok := extractAccountID(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input struct {
		BeneficiaryAccountID string `json:"beneficiary_account_id" validate:"required,max=64"`
		Amount               string `json:"amount" validate:"required"`
		Description          string `json:"description" validate:"max=500"`
	}
	if err := utils.BindJSON(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	amount, err := utils.ParseAmount("amount", input.Amount)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	txn, err := h.wallets.Sponsorship(c.UserContext(), accountID, input.BeneficiaryAccountID, amount, input.Description)
	return transactionResult(c, txn, err)
}

func (h *WalletHandler) Deposit(c *fiber.Ctx) error {
	accountID, ok := extractAccountID(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input externalRequest
	if err := utils.BindJSON(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	amount, err := utils.ParseAmount("amount", input.Amount)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	txn, err := h.wallets.Deposit(c.UserContext(), accountID, amount, input.Description, input.ExternalReference)
	return transactionResult(c, txn, err)
}

// Withdraw charges the default withdrawal fee unless the request names one.
func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	accountID, ok := extractAccountID(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input externalRequest
	if err := utils.BindJSON(c, &input); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	amount, err := utils.ParseAmount("amount", input.Amount)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}
	var fee decimal.Decimal
	if input.Fee == "" {
		fee = orchestrator.WithdrawalFee(amount)
	} else if fee, err = utils.ParseAmount("fee", input.Fee); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	txn, err := h.wallets.Withdraw(c.UserContext(), accountID, amount, fee, input.Description, input.ExternalReference)
	return transactionResult(c, txn, err)
}

func (h *WalletHandler) Balance(c *fiber.Ctx) error {
	accountID, ok := extractAccountID(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	summary, err := h.wallets.BalanceSummary(c.UserContext(), accountID)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, summary)
}

func (h *WalletHandler) History(c *fiber.Ctx) error {
	accountID, ok := extractAccountID(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	days := c.QueryInt("days", orchestrator.DefaultHistoryDays)
	history, err := h.wallets.History(c.UserContext(), accountID, days)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, history)
}

func (h *WalletHandler) Ledger(c *fiber.Ctx) error {
	accountID, ok := extractAccountID(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	limit := utils.QueryInt(c, "limit", defaultLedgerLimit, maxLedgerLimit)
	entries, err := h.wallets.LedgerHistory(c.UserContext(), accountID, limit)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"entries": entries, "count": len(entries)})
}

// transactionResult answers a money movement. A transaction that was
// recorded but did not complete is returned next to the error.
func transactionResult(c *fiber.Ctx, txn *models.Transaction, err error) error {
	if err == nil {
		return utils.Created(c, fiber.Map{"transaction": txn})
	}
	if txn == nil {
		return utils.Error(c, err)
	}
	status := utils.StatusOf(err)
	body := utils.ErrorBody(err)
	body["transaction"] = txn
	return utils.Respond(c, status, body)
}
