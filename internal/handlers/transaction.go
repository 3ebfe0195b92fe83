package handlers

import (
	"kalpe/internal/middleware"
	"kalpe/internal/services/orchestrator"
	"kalpe/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	wallets *orchestrator.Service
}

func NewTransactionHandler(wallets *orchestrator.Service) *TransactionHandler {
	return &TransactionHandler{wallets: wallets}
}

// GetTransaction returns a transaction to one of its parties or to an
// admin. Anyone else gets a 404 so references cannot be probed.
func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	ctx := c.UserContext()

	txn, err := h.wallets.Transaction(ctx, c.Params("reference"))
	if err != nil {
		return utils.Error(c, err)
	}
	if !claims.IsAdmin() && !h.wallets.Involves(ctx, txn, claims.AccountID()) {
		return utils.NotFound(c, "transaction not found")
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}

// CancelTransaction cancels a transaction that has not completed. Only the
// initiator or an admin may cancel.
func (h *TransactionHandler) CancelTransaction(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input struct {
		Reason string `json:"reason" validate:"max=500"`
	}
	if len(c.Body()) > 0 {
		if err := utils.BindJSON(c, &input); err != nil {
			return utils.BadRequest(c, err.Error())
		}
	}
	if input.Reason == "" {
		input.Reason = "Cancelled by " + claims.AccountID()
	}
	ctx := c.UserContext()
	reference := c.Params("reference")

	txn, err := h.wallets.Transaction(ctx, reference)
	if err != nil {
		return utils.Error(c, err)
	}
	if !claims.IsAdmin() {
		if !h.wallets.Involves(ctx, txn, claims.AccountID()) {
			return utils.NotFound(c, "transaction not found")
		}
		if txn.InitiatedBy == nil || *txn.InitiatedBy != claims.AccountID() {
			return utils.Forbidden(c, "only the initiator can cancel this transaction")
		}
	}

	txn, err = h.wallets.Cancel(ctx, reference, input.Reason)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}
