package handlers

import (
	"time"

	"kalpe/internal/middleware"
	"kalpe/internal/services/orchestrator"
	"kalpe/internal/services/reconciliation"
	"kalpe/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the back-office endpoints. Every route is mounted
// behind middleware.AdminOnly.
type AdminHandler struct {
	wallets  *orchestrator.Service
	location *time.Location
	staleAge time.Duration
}

func NewAdminHandler(wallets *orchestrator.Service, location *time.Location, staleAge time.Duration) *AdminHandler {
	if location == nil {
		location = time.UTC
	}
	return &AdminHandler{wallets: wallets, location: location, staleAge: staleAge}
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func actorOf(c *fiber.Ctx) string {
	if claims, ok := middleware.Claims(c); ok {
		return claims.AccountID()
	}
	return ""
}

func bindReason(c *fiber.Ctx) (string, error) {
	var input reasonRequest
	if len(c.Body()) == 0 {
		return "", nil
	}
	if err := utils.BindJSON(c, &input); err != nil {
		return "", err
	}
	return input.Reason, nil
}

func (h *AdminHandler) ReverseTransaction(c *fiber.Ctx) error {
	reason, err := bindReason(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}
	if reason == "" {
		return utils.BadRequest(c, "reason is required")
	}

	reversal, err := h.wallets.Reverse(c.UserContext(), c.Params("reference"), reason)
	return transactionResult(c, reversal, err)
}

func (h *AdminHandler) ReconcileTransaction(c *fiber.Ctx) error {
	reference := c.Params("reference")
	ok, err := h.wallets.Reconcile(c.UserContext(), reference, actorOf(c))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"reference": reference, "reconciled": ok})
}

func (h *AdminHandler) ApproveTransaction(c *fiber.Ctx) error {
	txn, err := h.wallets.ApproveReview(c.UserContext(), c.Params("reference"), actorOf(c))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}

func (h *AdminHandler) ReconcileDay(c *fiber.Ctx) error {
	date, err := reconciliation.ParseDate(c.Params("date"), h.location)
	if err != nil {
		return utils.BadRequest(c, "date must be formatted as YYYY-MM-DD")
	}
	result, err := h.wallets.ReconcileDay(c.UserContext(), date, actorOf(c))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, result)
}

func (h *AdminHandler) DailyStats(c *fiber.Ctx) error {
	date, err := reconciliation.ParseDate(c.Params("date"), h.location)
	if err != nil {
		return utils.BadRequest(c, "date must be formatted as YYYY-MM-DD")
	}
	stats, err := h.wallets.DailyStats(c.UserContext(), date)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, stats)
}

func (h *AdminHandler) RecoverStale(c *fiber.Ctx) error {
	result, err := h.wallets.RecoverStale(c.UserContext(), h.staleAge)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, result)
}

func (h *AdminHandler) LockWallet(c *fiber.Ctx) error {
	reason, err := bindReason(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}
	if reason == "" {
		return utils.BadRequest(c, "reason is required")
	}
	w, err := h.wallets.LockWallet(c.UserContext(), c.Params("account"), reason, actorOf(c))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"wallet": w})
}

func (h *AdminHandler) UnlockWallet(c *fiber.Ctx) error {
	w, err := h.wallets.UnlockWallet(c.UserContext(), c.Params("account"))
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"wallet": w})
}
