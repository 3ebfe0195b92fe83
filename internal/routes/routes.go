// Package routes defines the API routing configuration.
package routes

import (
	"net/http"

	"kalpe/internal/handlers"
	"kalpe/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Auth         *middleware.AuthMiddleware
	Wallet       *handlers.WalletHandler
	Transaction  *handlers.TransactionHandler
	Admin        *handlers.AdminHandler
	FraudRules   *handlers.FraudRuleHandler
	Health       *handlers.HealthHandler
	MetricsRoute http.Handler
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Health)
	if h.MetricsRoute != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.MetricsRoute))
	}

	api := app.Group("/api", h.Auth.Handler)

	wallet := api.Group("/wallet")
	wallet.Post("/transfer", h.Wallet.Transfer)
	wallet.Post("/payment", h.Wallet.Payment)
	wallet.Post("/sponsorship", h.Wallet.Sponsorship)
	wallet.Post("/deposit", h.Wallet.Deposit)
	wallet.Post("/withdraw", h.Wallet.Withdraw)
	wallet.Get("/balance", h.Wallet.Balance)
	wallet.Get("/history", h.Wallet.History)
	wallet.Get("/ledger", h.Wallet.Ledger)

	txns := api.Group("/transactions")
	txns.Get("/:reference", h.Transaction.GetTransaction)
	txns.Post("/:reference/cancel", h.Transaction.CancelTransaction)

	setupAdminRoutes(api, h)
}

func setupAdminRoutes(router fiber.Router, h Handlers) {
	admin := router.Group("/admin", middleware.AdminOnly)

	admin.Post("/transactions/:reference/reverse", h.Admin.ReverseTransaction)
	admin.Post("/transactions/:reference/reconcile", h.Admin.ReconcileTransaction)
	admin.Post("/transactions/:reference/approve", h.Admin.ApproveTransaction)
	admin.Post("/transactions/recover-stale", h.Admin.RecoverStale)
	admin.Post("/reconciliation/:date", h.Admin.ReconcileDay)
	admin.Get("/stats/:date", h.Admin.DailyStats)

	admin.Post("/wallets/:account/lock", h.Admin.LockWallet)
	admin.Post("/wallets/:account/unlock", h.Admin.UnlockWallet)

	rules := admin.Group("/fraud-rules")
	rules.Get("/", h.FraudRules.ListRules)
	rules.Post("/", h.FraudRules.CreateRule)
	rules.Put("/:id", h.FraudRules.UpdateRule)
	rules.Delete("/:id", h.FraudRules.DeactivateRule)
}
