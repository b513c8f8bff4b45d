package walletRoutes

import (
	walletController "remit/controllers/wallet"
	walletValidator "remit/validators/wallet"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, jwt fiber.Handler, ctl *walletController.Controller) {
	walletGroup := app.Group("/wallet")

	// User routes
	walletGroup.Get("/balances", jwt, ctl.GetBalances)
	walletGroup.Get("/balance", jwt, ctl.GetBalance)
	walletGroup.Post("/create", walletValidator.CreateWallet(), jwt, ctl.CreateWallet)
	walletGroup.Post("/deposit", walletValidator.Deposit(), jwt, ctl.Deposit)
	walletGroup.Get("/history", jwt, ctl.GetHistory)

	// Admin routes
	adminGroup := walletGroup.Group("/admin")
	adminGroup.Get("/user-balance", jwt, ctl.GetUserBalance)
	adminGroup.Get("/user-history", jwt, ctl.GetUserWalletHistory)
}
