package bankRoutes

import (
	bankController "remit/controllers/bank"
	bankValidator "remit/validators/bank"

	"github.com/gofiber/fiber/v2"
)

func SetupBankRoutes(app *fiber.App, jwt fiber.Handler, ctl *bankController.Controller) {
	bankGroup := app.Group("/bank")

	bankGroup.Post("/add", bankValidator.AddBank(), jwt, ctl.AddBank)
	bankGroup.Get("/list", jwt, ctl.ListBanks)
	bankGroup.Patch("/:id/primary", jwt, ctl.SetPrimary)
	bankGroup.Post("/onramp", bankValidator.CreateOnramp(), jwt, ctl.CreateOnramp)

	// Admin routes
	adminGroup := bankGroup.Group("/admin")
	adminGroup.Patch("/:id/verify", jwt, ctl.VerifyBank)
}
