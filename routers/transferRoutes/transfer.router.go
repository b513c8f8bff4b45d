package transferRoutes

import (
	transferController "remit/controllers/transfer"
	transferValidator "remit/validators/transfer"

	"github.com/gofiber/fiber/v2"
)

func SetupTransferRoutes(app *fiber.App, jwt fiber.Handler, ctl *transferController.Controller) {
	transferGroup := app.Group("/transfer")

	transferGroup.Post("/create", transferValidator.CreateTransfer(), jwt, ctl.CreateTransfer)
	transferGroup.Get("/quote", jwt, ctl.GetQuote)
	transferGroup.Get("/list", jwt, ctl.ListTransfers)
	transferGroup.Get("/:reference", jwt, ctl.GetTransfer)
}
