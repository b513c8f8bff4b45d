package webhookRoutes

import (
	webhookController "remit/controllers/webhook"

	"github.com/gofiber/fiber/v2"
)

// Webhook endpoints are authenticated by HMAC signature, not JWT.
func SetupWebhookRoutes(app *fiber.App, ctl *webhookController.Controller) {
	webhookGroup := app.Group("/webhooks")

	webhookGroup.Post("/custody", ctl.CustodyWebhook)
	webhookGroup.Post("/onramp", ctl.OnrampWebhook)
}
