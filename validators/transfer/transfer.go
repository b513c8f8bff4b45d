package transferValidator

import (
	"strings"

	"remit/middleware"

	"github.com/gofiber/fiber/v2"
)

// CreateTransfer validates transfer creation request
func CreateTransfer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Amount            float64 `json:"amount"`
			Currency          string  `json:"currency"`
			Recipient         string  `json:"recipient"`
			RecipientCurrency string  `json:"recipientCurrency"`
			PaymentMethod     string  `json:"paymentMethod"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		reqData.Currency = strings.ToUpper(strings.TrimSpace(reqData.Currency))
		reqData.RecipientCurrency = strings.ToUpper(strings.TrimSpace(reqData.RecipientCurrency))
		reqData.Recipient = strings.TrimSpace(reqData.Recipient)

		errors := make(map[string]string)

		if reqData.Amount <= 0 {
			errors["amount"] = "Amount must be greater than 0!"
		}
		if reqData.Currency == "" {
			errors["currency"] = "Currency is required!"
		}
		if reqData.Recipient == "" {
			errors["recipient"] = "Recipient is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedTransfer", reqData)
		return c.Next()
	}
}
