package walletValidator

import (
	"strings"

	"remit/middleware"

	"github.com/gofiber/fiber/v2"
)

// CreateWallet validates wallet creation request
func CreateWallet() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Currency string `json:"currency"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		reqData.Currency = strings.ToUpper(strings.TrimSpace(reqData.Currency))

		errors := make(map[string]string)

		if reqData.Currency == "" {
			errors["currency"] = "Currency is required!"
		} else if len(reqData.Currency) < 3 || len(reqData.Currency) > 5 {
			errors["currency"] = "Currency code must be 3 to 5 characters!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedCreateWallet", reqData)
		return c.Next()
	}
}

// Deposit validates user deposit request
func Deposit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Amount        float64 `json:"amount"`
			Currency      string  `json:"currency"`
			PaymentMethod string  `json:"paymentMethod"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		reqData.Currency = strings.ToUpper(strings.TrimSpace(reqData.Currency))

		errors := make(map[string]string)

		if reqData.Amount <= 0 {
			errors["amount"] = "Amount must be greater than 0!"
		}
		if reqData.Currency == "" {
			errors["currency"] = "Currency is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedDeposit", reqData)
		return c.Next()
	}
}
