package bankValidator

import (
	"strings"

	"remit/middleware"

	"github.com/gofiber/fiber/v2"
)

// AddBank validates bank account linking request
func AddBank() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			BankName    string `json:"bankName"`
			AccountNo   string `json:"accountNo"`
			HolderName  string `json:"holderName"`
			RoutingCode string `json:"routingCode"`
			Currency    string `json:"currency"`
			AccountType string `json:"accountType"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		reqData.Currency = strings.ToUpper(strings.TrimSpace(reqData.Currency))
		if reqData.AccountType == "" {
			reqData.AccountType = "savings"
		}

		errors := make(map[string]string)

		if reqData.BankName == "" {
			errors["bankName"] = "Bank name is required!"
		}
		if reqData.AccountNo == "" {
			errors["accountNo"] = "Account number is required!"
		}
		if reqData.HolderName == "" {
			errors["holderName"] = "Account holder name is required!"
		}
		if reqData.Currency == "" {
			errors["currency"] = "Currency is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedAddBank", reqData)
		return c.Next()
	}
}

// CreateOnramp validates onramp purchase request
func CreateOnramp() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Amount         float64 `json:"amount"`
			Currency       string  `json:"currency"`
			WalletCurrency string  `json:"walletCurrency"`
			BankAccountID  uint    `json:"bankAccountId"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		reqData.Currency = strings.ToUpper(strings.TrimSpace(reqData.Currency))
		reqData.WalletCurrency = strings.ToUpper(strings.TrimSpace(reqData.WalletCurrency))

		errors := make(map[string]string)

		if reqData.Amount <= 0 {
			errors["amount"] = "Amount must be greater than 0!"
		}
		if reqData.Currency == "" {
			errors["currency"] = "Currency is required!"
		}
		if reqData.WalletCurrency == "" {
			errors["walletCurrency"] = "Wallet currency is required!"
		}
		if reqData.BankAccountID == 0 {
			errors["bankAccountId"] = "Bank account ID is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedOnramp", reqData)
		return c.Next()
	}
}
