package bankController

import (
	"errors"
	"time"

	"remit/ledger"
	"remit/middleware"
	"remit/models"
	"remit/settlement"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Controller struct {
	DB           *gorm.DB
	Ledger       *ledger.Service
	Orchestrator *settlement.Orchestrator
}

func New(db *gorm.DB, svc *ledger.Service, orch *settlement.Orchestrator) *Controller {
	return &Controller{DB: db, Ledger: svc, Orchestrator: orch}
}

// AddBank links a bank account to the user's profile. New accounts start
// unverified; an admin verifies them before they can fund onramps.
func (ctl *Controller) AddBank(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedAddBank").(*struct {
		BankName    string `json:"bankName"`
		AccountNo   string `json:"accountNo"`
		HolderName  string `json:"holderName"`
		RoutingCode string `json:"routingCode"`
		Currency    string `json:"currency"`
		AccountType string `json:"accountType"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	// Check for duplicate account number
	var existing models.BankAccount
	if err := ctl.DB.Where("user_id = ? AND account_no = ? AND is_deleted = false", userId, reqData.AccountNo).First(&existing).Error; err == nil {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Bank account already added!", nil)
	}

	var count int64
	ctl.DB.Model(&models.BankAccount{}).Where("user_id = ? AND is_deleted = false", userId).Count(&count)

	bank := models.BankAccount{
		UserID:      userId,
		BankName:    reqData.BankName,
		AccountNo:   reqData.AccountNo,
		HolderName:  reqData.HolderName,
		RoutingCode: reqData.RoutingCode,
		Currency:    reqData.Currency,
		AccountType: reqData.AccountType,
		IsPrimary:   count == 0, // first account becomes primary
	}

	if err := ctl.DB.Create(&bank).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to add bank account!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Bank account added!", fiber.Map{
		"bank": bank,
	})
}

// ListBanks returns the user's linked bank accounts.
func (ctl *Controller) ListBanks(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var banks []models.BankAccount
	if err := ctl.DB.Where("user_id = ? AND is_deleted = false", userId).Order("is_primary DESC, created_at DESC").Find(&banks).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch bank accounts!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Bank accounts fetched!", fiber.Map{
		"banks": banks,
	})
}

// SetPrimary marks one of the user's accounts primary and demotes the rest.
func (ctl *Controller) SetPrimary(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)
	bankId, err := c.ParamsInt("id")
	if err != nil || bankId < 1 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid bank account id!", nil)
	}

	var bank models.BankAccount
	if err := ctl.DB.Where("id = ? AND user_id = ? AND is_deleted = false", bankId, userId).First(&bank).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Bank account not found!", nil)
	}

	err = ctl.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.BankAccount{}).
			Where("user_id = ? AND is_deleted = false", userId).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		return tx.Model(&bank).Update("is_primary", true).Error
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update bank account!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Primary bank account updated!", fiber.Map{
		"bankId": bank.ID,
	})
}

// VerifyBank marks a bank account verified (Admin only)
func (ctl *Controller) VerifyBank(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var admin models.User
	if err := ctl.DB.Where("id = ? AND is_deleted = false AND role = ?", userId, "ADMIN").First(&admin).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	bankId, err := c.ParamsInt("id")
	if err != nil || bankId < 1 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid bank account id!", nil)
	}

	var bank models.BankAccount
	if err := ctl.DB.Where("id = ? AND is_deleted = false", bankId).First(&bank).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Bank account not found!", nil)
	}

	if bank.IsVerified {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Bank account already verified!", nil)
	}

	now := time.Now()
	if err := ctl.DB.Model(&bank).Updates(map[string]interface{}{
		"is_verified": true,
		"verified_at": now,
	}).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to verify bank account!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Bank account verified!", fiber.Map{
		"bankId":     bank.ID,
		"verifiedBy": admin.Name,
	})
}

// CreateOnramp starts a fiat-to-stablecoin purchase funded from a verified
// bank account. The wallet is credited only on the provider's settlement
// webhook.
func (ctl *Controller) CreateOnramp(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var user models.User
	if err := ctl.DB.Where("id = ? AND is_deleted = false", userId).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied!", nil)
	}

	reqData, ok := c.Locals("validatedOnramp").(*struct {
		Amount         float64 `json:"amount"`
		Currency       string  `json:"currency"`
		WalletCurrency string  `json:"walletCurrency"`
		BankAccountID  uint    `json:"bankAccountId"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	var bank models.BankAccount
	if err := ctl.DB.Where("id = ? AND user_id = ? AND is_deleted = false", reqData.BankAccountID, userId).First(&bank).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Bank account not found!", nil)
	}
	if !bank.IsVerified {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Bank account is not verified!", nil)
	}

	txn, err := ctl.Ledger.CreateOnramp(c.Context(), userId, reqData.WalletCurrency,
		decimal.NewFromFloat(reqData.Amount), reqData.Currency, "BANK_TRANSFER")
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Wallet not found!", nil)
	}
	if errors.Is(err, ledger.ErrValidation) {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create onramp!", nil)
	}

	session, err := ctl.Orchestrator.InitiateOnramp(c.Context(), txn, &user)
	if err != nil {
		if errors.Is(err, settlement.ErrExternalRail) {
			return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Onramp provider unavailable, please try again later!", fiber.Map{
				"reference": txn.Reference,
				"status":    models.TransactionStatusFailed,
			})
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to initiate onramp!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Onramp session created!", fiber.Map{
		"transactionId": txn.ID,
		"reference":     txn.Reference,
		"status":        txn.Status,
		"amount":        txn.Amount,
		"fee":           txn.Fee,
		"checkoutUrl":   session.CheckoutURL,
		"redirectUrl":   session.RedirectURL,
		"sessionId":     session.SessionID,
		"fallback":      session.Fallback,
	})
}
