package walletController

import (
	"errors"

	"remit/ledger"
	"remit/middleware"
	"remit/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Controller struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

func New(db *gorm.DB, svc *ledger.Service) *Controller {
	return &Controller{DB: db, Ledger: svc}
}

// GetBalances returns every wallet the user holds, one entry per currency.
func (ctl *Controller) GetBalances(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	wallets, err := ctl.Ledger.ListWallets(userId)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch wallets!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Wallet balances fetched!", fiber.Map{
		"wallets": wallets,
	})
}

// GetBalance returns the user's wallet for a single currency.
func (ctl *Controller) GetBalance(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)
	currency := c.Query("currency")

	if currency == "" {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "currency is required!", nil)
	}

	wallet, err := ctl.Ledger.GetWallet(userId, currency)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Wallet not found!", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch wallet!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Wallet balance fetched!", fiber.Map{
		"currency":  wallet.Currency,
		"balance":   wallet.Balance,
		"available": wallet.AvailableBalance,
		"reserved":  wallet.ReservedBalance,
	})
}

// CreateWallet opens a wallet in a new currency for the user.
func (ctl *Controller) CreateWallet(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedCreateWallet").(*struct {
		Currency string `json:"currency"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	wallet, err := ctl.Ledger.CreateWallet(userId, reqData.Currency)
	if errors.Is(err, ledger.ErrWalletExists) {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Wallet already exists for this currency!", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create wallet!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Wallet created!", fiber.Map{
		"wallet": wallet,
	})
}

// Deposit credits arriving funds to the user's wallet.
func (ctl *Controller) Deposit(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedDeposit").(*struct {
		Amount        float64 `json:"amount"`
		Currency      string  `json:"currency"`
		PaymentMethod string  `json:"paymentMethod"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	amount := decimal.NewFromFloat(reqData.Amount)
	txn, wallet, err := ctl.Ledger.AddFunds(userId, reqData.Currency, amount, reqData.PaymentMethod)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Wallet not found!", nil)
	}
	if errors.Is(err, ledger.ErrValidation) {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to deposit funds!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Deposit successful!", fiber.Map{
		"transactionId": txn.ID,
		"reference":     txn.Reference,
		"amount":        txn.Amount,
		"currency":      txn.Currency,
		"balance":       wallet.Balance,
		"available":     wallet.AvailableBalance,
		"status":        txn.Status,
	})
}

// GetHistory returns the user's transaction history, newest first.
func (ctl *Controller) GetHistory(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	// Parse query params
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	txnType := c.Query("type") // TRANSFER_SEND, DEPOSIT, etc.

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	offset := (page - 1) * limit

	query := ctl.DB.Model(&models.Transaction{}).Where("user_id = ?", userId)

	if txnType != "" {
		query = query.Where("type = ?", txnType)
	}

	var total int64
	query.Count(&total)

	var transactions []models.Transaction
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&transactions).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch history!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Transaction history fetched!", fiber.Map{
		"transactions": transactions,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// GetUserBalance returns a specific user's wallets (Admin only)
func (ctl *Controller) GetUserBalance(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)
	targetUserId := c.QueryInt("userId", 0)

	var admin models.User
	if err := ctl.DB.Where("id = ? AND is_deleted = false AND role = ?", userId, "ADMIN").First(&admin).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	if targetUserId == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "userId is required!", nil)
	}

	var targetUser models.User
	if err := ctl.DB.Where("id = ? AND is_deleted = false", targetUserId).First(&targetUser).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}

	wallets, err := ctl.Ledger.ListWallets(targetUser.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch wallets!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "User balance fetched!", fiber.Map{
		"userId":  targetUser.ID,
		"name":    targetUser.Name,
		"email":   targetUser.Email,
		"wallets": wallets,
	})
}

// GetUserWalletHistory returns a specific user's transaction history (Admin only)
func (ctl *Controller) GetUserWalletHistory(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)
	targetUserId := c.QueryInt("userId", 0)

	var admin models.User
	if err := ctl.DB.Where("id = ? AND is_deleted = false AND role = ?", userId, "ADMIN").First(&admin).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	if targetUserId == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "userId is required!", nil)
	}

	// Parse query params
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	txnType := c.Query("type")

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	offset := (page - 1) * limit

	var targetUser models.User
	if err := ctl.DB.Where("id = ? AND is_deleted = false", targetUserId).First(&targetUser).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}

	query := ctl.DB.Model(&models.Transaction{}).Where("user_id = ?", targetUserId)

	if txnType != "" {
		query = query.Where("type = ?", txnType)
	}

	var total int64
	query.Count(&total)

	var transactions []models.Transaction
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&transactions).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch history!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "User wallet history fetched!", fiber.Map{
		"user": fiber.Map{
			"id":    targetUser.ID,
			"name":  targetUser.Name,
			"email": targetUser.Email,
		},
		"transactions": transactions,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}
