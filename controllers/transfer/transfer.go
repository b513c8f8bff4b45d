package transferController

import (
	"errors"

	"remit/bridge"
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
	Pool         *bridge.Pool
}

func New(db *gorm.DB, svc *ledger.Service, orch *settlement.Orchestrator, pool *bridge.Pool) *Controller {
	return &Controller{DB: db, Ledger: svc, Orchestrator: orch, Pool: pool}
}

// CreateTransfer reserves funds for an outbound transfer and hands it to the
// settlement rail. The response carries the reservation breakdown and the
// post-reservation balances.
func (ctl *Controller) CreateTransfer(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedTransfer").(*struct {
		Amount            float64 `json:"amount"`
		Currency          string  `json:"currency"`
		Recipient         string  `json:"recipient"`
		RecipientCurrency string  `json:"recipientCurrency"`
		PaymentMethod     string  `json:"paymentMethod"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	txn, wallet, err := ctl.Ledger.CreateTransfer(c.Context(), ledger.TransferParams{
		UserID:            userId,
		SourceCurrency:    reqData.Currency,
		Amount:            decimal.NewFromFloat(reqData.Amount),
		Recipient:         reqData.Recipient,
		RecipientCurrency: reqData.RecipientCurrency,
		PaymentMethod:     reqData.PaymentMethod,
	})
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Insufficient available balance!", nil)
	}
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Wallet not found!", nil)
	}
	if errors.Is(err, ledger.ErrValidation) {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create transfer!", nil)
	}

	if err := ctl.Orchestrator.InitiateTransfer(c.Context(), txn); err != nil {
		if errors.Is(err, settlement.ErrExternalRail) {
			// The reservation has already been released by the orchestrator.
			return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Transfer failed, funds returned to your wallet!", fiber.Map{
				"reference": txn.Reference,
				"status":    models.TransactionStatusFailed,
			})
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to initiate transfer!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Transfer initiated!", fiber.Map{
		"transactionId": txn.ID,
		"reference":     txn.Reference,
		"status":        txn.Status,
		"amount":        txn.Amount,
		"fee":           txn.Fee,
		"totalDebit":    txn.TotalDebit(),
		"exchangeRate":  txn.ExchangeRate,
		"wallet": fiber.Map{
			"balance":   wallet.Balance,
			"available": wallet.AvailableBalance,
			"reserved":  wallet.ReservedBalance,
		},
	})
}

// GetTransfer returns a single transfer with its status trail.
func (ctl *Controller) GetTransfer(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)
	reference := c.Params("reference")

	txn, err := ctl.Ledger.FindByReference(userId, reference)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Transfer not found!", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch transfer!", nil)
	}

	var history []models.TransactionStatusHistory
	if err := ctl.DB.Where("transaction_id = ?", txn.ID).Order("created_at ASC").Find(&history).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch transfer history!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Transfer fetched!", fiber.Map{
		"transfer": txn,
		"history":  history,
	})
}

// ListTransfers returns the user's transfers, newest first.
func (ctl *Controller) ListTransfers(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	status := c.Query("status")

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	offset := (page - 1) * limit

	query := ctl.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND type IN ?", userId, []models.TransactionType{
			models.TransactionTypeTransferSend,
			models.TransactionTypeTransferReceive,
		})

	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var transfers []models.Transaction
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&transfers).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch transfers!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Transfers fetched!", fiber.Map{
		"transfers": transfers,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// GetQuote previews a cross-currency transfer: the two-hop breakdown through
// the stablecoin pool, without moving anything.
func (ctl *Controller) GetQuote(c *fiber.Ctx) error {
	from := c.Query("from")
	to := c.Query("to")
	amountStr := c.Query("amount")

	if from == "" || to == "" || amountStr == "" {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "from, to and amount are required!", nil)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil || !amount.IsPositive() {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "amount must be a positive number!", nil)
	}

	conversion := ctl.Pool.ConvertThroughPool(c.Context(), amount, from, to)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Quote fetched!", fiber.Map{
		"from":        from,
		"to":          to,
		"amount":      amount,
		"usdcAmount":  conversion.USDCAmount,
		"finalAmount": conversion.FinalAmount,
		"rate":        conversion.Rate,
	})
}
