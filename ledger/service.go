package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"remit/bridge"
	"remit/config"
	"remit/models"
	"remit/rates"
	"remit/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is the reservation engine: it owns every balance mutation and every
// transaction status transition. Handlers and the webhook reconciler go
// through it rather than touching wallets directly.
type Service struct {
	db    *gorm.DB
	rates *rates.Converter
	pool  *bridge.Pool
	cfg   *config.Config
	log   *utils.Logger
}

func NewService(db *gorm.DB, converter *rates.Converter, pool *bridge.Pool, cfg *config.Config, log *utils.Logger) *Service {
	return &Service{db: db, rates: converter, pool: pool, cfg: cfg, log: log}
}

// TransferParams describes a requested outbound transfer.
type TransferParams struct {
	UserID            uint
	SourceCurrency    string
	Amount            decimal.Decimal
	Recipient         string
	RecipientCurrency string
	PaymentMethod     string
}

// CreateWallet opens a zero-balance wallet for a currency the user opts into.
func (s *Service) CreateWallet(userID uint, currency string) (*models.Wallet, error) {
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrValidation)
	}

	var existing models.Wallet
	if err := s.db.Where("user_id = ? AND currency = ?", userID, currency).First(&existing).Error; err == nil {
		if existing.IsActive {
			return nil, ErrWalletExists
		}
		// Reactivate instead of violating the (user, currency) uniqueness.
		if err := s.db.Model(&existing).Update("is_active", true).Error; err != nil {
			return nil, err
		}
		existing.IsActive = true
		return &existing, nil
	}

	wallet := models.Wallet{
		UserID:           userID,
		Currency:         currency,
		Balance:          decimal.Zero,
		AvailableBalance: decimal.Zero,
		ReservedBalance:  decimal.Zero,
		IsActive:         true,
	}
	if err := s.db.Create(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetWallet returns the user's active wallet for a currency.
func (s *Service) GetWallet(userID uint, currency string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.Where("user_id = ? AND currency = ? AND is_active = ?", userID, currency, true).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// ListWallets returns every active wallet the user holds.
func (s *Service) ListWallets(userID uint) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).Order("currency").Find(&wallets).Error
	return wallets, err
}

// FindRecipientWallet resolves an internal recipient (by email) to their
// active wallet in the given currency. Returns ErrWalletNotFound for external
// recipients.
func (s *Service) FindRecipientWallet(email, currency string) (*models.Wallet, error) {
	var user models.User
	if err := s.db.Where("email = ? AND is_deleted = ?", email, false).First(&user).Error; err != nil {
		return nil, ErrWalletNotFound
	}
	return s.GetWallet(user.ID, currency)
}

// CreateTransfer validates and reserves funds for an outbound transfer. The
// insufficient-funds check and the reservation are one conditional UPDATE, so
// two concurrent transfers against the same wallet cannot both pass it.
//
// The returned transaction is PENDING; handing it to the settlement
// orchestrator is the caller's job, and an initiation failure must end in
// FailTransaction so the reservation is released.
func (s *Service) CreateTransfer(ctx context.Context, p TransferParams) (*models.Transaction, *models.Wallet, error) {
	if !p.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	if p.Recipient == "" {
		return nil, nil, fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if p.RecipientCurrency == "" {
		p.RecipientCurrency = p.SourceCurrency
	}

	wallet, err := s.GetWallet(p.UserID, p.SourceCurrency)
	if err != nil {
		return nil, nil, err
	}

	fee := p.Amount.Mul(s.cfg.TransferFeeRate).Round(2)
	rate := s.rates.GetRate(ctx, p.SourceCurrency, p.RecipientCurrency)

	txn := models.Transaction{
		UserID:            p.UserID,
		WalletID:          wallet.ID,
		Type:              models.TransactionTypeTransferSend,
		Status:            models.TransactionStatusPending,
		Amount:            p.Amount,
		Currency:          p.SourceCurrency,
		Fee:               fee,
		ExchangeRate:      rate,
		Recipient:         p.Recipient,
		RecipientCurrency: p.RecipientCurrency,
		PaymentMethod:     p.PaymentMethod,
		Reference:         uuid.NewString(),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := reserveFunds(tx, wallet.ID, txn.TotalDebit()); err != nil {
			return err
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		return appendHistory(tx, txn.ID, models.TransactionStatusPending, "transfer created, funds reserved")
	})
	if err != nil {
		return nil, nil, err
	}

	// Re-read for the post-reservation balances in the response.
	if err := s.db.First(wallet, wallet.ID).Error; err != nil {
		return nil, nil, err
	}
	return &txn, wallet, nil
}

// MarkProcessing attaches the external rail reference and moves a PENDING
// transaction to PROCESSING. Re-delivery of a created/confirmed event on an
// already PROCESSING or terminal row is a no-op. The returned flag reports
// whether this call performed the transition.
func (s *Service) MarkProcessing(txnID uint, externalID, message string) (bool, error) {
	var applied bool
	err := s.withRetry(func() error {
		applied = false
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.mustFind(tx, txnID); err != nil {
				return err
			}

			updates := map[string]interface{}{"status": models.TransactionStatusProcessing}
			if externalID != "" {
				updates["external_transfer_id"] = externalID
			}

			ok, err := transitionStatus(tx, txnID, []models.TransactionStatus{models.TransactionStatusPending}, updates)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			applied = true
			return appendHistory(tx, txnID, models.TransactionStatusProcessing, message)
		})
	})
	return applied, err
}

// CompleteTransaction moves a transaction to COMPLETED and consumes its
// reservation: the reserved funds permanently leave the wallet. Idempotent;
// completing an already terminal transaction mutates nothing and reports
// applied=false. Outbound transfers settle through SettleTransfer, which
// adds the recipient leg on top of this transition.
func (s *Service) CompleteTransaction(txnID uint, message string) (bool, error) {
	var applied bool
	err := s.withRetry(func() error {
		applied = false
		return s.db.Transaction(func(tx *gorm.DB) error {
			var txn models.Transaction
			if err := tx.First(&txn, txnID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrTransactionNotFound
				}
				return err
			}

			now := time.Now()
			ok, err := transitionStatus(tx, txnID,
				[]models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusProcessing},
				map[string]interface{}{
					"status":       models.TransactionStatusCompleted,
					"completed_at": now,
				})
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			if total := txn.ReservedTotal(); total.IsPositive() {
				if err := settleReserved(tx, txn.WalletID, total); err != nil {
					return err
				}
			}
			applied = true
			return appendHistory(tx, txnID, models.TransactionStatusCompleted, message)
		})
	})
	return applied, err
}

// SettleTransfer drives an outbound transfer to COMPLETED. When the recipient
// holds a wallet on this platform, their credit and the cross-currency pool
// debit commit in the same store transaction as the status transition: either
// the whole settlement lands or none of it does, and a delivery that fails
// partway leaves the transfer in PROCESSING so the next attempt retries
// everything. Both the custody webhook and the reconciliation sweep settle
// through here, so a transfer completes identically whichever path sees the
// provider's verdict first.
func (s *Service) SettleTransfer(ctx context.Context, txnID uint, message string) (bool, error) {
	var txn models.Transaction
	if err := s.db.First(&txn, txnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrTransactionNotFound
		}
		return false, err
	}

	if txn.Type != models.TransactionTypeTransferSend {
		return s.CompleteTransaction(txnID, message)
	}

	// Resolve the recipient leg before opening the transaction; rate lookups
	// can hit the network. ErrWalletNotFound means an external recipient the
	// custody rail pays out itself.
	recipientWallet, err := s.FindRecipientWallet(txn.Recipient, txn.RecipientCurrency)
	if err != nil && !errors.Is(err, ErrWalletNotFound) {
		return false, err
	}

	var (
		credited, rate, hop decimal.Decimal
		crossCurrency       = txn.Currency != txn.RecipientCurrency
	)
	if recipientWallet != nil {
		credited, rate = s.rates.Convert(ctx, txn.Amount, txn.Currency, recipientWallet.Currency)
		if crossCurrency {
			hop = s.pool.ConvertThroughPool(ctx, txn.Amount, txn.Currency, txn.RecipientCurrency).USDCAmount
		}
	}

	var applied bool
	err = s.withRetry(func() error {
		applied = false
		return s.db.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			ok, err := transitionStatus(tx, txn.ID,
				[]models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusProcessing},
				map[string]interface{}{
					"status":       models.TransactionStatusCompleted,
					"completed_at": now,
				})
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			if total := txn.ReservedTotal(); total.IsPositive() {
				if err := settleReserved(tx, txn.WalletID, total); err != nil {
					return err
				}
			}

			if recipientWallet != nil {
				if _, err := creditConvertedTx(tx, recipientWallet, credited, rate,
					models.TransactionTypeTransferReceive, txn.ExternalTransferID,
					"transfer received from user "+txn.Recipient); err != nil {
					return err
				}
				// Cross-currency transfers consume pool liquidity on the
				// outbound hop.
				if crossCurrency {
					if err := s.pool.DebitTx(tx, hop); err != nil {
						return err
					}
				}
			}

			applied = true
			return appendHistory(tx, txn.ID, models.TransactionStatusCompleted, message)
		})
	})
	return applied, err
}

// FailTransaction releases the reservation back to the spendable balance and
// records the reason. Idempotent like CompleteTransaction.
func (s *Service) FailTransaction(txnID uint, reason string) (bool, error) {
	var applied bool
	err := s.withRetry(func() error {
		applied = false
		return s.db.Transaction(func(tx *gorm.DB) error {
			var txn models.Transaction
			if err := tx.First(&txn, txnID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrTransactionNotFound
				}
				return err
			}

			ok, err := transitionStatus(tx, txnID,
				[]models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusProcessing},
				map[string]interface{}{
					"status":         models.TransactionStatusFailed,
					"failure_reason": reason,
				})
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			if total := txn.ReservedTotal(); total.IsPositive() {
				if err := releaseReserved(tx, txn.WalletID, total); err != nil {
					return err
				}
			}
			applied = true
			return appendHistory(tx, txnID, models.TransactionStatusFailed, reason)
		})
	})
	return applied, err
}

// AddFunds credits arriving money to a wallet and records a COMPLETED
// DEPOSIT. Inbound funds have no reservation phase.
func (s *Service) AddFunds(userID uint, currency string, amount decimal.Decimal, method string) (*models.Transaction, *models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}

	wallet, err := s.GetWallet(userID, currency)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	txn := models.Transaction{
		UserID:        userID,
		WalletID:      wallet.ID,
		Type:          models.TransactionTypeDeposit,
		Status:        models.TransactionStatusCompleted,
		Amount:        amount,
		Currency:      currency,
		Fee:           decimal.Zero,
		ExchangeRate:  decimal.NewFromInt(1),
		PaymentMethod: method,
		Reference:     uuid.NewString(),
		CompletedAt:   &now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := creditWallet(tx, wallet.ID, amount); err != nil {
			return err
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		return appendHistory(tx, txn.ID, models.TransactionStatusCompleted, "funds deposited")
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.db.First(wallet, wallet.ID).Error; err != nil {
		return nil, nil, err
	}
	return &txn, wallet, nil
}

// CreditConverted credits a wallet with an amount arriving in another
// currency, converting at the current rate, and records a COMPLETED
// transaction of the given credit type.
func (s *Service) CreditConverted(ctx context.Context, wallet *models.Wallet, amount decimal.Decimal, fromCurrency string, txnType models.TransactionType, externalID, message string) (*models.Transaction, error) {
	credited, rate := s.rates.Convert(ctx, amount, fromCurrency, wallet.Currency)

	var txn *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = creditConvertedTx(tx, wallet, credited, rate, txnType, externalID, message)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// creditConvertedTx records a pre-converted credit on the caller's
// transaction.
func creditConvertedTx(tx *gorm.DB, wallet *models.Wallet, credited, rate decimal.Decimal, txnType models.TransactionType, externalID, message string) (*models.Transaction, error) {
	now := time.Now()
	txn := models.Transaction{
		UserID:             wallet.UserID,
		WalletID:           wallet.ID,
		Type:               txnType,
		Status:             models.TransactionStatusCompleted,
		Amount:             credited,
		Currency:           wallet.Currency,
		Fee:                decimal.Zero,
		ExchangeRate:       rate,
		ExternalTransferID: externalID,
		Reference:          uuid.NewString(),
		CompletedAt:        &now,
	}

	if err := creditWallet(tx, wallet.ID, credited); err != nil {
		return nil, err
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, err
	}
	if err := appendHistory(tx, txn.ID, models.TransactionStatusCompleted, message); err != nil {
		return nil, err
	}
	return &txn, nil
}

// CreateOnramp records a requested fiat-to-stablecoin purchase. Nothing is
// reserved: the wallet is credited only when the rail confirms settlement.
func (s *Service) CreateOnramp(ctx context.Context, userID uint, walletCurrency string, amount decimal.Decimal, fiatCurrency, method string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}

	wallet, err := s.GetWallet(userID, walletCurrency)
	if err != nil {
		return nil, err
	}

	fee := amount.Mul(s.cfg.OnrampFeeRate).Round(2)
	rate := s.rates.GetRate(ctx, fiatCurrency, s.cfg.PoolCurrency)

	txn := models.Transaction{
		UserID:            userID,
		WalletID:          wallet.ID,
		Type:              models.TransactionTypeOnramp,
		Status:            models.TransactionStatusPending,
		Amount:            amount,
		Currency:          fiatCurrency,
		Fee:               fee,
		ExchangeRate:      rate,
		RecipientCurrency: wallet.Currency,
		PaymentMethod:     method,
		Reference:         uuid.NewString(),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		return appendHistory(tx, txn.ID, models.TransactionStatusPending, "onramp requested")
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// SettleOnramp completes an onramp leg: the stablecoin amount reported by the
// rail is converted into the wallet currency and credited, and the purchased
// stablecoin lands in the bridge pool in the same store transaction.
// Redelivered settlement events are no-ops.
func (s *Service) SettleOnramp(ctx context.Context, txnID uint, cryptoAmount decimal.Decimal) (bool, error) {
	var txn models.Transaction
	if err := s.db.First(&txn, txnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrTransactionNotFound
		}
		return false, err
	}

	var wallet models.Wallet
	if err := s.db.First(&wallet, txn.WalletID).Error; err != nil {
		return false, err
	}

	credited, rate := s.rates.Convert(ctx, cryptoAmount, s.cfg.PoolCurrency, wallet.Currency)

	var applied bool
	err := s.withRetry(func() error {
		applied = false
		return s.db.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			ok, err := transitionStatus(tx, txn.ID,
				[]models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusProcessing},
				map[string]interface{}{
					"status":        models.TransactionStatusCompleted,
					"completed_at":  now,
					"exchange_rate": rate,
				})
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			if err := creditWallet(tx, wallet.ID, credited); err != nil {
				return err
			}
			if err := s.pool.CreditTx(tx, cryptoAmount); err != nil {
				return err
			}
			applied = true
			return appendHistory(tx, txn.ID, models.TransactionStatusCompleted,
				fmt.Sprintf("onramp settled: credited %s %s", credited.String(), wallet.Currency))
		})
	})
	return applied, err
}

// SetExternalID stores the rail reference on a transaction without touching
// its status.
func (s *Service) SetExternalID(txnID uint, externalID string) error {
	return s.db.Model(&models.Transaction{}).
		Where("id = ?", txnID).
		Update("external_transfer_id", externalID).Error
}

// FindByExternalID looks a transaction up by the rail's reference id.
func (s *Service) FindByExternalID(externalID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.Where("external_transfer_id = ?", externalID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByReference looks a transaction up by its client-facing reference key.
func (s *Service) FindByReference(userID uint, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.Where("user_id = ? AND reference = ?", userID, reference).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// StuckProcessing lists PROCESSING transactions that have not moved since the
// cutoff and carry an external reference; the reconciliation sweep polls the
// rail for them.
func (s *Service) StuckProcessing(cutoff time.Time) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.
		Where("status = ? AND external_transfer_id <> '' AND updated_at < ?", models.TransactionStatusProcessing, cutoff).
		Find(&txns).Error
	return txns, err
}

func (s *Service) mustFind(tx *gorm.DB, txnID uint) error {
	var txn models.Transaction
	if err := tx.First(&txn, txnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTransactionNotFound
		}
		return err
	}
	return nil
}

// withRetry retries an idempotent operation once on a transient store error.
// Sentinel outcomes are surfaced as-is; a second failure is reported as a
// conflict, never silently dropped.
func (s *Service) withRetry(op func() error) error {
	err := op()
	if err == nil || isSentinel(err) {
		return err
	}
	s.log.Warnf("[LEDGER] transient store error, retrying once: %v", err)
	if err = op(); err == nil || isSentinel(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func isSentinel(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrWalletExists) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, bridge.ErrPoolInsufficient)
}
