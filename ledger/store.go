package ledger

import (
	"remit/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// The helpers in this file are the only code allowed to touch wallet balance
// columns. Every mutation is a single conditional UPDATE so that two
// concurrent requests against the same wallet serialize at the database:
// the losing statement simply matches zero rows.

// reserveFunds moves total from available to reserved. Fails with
// ErrInsufficientFunds when the available balance cannot cover it.
func reserveFunds(tx *gorm.DB, walletID uint, total decimal.Decimal) error {
	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND is_active = ? AND available_balance >= ?", walletID, true, total).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance - ?", total),
			"reserved_balance":  gorm.Expr("reserved_balance + ?", total),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// settleReserved consumes a reservation: the held funds permanently leave the
// settled balance. Available is untouched.
func settleReserved(tx *gorm.DB, walletID uint, total decimal.Decimal) error {
	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND reserved_balance >= ?", walletID, total).
		Updates(map[string]interface{}{
			"balance":          gorm.Expr("balance - ?", total),
			"reserved_balance": gorm.Expr("reserved_balance - ?", total),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// releaseReserved returns held funds to the spendable bucket. The settled
// balance is untouched.
func releaseReserved(tx *gorm.DB, walletID uint, total decimal.Decimal) error {
	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND reserved_balance >= ?", walletID, total).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance + ?", total),
			"reserved_balance":  gorm.Expr("reserved_balance - ?", total),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// creditWallet adds arriving funds to both the settled and available
// balances. No reservation phase applies to inbound money.
func creditWallet(tx *gorm.DB, walletID uint, amount decimal.Decimal) error {
	res := tx.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"balance":           gorm.Expr("balance + ?", amount),
			"available_balance": gorm.Expr("available_balance + ?", amount),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// transitionStatus applies a guarded status transition. It returns true only
// when this call actually performed the transition; a terminal or already
// transitioned row matches zero rows, which callers treat as a no-op. This is
// what makes webhook redelivery safe.
func transitionStatus(tx *gorm.DB, txnID uint, from []models.TransactionStatus, updates map[string]interface{}) (bool, error) {
	res := tx.Model(&models.Transaction{}).
		Where("id = ? AND status IN ?", txnID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// appendHistory writes one append-only audit row for a status transition.
func appendHistory(tx *gorm.DB, txnID uint, status models.TransactionStatus, message string) error {
	return tx.Create(&models.TransactionStatusHistory{
		TransactionID: txnID,
		Status:        status,
		Message:       message,
	}).Error
}
