package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet holds a user's funds in one currency. At most one active wallet
// exists per (user, currency) pair.
//
// Balance is the settled total and must always equal AvailableBalance +
// ReservedBalance after a committed mutation. Funds move between the buckets
// only through the ledger package.
type Wallet struct {
	gorm.Model
	UserID           uint            `gorm:"not null;index;uniqueIndex:idx_wallet_user_currency" json:"userId"`
	Currency         string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_wallet_user_currency" json:"currency"`
	Balance          decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	AvailableBalance decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"availableBalance"`
	ReservedBalance  decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"reservedBalance"`
	IsActive         bool            `gorm:"default:true" json:"isActive"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
