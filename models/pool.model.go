package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BridgePool is the internal stablecoin liquidity pool used as the
// intermediate hop for currency-to-currency transfers. One row per pool
// currency.
type BridgePool struct {
	gorm.Model
	Currency string          `gorm:"type:varchar(10);uniqueIndex;not null" json:"currency"`
	Balance  decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
}

func (BridgePool) TableName() string {
	return "bridge_pools"
}
