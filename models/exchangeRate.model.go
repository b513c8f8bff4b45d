package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is a time-bounded cache entry for a currency pair quote. It is
// not a ledger entity; nothing ties it to balances.
type ExchangeRate struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	FromCurrency string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_rate_pair_time" json:"fromCurrency"`
	ToCurrency   string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_rate_pair_time" json:"toCurrency"`
	Rate         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"rate"`
	FetchedAt    time.Time       `gorm:"not null;uniqueIndex:idx_rate_pair_time" json:"fetchedAt"`
	Source       string          `gorm:"type:varchar(50)" json:"source"`
}

func (ExchangeRate) TableName() string {
	return "exchange_rates"
}
