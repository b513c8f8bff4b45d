package bridge

import (
	"context"
	"errors"

	"remit/config"
	"remit/models"
	"remit/rates"
	"remit/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrPoolInsufficient means the stablecoin pool cannot cover a requested hop.
var ErrPoolInsufficient = errors.New("bridge pool balance insufficient")

// Pool tracks the internal stablecoin liquidity used as the intermediate hop
// for currency-to-currency transfers (A -> USDC -> B).
type Pool struct {
	db       *gorm.DB
	rates    *rates.Converter
	currency string
	minimum  decimal.Decimal
	log      *utils.Logger
}

func NewPool(db *gorm.DB, converter *rates.Converter, cfg *config.Config, log *utils.Logger) *Pool {
	return &Pool{
		db:       db,
		rates:    converter,
		currency: cfg.PoolCurrency,
		minimum:  cfg.PoolMinBalance,
		log:      log,
	}
}

// Ensure creates the pool row if it does not exist yet. Called once at
// startup.
func (p *Pool) Ensure() error {
	pool := models.BridgePool{Currency: p.currency}
	return p.db.Where("currency = ?", p.currency).FirstOrCreate(&pool).Error
}

// Conversion is the breakdown of a two-hop currency conversion through the
// pool.
type Conversion struct {
	USDCAmount  decimal.Decimal `json:"usdcAmount"`
	FinalAmount decimal.Decimal `json:"finalAmount"`
	Rate        decimal.Decimal `json:"rate"`
}

// ConvertThroughPool computes the A -> pool currency -> B breakdown. Pure
// computation; no balances move.
func (p *Pool) ConvertThroughPool(ctx context.Context, amount decimal.Decimal, from, to string) Conversion {
	hopIn := p.rates.GetRate(ctx, from, p.currency)
	hopOut := p.rates.GetRate(ctx, p.currency, to)

	usdcAmount := amount.Mul(hopIn).Round(2)
	return Conversion{
		USDCAmount:  usdcAmount,
		FinalAmount: usdcAmount.Mul(hopOut).Round(2),
		Rate:        hopIn.Mul(hopOut).Round(rates.RatePrecision),
	}
}

// Credit adds settled stablecoin to the pool.
func (p *Pool) Credit(amount decimal.Decimal) error {
	return p.CreditTx(p.db, amount)
}

// CreditTx is Credit running on the caller's transaction, so a pool movement
// can commit or roll back together with the ledger mutation it belongs to.
func (p *Pool) CreditTx(tx *gorm.DB, amount decimal.Decimal) error {
	res := tx.Model(&models.BridgePool{}).
		Where("currency = ?", p.currency).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPoolInsufficient
	}
	return nil
}

// Debit removes stablecoin consumed by an outgoing hop. The conditional
// guard keeps concurrent hops from overdrawing the pool.
func (p *Pool) Debit(amount decimal.Decimal) error {
	return p.DebitTx(p.db, amount)
}

// DebitTx is Debit running on the caller's transaction.
func (p *Pool) DebitTx(tx *gorm.DB, amount decimal.Decimal) error {
	res := tx.Model(&models.BridgePool{}).
		Where("currency = ? AND balance >= ?", p.currency, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPoolInsufficient
	}
	return nil
}

// Balance returns the current pool balance.
func (p *Pool) Balance() (decimal.Decimal, error) {
	var pool models.BridgePool
	if err := p.db.Where("currency = ?", p.currency).First(&pool).Error; err != nil {
		return decimal.Zero, err
	}
	return pool.Balance, nil
}

// RebalanceReport is the outcome of a periodic pool check.
type RebalanceReport struct {
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	Minimum        decimal.Decimal `json:"minimum"`
	BelowThreshold bool            `json:"belowThreshold"`
}

// Rebalance compares the pool balance against the configured minimum. Below
// threshold it raises an operator alert; topping the pool up is a human
// decision, never automatic.
func (p *Pool) Rebalance() (*RebalanceReport, error) {
	balance, err := p.Balance()
	if err != nil {
		return nil, err
	}

	report := &RebalanceReport{
		Currency:       p.currency,
		Balance:        balance,
		Minimum:        p.minimum,
		BelowThreshold: balance.LessThan(p.minimum),
	}

	if report.BelowThreshold {
		p.log.Warnf("[BRIDGE] pool %s below minimum: balance %s < %s, operator action required",
			p.currency, balance.String(), p.minimum.String())
	}

	return report, nil
}
