package rates

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"remit/config"
	"remit/models"
	"remit/utils"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReferenceCurrency is the common currency every quote is expressed against.
// Cross pairs are composed through it: rate(A,B) = rate(USD,B) / rate(USD,A).
const ReferenceCurrency = "USD"

// RatePrecision is the number of fractional digits a rate carries.
const RatePrecision = 8

// Converter resolves currency-pair conversion rates. Lookups go cache ->
// quote source -> fallback table, so GetRate always returns a usable
// (possibly stale) rate and never fails.
type Converter struct {
	db        *gorm.DB
	client    *resty.Client
	quoteURL  string
	freshness time.Duration
	fallback  map[string]decimal.Decimal
	log       *utils.Logger
}

func NewConverter(db *gorm.DB, cfg *config.Config, log *utils.Logger) *Converter {
	return &Converter{
		db:        db,
		client:    resty.New().SetTimeout(10 * time.Second),
		quoteURL:  cfg.FXQuoteURL,
		freshness: cfg.RateFreshness,
		fallback:  cfg.FallbackRates,
		log:       log,
	}
}

// GetRate returns how many units of `to` one unit of `from` buys.
// Same-currency pairs are exactly 1.
func (c *Converter) GetRate(ctx context.Context, from, to string) decimal.Decimal {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return decimal.NewFromInt(1)
	}

	if rate, ok := c.cachedRate(from, to); ok {
		return rate
	}

	if rate, ok := c.fetchRate(ctx, from, to); ok {
		return rate
	}

	return c.fallbackRate(from, to)
}

// Convert applies the pair rate to an amount, rounded to 2 fractional digits
// at the currency boundary. Returns the converted amount and the rate used.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal) {
	rate := c.GetRate(ctx, from, to)
	return amount.Mul(rate).Round(2), rate
}

func (c *Converter) cachedRate(from, to string) (decimal.Decimal, bool) {
	if c.db == nil {
		return decimal.Zero, false
	}

	var entry models.ExchangeRate
	err := c.db.
		Where("from_currency = ? AND to_currency = ? AND fetched_at > ?", from, to, time.Now().Add(-c.freshness)).
		Order("fetched_at DESC").
		First(&entry).Error
	if err != nil {
		return decimal.Zero, false
	}
	return entry.Rate, true
}

// quoteKey maps pool stablecoins onto their fiat peg for quote lookups; the
// quote source only lists fiat currencies.
func quoteKey(currency string) string {
	if currency == "USDC" {
		return ReferenceCurrency
	}
	return currency
}

func (c *Converter) fetchRate(ctx context.Context, from, to string) (decimal.Decimal, bool) {
	if c.quoteURL == "" {
		return decimal.Zero, false
	}

	resp, err := c.client.R().SetContext(ctx).Get(c.quoteURL)
	if err != nil || resp.StatusCode() != 200 {
		c.log.Warnf("[RATES] quote source unavailable: %v", err)
		return decimal.Zero, false
	}

	var quote struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(resp.Body(), &quote); err != nil {
		c.log.Warnf("[RATES] invalid quote payload: %v", err)
		return decimal.Zero, false
	}

	fromRef, okFrom := quote.Rates[quoteKey(from)]
	toRef, okTo := quote.Rates[quoteKey(to)]
	if !okFrom || !okTo || fromRef <= 0 {
		return decimal.Zero, false
	}

	// Quotes are USD based; compose the cross pair through the reference.
	rate := decimal.NewFromFloat(toRef).
		Div(decimal.NewFromFloat(fromRef)).
		Round(RatePrecision)

	if c.db != nil {
		entry := models.ExchangeRate{
			FromCurrency: from,
			ToCurrency:   to,
			Rate:         rate,
			FetchedAt:    time.Now(),
			Source:       "quote-api",
		}
		if err := c.db.Create(&entry).Error; err != nil {
			c.log.Warnf("[RATES] failed to cache rate %s/%s: %v", from, to, err)
		}
	}

	return rate, true
}

func (c *Converter) fallbackRate(from, to string) decimal.Decimal {
	fromRef, okFrom := c.fallback[quoteKey(from)]
	toRef, okTo := c.fallback[quoteKey(to)]
	if !okFrom || !okTo || fromRef.IsZero() {
		c.log.Warnf("[RATES] no fallback rate for %s/%s, defaulting to 1", from, to)
		return decimal.NewFromInt(1)
	}
	return toRef.Div(fromRef).Round(RatePrecision)
}
