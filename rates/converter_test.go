package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remit/config"
	"remit/models"
	"remit/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConverter(t *testing.T, quoteURL string) (*Converter, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ExchangeRate{}))

	cfg := &config.Config{
		FXQuoteURL:    quoteURL,
		RateFreshness: time.Hour,
		FallbackRates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"EUR": decimal.RequireFromString("0.92"),
			"NGN": decimal.RequireFromString("1492.53"),
		},
	}
	return NewConverter(db, cfg, utils.InitLogger()), db
}

func TestSameCurrencyIsUnity(t *testing.T) {
	c, _ := testConverter(t, "")

	rate := c.GetRate(context.Background(), "USD", "USD")
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))

	// Case-insensitive pair handling.
	rate = c.GetRate(context.Background(), "usd", "USD")
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestFallbackComposesThroughReference(t *testing.T) {
	c, _ := testConverter(t, "")

	// NGN -> USD: 1 / 1492.53, eight digits.
	rate := c.GetRate(context.Background(), "NGN", "USD")
	expected := decimal.NewFromInt(1).Div(decimal.RequireFromString("1492.53")).Round(RatePrecision)
	assert.True(t, rate.Equal(expected), "rate was %s", rate)

	// EUR -> NGN composes both legs through USD.
	rate = c.GetRate(context.Background(), "EUR", "NGN")
	expected = decimal.RequireFromString("1492.53").Div(decimal.RequireFromString("0.92")).Round(RatePrecision)
	assert.True(t, rate.Equal(expected), "rate was %s", rate)
}

func TestFallbackDefaultsToUnityForUnknownPair(t *testing.T) {
	c, _ := testConverter(t, "")

	rate := c.GetRate(context.Background(), "ZZZ", "USD")
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestStablecoinMapsToPeg(t *testing.T) {
	c, _ := testConverter(t, "")

	rate := c.GetRate(context.Background(), "USDC", "USD")
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))

	rate = c.GetRate(context.Background(), "USDC", "EUR")
	assert.True(t, rate.Equal(decimal.RequireFromString("0.92")))
}

func TestQuoteSourceWinsAndIsCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates":{"USD":1,"EUR":0.95,"NGN":1500}}`)
	}))
	defer srv.Close()

	c, db := testConverter(t, srv.URL)

	rate := c.GetRate(context.Background(), "USD", "EUR")
	assert.True(t, rate.Equal(decimal.RequireFromString("0.95")), "rate was %s", rate)

	// The fetched rate lands in the cache table.
	var cached models.ExchangeRate
	require.NoError(t, db.Where("from_currency = ? AND to_currency = ?", "USD", "EUR").First(&cached).Error)
	assert.True(t, cached.Rate.Equal(decimal.RequireFromString("0.95")))
	assert.Equal(t, "quote-api", cached.Source)
}

func TestFreshCacheSkipsQuoteSource(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"rates":{"USD":1,"EUR":0.95}}`)
	}))
	defer srv.Close()

	c, db := testConverter(t, srv.URL)

	require.NoError(t, db.Create(&models.ExchangeRate{
		FromCurrency: "USD",
		ToCurrency:   "EUR",
		Rate:         decimal.RequireFromString("0.91"),
		FetchedAt:    time.Now(),
		Source:       "test",
	}).Error)

	rate := c.GetRate(context.Background(), "USD", "EUR")
	assert.True(t, rate.Equal(decimal.RequireFromString("0.91")), "rate was %s", rate)
	assert.Zero(t, calls)
}

func TestStaleCacheIsIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates":{"USD":1,"EUR":0.95}}`)
	}))
	defer srv.Close()

	c, db := testConverter(t, srv.URL)

	require.NoError(t, db.Create(&models.ExchangeRate{
		FromCurrency: "USD",
		ToCurrency:   "EUR",
		Rate:         decimal.RequireFromString("0.80"),
		FetchedAt:    time.Now().Add(-2 * time.Hour),
		Source:       "test",
	}).Error)

	rate := c.GetRate(context.Background(), "USD", "EUR")
	assert.True(t, rate.Equal(decimal.RequireFromString("0.95")), "rate was %s", rate)
}

func TestQuoteSourceDownFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := testConverter(t, srv.URL)

	rate := c.GetRate(context.Background(), "USD", "EUR")
	assert.True(t, rate.Equal(decimal.RequireFromString("0.92")), "rate was %s", rate)
}

func TestConvertLargeNairaAmount(t *testing.T) {
	c, _ := testConverter(t, "")

	// 1,000,000 NGN at ~0.00067 USD/NGN lands on 670 USD give or take a cent.
	amount, _ := c.Convert(context.Background(), decimal.NewFromInt(1000000), "NGN", "USD")
	diff := amount.Sub(decimal.NewFromInt(670)).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")), "amount was %s", amount)
}

func TestConvertRoundsAtCurrencyBoundary(t *testing.T) {
	c, _ := testConverter(t, "")

	amount, rate := c.Convert(context.Background(), decimal.RequireFromString("33.33"), "USD", "EUR")
	assert.True(t, rate.Equal(decimal.RequireFromString("0.92")))
	// 33.33 * 0.92 = 30.6636, rounded to cents.
	assert.True(t, amount.Equal(decimal.RequireFromString("30.66")), "amount was %s", amount)
}
