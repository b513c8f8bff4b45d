package bridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"remit/config"
	"remit/models"
	"remit/rates"
	"remit/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testPool(t *testing.T) (*Pool, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.BridgePool{}, &models.ExchangeRate{}))

	cfg := &config.Config{
		RateFreshness: time.Hour,
		FallbackRates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"EUR": decimal.RequireFromString("0.92"),
			"NGN": decimal.RequireFromString("1492.53"),
		},
		PoolCurrency:   "USDC",
		PoolMinBalance: decimal.NewFromInt(10000),
	}
	log := utils.InitLogger()
	pool := NewPool(db, rates.NewConverter(db, cfg, log), cfg, log)
	require.NoError(t, pool.Ensure())
	return pool, db
}

func TestEnsureIsIdempotent(t *testing.T) {
	pool, db := testPool(t)
	require.NoError(t, pool.Ensure())

	var count int64
	db.Model(&models.BridgePool{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCreditAndDebit(t *testing.T) {
	pool, _ := testPool(t)

	require.NoError(t, pool.Credit(decimal.NewFromInt(500)))
	balance, err := pool.Balance()
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(500)))

	require.NoError(t, pool.Debit(decimal.NewFromInt(200)))
	balance, err = pool.Balance()
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(300)))
}

func TestDebitCannotOverdraw(t *testing.T) {
	pool, _ := testPool(t)

	require.NoError(t, pool.Credit(decimal.NewFromInt(100)))

	err := pool.Debit(decimal.NewFromInt(150))
	assert.ErrorIs(t, err, ErrPoolInsufficient)

	// The failed debit left the balance alone.
	balance, err := pool.Balance()
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
}

func TestConvertThroughPool(t *testing.T) {
	pool, _ := testPool(t)

	// 100 USD -> USDC -> EUR: the stablecoin hop is 1:1 against USD.
	conv := pool.ConvertThroughPool(context.Background(), decimal.NewFromInt(100), "USD", "EUR")
	assert.True(t, conv.USDCAmount.Equal(decimal.NewFromInt(100)), "usdc was %s", conv.USDCAmount)
	assert.True(t, conv.FinalAmount.Equal(decimal.RequireFromString("92")), "final was %s", conv.FinalAmount)
	assert.True(t, conv.Rate.Equal(decimal.RequireFromString("0.92")), "rate was %s", conv.Rate)
}

func TestRebalanceFlagsLowPool(t *testing.T) {
	pool, _ := testPool(t)

	report, err := pool.Rebalance()
	require.NoError(t, err)
	assert.True(t, report.BelowThreshold)
	assert.True(t, report.Balance.IsZero())

	require.NoError(t, pool.Credit(decimal.NewFromInt(20000)))

	report, err = pool.Rebalance()
	require.NoError(t, err)
	assert.False(t, report.BelowThreshold)
}
