package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"remit/bridge"
	"remit/config"
	"remit/ledger"
	"remit/models"
	"remit/rails"
	"remit/rates"
	"remit/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockCustody struct {
	mock.Mock
}

func (m *mockCustody) InitiateTransfer(ctx context.Context, sourceRef, destinationRef string, amount decimal.Decimal, currency string) (*rails.TransferResult, error) {
	args := m.Called(ctx, sourceRef, destinationRef, amount, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rails.TransferResult), args.Error(1)
}

func (m *mockCustody) GetTransferStatus(ctx context.Context, externalID string) (string, error) {
	args := m.Called(ctx, externalID)
	return args.String(0), args.Error(1)
}

type mockOnramp struct {
	mock.Mock
}

func (m *mockOnramp) CreateSession(ctx context.Context, p rails.SessionParams) (*rails.SessionResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rails.SessionResult), args.Error(1)
}

type fixture struct {
	db      *gorm.DB
	cfg     *config.Config
	svc     *ledger.Service
	pool    *bridge.Pool
	custody *mockCustody
	onramp  *mockOnramp
	orch    *Orchestrator
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.TransactionStatusHistory{},
		&models.ExchangeRate{},
		&models.BridgePool{},
	))

	cfg := &config.Config{
		Env:             "development",
		TransferFeeRate: decimal.RequireFromString("0.015"),
		OnrampFeeRate:   decimal.RequireFromString("0.01"),
		RateFreshness:   time.Hour,
		FallbackRates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"EUR": decimal.RequireFromString("0.92"),
		},
		PoolCurrency:      "USDC",
		PoolMinBalance:    decimal.NewFromInt(10000),
		ReconcileAfter:    30 * time.Minute,
		RailTimeout:       5 * time.Second,
		OnrampNetwork:     "matic20",
		OnrampDepositAddr: "0xdeposit",
	}

	log := utils.InitLogger()
	converter := rates.NewConverter(db, cfg, log)
	pool := bridge.NewPool(db, converter, cfg, log)
	require.NoError(t, pool.Ensure())
	require.NoError(t, pool.Credit(decimal.NewFromInt(50000)))
	svc := ledger.NewService(db, converter, pool, cfg, log)

	custody := new(mockCustody)
	onramp := new(mockOnramp)
	return &fixture{
		db:      db,
		cfg:     cfg,
		svc:     svc,
		pool:    pool,
		custody: custody,
		onramp:  onramp,
		orch:    NewOrchestrator(custody, onramp, svc, cfg, log),
	}
}

func (f *fixture) seedTransfer(t *testing.T, balance, amount string) (*models.User, *models.Wallet, *models.Transaction) {
	t.Helper()

	user := models.User{Name: "Sender", Email: "sender@example.com", Password: "x"}
	require.NoError(t, f.db.Create(&user).Error)

	wallet, err := f.svc.CreateWallet(user.ID, "USD")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(wallet).Updates(map[string]interface{}{
		"balance":           decimal.RequireFromString(balance),
		"available_balance": decimal.RequireFromString(balance),
	}).Error)

	txn, _, err := f.svc.CreateTransfer(context.Background(), ledger.TransferParams{
		UserID:         user.ID,
		SourceCurrency: "USD",
		Amount:         decimal.RequireFromString(amount),
		Recipient:      "friend@example.com",
	})
	require.NoError(t, err)
	return &user, wallet, txn
}

func TestInitiateTransferMovesToProcessing(t *testing.T) {
	f := setup(t)
	_, _, txn := f.seedTransfer(t, "100", "50")

	f.custody.On("InitiateTransfer", mock.Anything, fmt.Sprintf("wallet:%d", txn.WalletID),
		"friend@example.com", mock.Anything, "USD").
		Return(&rails.TransferResult{ExternalID: "ext-42", Status: "created"}, nil)

	require.NoError(t, f.orch.InitiateTransfer(context.Background(), txn))

	assert.Equal(t, models.TransactionStatusProcessing, txn.Status)
	assert.Equal(t, "ext-42", txn.ExternalTransferID)

	var stored models.Transaction
	require.NoError(t, f.db.First(&stored, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusProcessing, stored.Status)
	assert.Equal(t, "ext-42", stored.ExternalTransferID)

	f.custody.AssertExpectations(t)
}

func TestInitiateTransferFailureReleasesReservation(t *testing.T) {
	f := setup(t)
	_, wallet, txn := f.seedTransfer(t, "100", "50")

	f.custody.On("InitiateTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("rail unavailable"))

	err := f.orch.InitiateTransfer(context.Background(), txn)
	assert.ErrorIs(t, err, ErrExternalRail)

	// The held funds came back.
	var after models.Wallet
	require.NoError(t, f.db.First(&after, wallet.ID).Error)
	assert.True(t, after.AvailableBalance.Equal(decimal.NewFromInt(100)), "available was %s", after.AvailableBalance)
	assert.True(t, after.ReservedBalance.IsZero())

	var stored models.Transaction
	require.NoError(t, f.db.First(&stored, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "rail unavailable")
}

func TestInitiateOnrampUsesSession(t *testing.T) {
	f := setup(t)

	user := models.User{Name: "Buyer", Email: "buyer@example.com", Password: "x"}
	require.NoError(t, f.db.Create(&user).Error)
	_, err := f.svc.CreateWallet(user.ID, "USD")
	require.NoError(t, err)

	txn, err := f.svc.CreateOnramp(context.Background(), user.ID, "USD", decimal.NewFromInt(500), "NGN", "BANK_TRANSFER")
	require.NoError(t, err)

	f.onramp.On("CreateSession", mock.Anything, mock.MatchedBy(func(p rails.SessionParams) bool {
		return p.Reference == txn.Reference && p.UserEmail == "buyer@example.com"
	})).Return(&rails.SessionResult{SessionID: "session-7", CheckoutURL: "https://pay.example/7"}, nil)

	session, err := f.orch.InitiateOnramp(context.Background(), txn, &user)
	require.NoError(t, err)
	assert.Equal(t, "session-7", session.SessionID)
	assert.False(t, session.Fallback)

	var stored models.Transaction
	require.NoError(t, f.db.First(&stored, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusProcessing, stored.Status)
	assert.Equal(t, "session-7", stored.ExternalTransferID)
}

func TestInitiateOnrampProviderDownFailsTransaction(t *testing.T) {
	f := setup(t)

	user := models.User{Name: "Buyer", Email: "buyer@example.com", Password: "x"}
	require.NoError(t, f.db.Create(&user).Error)
	_, err := f.svc.CreateWallet(user.ID, "USD")
	require.NoError(t, err)

	txn, err := f.svc.CreateOnramp(context.Background(), user.ID, "USD", decimal.NewFromInt(500), "NGN", "BANK_TRANSFER")
	require.NoError(t, err)

	f.onramp.On("CreateSession", mock.Anything, mock.Anything).Return(nil, errors.New("onramp down"))

	_, err = f.orch.InitiateOnramp(context.Background(), txn, &user)
	assert.ErrorIs(t, err, ErrExternalRail)

	var stored models.Transaction
	require.NoError(t, f.db.First(&stored, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusFailed, stored.Status)
}

func TestSweepSettlesStuckTransfer(t *testing.T) {
	f := setup(t)
	_, wallet, txn := f.seedTransfer(t, "100", "50")

	_, err := f.svc.MarkProcessing(txn.ID, "ext-stuck", "initiated")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("id = ?", txn.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	f.custody.On("GetTransferStatus", mock.Anything, "ext-stuck").Return("completed", nil)

	rec := NewReconciler(f.custody, f.svc, f.pool, f.cfg, utils.InitLogger())
	rec.SweepStuckTransfers()

	var stored models.Transaction
	require.NoError(t, f.db.First(&stored, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusCompleted, stored.Status)

	var after models.Wallet
	require.NoError(t, f.db.First(&after, wallet.ID).Error)
	assert.True(t, after.ReservedBalance.IsZero())
	assert.True(t, after.Balance.Equal(decimal.RequireFromString("49.25")), "balance was %s", after.Balance)
}

func TestSweepCreditsInternalRecipient(t *testing.T) {
	f := setup(t)

	recipient := models.User{Name: "Recipient", Email: "friend@example.com", Password: "x"}
	require.NoError(t, f.db.Create(&recipient).Error)
	recipientWallet, err := f.svc.CreateWallet(recipient.ID, "EUR")
	require.NoError(t, err)

	_, _, txn := f.seedTransfer(t, "100", "50")
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("id = ?", txn.ID).
		UpdateColumn("recipient_currency", "EUR").Error)

	_, err = f.svc.MarkProcessing(txn.ID, "ext-lost-webhook", "initiated")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("id = ?", txn.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	f.custody.On("GetTransferStatus", mock.Anything, "ext-lost-webhook").Return("completed", nil)

	rec := NewReconciler(f.custody, f.svc, f.pool, f.cfg, utils.InitLogger())
	rec.SweepStuckTransfers()

	// A sweep settlement pays the recipient exactly like the webhook would:
	// 50 USD arrives as 46 EUR and the hop consumes pool liquidity.
	var after models.Wallet
	require.NoError(t, f.db.First(&after, recipientWallet.ID).Error)
	assert.True(t, after.AvailableBalance.Equal(decimal.NewFromInt(46)), "available was %s", after.AvailableBalance)

	var credit models.Transaction
	require.NoError(t, f.db.Where("type = ?", models.TransactionTypeTransferReceive).First(&credit).Error)
	assert.Equal(t, recipient.ID, credit.UserID)

	balance, err := f.pool.Balance()
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(49950)), "pool was %s", balance)
}

func TestSweepFailsRejectedTransfer(t *testing.T) {
	f := setup(t)
	_, wallet, txn := f.seedTransfer(t, "100", "50")

	_, err := f.svc.MarkProcessing(txn.ID, "ext-dead", "initiated")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("id = ?", txn.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	f.custody.On("GetTransferStatus", mock.Anything, "ext-dead").Return("failed", nil)

	rec := NewReconciler(f.custody, f.svc, f.pool, f.cfg, utils.InitLogger())
	rec.SweepStuckTransfers()

	var stored models.Transaction
	require.NoError(t, f.db.First(&stored, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusFailed, stored.Status)

	var after models.Wallet
	require.NoError(t, f.db.First(&after, wallet.ID).Error)
	assert.True(t, after.AvailableBalance.Equal(decimal.NewFromInt(100)))
}

func TestSweepLeavesInFlightTransfersAlone(t *testing.T) {
	f := setup(t)
	_, _, txn := f.seedTransfer(t, "100", "50")

	_, err := f.svc.MarkProcessing(txn.ID, "ext-wait", "initiated")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("id = ?", txn.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	f.custody.On("GetTransferStatus", mock.Anything, "ext-wait").Return("processing", nil)

	rec := NewReconciler(f.custody, f.svc, f.pool, f.cfg, utils.InitLogger())
	rec.SweepStuckTransfers()

	var stored models.Transaction
	require.NoError(t, f.db.First(&stored, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusProcessing, stored.Status)
}
