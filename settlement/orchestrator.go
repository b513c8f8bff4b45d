package settlement

import (
	"context"
	"errors"
	"fmt"

	"remit/config"
	"remit/ledger"
	"remit/models"
	"remit/rails"
	"remit/utils"

	"github.com/shopspring/decimal"
)

// ErrExternalRail marks an initiation failure on the provider side. By the
// time a caller sees it, the transaction is FAILED and the reservation has
// been released.
var ErrExternalRail = errors.New("external rail error")

// CustodyRail is the capability the orchestrator needs from the stablecoin
// custody provider.
type CustodyRail interface {
	InitiateTransfer(ctx context.Context, sourceRef, destinationRef string, amount decimal.Decimal, currency string) (*rails.TransferResult, error)
	GetTransferStatus(ctx context.Context, externalID string) (string, error)
}

// OnrampRail is the capability the orchestrator needs from the
// fiat-to-stablecoin provider.
type OnrampRail interface {
	CreateSession(ctx context.Context, p rails.SessionParams) (*rails.SessionResult, error)
}

// Orchestrator hands PENDING transactions to the configured external rail
// and records the outcome. It never marks completion itself; that is webhook
// territory.
type Orchestrator struct {
	custody CustodyRail
	onramp  OnrampRail
	ledger  *ledger.Service
	cfg     *config.Config
	log     *utils.Logger
}

func NewOrchestrator(custody CustodyRail, onramp OnrampRail, svc *ledger.Service, cfg *config.Config, log *utils.Logger) *Orchestrator {
	return &Orchestrator{custody: custody, onramp: onramp, ledger: svc, cfg: cfg, log: log}
}

// InitiateTransfer starts settlement of a reserved transfer on the custody
// rail. On success the transaction moves to PROCESSING with the external id
// attached. On any failure the transaction is failed and the reservation
// released; funds are never left held against a call that went nowhere.
func (o *Orchestrator) InitiateTransfer(ctx context.Context, txn *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RailTimeout)
	defer cancel()

	sourceRef := fmt.Sprintf("wallet:%d", txn.WalletID)
	result, err := o.custody.InitiateTransfer(ctx, sourceRef, txn.Recipient, txn.Amount, txn.Currency)
	if err != nil {
		o.log.Errorf("[SETTLEMENT] initiation failed for txn %d: %v", txn.ID, err)
		if _, failErr := o.ledger.FailTransaction(txn.ID, "settlement initiation failed: "+err.Error()); failErr != nil {
			// The reservation is still held; the reconciliation sweep will
			// not find this row (no external id), so surface loudly.
			o.log.Errorf("[SETTLEMENT] could not release reservation for txn %d: %v", txn.ID, failErr)
			return failErr
		}
		return fmt.Errorf("%w: %v", ErrExternalRail, err)
	}

	if _, err := o.ledger.MarkProcessing(txn.ID, result.ExternalID, "settlement initiated, provider status "+result.Status); err != nil {
		return err
	}

	txn.ExternalTransferID = result.ExternalID
	txn.Status = models.TransactionStatusProcessing
	return nil
}

// InitiateOnramp creates a checkout session for a fiat-to-stablecoin
// purchase. The provider may reject the API integration mode, in which case
// the hosted-redirect fallback from the rail client is used; only a full
// failure fails the transaction.
func (o *Orchestrator) InitiateOnramp(ctx context.Context, txn *models.Transaction, user *models.User) (*rails.SessionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RailTimeout)
	defer cancel()

	session, err := o.onramp.CreateSession(ctx, rails.SessionParams{
		Amount:             txn.TotalDebit(),
		Currency:           txn.Currency,
		DestinationAddress: o.cfg.OnrampDepositAddr,
		DestinationNetwork: o.cfg.OnrampNetwork,
		Reference:          txn.Reference,
		UserEmail:          user.Email,
		UserName:           user.Name,
	})
	if err != nil {
		o.log.Errorf("[SETTLEMENT] onramp session failed for txn %d: %v", txn.ID, err)
		if _, failErr := o.ledger.FailTransaction(txn.ID, "onramp session creation failed: "+err.Error()); failErr != nil {
			return nil, failErr
		}
		return nil, fmt.Errorf("%w: %v", ErrExternalRail, err)
	}

	mode := "api checkout"
	if session.Fallback {
		mode = "hosted redirect fallback"
	}
	if _, err := o.ledger.MarkProcessing(txn.ID, session.SessionID, "onramp session created via "+mode); err != nil {
		return nil, err
	}

	txn.ExternalTransferID = session.SessionID
	txn.Status = models.TransactionStatusProcessing
	return session, nil
}
