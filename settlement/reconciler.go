package settlement

import (
	"context"
	"time"

	"remit/bridge"
	"remit/config"
	"remit/ledger"
	"remit/models"
	"remit/utils"

	"github.com/robfig/cron/v3"
)

// Reconciler is the safety net for lost webhooks: it periodically polls the
// custody rail for transfers stuck in PROCESSING and settles them from the
// provider's answer. It also runs the hourly bridge pool check.
type Reconciler struct {
	custody CustodyRail
	ledger  *ledger.Service
	pool    *bridge.Pool
	cfg     *config.Config
	log     *utils.Logger
	cron    *cron.Cron
}

func NewReconciler(custody CustodyRail, svc *ledger.Service, pool *bridge.Pool, cfg *config.Config, log *utils.Logger) *Reconciler {
	return &Reconciler{custody: custody, ledger: svc, pool: pool, cfg: cfg, log: log}
}

// Start schedules the reconciliation sweep and the pool check.
func (r *Reconciler) Start() {
	r.log.Infof("[RECONCILER] starting: sweep every 10m, pool check hourly")

	r.cron = cron.New()

	r.cron.AddFunc("@every 10m", func() {
		r.SweepStuckTransfers()
	})

	r.cron.AddFunc("@hourly", func() {
		if _, err := r.pool.Rebalance(); err != nil {
			r.log.Errorf("[RECONCILER] pool check failed: %v", err)
		}
	})

	r.cron.Start()
}

// Stop halts the schedulers. Sweeps already running finish.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// SweepStuckTransfers polls the custody rail for every transfer that has sat
// in PROCESSING past the reconciliation window and applies the provider's
// verdict. Each row is handled independently; one bad poll never stalls the
// sweep.
func (r *Reconciler) SweepStuckTransfers() {
	cutoff := time.Now().Add(-r.cfg.ReconcileAfter)

	txns, err := r.ledger.StuckProcessing(cutoff)
	if err != nil {
		r.log.Errorf("[RECONCILER] fetching stuck transfers failed: %v", err)
		return
	}
	if len(txns) == 0 {
		return
	}

	r.log.Infof("[RECONCILER] found %d transactions stuck in PROCESSING", len(txns))

	for _, txn := range txns {
		if txn.Type != models.TransactionTypeTransferSend {
			// Onramp sessions have no poll endpoint; they resolve by webhook
			// or expire on the provider side.
			r.log.Warnf("[RECONCILER] txn %d (%s) stuck since %s, waiting on provider webhook",
				txn.ID, txn.Type, txn.UpdatedAt.Format(time.RFC3339))
			continue
		}
		r.reconcileTransfer(&txn)
	}
}

func (r *Reconciler) reconcileTransfer(txn *models.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RailTimeout)
	defer cancel()

	status, err := r.custody.GetTransferStatus(ctx, txn.ExternalTransferID)
	if err != nil {
		r.log.Errorf("[RECONCILER] status poll for txn %d (%s) failed: %v", txn.ID, txn.ExternalTransferID, err)
		return
	}

	switch status {
	case "completed", "settled":
		// SettleTransfer carries the internal recipient credit, so a sweep
		// settlement pays out exactly like a webhook settlement would.
		applied, err := r.ledger.SettleTransfer(ctx, txn.ID, "reconciliation sweep: provider reports "+status)
		if err != nil {
			r.log.Errorf("[RECONCILER] completing txn %d failed: %v", txn.ID, err)
			return
		}
		if applied {
			r.log.Infof("[RECONCILER] settled stuck txn %d from provider status %q", txn.ID, status)
		}
	case "failed", "cancelled", "rejected":
		applied, err := r.ledger.FailTransaction(txn.ID, "reconciliation sweep: provider reports "+status)
		if err != nil {
			r.log.Errorf("[RECONCILER] failing txn %d failed: %v", txn.ID, err)
			return
		}
		if applied {
			r.log.Infof("[RECONCILER] failed stuck txn %d from provider status %q", txn.ID, status)
		}
	default:
		r.log.Infof("[RECONCILER] txn %d still %q on provider side, leaving as is", txn.ID, status)
	}
}
