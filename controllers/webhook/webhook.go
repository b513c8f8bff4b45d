package webhookController

import (
	"errors"

	"remit/config"
	"remit/ledger"
	"remit/middleware"
	"remit/models"
	"remit/rails"
	"remit/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const signatureHeader = "X-Webhook-Signature"

type Controller struct {
	DB     *gorm.DB
	Ledger *ledger.Service
	Cfg    *config.Config
	Log    *utils.Logger
}

func New(db *gorm.DB, svc *ledger.Service, cfg *config.Config, log *utils.Logger) *Controller {
	return &Controller{DB: db, Ledger: svc, Cfg: cfg, Log: log}
}

// verifySignature checks the rail's HMAC over the exact raw body. An empty
// secret skips verification outside production only, and loudly.
func (ctl *Controller) verifySignature(c *fiber.Ctx, rail, secret string) bool {
	if secret == "" {
		if ctl.Cfg.IsProduction() {
			return false
		}
		ctl.Log.Warnf("[WEBHOOK] %s signature verification skipped: no secret configured (non-production)", rail)
		return true
	}
	return rails.VerifySignature(secret, c.Body(), c.Get(signatureHeader))
}

// CustodyWebhook ingests transfer lifecycle events from the custody rail.
// Deliveries are at-least-once and unordered; every branch here is safe to
// replay.
func (ctl *Controller) CustodyWebhook(c *fiber.Ctx) error {
	if !ctl.verifySignature(c, "custody", ctl.Cfg.CustodyWebhookSecret) {
		ctl.Log.Warnf("[WEBHOOK] custody delivery rejected: bad signature")
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid signature!", nil)
	}

	event, err := rails.ParseCustodyEvent(c.Body())
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Malformed event payload!", nil)
	}

	if event.Kind == rails.EventUnknown {
		ctl.Log.Infof("[WEBHOOK] ignoring unknown custody event %s", event.EventID)
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event acknowledged.", nil)
	}

	txn, err := ctl.Ledger.FindByExternalID(event.ExternalID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		// Not ours (or a replay for a purged row); acknowledge so the rail
		// stops redelivering.
		ctl.Log.Warnf("[WEBHOOK] custody event %s references unknown transfer %s", event.EventID, event.ExternalID)
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event acknowledged.", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event!", nil)
	}

	switch event.Kind {
	case rails.EventCreated, rails.EventConfirmed:
		if _, err := ctl.Ledger.MarkProcessing(txn.ID, event.ExternalID, "custody reported "+event.Kind.String()); err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event!", nil)
		}

	case rails.EventCompleted:
		// Settlement and the internal recipient credit are one atomic unit;
		// an error here must surface as a 5xx so the rail redelivers and the
		// whole settlement is retried.
		applied, err := ctl.Ledger.SettleTransfer(c.Context(), txn.ID, "custody reported transfer completed")
		if err != nil {
			ctl.Log.Errorf("[WEBHOOK] settling txn %d failed: %v", txn.ID, err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event!", nil)
		}
		if !applied && txn.Status == models.TransactionStatusFailed {
			ctl.Log.Warnf("[WEBHOOK] late completion event for failed txn %d (external %s), ignoring", txn.ID, event.ExternalID)
		}

	case rails.EventFailed:
		reason := event.ErrorMessage
		if reason == "" {
			reason = "custody transfer failed"
		}
		if _, err := ctl.Ledger.FailTransaction(txn.ID, reason); err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event!", nil)
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Event processed.", nil)
}

// OnrampWebhook ingests session status events from the onramp rail.
func (ctl *Controller) OnrampWebhook(c *fiber.Ctx) error {
	if !ctl.verifySignature(c, "onramp", ctl.Cfg.OnrampWebhookSecret) {
		ctl.Log.Warnf("[WEBHOOK] onramp delivery rejected: bad signature")
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid signature!", nil)
	}

	event, err := rails.ParseOnrampEvent(c.Body())
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Malformed event payload!", nil)
	}

	if event.Kind == rails.EventUnknown {
		ctl.Log.Infof("[WEBHOOK] ignoring onramp event with status %q", event.Status)
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event acknowledged.", nil)
	}

	txn, err := ctl.Ledger.FindByExternalID(event.SessionID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		ctl.Log.Warnf("[WEBHOOK] onramp event references unknown session %s", event.SessionID)
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event acknowledged.", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event!", nil)
	}

	switch event.Kind {
	case rails.EventCreated, rails.EventConfirmed:
		if _, err := ctl.Ledger.MarkProcessing(txn.ID, event.SessionID, "onramp reported "+event.Status); err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event!", nil)
		}

	case rails.EventCompleted:
		if !event.CryptoAmount.IsPositive() {
			ctl.Log.Warnf("[WEBHOOK] onramp completion for session %s carries no crypto amount", event.SessionID)
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Missing crypto amount!", nil)
		}
		applied, err := ctl.Ledger.SettleOnramp(c.Context(), txn.ID, event.CryptoAmount)
		if err != nil {
			ctl.Log.Errorf("[WEBHOOK] settling onramp txn %d failed: %v", txn.ID, err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event!", nil)
		}
		if !applied && txn.Status == models.TransactionStatusFailed {
			ctl.Log.Warnf("[WEBHOOK] late settlement event for failed onramp txn %d, ignoring", txn.ID)
		}

	case rails.EventFailed:
		if _, err := ctl.Ledger.FailTransaction(txn.ID, "onramp session "+event.Status); err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process event!", nil)
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Event processed.", nil)
}
