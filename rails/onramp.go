package rails

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"remit/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// OnrampClient talks to the fiat-to-stablecoin onramp provider. Session
// creation is synchronous; the purchase itself settles via webhook.
type OnrampClient struct {
	client        *resty.Client
	apiKey        string
	webhookSecret string
	hostedURL     string
	callbackBase  string
}

func NewOnrampClient(cfg *config.Config) *OnrampClient {
	client := resty.New().
		SetBaseURL(cfg.OnrampApiURL).
		SetTimeout(cfg.RailTimeout).
		SetHeader("X-Api-Key", cfg.OnrampApiKey).
		SetHeader("Content-Type", "application/json")

	return &OnrampClient{
		client:        client,
		apiKey:        cfg.OnrampApiKey,
		webhookSecret: cfg.OnrampWebhookSecret,
		hostedURL:     cfg.OnrampHostedURL,
		callbackBase:  cfg.CallbackBaseURL,
	}
}

// SessionParams describes the checkout session to create.
type SessionParams struct {
	Amount             decimal.Decimal
	Currency           string
	DestinationAddress string
	DestinationNetwork string
	Reference          string
	UserEmail          string
	UserName           string
}

// SessionResult is the created checkout, either through the API integration
// or the hosted-redirect fallback.
type SessionResult struct {
	SessionID   string
	CheckoutURL string
	RedirectURL string
	Status      string
	Fallback    bool
}

// CreateSession creates an onramp checkout session. When the provider
// rejects the API integration mode for this account, the hosted widget URL
// is constructed deterministically instead of failing the whole request.
// Connectivity failures still surface as errors.
func (o *OnrampClient) CreateSession(ctx context.Context, p SessionParams) (*SessionResult, error) {
	payload := map[string]interface{}{
		"amount":             p.Amount.String(),
		"currency":           p.Currency,
		"destinationAddress": p.DestinationAddress,
		"destinationNetwork": p.DestinationNetwork,
		"reference":          p.Reference,
		"customer": map[string]string{
			"email": p.UserEmail,
			"name":  p.UserName,
		},
		"webhookUrl": o.callbackBase + "/webhooks/onramp",
	}

	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/sessions")
	if err != nil {
		return nil, fmt.Errorf("onramp session creation failed: %w", err)
	}

	if resp.StatusCode() >= 300 {
		// Accounts without API checkout enabled get a 4xx here; the hosted
		// widget accepts the same parameters through the query string.
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			return o.hostedSession(p), nil
		}
		return nil, fmt.Errorf("onramp session rejected: %d %s", resp.StatusCode(), resp.String())
	}

	var raw struct {
		SessionID   string `json:"sessionId"`
		CheckoutURL string `json:"checkoutUrl"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("invalid onramp response: %w", err)
	}
	if raw.SessionID == "" {
		return nil, fmt.Errorf("onramp response missing session id")
	}

	return &SessionResult{
		SessionID:   raw.SessionID,
		CheckoutURL: raw.CheckoutURL,
		Status:      raw.Status,
	}, nil
}

func (o *OnrampClient) hostedSession(p SessionParams) *SessionResult {
	q := url.Values{}
	q.Set("appId", o.apiKey)
	q.Set("fiatAmount", p.Amount.String())
	q.Set("fiatType", p.Currency)
	q.Set("walletAddress", p.DestinationAddress)
	q.Set("network", p.DestinationNetwork)
	q.Set("merchantRecognitionId", p.Reference)

	return &SessionResult{
		SessionID:   p.Reference,
		RedirectURL: o.hostedURL + "?" + q.Encode(),
		Status:      "created",
		Fallback:    true,
	}
}

// VerifyWebhookSignature checks an onramp webhook against this rail's
// distinct shared secret.
func (o *OnrampClient) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifySignature(o.webhookSecret, body, signature)
}
