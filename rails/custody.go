package rails

import (
	"context"
	"encoding/json"
	"fmt"

	"remit/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// CustodyClient talks to the stablecoin custody/transfer provider. Initiation
// is synchronous; final settlement always arrives later through the webhook.
type CustodyClient struct {
	client        *resty.Client
	secretKey     string
	webhookSecret string
}

func NewCustodyClient(cfg *config.Config) *CustodyClient {
	client := resty.New().
		SetBaseURL(cfg.CustodyApiURL).
		SetTimeout(cfg.RailTimeout).
		SetHeader("Authorization", "Bearer "+cfg.CustodyApiKey).
		SetHeader("Content-Type", "application/json")

	return &CustodyClient{
		client:        client,
		secretKey:     cfg.CustodySecretKey,
		webhookSecret: cfg.CustodyWebhookSecret,
	}
}

// TransferResult is the provider's synchronous acknowledgement of an
// initiated transfer.
type TransferResult struct {
	ExternalID string `json:"id"`
	Status     string `json:"status"`
}

// InitiateTransfer asks the custody provider to move funds between two
// references. The returned external id is the key webhooks are matched on.
func (c *CustodyClient) InitiateTransfer(ctx context.Context, sourceRef, destinationRef string, amount decimal.Decimal, currency string) (*TransferResult, error) {
	payload := map[string]interface{}{
		"source":      sourceRef,
		"destination": destinationRef,
		"amount":      amount.String(),
		"currency":    currency,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Signature", ComputeSignature(c.secretKey, body)).
		SetBody(body).
		Post("/transfers")
	if err != nil {
		return nil, fmt.Errorf("custody transfer initiation failed: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("custody transfer rejected: %d %s", resp.StatusCode(), resp.String())
	}

	var result TransferResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("invalid custody response: %w", err)
	}
	if result.ExternalID == "" {
		return nil, fmt.Errorf("custody response missing transfer id")
	}

	return &result, nil
}

// GetTransferStatus polls the provider for the current status of a transfer.
// Used by the reconciliation sweep when a webhook never arrives.
func (c *CustodyClient) GetTransferStatus(ctx context.Context, externalID string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/transfers/" + externalID)
	if err != nil {
		return "", fmt.Errorf("custody status query failed: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return "", fmt.Errorf("custody status query rejected: %d %s", resp.StatusCode(), resp.String())
	}

	var result TransferResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("invalid custody response: %w", err)
	}
	return result.Status, nil
}

// VerifyWebhookSignature checks a custody webhook against the shared secret.
func (c *CustodyClient) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifySignature(c.webhookSecret, body, signature)
}
