package rails

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// EventKind is the closed set of webhook events the reconciler dispatches on.
// Anything a provider sends outside this set parses to EventUnknown and is
// acknowledged without mutation.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCreated
	EventConfirmed
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventConfirmed:
		return "confirmed"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CustodyEvent is a parsed custody-rail webhook delivery.
type CustodyEvent struct {
	Kind         EventKind
	EventID      string
	ExternalID   string
	Status       string
	ErrorMessage string
}

// ParseCustodyEvent validates a custody webhook payload against the known
// shapes. Malformed JSON is an error; an unrecognized type is not.
func ParseCustodyEvent(body []byte) (*CustodyEvent, error) {
	var raw struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Data struct {
			ID           string `json:"id"`
			Status       string `json:"status"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed custody event: %w", err)
	}

	event := &CustodyEvent{
		EventID:      raw.ID,
		ExternalID:   raw.Data.ID,
		Status:       raw.Data.Status,
		ErrorMessage: raw.Data.ErrorMessage,
	}

	switch raw.Type {
	case "transfer.created":
		event.Kind = EventCreated
	case "transfer.confirmed":
		event.Kind = EventConfirmed
	case "transfer.completed":
		event.Kind = EventCompleted
	case "transfer.failed":
		event.Kind = EventFailed
	default:
		event.Kind = EventUnknown
	}

	return event, nil
}

// OnrampEvent is a parsed onramp-rail webhook delivery. The provider keys
// events by session id and reports status rather than an event type.
type OnrampEvent struct {
	Kind         EventKind
	SessionID    string
	Status       string
	CryptoAmount decimal.Decimal
}

// ParseOnrampEvent validates an onramp webhook payload. The provider has
// shipped both `id` and `sessionId`, and both `cryptoAmount` and `amount`;
// all four spellings are accepted.
func ParseOnrampEvent(body []byte) (*OnrampEvent, error) {
	var raw struct {
		ID           string          `json:"id"`
		SessionID    string          `json:"sessionId"`
		Status       string          `json:"status"`
		CryptoAmount decimal.Decimal `json:"cryptoAmount"`
		Amount       decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed onramp event: %w", err)
	}

	event := &OnrampEvent{
		SessionID:    raw.SessionID,
		Status:       raw.Status,
		CryptoAmount: raw.CryptoAmount,
	}
	if event.SessionID == "" {
		event.SessionID = raw.ID
	}
	if event.CryptoAmount.IsZero() {
		event.CryptoAmount = raw.Amount
	}

	switch raw.Status {
	case "created":
		event.Kind = EventCreated
	case "pending", "processing":
		event.Kind = EventConfirmed
	case "completed", "success":
		event.Kind = EventCompleted
	case "failed", "declined", "expired":
		event.Kind = EventFailed
	default:
		event.Kind = EventUnknown
	}

	return event, nil
}
