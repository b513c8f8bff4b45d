package rails

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCustodyEvent(t *testing.T) {
	body := []byte(`{"type":"transfer.completed","id":"evt-7","data":{"id":"tr-42","status":"completed"}}`)

	event, err := ParseCustodyEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventCompleted, event.Kind)
	assert.Equal(t, "evt-7", event.EventID)
	assert.Equal(t, "tr-42", event.ExternalID)
}

func TestParseCustodyEventFailure(t *testing.T) {
	body := []byte(`{"type":"transfer.failed","id":"evt-8","data":{"id":"tr-43","status":"failed","errorMessage":"compliance hold"}}`)

	event, err := ParseCustodyEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventFailed, event.Kind)
	assert.Equal(t, "compliance hold", event.ErrorMessage)
}

func TestParseCustodyEventUnknownTypeIsNotAnError(t *testing.T) {
	body := []byte(`{"type":"transfer.reorged","id":"evt-9","data":{"id":"tr-44"}}`)

	event, err := ParseCustodyEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, event.Kind)
	assert.Equal(t, "tr-44", event.ExternalID)
}

func TestParseCustodyEventMalformedJSON(t *testing.T) {
	_, err := ParseCustodyEvent([]byte(`{"type": oops`))
	assert.Error(t, err)
}

func TestParseOnrampEventFieldSpellings(t *testing.T) {
	// Current spelling.
	event, err := ParseOnrampEvent([]byte(`{"sessionId":"s-1","status":"completed","cryptoAmount":"120.5"}`))
	require.NoError(t, err)
	assert.Equal(t, EventCompleted, event.Kind)
	assert.Equal(t, "s-1", event.SessionID)
	assert.True(t, event.CryptoAmount.Equal(decimal.RequireFromString("120.5")))

	// Legacy spelling the provider still emits.
	event, err = ParseOnrampEvent([]byte(`{"id":"s-2","status":"success","amount":99}`))
	require.NoError(t, err)
	assert.Equal(t, EventCompleted, event.Kind)
	assert.Equal(t, "s-2", event.SessionID)
	assert.True(t, event.CryptoAmount.Equal(decimal.NewFromInt(99)))
}

func TestParseOnrampEventStatusMapping(t *testing.T) {
	cases := map[string]EventKind{
		"created":    EventCreated,
		"pending":    EventConfirmed,
		"processing": EventConfirmed,
		"completed":  EventCompleted,
		"success":    EventCompleted,
		"failed":     EventFailed,
		"declined":   EventFailed,
		"expired":    EventFailed,
		"whatever":   EventUnknown,
	}

	for status, want := range cases {
		event, err := ParseOnrampEvent([]byte(`{"sessionId":"s","status":"` + status + `"}`))
		require.NoError(t, err)
		assert.Equal(t, want, event.Kind, "status %q", status)
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"type":"transfer.completed"}`)
	sig := ComputeSignature("secret", body)

	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("other-secret", body, sig))
	assert.False(t, VerifySignature("secret", []byte(`{"type":"tampered"}`), sig))
	assert.False(t, VerifySignature("secret", body, ""))
}
