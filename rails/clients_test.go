package rails

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remit/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func custodyConfig(baseURL string) *config.Config {
	return &config.Config{
		CustodyApiURL:    baseURL,
		CustodyApiKey:    "api-key",
		CustodySecretKey: "signing-secret",
		RailTimeout:      5 * time.Second,
	}
}

func TestCustodyInitiateTransferSignsBody(t *testing.T) {
	var gotSignature string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transfers", r.URL.Path)
		require.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))
		gotSignature = r.Header.Get("X-Api-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"id":"tr-1","status":"created"}`)
	}))
	defer srv.Close()

	client := NewCustodyClient(custodyConfig(srv.URL))
	result, err := client.InitiateTransfer(context.Background(), "wallet:1", "friend@example.com",
		decimal.NewFromInt(50), "USD")
	require.NoError(t, err)
	assert.Equal(t, "tr-1", result.ExternalID)
	assert.Equal(t, "created", result.Status)

	// The request signature covers the exact marshaled body.
	assert.Equal(t, ComputeSignature("signing-secret", gotBody), gotSignature)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "wallet:1", payload["source"])
	assert.Equal(t, "50", payload["amount"])
}

func TestCustodyInitiateTransferRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"destination not allowed"}`)
	}))
	defer srv.Close()

	client := NewCustodyClient(custodyConfig(srv.URL))
	_, err := client.InitiateTransfer(context.Background(), "wallet:1", "bad", decimal.NewFromInt(50), "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestCustodyGetTransferStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transfers/tr-9", r.URL.Path)
		fmt.Fprint(w, `{"id":"tr-9","status":"completed"}`)
	}))
	defer srv.Close()

	client := NewCustodyClient(custodyConfig(srv.URL))
	status, err := client.GetTransferStatus(context.Background(), "tr-9")
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
}

func onrampConfig(baseURL string) *config.Config {
	return &config.Config{
		OnrampApiURL:    baseURL,
		OnrampApiKey:    "onramp-key",
		OnrampHostedURL: "https://onramp.example/buy",
		CallbackBaseURL: "https://api.remit.example",
		RailTimeout:     5 * time.Second,
	}
}

func sessionParams() SessionParams {
	return SessionParams{
		Amount:             decimal.RequireFromString("505"),
		Currency:           "NGN",
		DestinationAddress: "0xdeposit",
		DestinationNetwork: "matic20",
		Reference:          "ref-123",
		UserEmail:          "buyer@example.com",
		UserName:           "Buyer",
	}
}

func TestOnrampCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sessions", r.URL.Path)
		require.Equal(t, "onramp-key", r.Header.Get("X-Api-Key"))

		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "https://api.remit.example/webhooks/onramp", payload["webhookUrl"])
		assert.Equal(t, "ref-123", payload["reference"])

		fmt.Fprint(w, `{"sessionId":"s-55","checkoutUrl":"https://pay.example/s-55","status":"created"}`)
	}))
	defer srv.Close()

	client := NewOnrampClient(onrampConfig(srv.URL))
	session, err := client.CreateSession(context.Background(), sessionParams())
	require.NoError(t, err)
	assert.Equal(t, "s-55", session.SessionID)
	assert.Equal(t, "https://pay.example/s-55", session.CheckoutURL)
	assert.False(t, session.Fallback)
}

func TestOnrampCreateSessionFallsBackToHostedWidget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"api checkout not enabled"}`)
	}))
	defer srv.Close()

	client := NewOnrampClient(onrampConfig(srv.URL))
	session, err := client.CreateSession(context.Background(), sessionParams())
	require.NoError(t, err)
	assert.True(t, session.Fallback)
	assert.Equal(t, "ref-123", session.SessionID)
	assert.Contains(t, session.RedirectURL, "https://onramp.example/buy?")
	assert.Contains(t, session.RedirectURL, "merchantRecognitionId=ref-123")
	assert.Contains(t, session.RedirectURL, "fiatAmount=505")
	assert.Contains(t, session.RedirectURL, "walletAddress=0xdeposit")
}

func TestOnrampCreateSessionServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewOnrampClient(onrampConfig(srv.URL))
	_, err := client.CreateSession(context.Background(), sessionParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
