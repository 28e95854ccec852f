package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMaskHeaders_RedactsSensitiveValues(t *testing.T) {
	// Arrange
	headers := map[string]string{
		"Authorization":      "Bearer secret",
		"Tbk-Api-Key-Secret": "also-secret",
		"Content-Type":       "application/json",
	}

	// Act
	masked := maskHeaders(headers)

	// Assert
	if masked["Authorization"] != "***" {
		t.Errorf("expected Authorization masked, got: %s", masked["Authorization"])
	}
	if masked["Tbk-Api-Key-Secret"] != "***" {
		t.Errorf("expected Tbk-Api-Key-Secret masked, got: %s", masked["Tbk-Api-Key-Secret"])
	}
	if masked["Content-Type"] != "application/json" {
		t.Errorf("expected Content-Type untouched, got: %s", masked["Content-Type"])
	}
}

func TestJSONOrRaw(t *testing.T) {
	cases := []struct {
		name string
		body []byte
		want string
	}{
		{name: "empty becomes null", body: nil, want: "null"},
		{name: "valid json passes through", body: []byte(`{"a":1}`), want: `{"a":1}`},
		{name: "non-json is quoted as a string", body: []byte("not json"), want: `"not json"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := jsonOrRaw(tc.body)
			if string(got) != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestStripeProvider_CheckoutSessionWithPaymentIntent(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payment_status":"paid","payment_intent":{"status":"succeeded"}}`))
	}))
	defer server.Close()

	p := NewStripeProvider(server.Client(), "sk_test_123", server.URL)

	// Act
	result, log, err := p.Status(context.Background(), "cs_test_abc")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if log.ErrorMessage != "" {
		t.Fatalf("expected no call log error, got: %s", log.ErrorMessage)
	}
	if result.ProviderStatusRaw != "succeeded" {
		t.Errorf("expected nested payment_intent status to win, got: %s", result.ProviderStatusRaw)
	}
	if result.MappedStatus != "AUTHORIZED" {
		t.Errorf("expected AUTHORIZED, got: %s", result.MappedStatus)
	}
	if log.ResponseStatus != http.StatusOK {
		t.Errorf("expected 200, got: %d", log.ResponseStatus)
	}
}

func TestStripeProvider_BarePaymentIntentID(t *testing.T) {
	// Arrange
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"requires_payment_method"}`))
	}))
	defer server.Close()

	p := NewStripeProvider(server.Client(), "sk_test_123", server.URL)

	// Act
	result, _, err := p.Status(context.Background(), "pi_123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if requestedPath != "/v1/payment_intents/pi_123" {
		t.Errorf("expected bare payment intent path, got: %s", requestedPath)
	}
	if result.MappedStatus != "FAILED" {
		t.Errorf("expected FAILED, got: %s", result.MappedStatus)
	}
}

func TestStripeProvider_ClientSecretTokenExtractsPaymentIntentID(t *testing.T) {
	// Arrange
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"canceled"}`))
	}))
	defer server.Close()

	p := NewStripeProvider(server.Client(), "sk_test_123", server.URL)

	// Act
	result, _, err := p.Status(context.Background(), "pi_123_secret_xyz")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if requestedPath != "/v1/payment_intents/pi_123" {
		t.Errorf("expected payment intent id stripped of secret suffix, got: %s", requestedPath)
	}
	if result.MappedStatus != "CANCELED" {
		t.Errorf("expected CANCELED, got: %s", result.MappedStatus)
	}
}

func TestStripeProvider_MissingAPIKey(t *testing.T) {
	// Arrange
	p := NewStripeProvider(http.DefaultClient, "", "https://example.invalid")

	// Act
	_, log, err := p.Status(context.Background(), "pi_123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if log.ErrorMessage == "" {
		t.Error("expected a call log error when api key is missing")
	}
}

func TestPayPalProvider_Status(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			_, _ = w.Write([]byte(`{"access_token":"tok-abc"}`))
		case "/v2/checkout/orders/order-1":
			if r.Header.Get("Authorization") != "Bearer tok-abc" {
				t.Errorf("expected bearer token from oauth step, got: %s", r.Header.Get("Authorization"))
			}
			_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := NewPayPalProvider(server.Client(), "client-id", "client-secret", server.URL)

	// Act
	result, log, err := p.Status(context.Background(), "order-1")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if log.ErrorMessage != "" {
		t.Fatalf("expected no call log error, got: %s", log.ErrorMessage)
	}
	if result.MappedStatus != "AUTHORIZED" {
		t.Errorf("expected AUTHORIZED, got: %s", result.MappedStatus)
	}
}

func TestPayPalProvider_TokenFetchFailureSkipsOrderCall(t *testing.T) {
	// Arrange
	orderCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		orderCalled = true
	}))
	defer server.Close()

	p := NewPayPalProvider(server.Client(), "bad-id", "bad-secret", server.URL)

	// Act
	_, log, err := p.Status(context.Background(), "order-1")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if log.ErrorMessage == "" {
		t.Error("expected a token_error prefixed call log error")
	}
	if orderCalled {
		t.Error("expected order endpoint not to be called after token failure")
	}
}

func TestPayPalProvider_MissingCredentials(t *testing.T) {
	// Arrange
	p := NewPayPalProvider(http.DefaultClient, "", "", "https://example.invalid")

	// Act
	_, log, err := p.Status(context.Background(), "order-1")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if log.ErrorMessage == "" {
		t.Error("expected a call log error when credentials are missing")
	}
}

func TestWebpayProvider_Status(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Tbk-Api-Key-Id") != "key-id" {
			t.Errorf("expected Tbk-Api-Key-Id header, got: %s", r.Header.Get("Tbk-Api-Key-Id"))
		}
		_, _ = w.Write([]byte(`{"status":"REVERSED"}`))
	}))
	defer server.Close()

	p := NewWebpayProvider(server.Client(), server.URL+"/transactions/%s/status", "key-id", "key-secret", "commerce-1")

	// Act
	result, log, err := p.Status(context.Background(), "tok-1")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if log.ErrorMessage != "" {
		t.Fatalf("expected no call log error, got: %s", log.ErrorMessage)
	}
	if result.MappedStatus != "CANCELED" {
		t.Errorf("expected CANCELED, got: %s", result.MappedStatus)
	}
	var maskedHeaders map[string]string
	if err := json.Unmarshal(log.MaskedHeaders, &maskedHeaders); err != nil {
		t.Fatalf("expected masked headers to be valid JSON: %v", err)
	}
	if maskedHeaders["Tbk-Api-Key-Secret"] != "***" {
		t.Errorf("expected Tbk-Api-Key-Secret masked in call log, got: %s", maskedHeaders["Tbk-Api-Key-Secret"])
	}
}

func TestWebpayProvider_UnmappedStatusIsEmpty(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"SOME_UNKNOWN_STATE"}`))
	}))
	defer server.Close()

	p := NewWebpayProvider(server.Client(), server.URL+"/transactions/%s/status", "key-id", "key-secret", "commerce-1")

	// Act
	result, _, err := p.Status(context.Background(), "tok-2")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.MappedStatus != "" {
		t.Errorf("expected empty mapped status for unknown raw status, got: %s", result.MappedStatus)
	}
	if result.ProviderStatusRaw != "SOME_UNKNOWN_STATE" {
		t.Errorf("expected raw status preserved, got: %s", result.ProviderStatusRaw)
	}
}
