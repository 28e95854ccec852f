package providers

import (
	"testing"

	"github.com/ninja-merchant/payments-reconciler/core/config"
)

func TestNewRegistry_ScopesToConfiguredProviders(t *testing.T) {
	// Arrange
	cfg := &config.AppConfig{
		ReconcilePollingProviders: []string{"stripe", "webpay"},
		StripeAPIKey:              "sk_test",
		StripeAPIBase:             "https://api.stripe.test",
		WebpayStatusURLTemplate:   "https://webpay.test/%s",
	}

	// Act
	registry := NewRegistry(cfg)

	// Assert
	if len(registry) != 2 {
		t.Fatalf("expected 2 registered providers, got %d", len(registry))
	}
	if _, ok := registry["stripe"]; !ok {
		t.Error("expected stripe to be registered")
	}
	if _, ok := registry["webpay"]; !ok {
		t.Error("expected webpay to be registered")
	}
	if _, ok := registry["paypal"]; ok {
		t.Error("expected paypal to be excluded when not in the allow-list")
	}
}

func TestNewRegistry_UnknownProviderNameIsIgnored(t *testing.T) {
	// Arrange
	cfg := &config.AppConfig{
		ReconcilePollingProviders: []string{"stripe", "not-a-real-provider"},
	}

	// Act
	registry := NewRegistry(cfg)

	// Assert
	if len(registry) != 1 {
		t.Fatalf("expected 1 registered provider, got %d", len(registry))
	}
	if _, ok := registry["stripe"]; !ok {
		t.Error("expected stripe to be registered")
	}
}

func TestNewRegistry_EmptyAllowListYieldsEmptyRegistry(t *testing.T) {
	// Arrange
	cfg := &config.AppConfig{}

	// Act
	registry := NewRegistry(cfg)

	// Assert
	if len(registry) != 0 {
		t.Errorf("expected empty registry, got %d entries", len(registry))
	}
}

func TestProviderNames(t *testing.T) {
	cases := []struct {
		provider Provider
		want     string
	}{
		{provider: NewStripeProvider(nil, "", ""), want: "stripe"},
		{provider: NewPayPalProvider(nil, "", "", ""), want: "paypal"},
		{provider: NewWebpayProvider(nil, "", "", "", ""), want: "webpay"},
	}

	for _, tc := range cases {
		if got := tc.provider.Name(); got != tc.want {
			t.Errorf("expected name %q, got %q", tc.want, got)
		}
	}
}
