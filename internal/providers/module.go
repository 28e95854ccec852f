package providers

import (
	"net/http"

	"github.com/ninja-merchant/payments-reconciler/core/config"
	"github.com/ninja-merchant/payments-reconciler/core/services"
	"go.uber.org/fx"
)

// Registry maps a provider key (payment.provider) to its adapter, scoped
// to RECONCILE_POLLING_PROVIDERS.
type Registry map[string]Provider

// NewRegistry builds every configured adapter and returns the subset named
// in cfg.ReconcilePollingProviders, keyed by Name().
func NewRegistry(cfg *config.AppConfig) Registry {
	client := services.NewInstrumentedHTTPClient()

	all := map[string]Provider{
		"webpay": NewWebpayProvider(client, cfg.WebpayStatusURLTemplate, cfg.WebpayAPIKeyID, cfg.WebpayAPIKeySecret, cfg.WebpayCommerceCode),
		"stripe": NewStripeProvider(client, cfg.StripeAPIKey, cfg.StripeAPIBase),
		"paypal": NewPayPalProvider(client, cfg.PaypalClientID, cfg.PaypalClientSecret, cfg.PaypalBaseURL),
	}

	registry := make(Registry)
	for _, name := range cfg.ReconcilePollingProviders {
		if p, ok := all[name]; ok {
			registry[name] = p
		}
	}
	return registry
}

// Module wires the provider Registry for fx.
var Module = fx.Module("providers", fx.Provide(NewRegistry))
