package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StripeProvider polls Stripe checkout sessions and payment intents.
type StripeProvider struct {
	client  *http.Client
	apiKey  string
	apiBase string
}

// NewStripeProvider builds a Stripe adapter. Requests use HTTP Basic auth
// with apiKey as the username and an empty password, per Stripe's API.
func NewStripeProvider(client *http.Client, apiKey, apiBase string) *StripeProvider {
	return &StripeProvider{client: client, apiKey: apiKey, apiBase: apiBase}
}

// Name identifies this adapter in the provider allow-list.
func (p *StripeProvider) Name() string { return "stripe" }

var stripePaymentIntentStatusMap = map[string]string{
	"succeeded":               "AUTHORIZED",
	"requires_capture":        "AUTHORIZED",
	"processing":              "TO_CONFIRM",
	"requires_action":         "TO_CONFIRM",
	"requires_payment_method": "FAILED",
	"canceled":                "CANCELED",
}

var stripeCheckoutPaymentStatusMap = map[string]string{
	"paid":                "AUTHORIZED",
	"no_payment_required": "AUTHORIZED",
	"unpaid":              "TO_CONFIRM",
}

// Status dispatches on the token's prefix: "cs_..." is a checkout session
// (expanded to its nested payment_intent), "pi_..._secret_..." is a
// client-secret form of a payment intent id, anything else is taken as a
// bare payment intent id.
func (p *StripeProvider) Status(ctx context.Context, token string) (Result, CallLog, error) {
	if p.apiKey == "" {
		return Result{}, CallLog{ErrorMessage: "missing stripe api key"}, nil
	}

	switch {
	case strings.HasPrefix(token, "cs_"):
		return p.statusCheckoutSession(ctx, token)
	case strings.HasPrefix(token, "pi_") && strings.Contains(token, "_secret_"):
		piID := token[:strings.Index(token, "_secret_")]
		return p.statusPaymentIntent(ctx, piID)
	default:
		return p.statusPaymentIntent(ctx, token)
	}
}

func (p *StripeProvider) statusCheckoutSession(ctx context.Context, sessionID string) (Result, CallLog, error) {
	url := fmt.Sprintf("%s/v1/checkout/sessions/%s?expand[]=payment_intent", p.apiBase, sessionID)
	body, log, err := p.get(ctx, url)
	if err != nil || log.ErrorMessage != "" {
		return Result{}, log, err
	}

	var session struct {
		PaymentStatus string `json:"payment_status"`
		PaymentIntent *struct {
			Status string `json:"status"`
		} `json:"payment_intent"`
	}
	if jsonErr := json.Unmarshal(body, &session); jsonErr != nil {
		log.ErrorMessage = jsonErr.Error()
		return Result{}, log, nil
	}

	var raw, mapped string
	if session.PaymentIntent != nil {
		raw = session.PaymentIntent.Status
		mapped = stripePaymentIntentStatusMap[raw]
	} else {
		raw = session.PaymentStatus
		mapped = stripeCheckoutPaymentStatusMap[raw]
	}

	return Result{
		ProviderStatusRaw: raw,
		MappedStatus:      mapped,
		ResponseCode:      log.ResponseStatus,
		Payload:           jsonOrRaw(body),
	}, log, nil
}

func (p *StripeProvider) statusPaymentIntent(ctx context.Context, paymentIntentID string) (Result, CallLog, error) {
	url := fmt.Sprintf("%s/v1/payment_intents/%s", p.apiBase, paymentIntentID)
	body, log, err := p.get(ctx, url)
	if err != nil || log.ErrorMessage != "" {
		return Result{}, log, err
	}

	raw := extractJSONString(body, "status")
	mapped := stripePaymentIntentStatusMap[raw]

	return Result{
		ProviderStatusRaw: raw,
		MappedStatus:      mapped,
		ResponseCode:      log.ResponseStatus,
		Payload:           jsonOrRaw(body),
	}, log, nil
}

func (p *StripeProvider) get(ctx context.Context, url string) ([]byte, CallLog, error) {
	headers := map[string]string{"Authorization": "Basic (api_key)"}
	log := CallLog{URL: url, MaskedHeaders: marshalHeaders(headers)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.ErrorMessage = err.Error()
		return nil, log, nil
	}
	req.SetBasicAuth(p.apiKey, "")

	start := time.Now()
	resp, err := p.client.Do(req)
	log.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		log.ErrorMessage = err.Error()
		return nil, log, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.ErrorMessage = err.Error()
		return nil, log, nil
	}
	log.ResponseStatus = resp.StatusCode
	log.ResponseHeaders = marshalHeaders(flattenHeader(resp.Header))
	log.ResponseBody = jsonOrRaw(body)

	return body, log, nil
}
