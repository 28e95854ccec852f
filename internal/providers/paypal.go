package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PayPalProvider polls PayPal checkout orders, authenticating via a
// client-credentials OAuth token fetched fresh on each status call.
type PayPalProvider struct {
	client       *http.Client
	clientID     string
	clientSecret string
	baseURL      string
}

// NewPayPalProvider builds a PayPal adapter.
func NewPayPalProvider(client *http.Client, clientID, clientSecret, baseURL string) *PayPalProvider {
	return &PayPalProvider{client: client, clientID: clientID, clientSecret: clientSecret, baseURL: baseURL}
}

// Name identifies this adapter in the provider allow-list.
func (p *PayPalProvider) Name() string { return "paypal" }

var paypalStatusMap = map[string]string{
	"COMPLETED":             "AUTHORIZED",
	"APPROVED":              "TO_CONFIRM",
	"PAYER_ACTION_REQUIRED": "TO_CONFIRM",
	"CREATED":               "PENDING",
	"VOIDED":                "CANCELED",
}

// Status fetches an OAuth token, then GETs the order's current state. A
// token-fetch failure produces an error-prefixed CallLog with no order
// request made.
func (p *PayPalProvider) Status(ctx context.Context, token string) (Result, CallLog, error) {
	if p.clientID == "" || p.clientSecret == "" {
		return Result{}, CallLog{ErrorMessage: "missing paypal credentials"}, nil
	}

	accessToken, tokenLog, err := p.fetchAccessToken(ctx)
	if err != nil {
		return Result{}, tokenLog, nil
	}
	if tokenLog.ErrorMessage != "" {
		tokenLog.ErrorMessage = "token_error: " + tokenLog.ErrorMessage
		return Result{}, tokenLog, nil
	}

	orderURL := fmt.Sprintf("%s/v2/checkout/orders/%s", p.baseURL, token)
	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	log := CallLog{URL: orderURL, MaskedHeaders: marshalHeaders(headers)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, orderURL, nil)
	if err != nil {
		log.ErrorMessage = err.Error()
		return Result{}, log, nil
	}
	req.Header.Set("Authorization", headers["Authorization"])

	start := time.Now()
	resp, err := p.client.Do(req)
	log.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		log.ErrorMessage = err.Error()
		return Result{}, log, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.ErrorMessage = err.Error()
		return Result{}, log, nil
	}
	log.ResponseStatus = resp.StatusCode
	log.ResponseHeaders = marshalHeaders(flattenHeader(resp.Header))
	log.ResponseBody = jsonOrRaw(body)

	raw := extractJSONString(body, "status")
	mapped := paypalStatusMap[raw]

	return Result{
		ProviderStatusRaw: raw,
		MappedStatus:      mapped,
		ResponseCode:      resp.StatusCode,
		Payload:           jsonOrRaw(body),
	}, log, nil
}

func (p *PayPalProvider) fetchAccessToken(ctx context.Context) (string, CallLog, error) {
	tokenURL := p.baseURL + "/v1/oauth2/token"
	form := url.Values{"grant_type": {"client_credentials"}}

	log := CallLog{URL: tokenURL, MaskedHeaders: marshalHeaders(map[string]string{"Authorization": "Basic (client_id:client_secret)"})}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.ErrorMessage = err.Error()
		return "", log, nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	start := time.Now()
	resp, err := p.client.Do(req)
	log.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		log.ErrorMessage = err.Error()
		return "", log, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.ErrorMessage = err.Error()
		return "", log, nil
	}
	log.ResponseStatus = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.ErrorMessage = fmt.Sprintf("oauth token request failed with status %d", resp.StatusCode)
		return "", log, nil
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		log.ErrorMessage = err.Error()
		return "", log, nil
	}

	return tokenResp.AccessToken, log, nil
}
