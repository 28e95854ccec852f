package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebpayProvider polls Webpay's transaction status endpoint.
type WebpayProvider struct {
	client            *http.Client
	statusURLTemplate string
	apiKeyID          string
	apiKeySecret      string
	commerceCode      string
}

// NewWebpayProvider builds a Webpay adapter. statusURLTemplate must contain
// exactly one "%s" verb for the token.
func NewWebpayProvider(client *http.Client, statusURLTemplate, apiKeyID, apiKeySecret, commerceCode string) *WebpayProvider {
	return &WebpayProvider{
		client:            client,
		statusURLTemplate: statusURLTemplate,
		apiKeyID:          apiKeyID,
		apiKeySecret:      apiKeySecret,
		commerceCode:      commerceCode,
	}
}

// Name identifies this adapter in the provider allow-list.
func (p *WebpayProvider) Name() string { return "webpay" }

var webpayStatusMap = map[string]string{
	"AUTHORIZED":   "AUTHORIZED",
	"FAILED":       "FAILED",
	"REJECTED":     "FAILED",
	"REVERSED":     "CANCELED",
	"NULLIFIED":    "CANCELED",
	"PENDING":      "PENDING",
	"INITIALIZED":  "PENDING",
}

// Status calls Webpay's GET status endpoint for token and maps the raw
// status to the reconciler's mapped-status vocabulary.
func (p *WebpayProvider) Status(ctx context.Context, token string) (Result, CallLog, error) {
	url := fmt.Sprintf(p.statusURLTemplate, token)

	headers := map[string]string{
		"Tbk-Api-Key-Id":     p.apiKeyID,
		"Tbk-Api-Key-Secret": p.apiKeySecret,
		"Tbk-Commerce-Code":  p.commerceCode,
	}

	log := CallLog{URL: url, MaskedHeaders: marshalHeaders(headers)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.ErrorMessage = err.Error()
		return Result{}, log, nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

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

	status := extractJSONString(body, "status")
	mapped := webpayStatusMap[status]

	return Result{
		ProviderStatusRaw: status,
		MappedStatus:      mapped,
		ResponseCode:      resp.StatusCode,
		Payload:           jsonOrRaw(body),
	}, log, nil
}
