// Package crm implements the outbound notification client the CRM sender
// loop uses to push PAYMENT_APPROVED/ABANDONED_CART events.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ninja-merchant/payments-reconciler/core/config"
	"github.com/ninja-merchant/payments-reconciler/core/services"
	"go.uber.org/fx"
)

func bytesReader(payload json.RawMessage) *bytes.Reader {
	return bytes.NewReader(payload)
}

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
}

func maskHeaders(headers map[string]string) json.RawMessage {
	masked := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[lower(k)] {
			masked[k] = "***"
		} else {
			masked[k] = v
		}
	}
	raw, err := json.Marshal(masked)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func jsonOrRaw(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	raw, err := json.Marshal(string(body))
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}

// Response is the outcome of one CRM send attempt.
type Response struct {
	StatusCode   int
	CrmID        string
	ErrorMessage string
}

// Event is the full audit record of one CRM send attempt.
type Event struct {
	URL             string
	RequestHeaders  json.RawMessage
	RequestBody     json.RawMessage
	ResponseStatus  int
	ResponseHeaders json.RawMessage
	ResponseBody    json.RawMessage
	ErrorMessage    string
	LatencyMs       int64
}

// Client posts payment notification payloads to the CRM.
type Client struct {
	client     *http.Client
	baseURL    string
	pagarPath  string
	authBearer string
}

// NewClient builds a CRM client.
func NewClient(cfg *config.AppConfig) *Client {
	httpClient := services.NewInstrumentedHTTPClient()
	httpClient.Timeout = time.Duration(cfg.CRMTimeoutSeconds) * time.Second

	return &Client{
		client:     httpClient,
		baseURL:    cfg.CRMBaseURL,
		pagarPath:  cfg.CRMPagarPath,
		authBearer: cfg.CRMAuthBearer,
	}
}

// Send POSTs payload to the CRM's notification endpoint and returns both
// the parsed outcome and the full request/response audit record.
func (c *Client) Send(ctx context.Context, payload json.RawMessage) (Response, Event, error) {
	url := c.baseURL + c.pagarPath

	headers := map[string]string{"Content-Type": "application/json"}
	if c.authBearer != "" {
		headers["Authorization"] = "Bearer " + c.authBearer
	}

	event := Event{URL: url, RequestHeaders: maskHeaders(headers), RequestBody: jsonOrRaw(payload)}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytesReader(payload))
	if err != nil {
		event.ErrorMessage = err.Error()
		return Response{ErrorMessage: err.Error()}, event, nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	event.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		event.ErrorMessage = err.Error()
		return Response{StatusCode: 0, ErrorMessage: err.Error()}, event, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		event.ErrorMessage = err.Error()
		return Response{StatusCode: resp.StatusCode, ErrorMessage: err.Error()}, event, nil
	}
	event.ResponseStatus = resp.StatusCode
	event.ResponseHeaders = maskHeaders(flattenHeader(resp.Header))
	event.ResponseBody = jsonOrRaw(body)

	out := Response{StatusCode: resp.StatusCode}
	var parsed map[string]interface{}
	if json.Unmarshal(body, &parsed) == nil {
		if id, ok := parsed["id"]; ok {
			out.CrmID = fmt.Sprintf("%v", id)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.ErrorMessage = fmt.Sprintf("crm responded with status %d", resp.StatusCode)
	}

	return out, event, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Module wires the CRM Client for fx.
var Module = fx.Module("crm", fx.Provide(NewClient))
