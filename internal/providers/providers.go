// Package providers implements the uniform status-check capability over
// the three PSPs the reconciler polls: Webpay, Stripe, and PayPal.
package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Result is a provider's answer to "what is this token's status now".
type Result struct {
	ProviderStatusRaw string
	MappedStatus      string // one of AUTHORIZED/TO_CONFIRM/PENDING/FAILED/CANCELED, or "" for unmapped
	ResponseCode      int
	Payload           json.RawMessage
}

// CallLog is the audit record of one outbound HTTP call to a provider.
type CallLog struct {
	URL             string
	MaskedHeaders   json.RawMessage
	Body            json.RawMessage
	ResponseStatus  int
	ResponseHeaders json.RawMessage
	ResponseBody    json.RawMessage
	ErrorMessage    string
	LatencyMs       int64
}

// Provider is the capability every PSP adapter exposes: check the current
// status of a previously-created transaction token.
type Provider interface {
	// Name is the provider key used in payment.provider and the
	// RECONCILE_POLLING_PROVIDERS allow-list.
	Name() string
	Status(ctx context.Context, token string) (Result, CallLog, error)
}

var sensitiveHeaders = map[string]bool{
	"authorization":          true,
	"tbk-api-key-secret":     true,
	"x-api-key":              true,
}

// maskHeaders returns a copy of headers with sensitive values replaced by
// "***", matching spec's masking rule — the only sensitive-data protection
// applied to persisted audit rows.
func maskHeaders(headers map[string]string) map[string]string {
	masked := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[strings.ToLower(k)] {
			masked[k] = "***"
		} else {
			masked[k] = v
		}
	}
	return masked
}

func marshalHeaders(headers map[string]string) json.RawMessage {
	raw, err := json.Marshal(maskHeaders(headers))
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
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

// flattenHeader keeps the first value of each response header for masking
// and audit logging purposes.
func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// extractJSONString pulls a single top-level string field out of a raw
// JSON body, returning "" if the body isn't an object or the field is
// absent/non-string. Used to read a provider's raw status code without
// committing to its full response schema.
func extractJSONString(body []byte, field string) string {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	v, ok := obj[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
