// Package payload builds the CRM notification body for a payment,
// implementing the field-by-field fallback chains of spec §4.4.
package payload

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ninja-merchant/payments-reconciler/internal/store"
)

// CRMPayload is the JSON body sent to the CRM's pagar endpoint.
type CRMPayload struct {
	RutDepositante   *string `json:"rutDepositante"`
	NombreDepositante string `json:"nombreDepositante"`
	PaymentMethod    string  `json:"paymentMethod"`
	TransactionID    string  `json:"transactionId"`
	Monto            string  `json:"monto"`
	ListContrato     []string `json:"listContrato"`
	ListCuota        []int    `json:"listCuota"`
}

// Build assembles the CRM payload for payment, following spec §4.4's
// fallback chains exactly. operation is carried for future use by callers
// that branch CRM body shape on it; today both PAYMENT_APPROVED and
// ABANDONED_CART share this shape.
func Build(p store.Payment, operation string) (json.RawMessage, error) {
	out := CRMPayload{
		RutDepositante:    rutDepositante(p),
		NombreDepositante: nombreDepositante(p),
		PaymentMethod:     p.Provider,
		TransactionID:     transactionID(p),
		Monto:             monto(p),
		ListContrato:      listContrato(p),
		ListCuota:         listCuota(p),
	}
	return json.Marshal(out)
}

// CanNotifyCRM reports whether payment carries enough information to be
// notified, per spec §4.4. Exposed but NOT invoked at the poller's enqueue
// sites — see DESIGN.md's open-question decision preserving always-enqueue.
func CanNotifyCRM(p store.Payment) bool {
	if !p.Notifica {
		return false
	}
	if p.Currency != "CLP" {
		return p.AuxAmountMinor != nil
	}
	if isCuota(p) {
		return len(p.QuotaNumbers) > 0
	}
	return p.ContractNumber != nil && *p.ContractNumber != ""
}

func isCuota(p store.Payment) bool {
	return p.PaymentType != nil && *p.PaymentType == "cuota"
}

func sanitizeRUT(raw string) *string {
	cleaned := strings.NewReplacer(".", "", "-", "").Replace(raw)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func rutDepositante(p store.Payment) *string {
	if p.DepositRUT != nil && *p.DepositRUT != "" {
		return sanitizeRUT(*p.DepositRUT)
	}
	if p.OrderCustomerRUT != nil && *p.OrderCustomerRUT != "" {
		return sanitizeRUT(*p.OrderCustomerRUT)
	}
	if v := stringFromJSON(p.Context, "customer_rut"); v != "" {
		return sanitizeRUT(v)
	}
	if v := stringFromJSON(p.ProviderMetadata, "rut"); v != "" {
		return sanitizeRUT(v)
	}
	return nil
}

func nombreDepositante(p store.Payment) string {
	if p.DepositName != nil && *p.DepositName != "" {
		return *p.DepositName
	}
	if v := stringFromJSON(p.Context, "customer_name"); v != "" {
		return v
	}
	if v := stringFromJSON(p.ProviderMetadata, "name"); v != "" {
		return v
	}
	return p.Provider
}

func transactionID(p store.Payment) string {
	if p.PaymentOrderID != nil && *p.PaymentOrderID != "" {
		return *p.PaymentOrderID
	}
	if p.AuthorizationCode != nil && *p.AuthorizationCode != "" {
		return *p.AuthorizationCode
	}
	if p.Token != nil && *p.Token != "" {
		return *p.Token
	}
	return p.ID
}

// amountSearchKeys are, in priority order, the field names monto's
// recursive fallback looks for inside context/provider_metadata.
var amountSearchKeys = []string{"amount_minor", "amountMinor", "amount", "total_amount", "totalAmount", "total"}

func monto(p store.Payment) string {
	if p.Currency != "CLP" && p.AuxAmountMinor != nil {
		return truncatedIntString(*p.AuxAmountMinor)
	}
	if p.AmountMinor != 0 {
		return truncatedIntString(p.AmountMinor)
	}
	for _, key := range amountSearchKeys {
		if v := numberFromJSON(p.Context, key); v != nil {
			return truncatedIntString(*v)
		}
	}
	for _, key := range amountSearchKeys {
		if v := numberFromJSON(p.ProviderMetadata, key); v != nil {
			return truncatedIntString(*v)
		}
	}
	return truncatedIntString(p.AmountMinor)
}

func listContrato(p store.Payment) []string {
	if isCuota(p) {
		return nil
	}
	if p.ContractNumber == nil || *p.ContractNumber == "" {
		return nil
	}
	return []string{*p.ContractNumber}
}

func listCuota(p store.Payment) []int {
	if !isCuota(p) {
		return nil
	}
	if len(p.QuotaNumbers) == 0 {
		return nil
	}
	return p.QuotaNumbers
}

// truncatedIntString renders amountMinor as a base-10 integer string,
// truncated toward zero (amounts here are already integer-valued minor
// units, so this is a plain conversion, not a rounding operation).
func truncatedIntString(amountMinor int64) string {
	return strconv.FormatInt(amountMinor, 10)
}

func stringFromJSON(raw json.RawMessage, field string) string {
	if len(raw) == 0 {
		return ""
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	v, ok := findInJSON(obj, field).(string)
	if !ok {
		return ""
	}
	return v
}

func numberFromJSON(raw json.RawMessage, field string) *int64 {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	f, ok := findInJSON(obj, field).(float64)
	if !ok || f == 0 {
		return nil
	}
	n := int64(f)
	return &n
}

// findInJSON performs a depth-first search for field through obj, descending
// into nested objects and arrays so that keys buried anywhere inside
// context/provider_metadata are still found, per spec's recursive fallback.
func findInJSON(node interface{}, field string) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		if val, ok := v[field]; ok {
			return val
		}
		for _, child := range v {
			if found := findInJSON(child, field); found != nil {
				return found
			}
		}
	case []interface{}:
		for _, child := range v {
			if found := findInJSON(child, field); found != nil {
				return found
			}
		}
	}
	return nil
}
