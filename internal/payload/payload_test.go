package payload

import (
	"encoding/json"
	"testing"

	"github.com/ninja-merchant/payments-reconciler/internal/store"
)

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func TestBuild_PrefersDepositFieldsOverContext(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:          "pay-1",
		Provider:    "stripe",
		AmountMinor: 1500,
		Currency:    "CLP",
		DepositRUT:  strPtr("12.345.678-9"),
		DepositName: strPtr("Jane Doe"),
		Context:     json.RawMessage(`{"customer_rut":"1-9","customer_name":"Should Not Win"}`),
	}

	// Act
	raw, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.RutDepositante == nil || *out.RutDepositante != "123456789" {
		t.Errorf("expected sanitized deposit RUT, got: %v", out.RutDepositante)
	}
	if out.NombreDepositante != "Jane Doe" {
		t.Errorf("expected deposit name to win over context, got: %s", out.NombreDepositante)
	}
}

func TestBuild_FallsBackToContextThenProviderMetadata(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:               "pay-2",
		Provider:         "paypal",
		AmountMinor:      2000,
		Currency:         "USD",
		Context:          json.RawMessage(`{"customer_rut":"22.222.222-2","customer_name":"From Context"}`),
		ProviderMetadata: json.RawMessage(`{"rut":"33.333.333-3","name":"From Metadata"}`),
	}

	// Act
	raw, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.RutDepositante == nil || *out.RutDepositante != "222222222" {
		t.Errorf("expected context RUT to win over provider metadata, got: %v", out.RutDepositante)
	}
	if out.NombreDepositante != "From Context" {
		t.Errorf("expected context name to win over provider metadata, got: %s", out.NombreDepositante)
	}
}

func TestBuild_NombreDepositanteFallsBackToProvider(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:          "pay-3",
		Provider:    "webpay",
		AmountMinor: 500,
		Currency:    "CLP",
	}

	// Act
	raw, err := Build(p, "ABANDONED_CART")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.NombreDepositante != "webpay" {
		t.Errorf("expected provider as final fallback, got: %s", out.NombreDepositante)
	}
	if out.RutDepositante != nil {
		t.Errorf("expected nil RUT when no source has one, got: %v", *out.RutDepositante)
	}
}

func TestBuild_TransactionIDFallbackChain(t *testing.T) {
	cases := []struct {
		name string
		p    store.Payment
		want string
	}{
		{
			name: "payment order id wins",
			p: store.Payment{
				ID:                "pay-4",
				PaymentOrderID:    strPtr("order-1"),
				AuthorizationCode: strPtr("auth-1"),
				Token:             strPtr("token-1"),
			},
			want: "order-1",
		},
		{
			name: "falls back to authorization code",
			p: store.Payment{
				ID:                "pay-5",
				AuthorizationCode: strPtr("auth-2"),
				Token:             strPtr("token-2"),
			},
			want: "auth-2",
		},
		{
			name: "falls back to token",
			p: store.Payment{
				ID:    "pay-6",
				Token: strPtr("token-3"),
			},
			want: "token-3",
		},
		{
			name: "falls back to payment id",
			p:    store.Payment{ID: "pay-7"},
			want: "pay-7",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Build(tc.p, "PAYMENT_APPROVED")
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			var out CRMPayload
			if err := json.Unmarshal(raw, &out); err != nil {
				t.Fatalf("expected valid JSON, got error: %v", err)
			}
			if out.TransactionID != tc.want {
				t.Errorf("expected transaction id %q, got: %s", tc.want, out.TransactionID)
			}
		})
	}
}

func TestBuild_MontoPrefersAuxAmountForNonCLP(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:             "pay-8",
		Currency:       "USD",
		AmountMinor:    1000,
		AuxAmountMinor: i64Ptr(2500),
	}

	// Act
	raw, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.Monto != "2500" {
		t.Errorf("expected aux amount to win for non-CLP currency, got: %s", out.Monto)
	}
}

func TestBuild_MontoFallsBackToContextThenMetadata(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:               "pay-9",
		Currency:         "CLP",
		AmountMinor:      0,
		Context:          json.RawMessage(`{"amount_minor": 4200}`),
		ProviderMetadata: json.RawMessage(`{"amount_minor": 9999}`),
	}

	// Act
	raw, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.Monto != "4200" {
		t.Errorf("expected context amount to win over provider metadata, got: %s", out.Monto)
	}
}

func TestBuild_MontoSearchesNestedContextObjects(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:          "pay-13",
		Currency:    "CLP",
		AmountMinor: 0,
		Context:     json.RawMessage(`{"order":{"totals":{"amount_minor": 7700}}}`),
	}

	// Act
	raw, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.Monto != "7700" {
		t.Errorf("expected recursive descent to find nested amount_minor, got: %s", out.Monto)
	}
}

func TestBuild_RutDepositanteSearchesNestedProviderMetadata(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:               "pay-14",
		Currency:         "CLP",
		AmountMinor:      100,
		ProviderMetadata: json.RawMessage(`{"payer":{"identity":{"rut":"44.444.444-4"}}}`),
	}

	// Act
	raw, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.RutDepositante == nil || *out.RutDepositante != "444444444" {
		t.Errorf("expected recursive descent to find nested rut, got: %v", out.RutDepositante)
	}
}

func TestBuild_ListContratoOmittedForCuota(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:             "pay-10",
		Currency:       "CLP",
		PaymentType:    strPtr("cuota"),
		ContractNumber: strPtr("CT-1"),
		QuotaNumbers:   []int{1, 2, 3},
	}

	// Act
	raw, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.ListContrato != nil {
		t.Errorf("expected nil ListContrato for cuota payment, got: %v", out.ListContrato)
	}
	if len(out.ListCuota) != 3 {
		t.Errorf("expected 3 quota numbers, got: %v", out.ListCuota)
	}
}

func TestBuild_ListCuotaOmittedForNonCuota(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:             "pay-11",
		Currency:       "CLP",
		ContractNumber: strPtr("CT-2"),
	}

	// Act
	raw, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	var out CRMPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if out.ListCuota != nil {
		t.Errorf("expected nil ListCuota for non-cuota payment, got: %v", out.ListCuota)
	}
	if len(out.ListContrato) != 1 || out.ListContrato[0] != "CT-2" {
		t.Errorf("expected single contract number, got: %v", out.ListContrato)
	}
}

func TestBuild_IsDeterministic(t *testing.T) {
	// Arrange
	p := store.Payment{
		ID:             "pay-12",
		Provider:       "stripe",
		Currency:       "CLP",
		AmountMinor:    999,
		ContractNumber: strPtr("CT-3"),
	}

	// Act
	first, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	second, err := Build(p, "PAYMENT_APPROVED")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// Assert
	if string(first) != string(second) {
		t.Errorf("expected Build to be deterministic for identical input, got %s != %s", first, second)
	}
}

func TestCanNotifyCRM(t *testing.T) {
	cases := []struct {
		name string
		p    store.Payment
		want bool
	}{
		{
			name: "notifica false blocks regardless of other fields",
			p: store.Payment{
				Notifica:       false,
				Currency:       "CLP",
				ContractNumber: strPtr("CT-1"),
			},
			want: false,
		},
		{
			name: "non-CLP requires aux amount",
			p: store.Payment{
				Notifica:       true,
				Currency:       "USD",
				AuxAmountMinor: i64Ptr(100),
			},
			want: true,
		},
		{
			name: "non-CLP without aux amount fails",
			p: store.Payment{
				Notifica: true,
				Currency: "USD",
			},
			want: false,
		},
		{
			name: "CLP cuota requires quota numbers",
			p: store.Payment{
				Notifica:     true,
				Currency:     "CLP",
				PaymentType:  strPtr("cuota"),
				QuotaNumbers: []int{1},
			},
			want: true,
		},
		{
			name: "CLP cuota without quota numbers fails",
			p: store.Payment{
				Notifica:    true,
				Currency:    "CLP",
				PaymentType: strPtr("cuota"),
			},
			want: false,
		},
		{
			name: "CLP non-cuota requires contract number",
			p: store.Payment{
				Notifica:       true,
				Currency:       "CLP",
				ContractNumber: strPtr("CT-9"),
			},
			want: true,
		},
		{
			name: "CLP non-cuota without contract number fails",
			p: store.Payment{
				Notifica: true,
				Currency: "CLP",
			},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanNotifyCRM(tc.p); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
