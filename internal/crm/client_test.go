package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Send_Success(t *testing.T) {
	// Arrange
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"crm-123"}`))
	}))
	defer server.Close()

	client := &Client{
		client:     server.Client(),
		baseURL:    server.URL,
		pagarPath:  "/pagar",
		authBearer: "secret-token",
	}

	// Act
	resp, event, err := client.Send(context.Background(), json.RawMessage(`{"monto":"1000"}`))

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got: %d", resp.StatusCode)
	}
	if resp.CrmID != "crm-123" {
		t.Errorf("expected crm id parsed from response body, got: %s", resp.CrmID)
	}
	if resp.ErrorMessage != "" {
		t.Errorf("expected no error message for 2xx response, got: %s", resp.ErrorMessage)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("expected bearer auth header, got: %s", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected json content type, got: %s", gotContentType)
	}
	if event.URL != server.URL+"/pagar" {
		t.Errorf("expected event URL to match, got: %s", event.URL)
	}
}

func TestClient_Send_NonSuccessStatusIsReportedAsError(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer server.Close()

	client := &Client{client: server.Client(), baseURL: server.URL, pagarPath: "/pagar"}

	// Act
	resp, _, err := client.Send(context.Background(), json.RawMessage(`{}`))

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got: %d", resp.StatusCode)
	}
	if resp.ErrorMessage == "" {
		t.Error("expected a non-empty error message for a non-2xx response")
	}
}

func TestClient_Send_NoAuthBearerOmitsHeader(t *testing.T) {
	// Arrange
	var gotAuth string
	authSeen := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		authSeen = r.Header.Get("Authorization") != ""
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := &Client{client: server.Client(), baseURL: server.URL, pagarPath: "/pagar"}

	// Act
	_, _, err := client.Send(context.Background(), json.RawMessage(`{}`))

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if authSeen {
		t.Errorf("expected no Authorization header when authBearer is empty, got: %s", gotAuth)
	}
}

func TestMaskHeaders_RedactsAuthorizationAndAPIKey(t *testing.T) {
	// Arrange
	headers := map[string]string{
		"Authorization": "Bearer secret",
		"X-Api-Key":     "also-secret",
		"Content-Type":  "application/json",
	}

	// Act
	raw := maskHeaders(headers)
	var masked map[string]string
	if err := json.Unmarshal(raw, &masked); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}

	// Assert
	if masked["Authorization"] != "***" {
		t.Errorf("expected Authorization masked, got: %s", masked["Authorization"])
	}
	if masked["X-Api-Key"] != "***" {
		t.Errorf("expected X-Api-Key masked, got: %s", masked["X-Api-Key"])
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
