package store

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestScanPayments(t *testing.T) {
	// Arrange
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "status", "provider", "token", "amount_minor", "currency",
		"authorization_code", "first_authorized_at", "failed_at", "canceled_at",
		"refunded_at", "abandoned_at", "status_reason", "context", "provider_metadata", "created_at", "updated_at",
		"payment_order_id", "order_customer_rut",
		"contract_number", "quota_numbers", "payment_type", "notifica",
		"deposit_name", "deposit_rut",
		"aux_amount_minor",
		"attempts",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"pay-1", "PENDING", "stripe", "pi_123", int64(1000), "CLP",
		nil, nil, nil, nil,
		nil, nil, nil, []byte(`{"rutDepositante":"11.111.111-1"}`), nil, now, now,
		"order-1", nil,
		nil, []byte(`[1,2]`), "cuota", true,
		"Jane Doe", nil,
		nil,
		2,
	)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.Query("SELECT")
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	defer sqlRows.Close()

	// Act
	payments, err := scanPayments(sqlRows)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	p := payments[0]
	if p.ID != "pay-1" || p.Provider != "stripe" {
		t.Errorf("unexpected payment identity: %+v", p)
	}
	if len(p.QuotaNumbers) != 2 || p.QuotaNumbers[0] != 1 || p.QuotaNumbers[1] != 2 {
		t.Errorf("expected quota numbers [1 2], got: %v", p.QuotaNumbers)
	}
	if p.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", p.Attempts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestScanPayments_NullQuotaNumbersLeavesSliceNil(t *testing.T) {
	// Arrange
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "status", "provider", "token", "amount_minor", "currency",
		"authorization_code", "first_authorized_at", "failed_at", "canceled_at",
		"refunded_at", "abandoned_at", "status_reason", "context", "provider_metadata", "created_at", "updated_at",
		"payment_order_id", "order_customer_rut",
		"contract_number", "quota_numbers", "payment_type", "notifica",
		"deposit_name", "deposit_rut",
		"aux_amount_minor",
		"attempts",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"pay-2", "AUTHORIZED", "webpay", nil, int64(500), "CLP",
		nil, nil, nil, nil,
		nil, nil, nil, nil, nil, now, now,
		nil, nil,
		"CT-1", nil, nil, false,
		nil, nil,
		nil,
		0,
	)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.Query("SELECT")
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	defer sqlRows.Close()

	// Act
	payments, err := scanPayments(sqlRows)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	if payments[0].QuotaNumbers != nil {
		t.Errorf("expected nil quota numbers when column is null, got: %v", payments[0].QuotaNumbers)
	}
}

func TestScanCRMQueueItems(t *testing.T) {
	// Arrange
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "payment_id", "operation", "status", "attempts",
		"next_attempt_at", "last_attempt_at", "response_code", "crm_id",
		"last_error", "payload", "created_at", "updated_at",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"queue-1", "pay-1", "PAYMENT_APPROVED", "PENDING", 1,
		nil, nil, nil, nil,
		nil, []byte(`{"monto":"1000"}`), now, now,
	)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.Query("SELECT")
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	defer sqlRows.Close()

	// Act
	items, err := scanCRMQueueItems(sqlRows)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].PaymentID != "pay-1" || items[0].Operation != "PAYMENT_APPROVED" {
		t.Errorf("unexpected item identity: %+v", items[0])
	}
	if string(items[0].Payload) != `{"monto":"1000"}` {
		t.Errorf("expected payload to round-trip, got: %s", items[0].Payload)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}
