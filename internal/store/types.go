package store

import (
	"encoding/json"
	"time"
)

// Payment is the denormalized view the poller, sender, and payload builder
// operate on: the payment row joined with its order/contract/deposit/aux
// amount side tables, plus the attempts count derived from status_check.
type Payment struct {
	ID                string
	Status            string
	Provider          string
	Token             *string
	AmountMinor       int64
	Currency          string
	AuxAmountMinor    *int64
	AuthorizationCode *string
	PaymentOrderID    *string
	OrderCustomerRUT  *string
	ContractNumber    *string
	QuotaNumbers      []int
	PaymentType       *string
	Notifica          bool
	DepositName       *string
	DepositRUT        *string
	Context           json.RawMessage
	ProviderMetadata  json.RawMessage
	FirstAuthorizedAt *time.Time
	FailedAt          *time.Time
	CanceledAt        *time.Time
	RefundedAt        *time.Time
	AbandonedAt       *time.Time
	StatusReason      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Attempts          int
}

// PaymentsMetrics is the payments summary exposed on the admin metrics
// endpoint, grounded on original_source/src/app.py's richer payload.
type PaymentsMetrics struct {
	TotalPayments      int64
	AuthorizedPayments int64
	TotalAmountMinor   int64
	TotalAmountCurrency string
	LastPaymentAt      *time.Time
}

// CRMQueueItem is the queue row shape used by the sender loop.
type CRMQueueItem struct {
	ID            string
	PaymentID     string
	Operation     string
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	LastAttemptAt *time.Time
	ResponseCode  *int
	CrmID         *string
	LastError     *string
	Payload       json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
