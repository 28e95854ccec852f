// Package models holds the GORM row definitions for the payments schema.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is the root payment row. Mutated only by the poller.
type Payment struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Status            string    `gorm:"type:varchar(20);not null;index"`
	Provider          string    `gorm:"type:varchar(20);not null;index"`
	Token             *string   `gorm:"type:varchar(255);index"`
	AmountMinor       int64     `gorm:"not null"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'CLP'"`
	AuthorizationCode *string   `gorm:"type:varchar(100)"`
	FirstAuthorizedAt *time.Time
	FailedAt          *time.Time
	CanceledAt        *time.Time
	RefundedAt        *time.Time
	AbandonedAt       *time.Time
	StatusReason      *string `gorm:"type:varchar(255)"`
	Context           []byte  `gorm:"type:jsonb"`
	ProviderMetadata  []byte  `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName pins the payment model to the payments schema.
func (Payment) TableName() string { return "payments.payment" }

// BeforeCreate assigns a UUID when the caller did not set one.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PaymentOrder denormalizes the owning order for a payment.
type PaymentOrder struct {
	PaymentID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentOrderID   *string   `gorm:"type:varchar(100)"`
	OrderCustomerRUT *string   `gorm:"type:varchar(20)"`
}

// TableName pins PaymentOrder to payments.payment_order.
func (PaymentOrder) TableName() string { return "payments.payment_order" }

// PaymentContract holds contract/cuota metadata for a payment.
type PaymentContract struct {
	PaymentID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	ContractNumber *string   `gorm:"type:varchar(100)"`
	QuotaNumbers   []byte    `gorm:"type:jsonb"` // JSON-encoded []int
	PaymentType    *string   `gorm:"type:varchar(20)"`
	Notifica       bool      `gorm:"not null;default:false"`
}

// TableName pins PaymentContract to payments.payment_contract.
func (PaymentContract) TableName() string { return "payments.payment_contract" }

// PaymentDepositInfo holds the depositor's declared name/rut.
type PaymentDepositInfo struct {
	PaymentID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	DepositName *string   `gorm:"type:varchar(255)"`
	DepositRUT  *string   `gorm:"type:varchar(20)"`
}

// TableName pins PaymentDepositInfo to payments.payment_deposit_info.
func (PaymentDepositInfo) TableName() string { return "payments.payment_deposit_info" }

// PaymentAuxAmount holds a non-CLP converted amount for a payment.
type PaymentAuxAmount struct {
	PaymentID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	AuxAmountMinor *int64
}

// TableName pins PaymentAuxAmount to payments.payment_aux_amount.
func (PaymentAuxAmount) TableName() string { return "payments.payment_aux_amount" }

// StatusCheck records one provider status call outcome.
type StatusCheck struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PaymentID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Provider       string    `gorm:"type:varchar(20);not null"`
	Success        bool      `gorm:"not null"`
	ProviderStatus *string   `gorm:"type:varchar(100)"`
	MappedStatus   *string   `gorm:"type:varchar(20)"`
	ResponseCode   int
	RawPayload     []byte `gorm:"type:jsonb"`
	ErrorMessage   *string
	RequestedAt    time.Time `gorm:"not null"`
}

// TableName pins StatusCheck to payments.status_check.
func (StatusCheck) TableName() string { return "payments.status_check" }

// BeforeCreate assigns a UUID when the caller did not set one.
func (s *StatusCheck) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ProviderEventLog is the append-only audit trail of a provider HTTP call.
type ProviderEventLog struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PaymentID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Direction       string    `gorm:"type:varchar(10);not null;default:'outbound'"`
	Operation       string    `gorm:"type:varchar(30);not null;default:'status'"`
	RequestURL      string
	RequestHeaders  []byte `gorm:"type:jsonb"`
	RequestBody     []byte `gorm:"type:jsonb"`
	ResponseStatus  int
	ResponseHeaders []byte `gorm:"type:jsonb"`
	ResponseBody    []byte `gorm:"type:jsonb"`
	ErrorMessage    *string
	LatencyMs       int64
	CreatedAt       time.Time
}

// TableName pins ProviderEventLog to payments.provider_event_log.
func (ProviderEventLog) TableName() string { return "payments.provider_event_log" }

// BeforeCreate assigns a UUID when the caller did not set one.
func (e *ProviderEventLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// CrmQueueItem is one durable CRM notification, unique on (payment_id, operation).
type CrmQueueItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PaymentID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_crm_push_queue_payment_operation"`
	Operation     string    `gorm:"type:varchar(30);not null;uniqueIndex:idx_crm_push_queue_payment_operation"`
	Status        string    `gorm:"type:varchar(10);not null;default:'PENDING'"`
	Attempts      int       `gorm:"not null;default:0"`
	NextAttemptAt *time.Time
	LastAttemptAt *time.Time
	ResponseCode  *int
	CrmID         *string
	LastError     *string
	Payload       []byte `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName pins CrmQueueItem to payments.crm_push_queue.
func (CrmQueueItem) TableName() string { return "payments.crm_push_queue" }

// CrmEventLog is the append-only audit trail of a CRM send attempt.
type CrmEventLog struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PaymentID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Operation       string    `gorm:"type:varchar(30);not null"`
	RequestURL      string
	RequestHeaders  []byte `gorm:"type:jsonb"`
	RequestBody     []byte `gorm:"type:jsonb"`
	ResponseStatus  int
	ResponseHeaders []byte `gorm:"type:jsonb"`
	ResponseBody    []byte `gorm:"type:jsonb"`
	ErrorMessage    *string
	LatencyMs       int64
	CreatedAt       time.Time
}

// TableName pins CrmEventLog to payments.crm_event_log.
func (CrmEventLog) TableName() string { return "payments.crm_event_log" }

// BeforeCreate assigns a UUID when the caller did not set one.
func (e *CrmEventLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ServiceRuntimeLog records lifecycle and heartbeat events per process.
type ServiceRuntimeLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InstanceID string    `gorm:"type:varchar(100);not null"`
	Host       string    `gorm:"type:varchar(255)"`
	Pid        int
	EventType  string `gorm:"type:varchar(20);not null"`
	Payload    []byte `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

// TableName pins ServiceRuntimeLog to payments.service_runtime_log.
func (ServiceRuntimeLog) TableName() string { return "payments.service_runtime_log" }

// BeforeCreate assigns a UUID when the caller did not set one.
func (l *ServiceRuntimeLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// AllModels lists every GORM-managed row type, for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Payment{},
		&PaymentOrder{},
		&PaymentContract{},
		&PaymentDepositInfo{},
		&PaymentAuxAmount{},
		&StatusCheck{},
		&ProviderEventLog{},
		&CrmQueueItem{},
		&CrmEventLog{},
		&ServiceRuntimeLog{},
	}
}
