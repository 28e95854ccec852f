package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// scanPayments reads the denormalized reconciliation-candidate row shape
// shared by SelectForReconciliation, FindAbandoned, and
// FindAuthorizedWithoutCRM.
func scanPayments(rows *sql.Rows) ([]Payment, error) {
	var out []Payment
	for rows.Next() {
		var p Payment
		var quotaNumbers []byte
		var context, providerMetadata []byte

		if err := rows.Scan(
			&p.ID, &p.Status, &p.Provider, &p.Token, &p.AmountMinor, &p.Currency,
			&p.AuthorizationCode, &p.FirstAuthorizedAt, &p.FailedAt, &p.CanceledAt,
			&p.RefundedAt, &p.AbandonedAt, &p.StatusReason, &context, &providerMetadata, &p.CreatedAt, &p.UpdatedAt,
			&p.PaymentOrderID, &p.OrderCustomerRUT,
			&p.ContractNumber, &quotaNumbers, &p.PaymentType, &p.Notifica,
			&p.DepositName, &p.DepositRUT,
			&p.AuxAmountMinor,
			&p.Attempts,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}

		p.Context = json.RawMessage(context)
		p.ProviderMetadata = json.RawMessage(providerMetadata)

		if len(quotaNumbers) > 0 {
			if err := json.Unmarshal(quotaNumbers, &p.QuotaNumbers); err != nil {
				return nil, fmt.Errorf("unmarshal quota numbers: %w", err)
			}
		}

		out = append(out, p)
	}
	return out, rows.Err()
}

// scanCRMQueueItems reads rows shaped like pendingCRMItemsQuery's projection.
func scanCRMQueueItems(rows *sql.Rows) ([]CRMQueueItem, error) {
	var out []CRMQueueItem
	for rows.Next() {
		var item CRMQueueItem
		var payload []byte

		if err := rows.Scan(
			&item.ID, &item.PaymentID, &item.Operation, &item.Status, &item.Attempts,
			&item.NextAttemptAt, &item.LastAttemptAt, &item.ResponseCode, &item.CrmID,
			&item.LastError, &payload, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan crm queue item row: %w", err)
		}
		item.Payload = json.RawMessage(payload)
		out = append(out, item)
	}
	return out, rows.Err()
}
