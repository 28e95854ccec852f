package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository is the persistent-store access layer described in spec §4.1.
// Every method that selects rows for a loop to update acquires row locks
// with SKIP LOCKED so more than one process instance can run the same loop
// safely; see spec §5. The read-only metrics and schema queries take no locks.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps a raw *sql.DB (obtained from gormDB.DB()) for the
// hand-written, locking-sensitive transactional queries.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// WithTx runs fn inside a single transaction, committing on success and
// rolling back on error or panic. Every poller/sender cycle is one call to
// WithTx, matching spec §5's "cycles are atomic" requirement.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Schema binding: every statement below fully-qualifies its tables
	// (payments.*) instead of relying on search_path, so this SET is
	// belt-and-braces rather than load-bearing.
	if _, err := tx.ExecContext(ctx, `SET search_path TO payments, public`); err != nil {
		tx.Rollback()
		return fmt.Errorf("set search_path: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

const reconciliationCandidateQuery = `
SELECT
	p.id, p.status, p.provider, p.token, p.amount_minor, p.currency,
	p.authorization_code, p.first_authorized_at, p.failed_at, p.canceled_at,
	p.refunded_at, p.abandoned_at, p.status_reason, p.context, p.provider_metadata, p.created_at, p.updated_at,
	po.payment_order_id, po.order_customer_rut,
	pc.contract_number, pc.quota_numbers, pc.payment_type, pc.notifica,
	pd.deposit_name, pd.deposit_rut,
	pa.aux_amount_minor,
	COALESCE(sc.attempts, 0) AS attempts
FROM payments.payment p
LEFT JOIN payments.payment_order po ON po.payment_id = p.id
LEFT JOIN payments.payment_contract pc ON pc.payment_id = p.id
LEFT JOIN payments.payment_deposit_info pd ON pd.payment_id = p.id
LEFT JOIN payments.payment_aux_amount pa ON pa.payment_id = p.id
LEFT JOIN (
	SELECT payment_id, COUNT(*) AS attempts
	FROM payments.status_check
	GROUP BY payment_id
) sc ON sc.payment_id = p.id
WHERE p.status IN ('PENDING', 'TO_CONFIRM')
  AND p.token IS NOT NULL
  AND p.provider = ANY($1)
ORDER BY p.created_at ASC
LIMIT $2
FOR UPDATE OF p SKIP LOCKED
`

// SelectForReconciliation returns up to batchSize PENDING/TO_CONFIRM
// payments with a non-null token whose provider is in the allow-list.
func (r *Repository) SelectForReconciliation(ctx context.Context, tx *sql.Tx, providers []string, batchSize int) ([]Payment, error) {
	rows, err := tx.QueryContext(ctx, reconciliationCandidateQuery, pq.Array(providers), batchSize)
	if err != nil {
		return nil, fmt.Errorf("select reconciliation candidates: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

const abandonedByTimeoutQuery = `
SELECT
	p.id, p.status, p.provider, p.token, p.amount_minor, p.currency,
	p.authorization_code, p.first_authorized_at, p.failed_at, p.canceled_at,
	p.refunded_at, p.abandoned_at, p.status_reason, p.context, p.provider_metadata, p.created_at, p.updated_at,
	po.payment_order_id, po.order_customer_rut,
	pc.contract_number, pc.quota_numbers, pc.payment_type, pc.notifica,
	pd.deposit_name, pd.deposit_rut,
	pa.aux_amount_minor,
	COALESCE(sc.attempts, 0) AS attempts
FROM payments.payment p
LEFT JOIN payments.payment_order po ON po.payment_id = p.id
LEFT JOIN payments.payment_contract pc ON pc.payment_id = p.id
LEFT JOIN payments.payment_deposit_info pd ON pd.payment_id = p.id
LEFT JOIN payments.payment_aux_amount pa ON pa.payment_id = p.id
LEFT JOIN (
	SELECT payment_id, COUNT(*) AS attempts
	FROM payments.status_check
	GROUP BY payment_id
) sc ON sc.payment_id = p.id
WHERE p.status = 'PENDING'
  AND p.created_at <= $1
ORDER BY p.created_at ASC
LIMIT $2
FOR UPDATE OF p SKIP LOCKED
`

// FindAbandoned returns PENDING payments older than cutoff.
func (r *Repository) FindAbandoned(ctx context.Context, tx *sql.Tx, cutoff time.Time, limit int) ([]Payment, error) {
	rows, err := tx.QueryContext(ctx, abandonedByTimeoutQuery, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("find abandoned payments: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

const authorizedWithoutCRMQuery = `
SELECT
	p.id, p.status, p.provider, p.token, p.amount_minor, p.currency,
	p.authorization_code, p.first_authorized_at, p.failed_at, p.canceled_at,
	p.refunded_at, p.abandoned_at, p.status_reason, p.context, p.provider_metadata, p.created_at, p.updated_at,
	po.payment_order_id, po.order_customer_rut,
	pc.contract_number, pc.quota_numbers, pc.payment_type, pc.notifica,
	pd.deposit_name, pd.deposit_rut,
	pa.aux_amount_minor,
	COALESCE(sc.attempts, 0) AS attempts
FROM payments.payment p
LEFT JOIN payments.payment_order po ON po.payment_id = p.id
LEFT JOIN payments.payment_contract pc ON pc.payment_id = p.id
LEFT JOIN payments.payment_deposit_info pd ON pd.payment_id = p.id
LEFT JOIN payments.payment_aux_amount pa ON pa.payment_id = p.id
LEFT JOIN (
	SELECT payment_id, COUNT(*) AS attempts
	FROM payments.status_check
	GROUP BY payment_id
) sc ON sc.payment_id = p.id
WHERE p.status = 'AUTHORIZED'
  AND NOT EXISTS (
	SELECT 1 FROM payments.crm_push_queue q
	WHERE q.payment_id = p.id AND q.operation = 'PAYMENT_APPROVED'
  )
ORDER BY p.created_at ASC
LIMIT $1
FOR UPDATE OF p SKIP LOCKED
`

// FindAuthorizedWithoutCRM returns AUTHORIZED payments missing their
// PAYMENT_APPROVED queue row (the sender's self-heal sweep, spec §4.6).
func (r *Repository) FindAuthorizedWithoutCRM(ctx context.Context, tx *sql.Tx, limit int) ([]Payment, error) {
	rows, err := tx.QueryContext(ctx, authorizedWithoutCRMQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("find authorized payments without crm: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

var timestampFieldByStatus = map[string]string{
	"AUTHORIZED": "first_authorized_at",
	"FAILED":     "failed_at",
	"CANCELED":   "canceled_at",
	"REFUNDED":   "refunded_at",
	"ABANDONED":  "abandoned_at",
}

// UpdatePaymentStatus sets status (and reason, if provided) and, via
// COALESCE, the first-transition timestamp associated with newStatus
// (spec I2). Safe to call repeatedly: the timestamp is only set once.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, tx *sql.Tx, paymentID string, newStatus string, reason *string) error {
	tsField, hasTS := timestampFieldByStatus[newStatus]

	var query string
	args := []interface{}{newStatus}
	argN := 2

	setClauses := "status = $1"
	if hasTS {
		setClauses += fmt.Sprintf(", %s = COALESCE(%s, NOW())", tsField, tsField)
	}
	if reason != nil {
		setClauses += fmt.Sprintf(", status_reason = $%d", argN)
		args = append(args, *reason)
		argN++
	}
	setClauses += ", updated_at = NOW()"

	query = fmt.Sprintf(`UPDATE payments.payment SET %s WHERE id = $%d`, setClauses, argN)
	args = append(args, paymentID)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// MarkAttemptsExhausted transitions a payment to ABANDONED with the fixed
// reason "reconcile attempts exhausted" (spec.md's latest semantics; see
// DESIGN.md's "enum drift" entry for why this is ABANDONED, not FAILED).
func (r *Repository) MarkAttemptsExhausted(ctx context.Context, tx *sql.Tx, paymentID string) error {
	reason := "reconcile attempts exhausted"
	return r.UpdatePaymentStatus(ctx, tx, paymentID, "ABANDONED", &reason)
}

// RecordStatusCheck appends a StatusCheck row.
func (r *Repository) RecordStatusCheck(ctx context.Context, tx *sql.Tx, paymentID, provider string, success bool, providerStatus, mappedStatus *string, responseCode int, rawPayload json.RawMessage, errorMessage *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments.status_check
			(id, payment_id, provider, success, provider_status, mapped_status, response_code, raw_payload, error_message, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, uuid.New(), paymentID, provider, success, providerStatus, mappedStatus, responseCode, rawJSONOrNull(rawPayload), errorMessage)
	if err != nil {
		return fmt.Errorf("record status check: %w", err)
	}
	return nil
}

// RecordProviderEvent appends the full audit row for one provider HTTP call.
func (r *Repository) RecordProviderEvent(ctx context.Context, tx *sql.Tx, paymentID, requestURL string, requestHeaders, requestBody json.RawMessage, responseStatus int, responseHeaders, responseBody json.RawMessage, errorMessage *string, latencyMs int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments.provider_event_log
			(id, payment_id, direction, operation, request_url, request_headers, request_body, response_status, response_headers, response_body, error_message, latency_ms, created_at)
		VALUES ($1, $2, 'outbound', 'status', $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, uuid.New(), paymentID, requestURL, rawJSONOrNull(requestHeaders), rawJSONOrNull(requestBody), responseStatus, rawJSONOrNull(responseHeaders), rawJSONOrNull(responseBody), errorMessage, latencyMs)
	if err != nil {
		return fmt.Errorf("record provider event: %w", err)
	}
	return nil
}

// RecordCRMEvent appends the full audit row for one CRM send attempt.
func (r *Repository) RecordCRMEvent(ctx context.Context, tx *sql.Tx, paymentID, operation, requestURL string, requestHeaders, requestBody json.RawMessage, responseStatus int, responseHeaders, responseBody json.RawMessage, errorMessage *string, latencyMs int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments.crm_event_log
			(id, payment_id, operation, request_url, request_headers, request_body, response_status, response_headers, response_body, error_message, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`, uuid.New(), paymentID, operation, requestURL, rawJSONOrNull(requestHeaders), rawJSONOrNull(requestBody), responseStatus, rawJSONOrNull(responseHeaders), rawJSONOrNull(responseBody), errorMessage, latencyMs)
	if err != nil {
		return fmt.Errorf("record crm event: %w", err)
	}
	return nil
}

// LogServiceRuntimeEvent appends a STARTUP/SHUTDOWN/HEARTBEAT row.
func (r *Repository) LogServiceRuntimeEvent(ctx context.Context, tx *sql.Tx, instanceID, host string, pid int, eventType string, payload json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments.service_runtime_log (id, instance_id, host, pid, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, uuid.New(), instanceID, host, pid, eventType, rawJSONOrNull(payload))
	if err != nil {
		return fmt.Errorf("log service runtime event: %w", err)
	}
	return nil
}

// LogServiceRuntimeEventNoTx is used by the app bootstrap to log
// STARTUP/SHUTDOWN outside any poller/sender cycle transaction.
func (r *Repository) LogServiceRuntimeEventNoTx(ctx context.Context, instanceID, host string, pid int, eventType string, payload json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments.service_runtime_log (id, instance_id, host, pid, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, uuid.New(), instanceID, host, pid, eventType, rawJSONOrNull(payload))
	if err != nil {
		return fmt.Errorf("log service runtime event: %w", err)
	}
	return nil
}

// EnqueueCRMOperation upserts a CrmQueueItem keyed on (payment_id,
// operation): a fresh row is created PENDING, or an existing row of any
// status is reset to PENDING/attempts=0 with the new payload (spec §4.1,
// §8 P6). This is both the enqueue primitive and the retry-reset primitive.
func (r *Repository) EnqueueCRMOperation(ctx context.Context, tx *sql.Tx, paymentID, operation string, payload json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments.crm_push_queue
			(id, payment_id, operation, status, attempts, next_attempt_at, last_attempt_at, response_code, crm_id, last_error, payload, created_at, updated_at)
		VALUES ($1, $2, $3, 'PENDING', 0, NULL, NULL, NULL, NULL, NULL, $4, NOW(), NOW())
		ON CONFLICT (payment_id, operation) DO UPDATE SET
			status = 'PENDING',
			attempts = 0,
			next_attempt_at = NULL,
			last_attempt_at = NULL,
			response_code = NULL,
			crm_id = NULL,
			last_error = NULL,
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`, uuid.New(), paymentID, operation, rawJSONOrNull(payload))
	if err != nil {
		return fmt.Errorf("enqueue crm operation: %w", err)
	}
	return nil
}

// ResetCRMItemForRetry is an operator-triggered reset distinct from
// EnqueueCRMOperation's idempotent upsert; carried from
// original_source/src/repositories/crm_repo.py for completeness (spec.md
// supplement, see SPEC_FULL.md §3). Neither loop calls this automatically.
func (r *Repository) ResetCRMItemForRetry(ctx context.Context, tx *sql.Tx, itemID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments.crm_push_queue
		SET status = 'PENDING', attempts = 0, next_attempt_at = NULL, last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`, itemID)
	if err != nil {
		return fmt.Errorf("reset crm item for retry: %w", err)
	}
	return nil
}

const pendingCRMItemsQuery = `
SELECT id, payment_id, operation, status, attempts, next_attempt_at, last_attempt_at, response_code, crm_id, last_error, payload, created_at, updated_at
FROM payments.crm_push_queue
WHERE status = 'PENDING' AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
ORDER BY created_at ASC
LIMIT $1
FOR UPDATE SKIP LOCKED
`

// FetchPendingCRMItems returns up to limit due, PENDING queue items.
func (r *Repository) FetchPendingCRMItems(ctx context.Context, tx *sql.Tx, limit int) ([]CRMQueueItem, error) {
	rows, err := tx.QueryContext(ctx, pendingCRMItemsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending crm items: %w", err)
	}
	defer rows.Close()
	return scanCRMQueueItems(rows)
}

// ReactivateFailedItems flips up to limit due FAILED rows back to PENDING,
// oldest-due-first, and returns the number flipped. Grounded on
// original_source/src/repositories/crm_repo.py's reactivate_failed_items CTE.
func (r *Repository) ReactivateFailedItems(ctx context.Context, tx *sql.Tx, limit int) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		WITH moved AS (
			SELECT id FROM payments.crm_push_queue
			WHERE status = 'FAILED' AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
			ORDER BY next_attempt_at NULLS FIRST
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		UPDATE payments.crm_push_queue q
		SET status = 'PENDING'
		FROM moved
		WHERE q.id = moved.id
		RETURNING q.id
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("reactivate failed items: %w", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	return count, rows.Err()
}

// UpdateCRMItemSuccess marks a queue item SENT (terminal).
func (r *Repository) UpdateCRMItemSuccess(ctx context.Context, tx *sql.Tx, itemID string, responseCode int, crmID *string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments.crm_push_queue
		SET status = 'SENT', response_code = $1, crm_id = $2, last_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`, responseCode, crmID, itemID)
	if err != nil {
		return fmt.Errorf("update crm item success: %w", err)
	}
	return nil
}

// UpdateCRMItemFailure marks a queue item FAILED with the next attempt
// time per the backoff schedule (spec §4.6).
func (r *Repository) UpdateCRMItemFailure(ctx context.Context, tx *sql.Tx, itemID string, attempts int, nextAttemptAt time.Time, responseCode *int, errMsg string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments.crm_push_queue
		SET status = 'FAILED', attempts = $1, next_attempt_at = $2, response_code = $3, last_error = $4, last_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $5
	`, attempts, nextAttemptAt, responseCode, errMsg, itemID)
	if err != nil {
		return fmt.Errorf("update crm item failure: %w", err)
	}
	return nil
}

// GetPaymentsMetrics computes the payments summary for the admin metrics
// endpoint (SPEC_FULL.md §3 supplement, grounded on original_source's
// richer /api/v1/health/metrics payload).
func (r *Repository) GetPaymentsMetrics(ctx context.Context) (PaymentsMetrics, error) {
	var m PaymentsMetrics
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'AUTHORIZED'),
			COALESCE(SUM(amount_minor), 0),
			MAX(updated_at)
		FROM payments.payment
	`)
	var lastPaymentAt sql.NullTime
	if err := row.Scan(&m.TotalPayments, &m.AuthorizedPayments, &m.TotalAmountMinor, &lastPaymentAt); err != nil {
		return m, fmt.Errorf("get payments metrics: %w", err)
	}
	if lastPaymentAt.Valid {
		t := lastPaymentAt.Time
		m.LastPaymentAt = &t
	}
	m.TotalAmountCurrency = "CLP"
	return m, nil
}

// CurrentSchema reports the connection's active search_path schema, used by
// the admin metrics endpoint to report database connectivity (SPEC_FULL.md
// §3 supplement, grounded on original_source's "SELECT current_schema()"
// health probe).
func (r *Repository) CurrentSchema(ctx context.Context) (string, error) {
	var schema string
	if err := r.db.QueryRowContext(ctx, `SELECT current_schema()`).Scan(&schema); err != nil {
		return "", fmt.Errorf("current schema: %w", err)
	}
	return schema, nil
}

func rawJSONOrNull(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
