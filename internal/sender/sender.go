// Package sender implements the CRM Sender loop: self-healing enqueue of
// authorized-but-unqueued payments, reactivation of backed-off items, and
// draining the pending queue against the CRM client.
package sender

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ninja-merchant/payments-reconciler/core/config"
	"github.com/ninja-merchant/payments-reconciler/core/logger"
	"github.com/ninja-merchant/payments-reconciler/core/services"
	"github.com/ninja-merchant/payments-reconciler/internal/crm"
	"github.com/ninja-merchant/payments-reconciler/internal/payload"
	"github.com/ninja-merchant/payments-reconciler/internal/store"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_sender_cycles_total",
		Help: "Number of CRM sender cycles executed.",
	})
	cycleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_sender_cycle_errors_total",
		Help: "Number of CRM sender cycles that failed and rolled back.",
	})
	sentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_crm_items_sent_total",
		Help: "Number of CRM queue items successfully sent.",
	})
	failedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_crm_items_failed_total",
		Help: "Number of CRM queue item send attempts that failed.",
	})
)

// Sender runs the CRM notification loop described in spec §4.6.
type Sender struct {
	repo          *store.Repository
	client        *crm.Client
	amqp          *services.AmqpService
	cfg           *config.AppConfig
	log           logger.Logger
	instanceID    string
	lastHeartbeat time.Time
}

// New builds a Sender.
func New(repo *store.Repository, client *crm.Client, amqp *services.AmqpService, cfg *config.AppConfig, log logger.Logger) *Sender {
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return &Sender{repo: repo, client: client, amqp: amqp, cfg: cfg, log: log, instanceID: host}
}

// Run blocks, executing one cycle every ReconcileIntervalSeconds until ctx
// is canceled.
func (s *Sender) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.ReconcileIntervalSeconds) * time.Second
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if !s.cfg.CRMEnabled {
				timer.Reset(interval)
				continue
			}
			s.runCycle(ctx)
			timer.Reset(interval)
		case <-ctx.Done():
			s.log.Info(ctx, "crm sender stopping", nil)
			return
		}
	}
}

func (s *Sender) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			s.log.Error(ctx, "crm sender cycle panicked", map[string]interface{}{"panic": r})
		}
	}()

	cyclesTotal.Inc()

	var sent, failed, selfHealedCount int
	err := s.repo.WithTx(ctx, func(tx *sql.Tx) error {
		selfHealed, err := s.repo.FindAuthorizedWithoutCRM(ctx, tx, s.cfg.ReconcileBatchSize)
		if err != nil {
			return err
		}
		for _, payment := range selfHealed {
			body, err := payload.Build(payment, "PAYMENT_APPROVED")
			if err != nil {
				return err
			}
			if err := s.repo.EnqueueCRMOperation(ctx, tx, payment.ID, "PAYMENT_APPROVED", body); err != nil {
				return err
			}
			selfHealedCount++
		}

		if _, err := s.repo.ReactivateFailedItems(ctx, tx, s.cfg.ReconcileBatchSize); err != nil {
			return err
		}

		pending, err := s.repo.FetchPendingCRMItems(ctx, tx, s.cfg.ReconcileBatchSize)
		if err != nil {
			return err
		}

		for _, item := range pending {
			ok, err := s.sendOne(ctx, tx, item)
			if err != nil {
				return err
			}
			if ok {
				sent++
			} else {
				failed++
			}
		}

		return nil
	})

	if err != nil {
		cycleErrorsTotal.Inc()
		s.log.Error(ctx, "crm sender cycle failed, will retry next tick", map[string]interface{}{"error": err.Error()})
		return
	}

	sentTotal.Add(float64(sent))
	failedTotal.Add(float64(failed))
	s.maybeHeartbeat(ctx, sent, failed, selfHealedCount)
}

func (s *Sender) sendOne(ctx context.Context, tx *sql.Tx, item store.CRMQueueItem) (bool, error) {
	resp, event, err := s.client.Send(ctx, item.Payload)
	if err != nil {
		return false, err
	}

	if err := s.repo.RecordCRMEvent(ctx, tx, item.PaymentID, item.Operation, event.URL, event.RequestHeaders, event.RequestBody, event.ResponseStatus, event.ResponseHeaders, event.ResponseBody, errPtr(event.ErrorMessage), event.LatencyMs); err != nil {
		return false, err
	}

	succeeded := event.ErrorMessage == "" && resp.StatusCode >= 200 && resp.StatusCode < 300
	if succeeded {
		var crmID *string
		if resp.CrmID != "" {
			crmID = &resp.CrmID
		}
		if err := s.repo.UpdateCRMItemSuccess(ctx, tx, item.ID, resp.StatusCode, crmID); err != nil {
			return false, err
		}
		s.publishOutcome(ctx, item, "SENT")
		s.log.Info(ctx, "crm item sent", map[string]interface{}{
			"payment_id": item.PaymentID,
			"operation":  item.Operation,
			"crm_id":     resp.CrmID,
		})
		return true, nil
	}

	attempts := item.Attempts + 1
	backoff := s.cfg.CRMRetryBackoff
	idx := attempts - 1
	if idx >= len(backoff) {
		idx = len(backoff) - 1
	}
	if idx < 0 {
		idx = 0
	}
	nextAttemptAt := time.Now().Add(time.Duration(backoff[idx]) * time.Second)

	errMsg := resp.ErrorMessage
	if errMsg == "" {
		errMsg = event.ErrorMessage
	}
	var responseCode *int
	if resp.StatusCode != 0 {
		code := resp.StatusCode
		responseCode = &code
	}

	if err := s.repo.UpdateCRMItemFailure(ctx, tx, item.ID, attempts, nextAttemptAt, responseCode, errMsg); err != nil {
		return false, err
	}
	s.publishOutcome(ctx, item, "FAILED")
	s.log.Warning(ctx, "crm item send failed, backing off", map[string]interface{}{
		"payment_id":      item.PaymentID,
		"operation":       item.Operation,
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt,
		"error":           errMsg,
	})
	return false, nil
}

func (s *Sender) publishOutcome(ctx context.Context, item store.CRMQueueItem, status string) {
	if s.amqp == nil {
		return
	}
	if err := s.amqp.PublishCRMOutcome(ctx, item.PaymentID, item.Operation, status); err != nil {
		s.log.Error(ctx, "failed to publish crm outcome", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Sender) maybeHeartbeat(ctx context.Context, sent, failed, selfHealed int) {
	interval := time.Duration(s.cfg.HeartbeatIntervalSeconds) * time.Second
	if time.Since(s.lastHeartbeat) < interval {
		return
	}
	s.lastHeartbeat = time.Now()

	payload, _ := json.Marshal(map[string]interface{}{
		"loop":        "crm_sender",
		"sent":        sent,
		"failed":      failed,
		"self_healed": selfHealed,
	})
	if err := s.repo.LogServiceRuntimeEventNoTx(ctx, s.instanceID, s.instanceID, os.Getpid(), "HEARTBEAT", payload); err != nil {
		s.log.Error(ctx, "failed to record sender heartbeat", map[string]interface{}{"error": err.Error()})
	}
}

func errPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
