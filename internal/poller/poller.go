// Package poller implements the PSP Poller loop: periodic reconciliation of
// PENDING/TO_CONFIRM payments against their provider's current status, and
// the sweep that abandons payments that have sat PENDING too long.
package poller

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
	"github.com/ninja-merchant/payments-reconciler/internal/payload"
	"github.com/ninja-merchant/payments-reconciler/internal/providers"
	"github.com/ninja-merchant/payments-reconciler/internal/store"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_poller_cycles_total",
		Help: "Number of PSP poller cycles executed.",
	})
	cycleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_poller_cycle_errors_total",
		Help: "Number of PSP poller cycles that failed and rolled back.",
	})
	abandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_payments_abandoned_total",
		Help: "Number of payments transitioned to ABANDONED.",
	})
	statusTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_payments_status_transitions_total",
		Help: "Number of payment status transitions applied by the poller.",
	})
)

var finalStatusReasons = map[string]string{
	"AUTHORIZED": "provider reconciliation update",
	"FAILED":     "provider reconciliation update",
	"CANCELED":   "provider reconciliation update",
	"REFUNDED":   "provider reconciliation update",
}

// Poller runs the PSP reconciliation loop described in spec §4.5.
type Poller struct {
	repo      *store.Repository
	registry  providers.Registry
	cfg       *config.AppConfig
	log       logger.Logger
	instanceID string
	lastHeartbeat time.Time
}

// New builds a Poller.
func New(repo *store.Repository, registry providers.Registry, cfg *config.AppConfig, log logger.Logger) *Poller {
	return &Poller{repo: repo, registry: registry, cfg: cfg, log: log, instanceID: instanceID()}
}

func instanceID() string {
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return host
}

// Run blocks, executing one cycle every ReconcileIntervalSeconds until ctx
// is canceled. Cooperative cancellation: the in-flight cycle's transaction
// still commits or rolls back before Run returns.
func (p *Poller) Run(ctx context.Context) {
	interval := time.Duration(p.cfg.ReconcileIntervalSeconds) * time.Second
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if !p.cfg.ReconcileEnabled {
				timer.Reset(interval)
				continue
			}
			p.runCycle(ctx)
			timer.Reset(interval)
		case <-ctx.Done():
			p.log.Info(ctx, "psp poller stopping", nil)
			return
		}
	}
}

// cycleCounts tracks one runCycle's work so maybeHeartbeat can report it.
type cycleCounts struct {
	Reconciled int
	Updated    int
	Abandoned  int
}

func (p *Poller) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			p.log.Error(ctx, "psp poller cycle panicked", map[string]interface{}{"panic": r})
		}
	}()

	cyclesTotal.Inc()
	counts := &cycleCounts{}

	err := p.repo.WithTx(ctx, func(tx *sql.Tx) error {
		candidates, err := p.repo.SelectForReconciliation(ctx, tx, p.cfg.ReconcilePollingProviders, p.cfg.ReconcileBatchSize)
		if err != nil {
			return err
		}
		for _, payment := range candidates {
			if err := p.reconcileOne(ctx, tx, payment, counts); err != nil {
				return err
			}
		}

		cutoff := time.Now().Add(-time.Duration(p.cfg.AbandonedTimeoutMinutes) * time.Minute)
		abandoned, err := p.repo.FindAbandoned(ctx, tx, cutoff, p.cfg.ReconcileBatchSize)
		if err != nil {
			return err
		}
		for _, payment := range abandoned {
			if err := p.abandon(ctx, tx, payment, "abandoned timeout", counts); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		cycleErrorsTotal.Inc()
		p.log.Error(ctx, "psp poller cycle failed, will retry next tick", map[string]interface{}{"error": err.Error()})
		return
	}

	p.maybeHeartbeat(ctx, counts)
}

func (p *Poller) reconcileOne(ctx context.Context, tx *sql.Tx, payment store.Payment, counts *cycleCounts) error {
	counts.Reconciled++

	adapter, ok := p.registry[payment.Provider]
	if !ok {
		p.log.Error(ctx, "no adapter registered for provider, skipping payment", map[string]interface{}{"payment_id": payment.ID, "provider": payment.Provider})
		return nil
	}
	if payment.Token == nil {
		return nil
	}

	offsets := p.cfg.ReconcileAttemptOffsets
	k := payment.Attempts

	if k >= len(offsets) {
		return p.abandon(ctx, tx, payment, "reconcile attempts exhausted", counts)
	}

	dueAt := payment.CreatedAt.Add(time.Duration(offsets[k]) * time.Second)
	if time.Now().Before(dueAt) {
		return nil
	}

	result, callLog, err := adapter.Status(ctx, *payment.Token)
	if err != nil {
		return err
	}

	success := callLog.ErrorMessage == "" && result.ProviderStatusRaw != ""

	var providerStatusPtr, mappedStatusPtr *string
	if result.ProviderStatusRaw != "" {
		providerStatusPtr = &result.ProviderStatusRaw
	}
	if result.MappedStatus != "" {
		mappedStatusPtr = &result.MappedStatus
	}
	var errMsgPtr *string
	if callLog.ErrorMessage != "" {
		errMsgPtr = &callLog.ErrorMessage
	}

	if err := p.repo.RecordStatusCheck(ctx, tx, payment.ID, payment.Provider, success, providerStatusPtr, mappedStatusPtr, result.ResponseCode, result.Payload, errMsgPtr); err != nil {
		return err
	}
	if err := p.repo.RecordProviderEvent(ctx, tx, payment.ID, callLog.URL, callLog.MaskedHeaders, nil, callLog.ResponseStatus, callLog.ResponseHeaders, callLog.ResponseBody, errMsgPtr, callLog.LatencyMs); err != nil {
		return err
	}

	if result.MappedStatus == "" {
		if k+1 >= len(offsets) {
			return p.abandon(ctx, tx, payment, "reconcile attempts exhausted", counts)
		}
		return nil
	}

	if result.MappedStatus == payment.Status {
		return nil
	}

	var reason *string
	if r, ok := finalStatusReasons[result.MappedStatus]; ok {
		reason = &r
	} else {
		reason = payment.StatusReason
	}

	if err := p.repo.UpdatePaymentStatus(ctx, tx, payment.ID, result.MappedStatus, reason); err != nil {
		return err
	}
	statusTransitionsTotal.Inc()
	counts.Updated++

	if result.MappedStatus == "AUTHORIZED" {
		approvedPayload, err := payload.Build(payment, "PAYMENT_APPROVED")
		if err != nil {
			return err
		}
		if err := p.repo.EnqueueCRMOperation(ctx, tx, payment.ID, "PAYMENT_APPROVED", approvedPayload); err != nil {
			return err
		}
	}

	return nil
}

func (p *Poller) abandon(ctx context.Context, tx *sql.Tx, payment store.Payment, reason string, counts *cycleCounts) error {
	if err := p.repo.UpdatePaymentStatus(ctx, tx, payment.ID, "ABANDONED", &reason); err != nil {
		return err
	}
	abandonedTotal.Inc()
	counts.Abandoned++

	abandonedPayload, err := payload.Build(payment, "ABANDONED_CART")
	if err != nil {
		return err
	}
	return p.repo.EnqueueCRMOperation(ctx, tx, payment.ID, "ABANDONED_CART", abandonedPayload)
}

func (p *Poller) maybeHeartbeat(ctx context.Context, counts *cycleCounts) {
	interval := time.Duration(p.cfg.HeartbeatIntervalSeconds) * time.Second
	if time.Since(p.lastHeartbeat) < interval {
		return
	}
	p.lastHeartbeat = time.Now()

	payload, _ := json.Marshal(map[string]interface{}{
		"loop":       "psp_poller",
		"reconciled": counts.Reconciled,
		"updated":    counts.Updated,
		"abandoned":  counts.Abandoned,
	})
	if err := p.repo.LogServiceRuntimeEventNoTx(ctx, p.instanceID, p.instanceID, os.Getpid(), "HEARTBEAT", payload); err != nil {
		p.log.Error(ctx, "failed to record poller heartbeat", map[string]interface{}{"error": err.Error()})
	}
}
