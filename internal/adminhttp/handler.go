// Package adminhttp exposes the thin operational surface described in
// spec §10: an unauthenticated liveness probe, a bearer-protected metrics
// endpoint, the Prometheus scrape endpoint, and basic-auth-gated Swagger
// docs. It never accepts payment mutations — reconciliation only happens
// through the poller and sender loops.
package adminhttp

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ninja-merchant/payments-reconciler/core/config"
	"github.com/ninja-merchant/payments-reconciler/core/entities"
	"github.com/ninja-merchant/payments-reconciler/core/errors"
	"github.com/ninja-merchant/payments-reconciler/core/logger"
	"github.com/ninja-merchant/payments-reconciler/internal/store"
)

// Handler serves the admin HTTP surface.
type Handler struct {
	repo      *store.Repository
	cfg       *config.AppConfig
	log       logger.Logger
	startedAt time.Time
}

// NewHandler builds a Handler.
func NewHandler(repo *store.Repository, cfg *config.AppConfig, log logger.Logger) *Handler {
	return &Handler{repo: repo, cfg: cfg, log: log, startedAt: time.Now()}
}

// serviceInfo identifies the running process, mirroring original_source's
// "service" block on /api/v1/health/metrics.
type serviceInfo struct {
	DefaultProvider *string `json:"default_provider"`
	Environment     string  `json:"environment"`
	Version         string  `json:"version"`
	Host            string  `json:"host"`
	Pid             int     `json:"pid"`
}

// databaseInfo reports DB connectivity, mirroring original_source's
// "database" block on /api/v1/health/metrics.
type databaseInfo struct {
	Connected bool    `json:"connected"`
	Schema    *string `json:"schema"`
}

// paymentsSummary is the payments aggregate nested under "payments".
type paymentsSummary struct {
	TotalPayments       int64      `json:"total_payments"`
	AuthorizedPayments  int64      `json:"authorized_payments"`
	TotalAmountMinor    int64      `json:"total_amount_minor"`
	TotalAmountCurrency string     `json:"total_amount_currency"`
	LastPaymentAt       *time.Time `json:"last_payment_at"`
}

// healthMetricsResponse is the JSON shape returned by /health/metrics,
// matching original_source/src/app.py's richer payload field-for-field.
type healthMetricsResponse struct {
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Service       serviceInfo     `json:"service"`
	Database      databaseInfo    `json:"database"`
	Payments      paymentsSummary `json:"payments"`
}

// Metrics returns a summary of the payments table plus process/service and
// database connectivity state. The payments aggregate is cache-aside through
// Redis by the router's CacheMiddleware, so the query isn't hammered by
// monitoring polls.
//
// @Summary Payments summary
// @Description Aggregate counts and totals across the payments table, plus service and database state
// @Tags health
// @Produce json
// @Security BearerAuth
// @Success 200 {object} healthMetricsResponse
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/health/metrics [get]
func (h *Handler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()

	status := "ok"

	metrics, err := h.repo.GetPaymentsMetrics(ctx)
	if err != nil {
		appErr := errors.RepositoryError(err.Error(), map[string]interface{}{"op": "GetPaymentsMetrics"})
		h.log.LogError(ctx, "failed to load payments metrics", appErr)
		c.JSON(appErr.HTTPStatus(), gin.H{"error": appErr.Message})
		return
	}

	db := databaseInfo{Connected: false}
	schema, err := h.repo.CurrentSchema(ctx)
	if err != nil {
		status = "degraded"
		h.log.Warning(ctx, "failed to probe database schema", map[string]interface{}{"error": err.Error()})
	} else {
		db = databaseInfo{Connected: true, Schema: &schema}
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	var defaultProvider *string
	if len(h.cfg.ReconcilePollingProviders) > 0 {
		defaultProvider = &h.cfg.ReconcilePollingProviders[0]
	}

	c.JSON(http.StatusOK, healthMetricsResponse{
		Status:        status,
		Timestamp:     now,
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
		Service: serviceInfo{
			DefaultProvider: defaultProvider,
			Environment:     h.cfg.Environment,
			Version:         config.GetEnv("VERSION", "1.0.0"),
			Host:            host,
			Pid:             os.Getpid(),
		},
		Database: db,
		Payments: paymentsSummary{
			TotalPayments:       metrics.TotalPayments,
			AuthorizedPayments:  metrics.AuthorizedPayments,
			TotalAmountMinor:    metrics.TotalAmountMinor,
			TotalAmountCurrency: metrics.TotalAmountCurrency,
			LastPaymentAt:       metrics.LastPaymentAt,
		},
	})
}

// bearerAuth protects /api/v1/health/metrics with a static bearer token,
// the same shared-secret pattern the teacher uses for its webhook routes.
func (h *Handler) bearerAuth(c *gin.Context) {
	if h.cfg.HealthAuthBearer == "" {
		c.Next()
		return
	}
	got := c.GetHeader("Authorization")
	if got != "Bearer "+h.cfg.HealthAuthBearer {
		appErr := errors.NewAppError(entities.ErrUnauthorized, "missing or invalid bearer token", nil, nil)
		c.AbortWithStatusJSON(appErr.HTTPStatus(), gin.H{"error": appErr.Message})
		return
	}
	c.Next()
}

// basicAuth protects the Swagger UI with HTTP basic auth.
func (h *Handler) basicAuth() gin.HandlerFunc {
	return gin.BasicAuth(gin.Accounts{
		h.cfg.SwaggerUser: h.cfg.SwaggerPassword,
	})
}

// promHandler adapts promhttp's http.Handler to gin.
func promHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
