package health

import (
	"net/http"

	"github.com/ninja-merchant/payments-reconciler/core/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Routes registers the unauthenticated liveness probe. It never touches the
// database: a degraded database shows up in the bearer-protected metrics
// endpoint instead, not here.
func Routes(router gin.IRouter, logger logger.Logger) {
	router.GET("/health", func(context *gin.Context) {
		tracer := otel.Tracer("payments-reconciler")
		ctx, span := tracer.Start(context.Request.Context(), "health_check")
		defer span.End()

		span.SetAttributes(
			attribute.String("service.name", "payments-reconciler"),
			attribute.String("endpoint", "/health"),
			attribute.String("method", "GET"),
		)

		logger.Debug(ctx, "health check accessed")
		context.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
