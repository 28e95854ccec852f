package middlewares

import (
	"github.com/ninja-merchant/payments-reconciler/core/config"
	"github.com/ninja-merchant/payments-reconciler/core/logger"
	"go.uber.org/fx"
)

// Module provides the fx module for middlewares.
var Module = fx.Module("middlewares",
	fx.Provide(
		NewMonitoringMiddleware,
		NewCacheMiddleware,
		func(log logger.Logger, cfg *config.AppConfig) *TracingMiddleware {
			return NewTracingMiddleware(log, cfg.ServiceName, true)
		},
	),
)
