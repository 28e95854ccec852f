package app

import (
	"context"

	"github.com/ninja-merchant/payments-reconciler/core/config"
	"github.com/ninja-merchant/payments-reconciler/core/logger"
	"github.com/ninja-merchant/payments-reconciler/core/middlewares"
	"github.com/ninja-merchant/payments-reconciler/core/observability"
	"github.com/ninja-merchant/payments-reconciler/core/services"
	"github.com/ninja-merchant/payments-reconciler/internal/adminhttp"
	"github.com/ninja-merchant/payments-reconciler/internal/crm"
	"github.com/ninja-merchant/payments-reconciler/internal/poller"
	"github.com/ninja-merchant/payments-reconciler/internal/providers"
	"github.com/ninja-merchant/payments-reconciler/internal/sender"
	"github.com/ninja-merchant/payments-reconciler/internal/store"
	"go.uber.org/fx"
)

// NewFxApp cria e retorna uma nova instância da aplicação Fx: ambient
// stack, persistence, the PSP poller and CRM sender loops, and the admin
// HTTP surface.
func NewFxApp() *fx.App {
	return fx.New(
		logger.Module,
		config.Module,
		// Sistema completo de observabilidade OpenTelemetry/SignOz
		observability.Module,
		services.Module,
		middlewares.Module,
		store.Module,
		providers.Module,
		crm.Module,
		poller.Module,
		sender.Module,
		adminhttp.Module,
		fx.Invoke(func(redisService *services.RedisService, logger logger.Logger) {
			if err := redisService.Init(); err != nil {
				logger.Error(context.TODO(), "Failed to initialize Redis", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}),
		// Incluir a verificação de banco e o bootstrap do swagger do init.go
		InitAndRun(),
	)
}
