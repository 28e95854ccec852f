package adminhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"

	"github.com/ninja-merchant/payments-reconciler/core/config"
	appErrors "github.com/ninja-merchant/payments-reconciler/core/errors"
	"github.com/ninja-merchant/payments-reconciler/core/health"
	"github.com/ninja-merchant/payments-reconciler/core/logger"
	"github.com/ninja-merchant/payments-reconciler/core/middlewares"
	_ "github.com/ninja-merchant/payments-reconciler/internal/adminhttp/docs"
)

// NewRouter builds the gin.Engine, wires every admin route, and registers
// it with fx so other modules (store, poller, sender) start before the
// listener opens.
func NewRouter(handler *Handler, monitoring *middlewares.MonitoringMiddleware, tracing *middlewares.TracingMiddleware, cache *middlewares.CacheMiddleware, log logger.Logger) *gin.Engine {
	router := gin.New()
	_ = router.SetTrustedProxies(nil)

	router.Use(monitoring.SentryMiddleware())
	router.Use(tracing.Middleware())
	router.Use(monitoring.LogMiddleware)
	router.Use(middlewares.Cors())
	router.Use(gin.Recovery())

	health.Routes(router, log)
	router.GET("/metrics", promHandler())

	api := router.Group("/api/v1")
	api.Use(handler.bearerAuth)
	api.GET("/health/metrics", cache.Cache(middlewares.CacheConfig{
		TTL:       5 * time.Second,
		KeyPrefix: "health-metrics",
	}), handler.Metrics)

	router.GET("/docs/*any", handler.basicAuth(), ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}

// Module provides the admin HTTP Handler and gin.Engine, and starts the
// listener as an fx lifecycle hook.
var Module = fx.Module("adminhttp",
	fx.Provide(NewHandler, NewRouter),
	fx.Invoke(func(lc fx.Lifecycle, router *gin.Engine, cfg *config.AppConfig, log logger.Logger) {
		var server *http.Server
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				server = &http.Server{Addr: ":" + cfg.Port, Handler: router}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						appErr := appErrors.RootError(err.Error(), nil)
						log.LogError(context.Background(), "admin http server stopped unexpectedly", appErr)
					}
				}()
				log.Info(context.Background(), "admin http server listening", map[string]interface{}{"port": cfg.Port})
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info(ctx, "shutting down admin http server")
				if server == nil {
					return nil
				}
				return server.Shutdown(ctx)
			},
		})
	}),
)
