package router

import (
	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// EngineConfig holds what NewEngine needs beyond the handlers
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	MaxBodySize    int64
	TrustedProxies []string
	CORS           middleware.CORSConfig
}

// Handlers groups the HTTP handlers served by the engine
type Handlers struct {
	Invoices *handler.InvoiceHandler
	Payments *handler.PaymentHandler
	Health   *handler.HealthHandler
}

// NewEngine builds the gin engine with the full middleware stack and every
// route. Global middleware runs in this order: request id, panic recovery,
// tracing, request logging, security headers, CORS, body limit. API routes
// additionally resolve the tenant before any handler runs.
func NewEngine(cfg EngineConfig, h Handlers, log *zap.Logger) *gin.Engine {
	middleware.SetupValidator()
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))

	engine.NoRoute(notFound)
	engine.NoMethod(methodNotAllowed)

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
		engine.GET("/health/info", h.Health.Info)
	}

	Mount(engine, "v1",
		[]gin.HandlerFunc{middleware.Tenant(), middleware.TracingAttributeInjector()},
		InvoicingRoutes(h.Invoices, h.Payments)...,
	)

	return engine
}

// InvoicingRoutes declares the invoice, payment and refund routes
func InvoicingRoutes(invoices *handler.InvoiceHandler, payments *handler.PaymentHandler) []Group {
	return []Group{
		{
			Prefix: "/invoices",
			Routes: []Route{
				Post("", invoices.Create),
				Get("", invoices.List),
				Get("/:id", invoices.Get),
				Post("/:id/send", invoices.Send),
				Post("/:id/cancel", invoices.Cancel),
				Post("/:id/payments", middleware.IdempotencyKey(true), payments.Record),
				Get("/:id/payments", payments.List),
			},
			Groups: []Group{{
				Prefix: "/:id/items",
				Routes: []Route{
					Post("", invoices.AddItem),
					Put("/:itemId", invoices.UpdateItem),
					Delete("/:itemId", invoices.DeleteItem),
				},
			}},
		},
		{
			Prefix: "/payments",
			Routes: []Route{
				Post("/:id/refunds", middleware.IdempotencyKey(false), payments.Refund),
			},
		},
	}
}
