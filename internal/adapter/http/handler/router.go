package handler

import (
	"amethyst-storefront/internal/adapter/http/middleware"
	redisStore "amethyst-storefront/internal/adapter/storage/redis"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies; payment requests are a few hundred bytes.
const maxBodyBytes = 64 << 10

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	ReconSvc       ports.ReconciliationService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	OpenAPISpec    []byte // nil = docs routes return 404
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	docs := NewDocsHandler(deps.OpenAPISpec)
	r.GET("/docs", docs.UI)
	r.GET("/docs/openapi.yaml", docs.Spec)

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Storefront routes (public) ---
	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.ReconSvc)
	payments := v1.Group("/payments")
	{
		payments.POST("", rl("payments_create"), paymentHandler.CreatePayment)
		payments.POST("/check", rl("payments_check"), paymentHandler.CheckPayment)
		payments.GET("/:order_id", rl("payments_read"), paymentHandler.GetPayment)
	}

	legacyHandler := NewLegacyHandler(deps.PaymentSvc, deps.ReconSvc)
	v1.POST("/crypto-payment", rl("legacy"), legacyHandler.Dispatch)

	// --- Operator routes (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger, service.RoleOperator)
	v1.POST("/payments/sweep", jwtAuth, rl("payments_sweep"), paymentHandler.Sweep)

	return r
}
