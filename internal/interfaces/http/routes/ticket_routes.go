package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/concertforge/ticket-engine/internal/infrastructure/cache"
	"github.com/concertforge/ticket-engine/internal/interfaces/http/handlers"
	"github.com/concertforge/ticket-engine/internal/interfaces/http/middleware"
	"github.com/concertforge/ticket-engine/pkg/logger"
	"github.com/concertforge/ticket-engine/pkg/utils"
)

// TicketRoutes registers the engine-facing HTTP surface of §6.1.
type TicketRoutes struct {
	handler     *handlers.TicketHandler
	jwtUtils    *utils.JWTUtils
	rateLimiter *cache.RateLimiter
}

// NewTicketRoutes constructs a TicketRoutes.
func NewTicketRoutes(handler *handlers.TicketHandler, jwtUtils *utils.JWTUtils, rateLimiter *cache.RateLimiter) *TicketRoutes {
	return &TicketRoutes{handler: handler, jwtUtils: jwtUtils, rateLimiter: rateLimiter}
}

// rateLimit builds a gin middleware enforcing rateLimiter's per-endpoint config against
// the caller's IP.
func (tr *TicketRoutes) rateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := tr.rateLimiter.CheckIPRateLimit(c.Request.Context(), endpoint, c.ClientIP())
		if err != nil {
			logger.Error("rate limit check failed", err, "endpoint", endpoint)
			c.Next()
			return
		}
		if !result.Allowed {
			utils.RateLimitExceeded(c, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RegisterRoutes mounts the ticketing endpoints under router.
func (tr *TicketRoutes) RegisterRoutes(router *gin.RouterGroup) {
	logger.Info("registering ticket routes")

	public := router.Group("/webhooks")
	public.POST("/paystack", tr.rateLimit("webhook"), tr.handler.Webhook)

	protected := router.Group("")
	protected.Use(middleware.Auth(tr.jwtUtils))
	{
		protected.POST("/tickets/purchase", tr.rateLimit("purchase"), tr.handler.Purchase)
		protected.POST("/tickets/verify", tr.rateLimit("purchase"), tr.handler.Verify)
		protected.POST("/validate/scan", tr.rateLimit("scan"), tr.handler.Scan)
		protected.POST("/transactions/:id/retry", tr.rateLimit("retry"), tr.handler.Retry)
		protected.POST(
			"/transactions/:id/refund",
			tr.rateLimit("refund"),
			middleware.RequireRole("organizer", "admin"),
			tr.handler.Refund,
		)
	}

	logger.Info("ticket routes registered")
}
