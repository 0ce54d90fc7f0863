package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"github.com/concertforge/ticket-engine/internal/application/engine"
	"github.com/concertforge/ticket-engine/internal/domain/services"
	"github.com/concertforge/ticket-engine/internal/infrastructure/cache"
	"github.com/concertforge/ticket-engine/internal/infrastructure/database/redis"
	"github.com/concertforge/ticket-engine/internal/interfaces/http/handlers"
	"github.com/concertforge/ticket-engine/internal/interfaces/http/middleware"
	"github.com/concertforge/ticket-engine/internal/interfaces/http/routes"
	"github.com/concertforge/ticket-engine/pkg/config"
	"github.com/concertforge/ticket-engine/pkg/logger"
	"github.com/concertforge/ticket-engine/pkg/utils"
)

// Server wraps the gin engine and its http.Server, wiring the transaction engine onto
// the §6.1 HTTP surface.
type Server struct {
	config   *config.Config
	engine   *gin.Engine
	server   *http.Server
	db       *gorm.DB
	jwtUtils *utils.JWTUtils
}

// NewServer builds the gin engine, mounts middleware in the teacher's ordering, and
// registers the ticketing routes against the supplied engine components.
func NewServer(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.RedisClient,
	txEngine *engine.TransactionEngine,
	gateValidator *engine.GateValidator,
	webhookProcessor *engine.WebhookProcessor,
	gateway services.PaymentGateway,
) *Server {
	jwtUtils := utils.NewJWTUtils(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.Issuer)

	ginEngine := gin.New()

	// 1. Panic recovery first, so every later middleware and handler is covered.
	ginEngine.Use(middleware.Recovery())
	// 2. CORS.
	ginEngine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	// 3. Request ID, so logging below can attach it.
	ginEngine.Use(middleware.RequestID("X-Request-ID"))
	// 4. Request/response logging.
	ginEngine.Use(middleware.Logging(middleware.DefaultLoggingConfig()))

	rateLimiter := cache.NewRateLimiter(redisClient)
	ticketHandler := handlers.NewTicketHandler(txEngine, gateValidator, webhookProcessor, gateway)
	ticketRoutes := routes.NewTicketRoutes(ticketHandler, jwtUtils, rateLimiter)

	v1 := ginEngine.Group("/api/v1")
	ticketRoutes.RegisterRoutes(v1)

	srv := &Server{
		config:   cfg,
		engine:   ginEngine,
		db:       db,
		jwtUtils: jwtUtils,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.App.Port),
			Handler:      ginEngine,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	srv.engine.GET("/health", srv.healthCheck)
	srv.engine.GET("/health/db", srv.databaseHealthCheck)

	return srv
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logger.Infof("starting HTTP server on port %d", s.config.App.Port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// GetEngine returns the gin engine, mainly for tests.
func (s *Server) GetEngine() *gin.Engine {
	return s.engine
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) databaseHealthCheck(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err != nil {
		logger.Error("failed to get database instance", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error", "database": "unavailable", "error": "failed to get database instance",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		logger.Error("database ping failed", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error", "database": "unavailable", "error": err.Error(),
		})
		return
	}

	stats := sqlDB.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "available",
		"stats": gin.H{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":              stats.Idle,
		},
	})
}
