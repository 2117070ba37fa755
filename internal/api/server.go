// Package api exposes the dashboard over HTTP: trade-call ingestion and
// listing, statistics, billing checkout and webhooks, pricing administration,
// the TradingView signal hook, and a WebSocket event feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"crypto-calls-dashboard/internal/auth"
	"crypto-calls-dashboard/internal/billing"
	"crypto-calls-dashboard/internal/cache"
	"crypto-calls-dashboard/internal/calls"
	"crypto-calls-dashboard/internal/database"
	"crypto-calls-dashboard/internal/events"
	"crypto-calls-dashboard/internal/notification"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// PriceGetter looks up one live spot price. The oracle client satisfies it.
type PriceGetter interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ProductionMode  bool
	StaticFilesPath string
	SignalToken     string
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      ServerConfig
	repo        *database.Repository
	eventBus    *events.EventBus
	ingest      *calls.IngestService
	resolver    *calls.Resolver
	aggregator  *calls.Aggregator
	prices      PriceGetter
	cacheSvc    *cache.CacheService
	authService *auth.Service
	jwtManager  *auth.JWTManager
	stripe      *billing.StripeService
	nowPayments *billing.NOWPaymentsService
	notifier    *notification.Manager
	rateLimiter *RateLimiter
	wsHub       *WSHub
	logger      zerolog.Logger
}

// NewServer creates a new API server. Billing services, the cache, the
// notifier, and auth may be nil when the corresponding feature is disabled.
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	eventBus *events.EventBus,
	ingest *calls.IngestService,
	resolver *calls.Resolver,
	aggregator *calls.Aggregator,
	prices PriceGetter,
	cacheSvc *cache.CacheService,
	authService *auth.Service,
	jwtManager *auth.JWTManager,
	stripe *billing.StripeService,
	nowPayments *billing.NOWPaymentsService,
	notifier *notification.Manager,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080", "http://localhost:8090"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		config:      config,
		repo:        repo,
		eventBus:    eventBus,
		ingest:      ingest,
		resolver:    resolver,
		aggregator:  aggregator,
		prices:      prices,
		cacheSvc:    cacheSvc,
		authService: authService,
		jwtManager:  jwtManager,
		stripe:      stripe,
		nowPayments: nowPayments,
		notifier:    notifier,
		rateLimiter: NewRateLimiter(120, time.Minute),
		wsHub:       NewWSHub(logger),
		logger:      logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()

	go server.wsHub.Run()
	if eventBus != nil {
		eventBus.SubscribeAll(server.wsHub.BroadcastEvent)
	}

	return server
}

// rateLimitMiddleware rate limits requests by endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint. Please slow down.",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.rateLimitMiddleware())

	if s.authService != nil {
		v1.POST("/auth/login", s.handleLogin)
	}

	// Trade calls
	tc := v1.Group("/trade-calls")
	{
		tc.POST("", s.handleCreateCall)
		tc.GET("", s.handleListCalls)
		tc.GET("/stats", s.handleStats)
		if s.jwtManager != nil {
			tc.POST("/resolve", auth.Middleware(s.jwtManager), auth.AdminOnly(), s.handleManualResolve)
		} else {
			tc.POST("/resolve", s.handleManualResolve)
		}
	}

	// Inbound TradingView signal hook, guarded by a shared token
	v1.POST("/webhook/signal", s.handleSignalWebhook)

	// Live spot price lookup
	v1.GET("/price/:symbol", s.handleGetPrice)

	// Public pricing
	v1.GET("/pricing", s.handleListPricing)

	// Billing
	b := v1.Group("/billing")
	{
		b.POST("/checkout/stripe", s.handleStripeCheckout)
		b.POST("/checkout/crypto", s.handleCryptoCheckout)
		b.POST("/webhook/stripe", s.handleStripeWebhook)
		b.POST("/webhook/nowpayments", s.handleNOWPaymentsIPN)
		b.GET("/subscription", s.handleGetSubscription)
	}

	// Admin-only routes
	if s.jwtManager != nil {
		admin := v1.Group("/admin")
		admin.Use(auth.Middleware(s.jwtManager), auth.AdminOnly())
		{
			admin.PUT("/pricing/:key", s.handleUpsertPricing)
			admin.DELETE("/pricing/:key", s.handleDeletePricing)
			admin.GET("/payments", s.handleListPayments)
			admin.DELETE("/subscription", s.handleCancelSubscription)
		}
	}

	// Serve static dashboard files
	if s.config.StaticFilesPath != "" {
		s.router.Static("/assets", s.config.StaticFilesPath+"/assets")
		s.router.StaticFile("/", s.config.StaticFilesPath+"/index.html")

		s.router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{
					"error":  "API endpoint not found",
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				})
				return
			}
			c.File(s.config.StaticFilesPath + "/index.html")
		})
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	resp := gin.H{
		"status":   "healthy",
		"database": "healthy",
	}
	if s.cacheSvc != nil {
		resp["cache"] = map[bool]string{true: "healthy", false: "degraded"}[s.cacheSvc.IsHealthy()]
	}

	c.JSON(http.StatusOK, resp)
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
