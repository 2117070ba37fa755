package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-calls-dashboard/config"
	"crypto-calls-dashboard/internal/api"
	"crypto-calls-dashboard/internal/auth"
	"crypto-calls-dashboard/internal/billing"
	"crypto-calls-dashboard/internal/cache"
	"crypto-calls-dashboard/internal/calls"
	"crypto-calls-dashboard/internal/database"
	"crypto-calls-dashboard/internal/email"
	"crypto-calls-dashboard/internal/events"
	"crypto-calls-dashboard/internal/logging"
	"crypto-calls-dashboard/internal/notification"
	"crypto-calls-dashboard/internal/oracle"
	"crypto-calls-dashboard/internal/vault"

	"github.com/joho/godotenv"
)

func main() {
	// Load configuration (.env first so it can feed the env overrides)
	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Msg("structured logging initialized")

	// Overlay Vault-held secrets onto the configuration
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create vault client")
	}
	if vaultClient.Enabled() {
		vaultCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := vaultClient.ApplySecrets(vaultCtx, cfg); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("failed to load secrets from vault")
		}
		cancel()
		logger.Info().Msg("secrets loaded from vault")
	}

	// Initialize event bus
	eventBus := events.NewEventBus()

	// Initialize notification manager
	var notifyManager *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifyManager = notification.NewManager()

		if cfg.NotificationConfig.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  cfg.NotificationConfig.Telegram.Enabled,
			}))
			logger.Info().Msg("telegram notifications enabled")
		}

		if cfg.NotificationConfig.Discord.Enabled {
			notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    cfg.NotificationConfig.Discord.Enabled,
			}))
			logger.Info().Msg("discord notifications enabled")
		}
	}

	// Initialize database
	db, err := database.NewDB(cfg.DatabaseConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := database.NewRepository(db)

	// Initialize Redis cache (degraded mode is fine, nil means disabled)
	var cacheSvc *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheSvc, err = cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("cache disabled")
			cacheSvc = nil
		}
	}

	// Price oracle
	priceOracle := oracle.NewClient(cfg.OracleConfig, logger)

	// Trade-call lifecycle engine
	clock := calls.SystemClock()
	ingestService := calls.NewIngestService(repo, clock, eventBus,
		cfg.ResolverConfig.DedupWindow, cfg.ResolverConfig.CallTTL)
	resolver := calls.NewResolver(repo, priceOracle, clock, eventBus, logger)
	aggregator := calls.NewAggregator(repo)

	// Background resolution scheduler
	var scheduler *calls.Scheduler
	if cfg.ResolverConfig.TickInterval > 0 {
		scheduler = calls.NewScheduler(resolver, cfg.ResolverConfig.TickInterval, logger)
		if err := scheduler.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start resolution scheduler")
		}
		logger.Info().Dur("interval", cfg.ResolverConfig.TickInterval).Msg("resolution scheduler started")
	}

	// Forward lifecycle events to chat
	if notifyManager != nil {
		wireNotifications(eventBus, notifyManager)
	}

	// Authentication
	var authService *auth.Service
	var jwtManager *auth.JWTManager
	if cfg.AuthConfig.Enabled {
		jwtManager = auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration)
		authService = auth.NewService(cfg.AuthConfig, jwtManager)
		logger.Info().Msg("admin authentication enabled")
	}

	// Payment providers
	var stripeService *billing.StripeService
	var nowPaymentsService *billing.NOWPaymentsService
	if cfg.BillingConfig.Enabled {
		stripeService = billing.NewStripeService(
			cfg.BillingConfig.StripeSecretKey,
			cfg.BillingConfig.StripeWebhookSecret,
			cfg.BillingConfig.SuccessURL,
			cfg.BillingConfig.CancelURL,
			repo, eventBus, logger,
		)
		nowPaymentsService = billing.NewNOWPaymentsService(
			cfg.BillingConfig.NOWPaymentsAPIKey,
			cfg.BillingConfig.NOWPaymentsIPNSecret,
			cfg.BillingConfig.SuccessURL,
			cfg.BillingConfig.CancelURL,
			repo, eventBus, logger,
		)
		logger.Info().
			Bool("stripe", stripeService.IsConfigured()).
			Bool("nowpayments", nowPaymentsService.IsConfigured()).
			Msg("billing enabled")

		// Receipt emails on settled payments
		mailer := email.NewService(cfg.EmailConfig, logger)
		if mailer.IsConfigured() {
			stripeService.SetReceiptSender(mailer)
			nowPaymentsService.SetReceiptSender(mailer)
			logger.Info().Msg("payment receipt emails enabled")
		}
	}

	// HTTP server
	serverConfig := api.ServerConfig{
		Port:            cfg.ServerConfig.Port,
		Host:            cfg.ServerConfig.Host,
		ProductionMode:  cfg.ServerConfig.ProductionMode,
		StaticFilesPath: cfg.ServerConfig.StaticFilesPath,
		SignalToken:     cfg.WebhookConfig.SignalToken,
	}

	server := api.NewServer(serverConfig, repo, eventBus,
		ingestService, resolver, aggregator,
		priceOracle, cacheSvc, authService, jwtManager,
		stripeService, nowPaymentsService, notifyManager, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start web server")
		}
	}()

	logger.Info().
		Str("host", serverConfig.Host).
		Int("port", serverConfig.Port).
		Msg("crypto calls dashboard running")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down web server")
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	if cacheSvc != nil {
		cacheSvc.Close()
	}

	logger.Info().Msg("shutdown complete")
}

// wireNotifications forwards lifecycle events from the bus to the chat
// notifiers. Event payloads carry the call snapshot under "call".
func wireNotifications(bus *events.EventBus, notifier *notification.Manager) {
	callFromEvent := func(e events.Event) *calls.TradeCall {
		c, _ := e.Data["call"].(*calls.TradeCall)
		return c
	}

	bus.Subscribe(events.EventCallCreated, func(e events.Event) {
		if c := callFromEvent(e); c != nil {
			notifier.SendCallCreated(c)
		}
	})
	bus.Subscribe(events.EventCallResolved, func(e events.Event) {
		if c := callFromEvent(e); c != nil {
			notifier.SendCallResolved(c)
		}
	})
	bus.Subscribe(events.EventCallExpired, func(e events.Event) {
		if c := callFromEvent(e); c != nil {
			notifier.SendCallExpired(c)
		}
	})
}
