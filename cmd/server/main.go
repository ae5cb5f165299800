package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"belgaum-backend/internal/chat"
	"belgaum-backend/internal/config"
	"belgaum-backend/internal/database"
	"belgaum-backend/internal/handlers"
	"belgaum-backend/internal/middleware"
	"belgaum-backend/internal/provider"
	"belgaum-backend/internal/repository"
	"belgaum-backend/internal/router"
	"belgaum-backend/internal/services"
	"belgaum-backend/internal/store"
	"belgaum-backend/internal/websocket"
	"belgaum-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("🚀 Starting Belgaum.ai Backend...")
	logger.Info("✓ Environment variables loaded", zap.String("env", cfg.Env))

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		logger.Fatal("✗ PostgreSQL connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Client ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal("✗ Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir, logger); err != nil {
		logger.Fatal("✗ Database migration failed", zap.Error(err))
	}
	logger.Info("✓ Database migrations applied")

	// ──── Step 5: Open Message Store ────
	var opener store.Opener
	switch cfg.MessageStoreDriver {
	case "sqlite":
		db, err := database.NewSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("✗ SQLite message store failed", zap.Error(err))
		}
		defer db.Close()
		opener = store.NewSQLiteOpener(db)
	case "memory":
		opener = store.NewMemoryOpener()
	default:
		opener = store.NewRedisOpener(redisClient, cfg.Chat.HistoryDuration())
	}
	logger.Info("✓ Message store ready", zap.String("driver", cfg.MessageStoreDriver))

	// ──── Step 6: Initialize LLM Provider ────
	providerCfg, err := providerConfig(cfg)
	if err != nil {
		logger.Fatal("✗ LLM provider misconfigured", zap.Error(err))
	}
	adapter, err := provider.New(providerCfg, logger)
	if err != nil {
		logger.Fatal("✗ LLM provider initialization failed", zap.Error(err))
	}
	defer adapter.Close()
	logger.Info("✓ LLM provider initialized", zap.String("provider", string(adapter.Backend())))

	systemPrompt, err := cfg.SystemPrompt()
	if err != nil {
		logger.Fatal("✗ System prompt unavailable", zap.Error(err))
	}

	// ──── Initialize Repositories ────
	contactRepo := repository.NewContactRepo(pool)
	auditRepo := repository.NewAuditRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.ContactNotifyEmail, logger)
	captcha := services.NewCaptchaVerifier(cfg.RecaptchaSecret, cfg.RecaptchaVerifyURL, logger)
	contactService := services.NewContactService(contactRepo, captcha, emailService, logger)
	adminAuth := services.NewAdminAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, jwtAuth)
	auditQueue := services.NewAuditQueue(redisClient)

	auditRecorder, err := services.NewAuditRecorder(auditRepo, cfg.AuditLogDir, logger)
	if err != nil {
		logger.Fatal("✗ Audit log directory unavailable", zap.Error(err))
	}

	// ──── Step 7: Start Audit Worker Pool ────
	workerPool := worker.NewPool(redisClient, auditRecorder, services.AuditQueueKey, cfg.AuditWorkers, logger)
	workerPool.Start()
	logger.Info("✓ Audit worker pool started", zap.Int("workers", cfg.AuditWorkers))

	var retention *services.RetentionScheduler
	if sweeper, ok := opener.(store.Sweeper); ok {
		retention = services.NewRetentionScheduler(sweeper, cfg.Chat.HistoryDuration(), cfg.Chat.HistorySweepInterval(), logger)
		retention.Start()
		logger.Info("✓ History retention sweep scheduled", zap.Duration("interval", cfg.Chat.HistorySweepInterval()))
	}

	// ──── Step 8: Start WebSocket Hub ────
	factory := chat.NewFactory(chat.SettingsFromConfig(cfg, systemPrompt), adapter, auditQueue, opener, logger)
	allowedOrigins := []string{cfg.FrontendURL}
	if cfg.IsDevelopment() {
		allowedOrigins = []string{"*"}
	}
	wsHub := websocket.NewHub(jwtAuth, factory, allowedOrigins, logger)
	logger.Info("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	contactHandler := handlers.NewContactHandler(contactService, logger)
	chatHandler := handlers.NewChatHandler(jwtAuth)
	adminHandler := handlers.NewAdminHandler(adminAuth, contactRepo, auditRepo, logger)

	// Public endpoints: 10 req/min per IP
	publicLimiter := middleware.NewRateLimiter(10, time.Minute)
	defer publicLimiter.Stop()

	// ──── Step 9: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		contactHandler,
		chatHandler,
		adminHandler,
		wsHub,
		publicLimiter,
		allowedOrigins,
		logger,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
		}
		if err := wsHub.Shutdown(ctx); err != nil {
			logger.Warn("WebSocket hub shutdown incomplete", zap.Error(err))
		}
		workerPool.Stop()
		if retention != nil {
			retention.Stop()
		}
		contactService.Wait()
	}()

	logger.Info(fmt.Sprintf("✓ Belgaum.ai Backend ready on http://localhost:%s", cfg.Port))
	logger.Info(fmt.Sprintf("  API: http://localhost:%s/api/v1", cfg.Port))
	logger.Info(fmt.Sprintf("  WS:  ws://localhost:%s/api/v1/chat/ws", cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}
	<-shutdownDone
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopmentConfig().Build()
	}
	return zap.NewProductionConfig().Build()
}

func providerConfig(cfg *config.Config) (provider.Config, error) {
	backend, err := provider.ParseBackend(cfg.LLM.Provider)
	if err != nil {
		return provider.Config{}, err
	}

	pc := provider.Config{
		Backend:            backend,
		ConcurrentRequests: cfg.LLM.ConcurrentRequests,
	}
	if backend == provider.BackendOpenAI {
		pc.Model = cfg.LLM.OpenAIModel
		pc.Endpoint = cfg.LLM.OpenAIEndpoint
		pc.APIKey = cfg.LLM.OpenAIAPIKey
	} else {
		pc.Model = cfg.LLM.GeminiModel
		pc.Endpoint = cfg.LLM.GeminiEndpoint
		pc.APIKey = cfg.LLM.GeminiAPIKey
	}
	return pc, nil
}
