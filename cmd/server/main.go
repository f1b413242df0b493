package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apprefund "github.com/storefront/backend/internal/application/refund"
	"github.com/storefront/backend/internal/domain/refund"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/store"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting storefront backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with GORM logging backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database ready", zap.String("driver", cfg.Database.Driver))

	// Submission guard: redis when configured, in-memory otherwise
	var guard refund.SubmissionGuard
	if cfg.Redis.Enabled {
		redisGuard, err := cache.NewRedisSubmissionGuard(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = redisGuard.Close() }()
		guard = redisGuard
		log.Info("Using redis submission guard", zap.String("host", cfg.Redis.Host))
	} else {
		memGuard := cache.NewInMemorySubmissionGuard()
		defer func() { _ = memGuard.Close() }()
		guard = memGuard
		log.Info("Using in-memory submission guard")
	}

	// Store adapter: the only way in and out of the storefront
	storeAdapter, err := store.NewAdapter(store.Config{
		BaseURL:          cfg.Store.BaseURL,
		ConsumerKey:      cfg.Store.ConsumerKey,
		ConsumerSecret:   cfg.Store.ConsumerSecret,
		Timeout:          cfg.Store.Timeout,
		MaxResponseBytes: cfg.Store.MaxResponseBytes,
	}, logger.Named(log, "store"))
	if err != nil {
		log.Fatal("Failed to configure store adapter", zap.Error(err))
	}

	// Application service
	sessionRepo := persistence.NewGormSessionRepository(db.DB)
	refundService := apprefund.NewService(
		storeAdapter,
		sessionRepo,
		storeAdapter,
		guard,
		logger.Named(log, "refund"),
		apprefund.Options{
			ShippingRefundEnabled: cfg.Refund.ShippingRefundEnabled,
			GuardTTL:              cfg.Refund.GuardTTL,
		},
	)

	// Event bus for refund lifecycle telemetry
	bus := event.NewInMemoryEventBus(logger.Named(log, "events"))
	auditLog := logger.Named(log, "refund.audit")
	bus.Subscribe(refund.EventRefundSucceeded, func(ctx context.Context, e shared.DomainEvent) error {
		if succeeded, ok := e.(*refund.RefundSucceededEvent); ok {
			auditLog.Info("refund succeeded",
				zap.Int64("order_id", succeeded.OrderID),
				zap.Int64("refund_id", succeeded.RefundID),
				zap.String("amount", succeeded.Amount.String()))
		}
		return nil
	})
	bus.Subscribe(refund.EventRefundFailed, func(ctx context.Context, e shared.DomainEvent) error {
		if failed, ok := e.(*refund.RefundFailedEvent); ok {
			auditLog.Warn("refund failed",
				zap.Int64("order_id", failed.OrderID),
				zap.String("code", failed.Code))
		}
		return nil
	})
	refundService.SetEventPublisher(bus)

	// HTTP engine and middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
			AllowMethods:     cfg.HTTP.CORSAllowMethods,
			AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	// Token auth is on whenever a secret is configured; /health stays open
	if cfg.JWT.Secret != "" {
		jwtService := auth.NewJWTService(cfg.JWT)
		engine.Use(middleware.JWTAuth(jwtService))
	}

	engine.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})

	router.NewRouter(engine).
		Register(handler.NewRefundHandler(refundService)).
		Setup()

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
