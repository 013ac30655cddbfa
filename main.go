// Package main provides the main entry point for the Kusanagi lifecycle engine
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Kusanagi/app/handlers"
	"github.com/amirphl/Kusanagi/app/middleware"
	"github.com/amirphl/Kusanagi/app/router"
	"github.com/amirphl/Kusanagi/app/services"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Kusanagi lifecycle engine...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeEngineLogger builds the engine invocation logger, writing to
// stdout and a rotating file
func initializeEngineLogger(cfg config.LoggingConfig) *log.Logger {
	var w io.Writer = os.Stdout

	if cfg.Output == "file" || cfg.Output == "both" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if cfg.Output == "file" {
			w = rotating
		} else {
			w = io.MultiWriter(os.Stdout, rotating)
		}
	}

	return log.New(w, "engine ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// initializeDeliveryProvider creates the delivery provider based on configuration
func initializeDeliveryProvider(cfg *config.ProductionConfig) services.DeliveryProvider {
	switch cfg.Delivery.Domain {
	case "mock":
		return services.NewMockDeliveryProvider()
	default:
		return services.NewHTTPDeliveryProvider(cfg.Delivery)
	}
}

// initializeShortLinker creates the short link client based on configuration
func initializeShortLinker(cfg *config.ProductionConfig) services.ShortLinker {
	if cfg.ShortLink.APIDomain == "" {
		return services.NewMockShortLinker()
	}
	return services.NewHTTPShortLinker(cfg.ShortLink)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.PingInterval)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	ruleRepo := repository.NewLifecycleRuleRepository(db)
	execRepo := repository.NewLifecycleExecutionRepository(db)
	consentRepo := repository.NewConsentRepository(db)
	triggerRepo := repository.NewTriggerEventRepository(db)
	shortLinkRepo := repository.NewShortLinkRepository(db)
	deliveryRepo := repository.NewDeliveryReportRepository(db)
	settingsRepo := repository.NewBusinessSettingsRepository(db)

	// Initialize services
	engineLogger := initializeEngineLogger(cfg.Logging)
	provider := initializeDeliveryProvider(cfg)
	shortLinker := initializeShortLinker(cfg)
	templates := services.NewTemplateService()

	var lock services.InvocationLock
	if rc != nil {
		lock = services.NewRedisInvocationLock(rc, cfg.Cache.RedisPrefix+"engine:tick:lock")
	} else {
		// Single-instance deployments without redis still get the claim
		// update as the idempotency backstop
		lock = services.NewNoopInvocationLock()
		log.Println("Redis disabled, running without the invocation lock")
	}

	// Initialize flows
	tx := repository.NewGormTxRunner(db)
	consentFlow := businessflow.NewConsentFlow(consentRepo, customerRepo, tx, engineLogger)
	ruleFlow := businessflow.NewRuleFlow(ruleRepo, engineLogger)
	schedulerFlow := businessflow.NewSchedulerFlow(ruleRepo, triggerRepo, execRepo, tx, cfg.Engine, engineLogger)
	executorFlow := businessflow.NewExecutorFlow(
		execRepo,
		ruleRepo,
		customerRepo,
		settingsRepo,
		shortLinkRepo,
		consentFlow,
		templates,
		shortLinker,
		provider,
		cfg.Engine,
		engineLogger,
	)
	attributionFlow := businessflow.NewAttributionFlow(execRepo, triggerRepo, engineLogger)
	analyticsFlow := businessflow.NewAnalyticsFlow(ruleRepo, execRepo, deliveryRepo, shortLinkRepo, attributionFlow, cfg.Engine, engineLogger)
	engineFlow := businessflow.NewEngineFlow(schedulerFlow, executorFlow, deliveryRepo, shortLinkRepo, lock, cfg.Engine, engineLogger)

	// Initialize handlers
	engineHandler := handlers.NewEngineHandler(engineFlow, analyticsFlow, cfg.Engine.TickBudget+time.Minute)
	ruleHandler := handlers.NewRuleHandler(ruleFlow, analyticsFlow)
	consentHandler := handlers.NewConsentHandler(consentFlow)

	// Initialize middleware and router
	engineAuth := middleware.NewEngineAuthMiddleware(cfg.Security.EngineSecret, cfg.Security.EngineSecretHeader)
	r := router.NewFiberRouter(cfg, engineHandler, ruleHandler, consentHandler, engineAuth)

	return &Application{
		router:    r,
		config:    cfg,
		server:    r.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
