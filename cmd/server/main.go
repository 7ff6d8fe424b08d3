package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/adapter/billing"
	"github.com/mincom-smart/chargebridge/internal/adapter/cache"
	"github.com/mincom-smart/chargebridge/internal/adapter/chargepoint"
	"github.com/mincom-smart/chargebridge/internal/adapter/http/fiber/handlers"
	"github.com/mincom-smart/chargebridge/internal/adapter/http/fiber/middleware"
	"github.com/mincom-smart/chargebridge/internal/adapter/queue"
	"github.com/mincom-smart/chargebridge/internal/adapter/storage/postgres"
	"github.com/mincom-smart/chargebridge/internal/adapter/vault"
	"github.com/mincom-smart/chargebridge/internal/infrastructure/httpclient"
	"github.com/mincom-smart/chargebridge/internal/observability/telemetry"
	"github.com/mincom-smart/chargebridge/internal/service/activity"
	"github.com/mincom-smart/chargebridge/internal/service/identity"
	syncsvc "github.com/mincom-smart/chargebridge/internal/service/sync"
	"github.com/mincom-smart/chargebridge/pkg/config"
)

const serviceName = "chargebridge"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting chargebridge",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(serviceName, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	resolveSecrets(cfg, logger)

	db, err := postgres.NewConnection(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.LogQueries, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close(db)

	if err := postgres.RunMigrations(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	reconcileLock, err := cache.NewRedisLock(cfg.Redis.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer reconcileLock.Close()

	messageQueue, err := newMessageQueue(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	defer messageQueue.Close()

	userRepo := postgres.NewUserRepository(db, logger)
	credentialRepo := postgres.NewCredentialRepository(db, logger)
	transactionRepo := postgres.NewTransactionRepository(db, logger)
	watermarkRepo := postgres.NewWatermarkRepository(db, logger)
	activityRepo := postgres.NewActivityRepository(db, logger)

	steveClient, err := chargepoint.NewClient(
		cfg.Steve.BaseURL, cfg.Steve.Username, cfg.Steve.Password,
		httpclient.New(breakerSettings(cfg, "steve", cfg.Steve.Timeout), logger),
		logger,
	)
	if err != nil {
		logger.Fatal("Invalid charge-point configuration", zap.Error(err))
	}

	odooClient, err := billing.NewClient(
		cfg.Odoo.Host, cfg.Odoo.APISecret, cfg.Odoo.AdminAPIKey,
		httpclient.New(breakerSettings(cfg, "odoo", cfg.Odoo.Timeout), logger),
		logger,
	)
	if err != nil {
		logger.Fatal("Invalid billing configuration", zap.Error(err))
	}

	probeBackends(steveClient, odooClient, logger)

	recorder := activity.NewRecorder(activityRepo, messageQueue, logger)
	defer recorder.Close()

	identityService := identity.NewService(userRepo, credentialRepo, odooClient, steveClient, reconcileLock, recorder, logger)
	syncService := syncsvc.NewService(transactionRepo, watermarkRepo, userRepo, steveClient, odooClient, messageQueue, cfg.Sync.Slack, logger)

	runJournal, err := syncsvc.NewRunJournal(messageQueue, logger)
	if err != nil {
		logger.Warn("sync run journal unavailable", zap.Error(err))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.FullResync {
		go func() {
			if _, err := syncService.RunFull(rootCtx); err != nil {
				logger.Error("initial full resync failed", zap.Error(err))
			}
		}()
	}

	scheduler := syncsvc.NewScheduler(syncService, cfg.Sync.Interval, cfg.Sync.RunTimeout, logger)
	go scheduler.Run(rootCtx)

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORS.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	healthHandler := handlers.NewHealthHandler(odooClient, steveClient, logger)
	app.Get("/health/live", healthHandler.Live)
	app.Get("/health/ready", healthHandler.Ready)

	if cfg.Prometheus.Enabled {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	v1 := app.Group("/api/v1")

	identityHandler := handlers.NewIdentityHandler(identityService, logger)
	syncHandler := handlers.NewSyncHandler(syncService, runJournal, logger)

	authed := v1.Group("", middleware.AuthRequired([]byte(cfg.JWT.Secret)))
	authed.Post("/session", identityHandler.Session)

	// Operator endpoints, reached only via the internal network.
	v1.Post("/users/:id/billing-account", identityHandler.CreateBillingAccount)
	v1.Get("/users/:id/portal-login", identityHandler.PortalLogin)
	v1.Post("/users/:id/rotate-api-key", identityHandler.RotateAPIKey)
	v1.Post("/users/:id/block", identityHandler.Block)
	v1.Post("/users/:id/unblock", identityHandler.Unblock)

	v1.Post("/sync/run", syncHandler.Run)
	v1.Post("/sync/full", syncHandler.RunFull)
	v1.Get("/sync/status", syncHandler.Status)

	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

// resolveSecrets overlays Vault-held credentials onto the configuration.
// Anything Vault does not hold keeps its environment value.
func resolveSecrets(cfg *config.Config, logger *zap.Logger) {
	if !cfg.Vault.Enabled {
		return
	}

	sm, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token)
	if err != nil {
		logger.Fatal("Failed to connect to Vault", zap.Error(err))
	}

	if v, err := sm.GetDatabaseURL(); err == nil {
		cfg.Database.URL = v
	}
	if v, err := sm.GetOdooAPISecret(); err == nil {
		cfg.Odoo.APISecret = v
	}
	if v, err := sm.GetOdooAdminAPIKey(); err == nil {
		cfg.Odoo.AdminAPIKey = v
	}
	if v, err := sm.GetStevePassword(); err == nil {
		cfg.Steve.Password = v
	}
}

func newMessageQueue(cfg *config.Config, logger *zap.Logger) (queue.MessageQueue, error) {
	switch cfg.Queue.Driver {
	case "rabbitmq":
		return queue.NewRabbitMQQueue(cfg.Queue.URL, logger)
	default:
		return queue.NewNATSQueue(cfg.Queue.URL, logger)
	}
}

func breakerSettings(cfg *config.Config, name string, timeout time.Duration) httpclient.Settings {
	settings := httpclient.DefaultSettings(name)
	if timeout > 0 {
		settings.Timeout = timeout
	}
	if !cfg.CircuitBreaker.Enabled {
		return settings
	}
	if cfg.CircuitBreaker.MaxRequests > 0 {
		settings.MaxRequests = uint32(cfg.CircuitBreaker.MaxRequests)
	}
	if cfg.CircuitBreaker.Interval > 0 {
		settings.Interval = cfg.CircuitBreaker.Interval
	}
	if cfg.CircuitBreaker.Timeout > 0 {
		settings.OpenTimeout = cfg.CircuitBreaker.Timeout
	}
	if cfg.CircuitBreaker.FailureThreshold > 0 {
		settings.FailureThreshold = uint32(cfg.CircuitBreaker.FailureThreshold)
	}
	return settings
}

// probeBackends checks downstream reachability at boot. Failures are logged,
// not fatal: the circuit breakers and the scheduler retry on their own.
func probeBackends(steve *chargepoint.Client, odoo *billing.Client, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := steve.Ping(ctx); err != nil {
		logger.Warn("charge-point backend unreachable at boot", zap.Error(err))
	}
	if err := odoo.Ping(ctx); err != nil {
		logger.Warn("billing backend unreachable at boot", zap.Error(err))
	}
}
