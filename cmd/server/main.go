package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"balance-api/internal/config"
	"balance-api/internal/controller"
	"balance-api/internal/conversation"
	"balance-api/internal/database"
	"balance-api/internal/external"
	"balance-api/internal/middleware"
	"balance-api/internal/monitoring"
	"balance-api/internal/service"
	"balance-api/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Logging)
	auditLogger := logger.AuditLogger(cfg.Logging)

	ctx := context.Background()
	deps, err := initializeDependencies(ctx, cfg, auditLogger)
	if err != nil {
		logrus.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.cleanup(cfg)

	if cfg.Sweep.Enabled {
		deps.scheduler = startSweepScheduler(cfg.Sweep.Schedule, deps.sweeper)
	}

	router := setupRouter(cfg, deps)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"address":     server.Addr,
			"environment": cfg.Server.Environment,
		}).Info("Starting balance API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Forced server shutdown")
	}
	logrus.Info("Server stopped")
}

type dependencies struct {
	database       *database.Database
	events         external.EventPublisher
	directory      external.UserDirectory
	metrics        monitoring.MetricsService
	healthChecker  monitoring.HealthChecker
	balanceService service.BalanceService
	sweeper        *service.LedgerSweeper
	wizard         *conversation.Wizard
	scheduler      *cron.Cron
}

func (d *dependencies) cleanup(cfg *config.Config) {
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	if d.events != nil {
		if err := d.events.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close event publisher")
		}
	}
	if d.database != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer cancel()
		if err := d.database.Close(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to close database connections")
		}
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, auditLogger *logrus.Logger) (*dependencies, error) {
	deps := &dependencies{}

	deps.metrics = monitoring.NewPrometheusMetrics()
	deps.healthChecker = monitoring.NewHealthChecker(version)

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = db

	deps.healthChecker.RegisterCheck("mongodb", func(ctx context.Context) error {
		return db.MongoClient.Ping(ctx, nil)
	})
	deps.healthChecker.RegisterCheck("redis", func(ctx context.Context) error {
		return db.RedisDB.Ping(ctx).Err()
	})

	if cfg.RabbitMQ.Enabled {
		events, err := external.NewEventPublisher(&external.PublisherConfig{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
		}
		deps.events = events
	} else {
		deps.events = external.NewNoopPublisher()
	}

	deps.directory = external.NewUserDirectory(&external.DirectoryConfig{
		BaseURL: cfg.Directory.URL,
		APIKey:  cfg.Directory.APIKey,
		Timeout: cfg.Directory.Timeout,
	})

	deps.balanceService = service.NewBalanceService(db.Repositories.Account, deps.events, deps.metrics)
	deps.sweeper = service.NewLedgerSweeper(db.Repositories.Account, deps.metrics, auditLogger)
	deps.wizard = conversation.NewWizard(
		db.Repositories.Session,
		deps.balanceService,
		deps.directory,
		conversation.EnglishRenderer{},
		deps.metrics,
	)

	return deps, nil
}

func startSweepScheduler(schedule string, sweeper *service.LedgerSweeper) *cron.Cron {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(schedule, func() {
		if err := sweeper.Sweep(context.Background()); err != nil {
			logrus.WithError(err).Warn("Scheduled ledger sweep failed")
		}
	})
	if err != nil {
		logrus.Fatalf("Invalid sweep schedule %q: %v", schedule, err)
	}
	scheduler.Start()
	return scheduler
}

func setupRouter(cfg *config.Config, deps *dependencies) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logrus.Fatalf("Invalid trusted proxies: %v", err)
	}

	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Admin-Key", "X-Request-ID"},
		AllowCredentials: false,
	}))

	logging := middleware.NewLoggingMiddleware(logrus.StandardLogger(), deps.metrics)
	router.Use(logging.RequestLogger())

	rateLimit := middleware.NewRateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	router.Use(rateLimit.Limit())

	router.GET("/health", func(c *gin.Context) {
		status := deps.healthChecker.CheckHealth(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.AdminAPIKey)
	balanceCtrl := controller.NewBalanceController(deps.balanceService)
	adminCtrl := controller.NewAdminController(deps.wizard)

	api := router.Group("/api/v1")

	balances := api.Group("/balances")
	balances.Use(auth.JWTAuth())
	{
		balances.GET("/:userId", balanceCtrl.GetBalance)
		balances.PUT("/:userId", balanceCtrl.SetBalance)
		balances.POST("/:userId/add", balanceCtrl.AddBalance)
		balances.POST("/:userId/subtract", balanceCtrl.SubtractBalance)
		balances.GET("/:userId/can-afford", balanceCtrl.CanAfford)
	}

	admin := api.Group("/admin")
	admin.Use(auth.AdminAuth())
	{
		admin.POST("/wizard/:chatId/start", adminCtrl.StartWizard)
		admin.POST("/wizard/:chatId/input", adminCtrl.HandleInput)
		admin.DELETE("/wizard/:chatId", adminCtrl.CancelWizard)
	}

	return router
}
