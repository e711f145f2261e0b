package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/Varun2365/funnelseye/internal/admin"
	"github.com/Varun2365/funnelseye/internal/audit"
	"github.com/Varun2365/funnelseye/internal/broker"
	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/constants"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/internal/rules"
	"github.com/Varun2365/funnelseye/pkg/bootstrap"
	"github.com/Varun2365/funnelseye/pkg/cel"
	"github.com/Varun2365/funnelseye/pkg/health"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/middleware"
	"github.com/Varun2365/funnelseye/pkg/migrations"
	"github.com/Varun2365/funnelseye/pkg/ratelimit"
	"github.com/Varun2365/funnelseye/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	mongoClient    *mongo.Client
	producer       broker.Producer
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("admin-service")
	}
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}

	tp, err := tracing.Init(a.config.Tracing, "admin-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	if mongoClient == nil {
		return fmt.Errorf("admin service requires MongoDB")
	}
	a.mongoClient = mongoClient

	if a.config.Database.RunMigrations {
		db := mongoClient.Database(a.config.Database.MongoDB.Database)
		if err := migrations.EnsureMongoIndexes(ctx, db); err != nil {
			return fmt.Errorf("failed to ensure MongoDB indexes: %w", err)
		}
	}

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.db != nil && a.config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db, constants.DefaultPostgresMigrationsDir); err != nil {
			return fmt.Errorf("failed to run postgres migrations: %w", err)
		}
	}

	return nil
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("admin-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.Admin.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.config.Admin.RateLimit.RPS,
			Burst:           a.config.Admin.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.Admin.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.Admin.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	producer, err := broker.NewProducer(a.config.Broker, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	a.producer = producer

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	dbName := a.config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	repo := rules.NewRepository(a.mongoClient.Database(dbName))

	var executions admin.ExecutionLister
	if a.db != nil {
		executions = audit.NewRepository(a.db, a.logger)
	} else {
		a.logger.WarnwCtx(ctx, "PostgreSQL not configured, execution history endpoint disabled")
	}

	notifier := admin.NewNotifier(producer, a.config.Broker.Kafka.ConfigTopic, a.logger)
	svc := admin.NewService(repo, evaluator, producer,
		a.config.Broker.Kafka.EventsTopic, notifier, executions, a.logger)

	handler := admin.NewHandler(svc, a.logger)
	handler.RegisterRoutes(router)

	metrics.RegisterAdminMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	dbErrs := a.dbConnector.ShutdownDatabases(ctx, nil, a.db, a.mongoClient)
	errs = append(errs, dbErrs...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
