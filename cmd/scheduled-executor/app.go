package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/Varun2365/funnelseye/internal/audit"
	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/constants"
	"github.com/Varun2365/funnelseye/internal/executor"
	"github.com/Varun2365/funnelseye/internal/gateway"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/internal/scheduler"
	"github.com/Varun2365/funnelseye/internal/store"
	"github.com/Varun2365/funnelseye/pkg/bootstrap"
	"github.com/Varun2365/funnelseye/pkg/health"
	"github.com/Varun2365/funnelseye/pkg/logging"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	redisClient    *redis.Client
	db             *sql.DB
	service        *scheduler.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("scheduled-executor")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker("scheduled-executor"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "scheduled-executor")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterSchedulerMetrics()
	metrics.RegisterExecutorMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	if mongoClient == nil {
		return fmt.Errorf("scheduled executor requires MongoDB")
	}
	a.mongoClient = mongoClient

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	return nil
}

func (a *App) initService(ctx context.Context) error {
	db := a.mongoClient.Database(a.Config.Database.MongoDB.Database)

	var recorder executor.Recorder
	if a.db != nil {
		recorder = audit.NewRepository(a.db, a.Logger)
	} else {
		initCtx := logging.WithServiceName(ctx, "scheduled-executor")
		a.Logger.WarnwCtx(initCtx, "PostgreSQL not configured, execution audit trail disabled")
	}

	// Due actions run through the same dispatch table and ledger as
	// immediate ones.
	ledger := executor.NewRedisLedger(a.redisClient, a.Config.Executor.Idempotency.TTLSeconds)
	execSvc := executor.NewService(a.Config.Executor, ledger, recorder, a.Logger)

	handlers := executor.NewHandlers(
		store.NewLeadStore(db),
		store.NewCoachStore(db),
		store.NewTaskStore(db),
		store.NewPaymentStore(db),
		gateway.NewWhatsAppSender(a.Config.Gateways.WhatsApp, a.Config.CircuitBreaker),
		gateway.NewEmailSender(a.Config.Gateways.Email, a.Config.CircuitBreaker),
		gateway.NewSMSSender(a.Config.Gateways.SMS, a.Config.CircuitBreaker),
		gateway.NewCalendarClient(a.Config.Gateways.Calendar, a.Config.CircuitBreaker),
		gateway.NewInternalNotifier(a.Config.Gateways.Internal, a.Config.CircuitBreaker),
	)
	handlers.RegisterAll(execSvc)

	dlqTopic := a.Config.Broker.Kafka.DLQTopic
	scheduleStore := scheduler.NewRedisScheduleStore(a.redisClient)

	a.service = scheduler.NewService(scheduleStore, execSvc, a.Producer, dlqTopic,
		a.Config.Scheduler, a.Config.Broker.Kafka.Retry, a.Logger)
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return a.service.Run(gCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "scheduled-executor")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down scheduled executor")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
