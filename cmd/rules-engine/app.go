package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/Varun2365/funnelseye/internal/broker"
	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/constants"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/internal/rules"
	"github.com/Varun2365/funnelseye/internal/scheduler"
	"github.com/Varun2365/funnelseye/pkg/bootstrap"
	"github.com/Varun2365/funnelseye/pkg/health"
	"github.com/Varun2365/funnelseye/pkg/logging"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/migrations"
	"github.com/Varun2365/funnelseye/pkg/models"
	"github.com/Varun2365/funnelseye/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	redisClient    *redis.Client
	service        *rules.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("rules-engine")
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

	if err := a.InitBroker("rules-engine"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "rules-engine")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterRulesEngineMetrics()
	metrics.RegisterBrokerMetrics()

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
		return fmt.Errorf("rules engine requires MongoDB")
	}
	a.mongoClient = mongoClient

	if a.Config.Database.RunMigrations {
		db := mongoClient.Database(a.Config.Database.MongoDB.Database)
		if err := migrations.EnsureMongoIndexes(ctx, db); err != nil {
			return fmt.Errorf("failed to ensure MongoDB indexes: %w", err)
		}
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	return nil
}

func (a *App) initService(ctx context.Context) error {
	db := a.mongoClient.Database(a.Config.Database.MongoDB.Database)
	repo := rules.NewRepository(db)
	delayStore := scheduler.NewRedisScheduleStore(a.redisClient)

	svc, err := rules.NewService(repo, a.Producer, delayStore,
		a.Config.Broker.Kafka.ActionsTopic, a.Config.Rules, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create rules service: %w", err)
	}

	if err := svc.ReloadRules(ctx); err != nil {
		initCtx := logging.WithServiceName(ctx, "rules-engine")
		a.Logger.WarnwCtx(initCtx, "Failed to load initial rules",
			"error", err,
		)
	}

	a.service = svc
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	healthRegistry.Register(health.NewRedisChecker(a.redisClient))

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

	configConsumer, err := broker.NewConsumer(a.Config.Broker, a.Logger)
	if err != nil {
		configCtx := logging.WithServiceName(ctx, "rules-engine")
		a.Logger.WarnwCtx(configCtx, "Failed to create config event consumer, event-driven reload disabled",
			"error", err,
		)
	} else {
		configConsumer.SetServiceName("rules-engine")
		defer configConsumer.Close()
		configEventHandler := rules.NewHandler(a.service, a.Logger)

		g.Go(func() error {
			configCtx := logging.WithServiceName(gCtx, "rules-engine")
			a.Logger.InfowCtx(configCtx, "Starting config update event consumer",
				"topic", a.Config.Broker.Kafka.ConfigTopic,
			)
			return configConsumer.Consume(gCtx, a.Config.Broker.Kafka.ConfigTopic, func(cCtx context.Context, msg models.MessageEnvelope) error {
				return configEventHandler.HandleConfigUpdateEvent(cCtx, msg)
			})
		})
	}

	g.Go(func() error {
		return a.service.StartReloader(gCtx)
	})

	eventsTopic := a.Config.Broker.Kafka.EventsTopic
	if eventsTopic == "" {
		eventsTopic = constants.DefaultEventsTopic
	}
	g.Go(func() error {
		return a.Consumer.Consume(gCtx, eventsTopic, a.service.HandleEvent)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "rules-engine")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down rules engine")

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

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, nil, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
