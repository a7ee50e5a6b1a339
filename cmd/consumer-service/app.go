package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/enrichedstore"
	"pulse/internal/enricher"
	"pulse/internal/logger"
	"pulse/internal/pipeline"
	"pulse/internal/queue"
	"pulse/internal/rawstore"
	"pulse/pkg/bootstrap"
	"pulse/pkg/health"
	"pulse/pkg/logging"
	"pulse/pkg/metrics"
	"pulse/pkg/retry"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	redis       *redis.Client
	postgresDB  *sql.DB
	mongoClient *mongo.Client
	coordinator *pipeline.Coordinator
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("consumer-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

// Initialize connects every backend the pipeline depends on. All of them are
// required: a consumer that cannot reach its stores would release everything
// it pulls, so failing at startup is the better outcome.
func (a *App) Initialize(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	a.redis = rdb

	postgresDB, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	a.postgresDB = postgresDB

	if a.Config.Database.RunMigrations {
		if err := a.dbConnector.MigrateUp(a.postgresDB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}
	a.mongoClient = mongoClient

	if err := a.initPipeline(ctx); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	metrics.RegisterPipelineMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()

	return nil
}

func (a *App) initPipeline(ctx context.Context) error {
	source, err := queue.NewStreamSource(ctx, a.redis, a.Config.Queue, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create stream source: %w", err)
	}

	rawRepo := rawstore.NewRepository(a.postgresDB)

	mongoDB := a.mongoClient.Database(a.Config.Database.MongoDB.Database)
	enrichedRepo := enrichedstore.NewRepository(mongoDB, a.Config.Database.MongoDB.Collection)

	analyzer, err := enricher.New(a.Config.AI, &a.Config.CircuitBreaker, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	a.coordinator = pipeline.NewCoordinator(source, rawRepo, analyzer, enrichedRepo, pipeline.Config{
		Workers:      a.Config.Pipeline.Workers,
		BatchSize:    a.Config.Pipeline.BatchSize,
		IdleInterval: a.Config.Pipeline.IdleInterval,
		Backoff: retry.Policy{
			InitialInterval: a.Config.Pipeline.Backoff.InitialInterval,
			MaxInterval:     a.Config.Pipeline.Backoff.MaxInterval,
			Multiplier:      a.Config.Pipeline.Backoff.Multiplier,
			Jitter:          a.Config.Pipeline.Backoff.Jitter,
		},
	}, a.Logger)

	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redis))
	healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB))
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))

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
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.coordinator.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "consumer-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down consumer service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.postgresDB, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
