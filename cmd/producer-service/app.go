package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/internal/producer"
	"pulse/internal/queue"
	"pulse/internal/rawstore"
	"pulse/pkg/bootstrap"
	"pulse/pkg/health"
	"pulse/pkg/logging"
	"pulse/pkg/metrics"
	"pulse/pkg/ratelimit"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	redis       *redis.Client
	postgresDB  *sql.DB
	router      *gin.Engine
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("producer-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	a.redis = rdb

	// The lookup endpoint reads back what the consumer stored. Publishing
	// works without it, so PostgreSQL is optional here.
	if a.Config.Database.Postgres.Host != "" {
		postgresDB, err := a.dbConnector.InitPostgreSQL(ctx)
		if err != nil {
			initCtx := logging.WithServiceName(ctx, "producer-service")
			a.Logger.WarnwCtx(initCtx, "PostgreSQL initialization failed, feedback lookup will be disabled",
				"error", err,
			)
		} else {
			a.postgresDB = postgresDB
		}
	}

	metrics.RegisterProducerMetrics()

	a.initRouter()

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}

	return nil
}

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	stream := a.Config.Queue.Stream
	if stream == "" {
		stream = constants.DefaultStream
	}
	publisher := queue.NewStreamPublisher(a.redis, stream)

	var store rawstore.Repository
	if a.postgresDB != nil {
		store = rawstore.NewRepository(a.postgresDB)
	}
	handler := producer.NewHandler(publisher, store, a.Logger)

	v1 := router.Group("/v1")
	if a.Config.Producer.RateLimit.Enabled {
		rl := a.Config.Producer.RateLimit
		v1.Use(ratelimit.Middleware(ratelimit.Config{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: time.Duration(rl.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rl.MaxAge) * time.Second,
		}))
	}
	v1.POST("/feedback", handler.SubmitFeedback)
	v1.GET("/feedback/:id", handler.GetFeedback)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redis))
	if a.postgresDB != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB))
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
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "producer-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down producer service")

	additionalShutdown := func(ctx context.Context) []error {
		return a.dbConnector.ShutdownDatabases(ctx, a.redis, a.postgresDB, nil)
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
