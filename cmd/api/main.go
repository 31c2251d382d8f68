package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/adapter/handler"
	"github.com/johnquangdev/meeting-intelligence/internal/adapter/repository"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/database"
	httpmw "github.com/johnquangdev/meeting-intelligence/internal/infrastructure/http/middleware"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/queue"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/storage"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/ingest"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/pipeline"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/query"
	pkgai "github.com/johnquangdev/meeting-intelligence/pkg/ai"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
	"github.com/johnquangdev/meeting-intelligence/pkg/metrics"
	pkgvalidator "github.com/johnquangdev/meeting-intelligence/pkg/validator"
)

// @title           Meeting Intelligence API
// @version         1.0
// @description     Upload meeting recordings, poll processing status, read transcripts and insights, and search across meetings.
// @BasePath        /

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	logger.Info("connecting to database")
	db, err := database.NewPostgresDB(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	// Migrations run at startup only when explicitly enabled.
	// Production deployments apply them with scripts/migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			logger.Fatal("DB_AUTO_MIGRATE is enabled in production; apply migrations with scripts/migrate")
		}
		if _, err := database.Migrate(db, cfg.Database.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	// Initialize Redis
	logger.Info("connecting to redis")
	redisClient, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize object storage
	logger.Info("connecting to object storage", zap.String("bucket", cfg.Storage.BucketName))
	media, err := storage.NewMinIOClient(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize object storage", zap.Error(err))
	}

	jobQueue, err := queue.NewRedisStreamQueue(redisClient, queue.RedisQueueConfig{
		Stream:        cfg.Pipeline.QueueStream,
		Group:         cfg.Pipeline.QueueGroup,
		MaxDeliveries: cfg.Pipeline.QueueMaxDeliveries,
		ClaimIdle:     cfg.Pipeline.QueueClaimIdle,
		RetryDelay:    cfg.Pipeline.RetryMaxInterval,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize job queue", zap.Error(err))
	}
	if err := jobQueue.EnsureGroup(ctx); err != nil {
		logger.Fatal("failed to create consumer group", zap.Error(err))
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// Repositories
	meetingRepo := repository.NewMeetingRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)
	vectorIndex := repository.NewVectorRepository(db)

	// AI clients
	transcriber := pkgai.NewAssemblyAIClient(&cfg.Assembly)
	groqClient := pkgai.NewGroqClient(&cfg.Groq)
	ollamaClient := pkgai.NewOllamaClient(&cfg.Ollama)

	// Services
	queryCache := cache.NewMemoryStore[[]float32](cfg.Search.QueryCacheMaxLen)
	defer queryCache.Close()

	ingestService := ingest.NewService(meetingRepo, media, jobQueue, cfg, appMetrics, logger)
	queryService := query.NewService(meetingRepo, artifactRepo, vectorIndex, ollamaClient, media, queryCache, cfg, appMetrics, logger)
	pipelineService := pipeline.NewService(
		meetingRepo,
		artifactRepo,
		media,
		jobQueue,
		transcriber,
		groqClient,
		ollamaClient,
		cfg,
		appMetrics,
		logger,
	)

	if err := pipelineService.StartWorkerPool(ctx); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = pkgvalidator.New()

	e.Use(middleware.RequestID())
	e.Use(httpmw.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))
	// multipart overhead on top of the file itself
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Upload.MaxSizeMB+1)))

	meetingHandler := handler.NewMeetingHandler(ingestService, queryService, cfg.MaxUploadBytes(), logger)
	router := handler.NewRouter(cfg, meetingHandler, map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"redis":    jobQueue.Ping,
		"storage":  media.Ping,
	}, registry)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		logger.Info("starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment),
		)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := pipelineService.StopWorkerPool(); err != nil {
		logger.Error("failed to stop worker pool", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
