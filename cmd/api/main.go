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

	"github.com/gin-gonic/gin"

	"github.com/AliBars19/apollova-publisher/internal/config"
	"github.com/AliBars19/apollova-publisher/internal/dispatch"
	"github.com/AliBars19/apollova-publisher/internal/events"
	"github.com/AliBars19/apollova-publisher/internal/logging"
	"github.com/AliBars19/apollova-publisher/internal/media"
	"github.com/AliBars19/apollova-publisher/internal/metrics"
	"github.com/AliBars19/apollova-publisher/internal/middleware"
	"github.com/AliBars19/apollova-publisher/internal/platform/tiktok"
	"github.com/AliBars19/apollova-publisher/internal/platform/youtube"
	"github.com/AliBars19/apollova-publisher/internal/publish"
	"github.com/AliBars19/apollova-publisher/internal/quota"
	"github.com/AliBars19/apollova-publisher/internal/store"
	"github.com/AliBars19/apollova-publisher/internal/token"
	"github.com/AliBars19/apollova-publisher/internal/tracing"
	"github.com/AliBars19/apollova-publisher/pkg/models"
)

type API struct {
	cfg    *config.Config
	store  store.VideoStore
	media  media.Store
	events events.Publisher
	orch   *publish.Orchestrator
	loop   *dispatch.Loop
	log    *logging.Logger
	now    func() time.Time
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize JWT secret from config
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.Init("apollova-publisher", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer closer.Close()
	}

	ctx := context.Background()

	videoStore, err := newVideoStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize video store: %v", err)
	}

	mediaStore, err := newMediaStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize media store: %v", err)
	}

	tracker, err := newQuotaTracker(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize quota tracker: %v", err)
	}

	eventPub, closeEvents, err := newEventPublisher(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to message broker: %v", err)
	}
	defer closeEvents()

	orch := newOrchestrator(cfg, videoStore, mediaStore, tracker, eventPub, logger)

	loop := dispatch.NewLoop(videoStore, orch, tracker, logger, dispatch.Options{
		TickInterval: cfg.Scheduler.TickInterval,
		PerTickCap:   cfg.Scheduler.PerTickCap,
		DailyQuota:   cfg.Scheduler.DailyQuota,
		PublishDelay: cfg.Scheduler.PublishDelay,
	})
	loop.Start(ctx)
	defer loop.Stop()

	// Metrics server on its own port
	metricsServer := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsServer.Start(); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	api := &API{
		cfg:    cfg,
		store:  videoStore,
		media:  mediaStore,
		events: eventPub,
		orch:   orch,
		loop:   loop,
		log:    logger,
		now:    time.Now,
	}

	router := setupRouter(api, logger, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func newVideoStore(ctx context.Context, cfg *config.Config) (store.VideoStore, error) {
	switch cfg.Store.Driver {
	case "", "json":
		return store.NewJSONStore(cfg.Store.Path), nil
	case "postgres":
		return store.NewPostgresStore(ctx, store.PostgresConfig{
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			DBName:   cfg.Store.DBName,
			SSLMode:  cfg.Store.SSLMode,
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func newMediaStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch cfg.Media.Driver {
	case "", "local":
		if err := os.MkdirAll(cfg.Media.Dir, 0o755); err != nil {
			return nil, err
		}
		return media.NewLocalStore(cfg.Media.Dir), nil
	case "s3":
		return media.NewS3Store(ctx, media.S3Config{
			Endpoint:        cfg.Media.Endpoint,
			AccessKeyID:     cfg.Media.AccessKeyID,
			SecretAccessKey: cfg.Media.SecretAccessKey,
			BucketName:      cfg.Media.BucketName,
			Region:          cfg.Media.Region,
			UseSSL:          cfg.Media.UseSSL,
		})
	}
	return nil, fmt.Errorf("unknown media driver %q", cfg.Media.Driver)
}

func newQuotaTracker(cfg *config.Config) (quota.Tracker, error) {
	if !cfg.Redis.Enabled {
		return quota.NewMemoryTracker(), nil
	}
	return quota.NewRedisTracker(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
}

func newEventPublisher(cfg *config.Config) (events.Publisher, func(), error) {
	if !cfg.Queue.Enabled {
		return events.Noop{}, func() {}, nil
	}
	pub, err := events.NewAMQPPublisher(events.AMQPConfig{
		Host:     cfg.Queue.Host,
		Port:     cfg.Queue.Port,
		User:     cfg.Queue.User,
		Password: cfg.Queue.Password,
		Vhost:    cfg.Queue.Vhost,
	})
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { pub.Close() }, nil
}

func newOrchestrator(cfg *config.Config, videoStore store.VideoStore, mediaStore media.Store, tracker quota.Tracker, eventPub events.Publisher, logger *logging.Logger) *publish.Orchestrator {
	tokens := token.NewProvider(
		token.NewFileStore(cfg.Tokens.Path),
		token.ClientCredentials{ClientID: cfg.YouTube.ClientID, ClientSecret: cfg.YouTube.ClientSecret},
		token.ClientCredentials{ClientID: cfg.TikTok.ClientID, ClientSecret: cfg.TikTok.ClientSecret},
	)

	publishers := map[string]publish.PlatformPublisher{
		models.PlatformYouTube: youtube.NewPublisher(tokens, mediaStore, cfg.Scheduler.PrivacyStatus),
		models.PlatformTikTok:  tiktok.NewPublisher(tokens, mediaStore),
	}

	return publish.NewOrchestrator(videoStore, mediaStore, tracker, eventPub, logger, publishers)
}

func setupRouter(api *API, logger *logging.Logger, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", api.healthCheck)

	rl := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth())
	v1.Use(middleware.RateLimit(rl))
	{
		// Videos
		v1.POST("/videos", api.createVideo)
		v1.GET("/videos", api.listVideos)
		v1.GET("/videos/:id", api.getVideo)
		v1.DELETE("/videos/:id", api.deleteVideo)

		// Scheduling
		v1.POST("/videos/bulk-schedule", api.bulkSchedule)
		v1.GET("/videos/bulk-schedule", api.scheduleOverview)
		v1.POST("/videos/:id/schedule", api.scheduleVideo)

		// Publishing
		v1.POST("/videos/:id/publish", api.publishVideo)
		v1.POST("/dispatch/tick", api.triggerTick)
	}

	return router
}
