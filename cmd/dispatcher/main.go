// The dispatcher runs the publish loop without the admin API, for
// deployments that split the HTTP surface from the background worker.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AliBars19/apollova-publisher/internal/config"
	"github.com/AliBars19/apollova-publisher/internal/dispatch"
	"github.com/AliBars19/apollova-publisher/internal/events"
	"github.com/AliBars19/apollova-publisher/internal/logging"
	"github.com/AliBars19/apollova-publisher/internal/media"
	"github.com/AliBars19/apollova-publisher/internal/metrics"
	"github.com/AliBars19/apollova-publisher/internal/platform/tiktok"
	"github.com/AliBars19/apollova-publisher/internal/platform/youtube"
	"github.com/AliBars19/apollova-publisher/internal/publish"
	"github.com/AliBars19/apollova-publisher/internal/quota"
	"github.com/AliBars19/apollova-publisher/internal/store"
	"github.com/AliBars19/apollova-publisher/internal/token"
	"github.com/AliBars19/apollova-publisher/internal/tracing"
	"github.com/AliBars19/apollova-publisher/pkg/models"
)

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

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.Init("apollova-dispatcher", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer closer.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	var eventPub events.Publisher = events.Noop{}
	if cfg.Queue.Enabled {
		amqpPub, err := events.NewAMQPPublisher(events.AMQPConfig{
			Host:     cfg.Queue.Host,
			Port:     cfg.Queue.Port,
			User:     cfg.Queue.User,
			Password: cfg.Queue.Password,
			Vhost:    cfg.Queue.Vhost,
		})
		if err != nil {
			log.Fatalf("Failed to connect to message broker: %v", err)
		}
		defer amqpPub.Close()
		eventPub = amqpPub
	}

	tokens := token.NewProvider(
		token.NewFileStore(cfg.Tokens.Path),
		token.ClientCredentials{ClientID: cfg.YouTube.ClientID, ClientSecret: cfg.YouTube.ClientSecret},
		token.ClientCredentials{ClientID: cfg.TikTok.ClientID, ClientSecret: cfg.TikTok.ClientSecret},
	)

	orch := publish.NewOrchestrator(videoStore, mediaStore, tracker, eventPub, logger, map[string]publish.PlatformPublisher{
		models.PlatformYouTube: youtube.NewPublisher(tokens, mediaStore, cfg.Scheduler.PrivacyStatus),
		models.PlatformTikTok:  tiktok.NewPublisher(tokens, mediaStore),
	})

	loop := dispatch.NewLoop(videoStore, orch, tracker, logger, dispatch.Options{
		TickInterval: cfg.Scheduler.TickInterval,
		PerTickCap:   cfg.Scheduler.PerTickCap,
		DailyQuota:   cfg.Scheduler.DailyQuota,
		PublishDelay: cfg.Scheduler.PublishDelay,
	})

	// Metrics server on its own port
	metricsServer := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsServer.Start(); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	loop.Start(ctx)
	log.Println("Dispatcher started, waiting for due videos...")

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down dispatcher gracefully...")
	cancel()
	loop.Stop()

	log.Println("Dispatcher stopped")
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
