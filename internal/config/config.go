package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Metrics   MetricsConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Store     StoreConfig
	Media     MediaConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Scheduler SchedulerConfig
	Accounts  []AccountConfig
	YouTube   PlatformAppConfig
	TikTok    PlatformAppConfig
	Tokens    TokenConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Port int
}

// AuthConfig holds admin API authentication settings
type AuthConfig struct {
	JWTSecret string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// StoreConfig selects and configures the video record store backend
type StoreConfig struct {
	Driver   string // json, postgres
	Path     string // json driver
	Host     string // postgres driver
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// MediaConfig selects and configures the media store backend
type MediaConfig struct {
	Driver          string // local, s3
	Dir             string // local driver
	Endpoint        string // s3 driver
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// RedisConfig holds Redis configuration for the quota tracker
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds message broker configuration for event fan-out
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// SchedulerConfig holds dispatch loop configuration
type SchedulerConfig struct {
	TickInterval  time.Duration
	PerTickCap    int
	DailyQuota    int
	PublishDelay  time.Duration
	PrivacyStatus string // default YouTube privacy for uploads
}

// AccountConfig names one publishing identity
type AccountConfig struct {
	Name string
}

// PlatformAppConfig holds one platform's OAuth app registration
type PlatformAppConfig struct {
	ClientID     string
	ClientSecret string
}

// TokenConfig holds the OAuth token store location
type TokenConfig struct {
	Path string
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled           bool
	CollectorEndpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Accounts) == 0 {
		return nil, fmt.Errorf("config declares no publishing accounts")
	}

	return &config, nil
}

// AccountNames returns the configured account names in order.
func (c *Config) AccountNames() []string {
	names := make([]string, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		names = append(names, a.Name)
	}
	return names
}

// HasAccount reports whether name is one of the configured accounts.
func (c *Config) HasAccount(name string) bool {
	for _, a := range c.Accounts {
		if a.Name == name {
			return true
		}
	}
	return false
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.rateLimitRPS", 20)
	viper.SetDefault("server.rateLimitBurst", 40)

	// Metrics defaults
	viper.SetDefault("metrics.port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Store defaults
	viper.SetDefault("store.driver", "json")
	viper.SetDefault("store.path", "data/videos.json")
	viper.SetDefault("store.host", "localhost")
	viper.SetDefault("store.port", 5432)
	viper.SetDefault("store.user", "postgres")
	viper.SetDefault("store.password", "postgres")
	viper.SetDefault("store.dbname", "publisher")
	viper.SetDefault("store.sslmode", "disable")
	viper.SetDefault("store.maxConns", 25)
	viper.SetDefault("store.minConns", 5)

	// Media defaults
	viper.SetDefault("media.driver", "local")
	viper.SetDefault("media.dir", "data/media")
	viper.SetDefault("media.endpoint", "localhost:9000")
	viper.SetDefault("media.accessKeyID", "minioadmin")
	viper.SetDefault("media.secretAccessKey", "minioadmin")
	viper.SetDefault("media.bucketName", "videos")
	viper.SetDefault("media.region", "us-east-1")
	viper.SetDefault("media.useSSL", false)

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Queue defaults
	viper.SetDefault("queue.enabled", false)
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Scheduler defaults
	viper.SetDefault("scheduler.tickInterval", "5m")
	viper.SetDefault("scheduler.perTickCap", 1)
	viper.SetDefault("scheduler.dailyQuota", 12)
	viper.SetDefault("scheduler.publishDelay", "1m")
	viper.SetDefault("scheduler.privacyStatus", "public")

	// Token store defaults
	viper.SetDefault("tokens.path", "data/tokens.json")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collectorEndpoint", "http://localhost:14268/api/traces")
}
