package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	MinIO     MinIOConfig
	RabbitMQ  RabbitMQConfig
	Providers ProvidersConfig
	Search    SearchConfig
	Worker    WorkerConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	Mode string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConnections int
	MinConnections int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	SSL       bool
	Location  string
	// PublicBaseURL is the externally reachable base for uploaded objects.
	// Empty means URLs are derived from Endpoint.
	PublicBaseURL string
}

type RabbitMQConfig struct {
	Enabled     bool
	Host        string
	Port        int
	User        string
	Password    string
	Queue       string
	Exchange    string
	RoutingKey  string
	ConsumerTag string
}

// ProvidersConfig holds the credentials for the third-party image search APIs.
// An empty key means the provider is skipped during fallback.
type ProvidersConfig struct {
	UnsplashAccessKey string
	PexelsAPIKey      string
	PixabayAPIKey     string
	SerpAPIKey        string
	Timeout           time.Duration
}

type SearchConfig struct {
	DefaultLimit     int
	MaxLimit         int
	CacheThreshold   int
	PlaceholderCount int
	RequestTimeout   time.Duration
}

type WorkerConfig struct {
	MaxWorkers       int
	DownloadWorkers  int
	BackfillInterval time.Duration
	BackfillBatch    int
}

type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
}

type LogConfig struct {
	Level string
}

// ConnectionString generates the connection string for the PostgreSQL database
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// MigrateURL generates the connection URL used by golang-migrate (pgx/v5 driver)
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RabbitMQURL generates the connection string for RabbitMQ
func (c *RabbitMQConfig) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.User, c.Password, c.Host, c.Port)
}

// Load returns the application configuration from environment variables
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing .env is fine; defaults and the environment cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := unmarshalConfig(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "image_search")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max.connections", 10)
	viper.SetDefault("database.min.connections", 2)

	// MinIO defaults
	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.access.key", "minioadmin")
	viper.SetDefault("minio.secret.key", "minioadmin")
	viper.SetDefault("minio.bucket", "downloaded-images")
	viper.SetDefault("minio.ssl", false)
	viper.SetDefault("minio.location", "us-east-1")
	viper.SetDefault("minio.public.base.url", "")

	// RabbitMQ defaults
	viper.SetDefault("rabbitmq.enabled", true)
	viper.SetDefault("rabbitmq.host", "rabbitmq")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.queue", "image_persistence")
	viper.SetDefault("rabbitmq.exchange", "image_search")
	viper.SetDefault("rabbitmq.routing.key", "image.persist")
	viper.SetDefault("rabbitmq.consumer.tag", "persist_worker")

	// Provider defaults (credentials come from the environment)
	viper.SetDefault("unsplash.access.key", "")
	viper.SetDefault("pexels.api.key", "")
	viper.SetDefault("pixabay.api.key", "")
	viper.SetDefault("serpapi.api.key", "")
	viper.SetDefault("providers.timeout", 5*time.Second)

	// Search defaults
	viper.SetDefault("search.default.limit", 20)
	viper.SetDefault("search.max.limit", 50)
	viper.SetDefault("search.cache.threshold", 10)
	viper.SetDefault("search.placeholder.count", 3)
	viper.SetDefault("search.request.timeout", 30*time.Second)

	// Worker defaults
	viper.SetDefault("worker.max.workers", 10)
	viper.SetDefault("worker.download.workers", 6)
	viper.SetDefault("worker.backfill.interval", 15*time.Minute)
	viper.SetDefault("worker.backfill.batch", 100)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.endpoint", "/metrics")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service.name", "image-search")
	viper.SetDefault("tracing.service.version", "1.0.0")
	viper.SetDefault("tracing.environment", "development")
	viper.SetDefault("tracing.otlp.endpoint", "localhost:4317")

	// Log defaults
	viper.SetDefault("log.level", "info")
}

func unmarshalConfig(config *Config) error {
	// Server config
	config.Server.Host = viper.GetString("server.host")
	config.Server.Port = viper.GetInt("server.port")
	config.Server.Mode = viper.GetString("server.mode")

	// Database config
	config.Database.Host = viper.GetString("database.host")
	config.Database.Port = viper.GetInt("database.port")
	config.Database.User = viper.GetString("database.user")
	config.Database.Password = viper.GetString("database.password")
	config.Database.DBName = viper.GetString("database.dbname")
	config.Database.SSLMode = viper.GetString("database.sslmode")
	config.Database.MaxConnections = viper.GetInt("database.max.connections")
	config.Database.MinConnections = viper.GetInt("database.min.connections")

	// MinIO config
	config.MinIO.Endpoint = viper.GetString("minio.endpoint")
	config.MinIO.AccessKey = viper.GetString("minio.access.key")
	config.MinIO.SecretKey = viper.GetString("minio.secret.key")
	config.MinIO.Bucket = viper.GetString("minio.bucket")
	config.MinIO.SSL = viper.GetBool("minio.ssl")
	config.MinIO.Location = viper.GetString("minio.location")
	config.MinIO.PublicBaseURL = viper.GetString("minio.public.base.url")

	// RabbitMQ config
	config.RabbitMQ.Enabled = viper.GetBool("rabbitmq.enabled")
	config.RabbitMQ.Host = viper.GetString("rabbitmq.host")
	config.RabbitMQ.Port = viper.GetInt("rabbitmq.port")
	config.RabbitMQ.User = viper.GetString("rabbitmq.user")
	config.RabbitMQ.Password = viper.GetString("rabbitmq.password")
	config.RabbitMQ.Queue = viper.GetString("rabbitmq.queue")
	config.RabbitMQ.Exchange = viper.GetString("rabbitmq.exchange")
	config.RabbitMQ.RoutingKey = viper.GetString("rabbitmq.routing.key")
	config.RabbitMQ.ConsumerTag = viper.GetString("rabbitmq.consumer.tag")

	// Providers config
	config.Providers.UnsplashAccessKey = viper.GetString("unsplash.access.key")
	config.Providers.PexelsAPIKey = viper.GetString("pexels.api.key")
	config.Providers.PixabayAPIKey = viper.GetString("pixabay.api.key")
	config.Providers.SerpAPIKey = viper.GetString("serpapi.api.key")
	config.Providers.Timeout = viper.GetDuration("providers.timeout")

	// Search config
	config.Search.DefaultLimit = viper.GetInt("search.default.limit")
	config.Search.MaxLimit = viper.GetInt("search.max.limit")
	config.Search.CacheThreshold = viper.GetInt("search.cache.threshold")
	config.Search.PlaceholderCount = viper.GetInt("search.placeholder.count")
	config.Search.RequestTimeout = viper.GetDuration("search.request.timeout")

	// Worker config
	config.Worker.MaxWorkers = viper.GetInt("worker.max.workers")
	config.Worker.DownloadWorkers = viper.GetInt("worker.download.workers")
	config.Worker.BackfillInterval = viper.GetDuration("worker.backfill.interval")
	config.Worker.BackfillBatch = viper.GetInt("worker.backfill.batch")

	// Metrics config
	config.Metrics.Enabled = viper.GetBool("metrics.enabled")
	config.Metrics.Endpoint = viper.GetString("metrics.endpoint")

	// Tracing config
	config.Tracing.Enabled = viper.GetBool("tracing.enabled")
	config.Tracing.ServiceName = viper.GetString("tracing.service.name")
	config.Tracing.ServiceVersion = viper.GetString("tracing.service.version")
	config.Tracing.Environment = viper.GetString("tracing.environment")
	config.Tracing.OTLPEndpoint = viper.GetString("tracing.otlp.endpoint")

	// Log config
	config.Log.Level = viper.GetString("log.level")

	return nil
}
