package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends selectable via STORAGE_BACKEND.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Database drivers selectable via DB_DRIVER.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config stores the application configuration.
type Config struct {
	// HTTP server
	ServerAddr        string        `env:"SERVER_ADDR" envDefault:":8080"`
	ServerReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	ServerIdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`

	// Streaming
	StreamTimeout   time.Duration `env:"STREAM_TIMEOUT" envDefault:"10m"`
	StreamChunkSize int           `env:"STREAM_CHUNK_SIZE" envDefault:"65536"`
	StreamRateLimit int           `env:"STREAM_RATE_LIMIT" envDefault:"0"` // bytes per second, 0 = unlimited

	// Storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	MediaDir       string `env:"MEDIA_DIR" envDefault:"uploads/audio"`
	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"127.0.0.1:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"tunestream"`
	MinioRegion    string `env:"MINIO_REGION" envDefault:"us-east-1"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	// Catalog database
	DBDriver   string `env:"DB_DRIVER" envDefault:"mysql"`
	DBHost     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort     string `env:"DB_PORT"` // empty: driver default, see DatabasePort
	DBUser     string `env:"DB_USER" envDefault:"root"`
	DBPassword string `env:"DB_PASSWORD"` // no default for the password
	DBName     string `env:"DB_NAME" envDefault:"fm"`
	DBPath     string `env:"DB_PATH" envDefault:"tunestream.db"`

	// Redis配置
	RedisHost        string        `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	RedisPort        string        `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	MetadataCacheTTL time.Duration `env:"METADATA_CACHE_TTL" envDefault:"0"`

	// Logging and tracing
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile      string `env:"LOG_FILE"`
	OtelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() (*Config, error) {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would leave the server unable to start.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageLocal:
		if c.MediaDir == "" {
			errs = append(errs, errors.New("MEDIA_DIR is required for the local storage backend"))
		}
	case StorageMinio:
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.DBDriver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}

	if c.StreamChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("STREAM_CHUNK_SIZE must be positive, got %d", c.StreamChunkSize))
	}
	if c.StreamRateLimit < 0 {
		errs = append(errs, fmt.Errorf("STREAM_RATE_LIMIT must not be negative, got %d", c.StreamRateLimit))
	}

	return errors.Join(errs...)
}

// RedisAddr returns host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// DatabasePort returns DB_PORT, or the driver's usual port when unset:
// 3306 for mysql, 5432 for postgres.
func (c *Config) DatabasePort() string {
	if c.DBPort != "" {
		return c.DBPort
	}
	if c.DBDriver == DriverPostgres {
		return "5432"
	}
	return "3306"
}

// CacheEnabled reports whether resolved metadata should be memoized in Redis.
func (c *Config) CacheEnabled() bool {
	return c.MetadataCacheTTL > 0 && c.RedisHost != ""
}
