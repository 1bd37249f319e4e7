package common

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	Database  DatabaseConfig
	Server    ServerConfig
	LLM       LLMConfig
	Storage   StorageConfig
	NATS      NATSConfig
	Firebase  FirebaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Receipts  ReceiptsConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string        `envconfig:"DB_DRIVER" default:"postgres"`
	URL             string        `envconfig:"DB_URL"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"20"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":9090"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	HealthInterval  time.Duration `envconfig:"HEALTH_INTERVAL" default:"15s"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey      string        `envconfig:"OPENAI_API_KEY"`
	BaseURL     string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Model       string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	Temperature float32       `envconfig:"OPENAI_TEMPERATURE" default:"0"`
	Timeout     time.Duration `envconfig:"OPENAI_TIMEOUT" default:"45s"`
	JSONMode    bool          `envconfig:"OPENAI_JSON_MODE" default:"true"`
	ImageDetail string        `envconfig:"OPENAI_IMAGE_DETAIL" default:"high"`
	MaxTokens   int           `envconfig:"OPENAI_MAX_TOKENS" default:"400"`
}

// StorageConfig points at the S3-compatible bucket holding receipt images.
type StorageConfig struct {
	Bucket          string `envconfig:"S3_BUCKET"`
	Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	Endpoint        string `envconfig:"S3_ENDPOINT"`
	PublicBaseURL   string `envconfig:"S3_PUBLIC_BASE_URL"`
	AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	ForcePathStyle  bool   `envconfig:"S3_FORCE_PATH_STYLE" default:"false"`
}

// NATSConfig enables the JetStream notification sink when URL is set.
type NATSConfig struct {
	URL           string        `envconfig:"NATS_URL"`
	Name          string        `envconfig:"NATS_CLIENT_NAME" default:"payment-receipts"`
	MaxReconnects int           `envconfig:"NATS_MAX_RECONNECTS" default:"10"`
	ReconnectWait time.Duration `envconfig:"NATS_RECONNECT_WAIT" default:"2s"`
	Stream        string        `envconfig:"NATS_STREAM" default:"NOTIFICATIONS"`
}

// FirebaseConfig enables push notifications when a credentials file is set.
type FirebaseConfig struct {
	CredentialsFile string `envconfig:"FIREBASE_CREDENTIALS_FILE"`
}

// RedisConfig backs the rate limiter and the extraction cache. Empty Addr disables both.
type RedisConfig struct {
	Addr            string        `envconfig:"REDIS_ADDR"`
	Password        string        `envconfig:"REDIS_PASSWORD"`
	DB              int           `envconfig:"REDIS_DB" default:"0"`
	ExtractCacheTTL time.Duration `envconfig:"REDIS_EXTRACT_CACHE_TTL" default:"1h"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER"`
}

type ReceiptsConfig struct {
	MaxImageBytes  int64         `envconfig:"MAX_IMAGE_BYTES" default:"10485760"`
	ExtractTimeout time.Duration `envconfig:"EXTRACT_TIMEOUT" default:"60s"`
	InlineImages   bool          `envconfig:"EXTRACT_INLINE_IMAGES" default:"false"`
}

type NotifyConfig struct {
	Workers   int           `envconfig:"NOTIFY_WORKERS" default:"4"`
	QueueSize int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"256"`
	Timeout   time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
}

type RateLimitConfig struct {
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "failed to process config", err)
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Storage.Bucket == "" {
		return NewAppError("CONFIG_ERROR", "S3_BUCKET is required", ErrInvalidInput)
	}
	if c.Auth.JWTSecret == "" {
		return NewAppError("CONFIG_ERROR", "JWT_SECRET is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Receipts.MaxImageBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_IMAGE_BYTES must be positive", ErrInvalidInput)
	}
	if c.Receipts.ExtractTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_TIMEOUT must be positive", ErrInvalidInput)
	}
	return nil
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func SetupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
