package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	LockerLocal = "local"
	LockerRedis = "redis"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"3333"`
	Domain   string `env:"DOMAIN"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	PublicDir    string `env:"PUBLIC_DIR" envDefault:"public"`
	DownloadsDir string `env:"DOWNLOADS_DIR" envDefault:"public/downloads"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3333"`

	OpenAI struct {
		APIKey      string  `env:"OPENAI_API_KEY"`
		BaseURL     string  `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1/chat/completions"`
		Model       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
		MaxTokens   int     `env:"OPENAI_MAX_TOKENS" envDefault:"900"`
		Temperature float64 `env:"OPENAI_TEMPERATURE" envDefault:"0.2"`
	}

	Stripe struct {
		SecretKey     string `env:"STRIPE_SECRET_KEY"`
		WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
		APIURL        string `env:"STRIPE_API_URL"`
	}

	OrderStore string `env:"ORDER_STORE" envDefault:"memory"`
	DBConfig   struct {
		DBHost     string `env:"ORDERS_DB_HOST" envDefault:"localhost"`
		DBPort     string `env:"ORDERS_DB_PORT" envDefault:"5432"`
		DBUser     string `env:"ORDERS_DB_USER" envDefault:"postgres"`
		DBPassword string `env:"ORDERS_DB_PASSWORD" envDefault:"postgres"`
		DBName     string `env:"ORDERS_DB_NAME" envDefault:"storefront_db"`
		DBSSLMode  string `env:"ORDERS_DB_SSLMODE" envDefault:"disable"`
	}
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`

	Locker string `env:"LOCKER" envDefault:"local"`
	Redis  struct {
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}
	LockTTL time.Duration `env:"LOCK_TTL" envDefault:"2m"`

	EventsEnabled         bool          `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaURL              string        `env:"KAFKA_BROKER_URL" envDefault:"localhost:9092"`
	KafkaFulfillmentTopic string        `env:"KAFKA_FULFILLMENT_TOPIC" envDefault:"order_fulfillment_events"`
	OutboxPollInterval    time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"5s"`
	OutboxPollTimeout     time.Duration `env:"OUTBOX_POLL_TIMEOUT" envDefault:"10s"`

	GatewayTimeout    time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"15s"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`
	PackagingTimeout  time.Duration `env:"PACKAGING_TIMEOUT" envDefault:"20s"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Domain == "" {
		cfg.Domain = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.Domain = strings.TrimRight(cfg.Domain, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.OrderStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("invalid ORDER_STORE %q: expected %q or %q", c.OrderStore, StoreMemory, StorePostgres)
	}
	switch c.Locker {
	case LockerLocal, LockerRedis:
	default:
		return fmt.Errorf("invalid LOCKER %q: expected %q or %q", c.Locker, LockerLocal, LockerRedis)
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 1 {
		return fmt.Errorf("invalid OPENAI_TEMPERATURE %v: must be within [0,1]", c.OpenAI.Temperature)
	}
	if c.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("invalid OPENAI_MAX_TOKENS %d: must be positive", c.OpenAI.MaxTokens)
	}
	// The Redis lease must outlive a full finalize run, or a second instance
	// can take the lock mid-pipeline.
	if pipeline := c.PipelineBudget(); c.Locker == LockerRedis && c.LockTTL <= pipeline {
		return fmt.Errorf("invalid LOCK_TTL %s: must exceed GATEWAY_TIMEOUT + GENERATION_TIMEOUT + PACKAGING_TIMEOUT (%s)", c.LockTTL, pipeline)
	}
	return nil
}

// PipelineBudget is the longest a single finalize run can take.
func (c *Config) PipelineBudget() time.Duration {
	return c.GatewayTimeout + c.GenerationTimeout + c.PackagingTimeout
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaURL, ",")
}
