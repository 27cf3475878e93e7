package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	CatalogPostgres = "postgres"
	CatalogFile     = "file"
)

var ErrUnknownStorage = errors.New("unknown cart storage backend")

type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	AppPort string `envconfig:"APP_PORT" default:"8080"`

	DBHost     string `envconfig:"DB_HOST"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	CartStorage           string          `envconfig:"CART_STORAGE" default:"redis"`
	SessionTTL            time.Duration   `envconfig:"CART_SESSION_TTL" default:"720h"`
	SessionCacheSize      int             `envconfig:"CART_SESSION_CACHE_SIZE" default:"10000"`
	FreeShippingThreshold decimal.Decimal `envconfig:"CART_FREE_SHIPPING_THRESHOLD" default:"500"`
	ShippingFee           decimal.Decimal `envconfig:"CART_SHIPPING_FEE" default:"50"`
	DiscountPolicy        string          `envconfig:"CART_DISCOUNT_POLICY" default:"package"`

	CatalogSource string `envconfig:"CATALOG_SOURCE" default:"postgres"`
	CatalogFile   string `envconfig:"CATALOG_FILE"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NeedsDatabase reports whether any configured component reads Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.CartStorage == StoragePostgres || c.CatalogSource == CatalogPostgres
}

func (c *Config) validate() error {
	switch c.CartStorage {
	case StorageRedis, StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("%w: CART_STORAGE must be one of redis, postgres, memory: got %q", ErrUnknownStorage, c.CartStorage)
	}

	switch c.CatalogSource {
	case CatalogPostgres:
	case CatalogFile:
		if c.CatalogFile == "" {
			return fmt.Errorf("CATALOG_FILE is required when CATALOG_SOURCE=file")
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE must be postgres or file: got %q", c.CatalogSource)
	}

	if c.NeedsDatabase() && c.DBHost == "" {
		return fmt.Errorf("DB_HOST is required for postgres storage or catalog")
	}
	if c.FreeShippingThreshold.IsNegative() || c.ShippingFee.IsNegative() {
		return fmt.Errorf("shipping threshold and fee must not be negative")
	}
	return nil
}
