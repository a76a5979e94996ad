package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/robfig/cron/v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server   ServerConfig   `envPrefix:"SERVER_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Provider ProviderConfig `envPrefix:"PROVIDER_"`
	Ingest   IngestConfig   `envPrefix:"INGEST_"`
}

type ServerConfig struct {
	Port         int           `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
}

type CacheConfig struct {
	Backend       string        `env:"BACKEND" envDefault:"redis"`
	TTL           time.Duration `env:"TTL" envDefault:"24h"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"2s"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	MemoryMaxCost int64         `env:"MEMORY_MAX_COST" envDefault:"67108864"`
}

type StoreConfig struct {
	Backend      string        `env:"BACKEND" envDefault:"postgres"`
	DSN          string        `env:"DSN"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"5s"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	AutoMigrate  bool          `env:"AUTO_MIGRATE" envDefault:"true"`
}

type ProviderConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.exchangerate.host"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type IngestConfig struct {
	Schedule    string        `env:"SCHEDULE" envDefault:"@every 1h"`
	MaxAttempts uint          `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay  time.Duration `env:"RETRY_DELAY" envDefault:"5s"`
	Currencies  []string      `env:"CURRENCIES" envSeparator:"," envDefault:"EUR,GBP,JPY,INR,CHF,CAD,AUD"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}

	switch c.Store.Backend {
	case BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("STORE_DSN is required for the postgres store")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if _, err := cron.ParseStandard(c.Ingest.Schedule); err != nil {
		return fmt.Errorf("invalid INGEST_SCHEDULE %q: %w", c.Ingest.Schedule, err)
	}
	if c.Ingest.MaxAttempts == 0 {
		return fmt.Errorf("INGEST_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}
