package config

import (
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig
	Redis       RedisConfig
	Horizon     HorizonConfig
	Catalog     CatalogConfig
	PriceCache  PriceCacheConfig
	Logging     LoggingConfig
	Environment string
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HorizonConfig represents the chain API client configuration
type HorizonConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
}

// CatalogConfig represents the asset catalog endpoint configuration
type CatalogConfig struct {
	BaseURL           string
	Timeout           time.Duration
	PageDelay         time.Duration
	InitialTokenCount int
}

// PriceCacheConfig represents price cache engine configuration
type PriceCacheConfig struct {
	Retention          time.Duration
	BatchSize          int
	BatchDelay         time.Duration
	CalculationTimeout time.Duration
	UpdateInterval     time.Duration
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8005),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", "30s"),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", "5s"),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", "3s"),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", "3s"),
		},
		Horizon: HorizonConfig{
			BaseURL:           getEnv("HORIZON_BASE_URL", "https://horizon.stellar.org"),
			Timeout:           getEnvAsDuration("HORIZON_TIMEOUT", "15s"),
			RequestsPerSecond: getEnvAsInt("HORIZON_RATE_LIMIT", 50),
		},
		Catalog: CatalogConfig{
			BaseURL:           getEnv("CATALOG_BASE_URL", "https://api.stellar.expert"),
			Timeout:           getEnvAsDuration("CATALOG_TIMEOUT", "10s"),
			PageDelay:         getEnvAsDuration("CATALOG_PAGE_DELAY", "500ms"),
			InitialTokenCount: getEnvAsInt("INITIAL_TOKEN_COUNT", 1000),
		},
		PriceCache: PriceCacheConfig{
			Retention:          getEnvAsDuration("PRICE_CACHE_RETENTION", "24h"),
			BatchSize:          getEnvAsInt("TOKEN_UPDATE_BATCH_SIZE", 150),
			BatchDelay:         getEnvAsDuration("BATCH_UPDATE_DELAY", "5s"),
			CalculationTimeout: getEnvAsDuration("PRICE_CALCULATION_TIMEOUT", "10s"),
			UpdateInterval:     getEnvAsDuration("PRICE_UPDATE_INTERVAL", "1m"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return 30 * time.Second // Fallback
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
