// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database  DatabaseConfig         `json:"database"`
	Server    ServerConfig           `json:"server"`
	Security  SecurityConfig         `json:"security"`
	Engine    EngineConfig           `json:"engine"`
	Delivery  DeliveryProviderConfig `json:"delivery"`
	ShortLink ShortLinkConfig        `json:"short_link"`
	Logging   LoggingConfig          `json:"logging"`
	Metrics   MetricsConfig          `json:"metrics"`
	Cache     CacheConfig            `json:"cache"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
}

type SecurityConfig struct {
	// The invocation driver and the delivery provider callback authenticate
	// with this shared secret header
	EngineSecret       string `json:"engine_secret"`
	EngineSecretHeader string `json:"engine_secret_header"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`
}

// EngineConfig bounds one invocation of the scheduler and executor
type EngineConfig struct {
	LookbackWindow    time.Duration `json:"lookback_window"`     // trigger scan window per tick
	HardCutoff        time.Duration `json:"hard_cutoff"`         // events older than this never schedule
	ExecutorBatchSize int           `json:"executor_batch_size"` // due pending rows per tick
	TickBudget        time.Duration `json:"tick_budget"`         // wall-clock budget per invocation
	TickLockTTL       time.Duration `json:"tick_lock_ttl"`       // advisory lock expiry
	AttributionWindow time.Duration `json:"attribution_window"`  // default revenue window after a send
	HealthWindow      time.Duration `json:"health_window"`       // window for the health read
}

type DeliveryProviderConfig struct {
	Domain       string        `json:"domain"`
	APIKey       string        `json:"api_key"`
	SourceNumber string        `json:"source_number"`
	Timeout      time.Duration `json:"timeout"`
}

type ShortLinkConfig struct {
	APIDomain    string        `json:"api_domain"`
	PublicDomain string        `json:"public_domain"`
	APIKey       string        `json:"api_key"`
	Timeout      time.Duration `json:"timeout"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled      bool          `json:"enabled"`
	Provider     string        `json:"provider"`
	RedisURL     string        `json:"redis_url"`
	RedisDB      int           `json:"redis_db"`
	RedisPrefix  string        `json:"redis_prefix"`
	PingInterval time.Duration `json:"ping_interval"`
}

// LoadProductionConfig loads configuration from environment variables with
// an optional .env file for local development
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "kusanagi"),
			User:            getEnvString("DB_USER", ""),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024),
		},
		Security: SecurityConfig{
			EngineSecret:       getEnvString("ENGINE_SECRET", ""),
			EngineSecretHeader: getEnvString("ENGINE_SECRET_HEADER", "X-Engine-Secret"),
			AllowedOrigins:     getEnvStringSlice("ALLOWED_ORIGINS", []string{}),
			AllowedMethods:     getEnvStringSlice("ALLOWED_METHODS", []string{"GET", "POST", "PUT"}),
			AllowedHeaders:     getEnvStringSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
			AllowCredentials:   getEnvBool("ALLOW_CREDENTIALS", false),
			GlobalRateLimit:    getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		Engine: EngineConfig{
			LookbackWindow:    getEnvDuration("ENGINE_LOOKBACK_WINDOW", 24*time.Hour),
			HardCutoff:        getEnvDuration("ENGINE_HARD_CUTOFF", 30*24*time.Hour),
			ExecutorBatchSize: getEnvInt("ENGINE_EXECUTOR_BATCH_SIZE", 100),
			TickBudget:        getEnvDuration("ENGINE_TICK_BUDGET", 4*time.Minute),
			TickLockTTL:       getEnvDuration("ENGINE_TICK_LOCK_TTL", 5*time.Minute),
			AttributionWindow: getEnvDuration("ENGINE_ATTRIBUTION_WINDOW", 7*24*time.Hour),
			HealthWindow:      getEnvDuration("ENGINE_HEALTH_WINDOW", 24*time.Hour),
		},
		Delivery: DeliveryProviderConfig{
			Domain:       getEnvString("DELIVERY_PROVIDER_DOMAIN", "mock"),
			APIKey:       getEnvString("DELIVERY_API_KEY", ""),
			SourceNumber: getEnvString("DELIVERY_SOURCE_NUMBER", ""),
			Timeout:      getEnvDuration("DELIVERY_TIMEOUT", 30*time.Second),
		},
		ShortLink: ShortLinkConfig{
			APIDomain:    getEnvString("SHORT_LINK_API_DOMAIN", ""),
			PublicDomain: getEnvString("SHORT_LINK_PUBLIC_DOMAIN", ""),
			APIKey:       getEnvString("SHORT_LINK_API_KEY", ""),
			Timeout:      getEnvDuration("SHORT_LINK_TIMEOUT", 15*time.Second),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Output:     getEnvString("LOG_OUTPUT", "both"),
			FilePath:   getEnvString("LOG_FILE_PATH", "data/engine.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:      getEnvBool("CACHE_ENABLED", true),
			Provider:     getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:     getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:      getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:  getEnvString("CACHE_REDIS_PREFIX", "kusanagi:"),
			PingInterval: getEnvDuration("CACHE_PING_INTERVAL", 30*time.Second),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// The invocation surface is useless without its shared secret
	if cfg.Security.EngineSecret == "" {
		errors = append(errors, "ENGINE_SECRET is required")
	}
	if len(cfg.Security.EngineSecret) > 0 && len(cfg.Security.EngineSecret) < 16 {
		errors = append(errors, "ENGINE_SECRET must be at least 16 characters long")
	}

	// Validate engine bounds
	if cfg.Engine.LookbackWindow <= 0 {
		errors = append(errors, "ENGINE_LOOKBACK_WINDOW must be positive")
	}
	if cfg.Engine.HardCutoff < cfg.Engine.LookbackWindow {
		errors = append(errors, "ENGINE_HARD_CUTOFF must not be shorter than ENGINE_LOOKBACK_WINDOW")
	}
	if cfg.Engine.ExecutorBatchSize <= 0 {
		errors = append(errors, "ENGINE_EXECUTOR_BATCH_SIZE must be positive")
	}
	if cfg.Engine.AttributionWindow <= 0 {
		errors = append(errors, "ENGINE_ATTRIBUTION_WINDOW must be positive")
	}

	// Validate delivery provider configuration if enabled
	if cfg.Delivery.Domain != "mock" {
		if cfg.Delivery.APIKey == "" {
			errors = append(errors, "DELIVERY_API_KEY is required for delivery provider")
		}
		if cfg.Delivery.SourceNumber == "" {
			errors = append(errors, "DELIVERY_SOURCE_NUMBER is required for delivery provider")
		}
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
