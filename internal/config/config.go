package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/engine"
)

// Config holds the shared application configuration
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Settlement SettlementConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	LogLevel   string
	// EmbedScheduler runs allocation cycles inside the API gateway
	EmbedScheduler bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StorageConfig selects and configures the demand/resource store
type StorageConfig struct {
	Type               string // inmemory or mongodb
	MongoURI           string
	Database           string
	DemandCollection   string
	ResourceCollection string
}

// RedisConfig holds Redis connection settings; an empty URL disables Redis features
type RedisConfig struct {
	URL string
}

// SettlementConfig configures how matches are submitted
type SettlementConfig struct {
	Mode          string // direct or queue
	Topic         string
	RatePerSecond float64
	Burst         int
}

// AuditConfig configures the cycle report log; an empty path disables it
type AuditConfig struct {
	Path string
}

// MetricsConfig configures the Prometheus endpoint of headless services
type MetricsConfig struct {
	Port string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:            GetEnv("PORT", DefaultAPIPort),
			ReadTimeout:     GetEnvDuration("SERVER_READ_TIMEOUT", DefaultReadTimeout),
			WriteTimeout:    GetEnvDuration("SERVER_WRITE_TIMEOUT", DefaultWriteTimeout),
			IdleTimeout:     GetEnvDuration("SERVER_IDLE_TIMEOUT", DefaultIdleTimeout),
			ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		},
		Storage: StorageConfig{
			Type:               GetEnv("STORAGE_TYPE", DefaultStorageType),
			MongoURI:           GetEnv("MONGODB_URI", ""),
			Database:           GetEnv("MONGODB_DATABASE", DefaultMongoDatabase),
			DemandCollection:   GetEnv("MONGODB_DEMAND_COLLECTION", DefaultMongoDemandCollection),
			ResourceCollection: GetEnv("MONGODB_RESOURCE_COLLECTION", DefaultMongoResourceCollection),
		},
		Redis: RedisConfig{
			URL: GetEnv("REDIS_URL", ""),
		},
		Settlement: SettlementConfig{
			Mode:          GetEnv("SETTLEMENT_MODE", DefaultSettlementMode),
			Topic:         GetEnv("SETTLEMENT_TOPIC", DefaultSettlementTopic),
			RatePerSecond: GetEnvFloat("SUBMIT_RATE_PER_SEC", DefaultSubmitRatePerSec),
			Burst:         GetEnvInt("SUBMIT_BURST", DefaultSubmitBurst),
		},
		Audit: AuditConfig{
			Path: GetEnv("AUDIT_PATH", DefaultAuditPath),
		},
		Metrics: MetricsConfig{
			Port: GetEnv("METRICS_PORT", DefaultMetricsPort),
		},
		LogLevel:       GetEnv("LOG_LEVEL", DefaultLogLevel),
		EmbedScheduler: GetEnvBool("EMBED_SCHEDULER", false),
	}

	if config.Storage.MongoURI != "" && config.Storage.Type == DefaultStorageType {
		config.Storage.Type = "mongodb"
	}

	return config, config.Validate()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	if c.Metrics.Port != "" {
		if port, err := strconv.Atoi(c.Metrics.Port); err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid metrics port: %s", c.Metrics.Port)
		}
	}

	switch c.Storage.Type {
	case "inmemory":
	case "mongodb":
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("storage type mongodb requires MONGODB_URI")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	switch c.Settlement.Mode {
	case "direct", "queue":
	default:
		return fmt.Errorf("unknown settlement mode: %s", c.Settlement.Mode)
	}

	if c.Settlement.RatePerSecond <= 0 {
		return fmt.Errorf("invalid submit rate: %g", c.Settlement.RatePerSecond)
	}
	if c.Settlement.Burst <= 0 {
		return fmt.Errorf("invalid submit burst: %d", c.Settlement.Burst)
	}

	return nil
}

// LoadEngineConfig reads the scoring weights and allocation threshold from the
// environment and validates them. Errors here are fatal at startup.
func LoadEngineConfig() (engine.Config, error) {
	defaults := engine.DefaultWeights()
	cfg := engine.Config{
		Weights: engine.Weights{
			Power:         GetEnvFloat("WEIGHT_POWER", defaults.Power),
			Cost:          GetEnvFloat("WEIGHT_COST", defaults.Cost),
			Reliability:   GetEnvFloat("WEIGHT_RELIABILITY", defaults.Reliability),
			Location:      GetEnvFloat("WEIGHT_LOCATION", defaults.Location),
			Energy:        GetEnvFloat("WEIGHT_ENERGY", defaults.Energy),
			Response:      GetEnvFloat("WEIGHT_RESPONSE", defaults.Response),
			MaxReputation: GetEnvFloat("MAX_REPUTATION", defaults.MaxReputation),
		},
		ScoreThreshold: GetEnvFloat("SCORE_THRESHOLD", DefaultScoreThreshold),
		MaxAlternates:  GetEnvInt("MAX_ALTERNATES", DefaultMaxAlternates),
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an environment variable as int or returns a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat gets an environment variable as float64 or returns a default value
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvBool gets an environment variable as bool or returns a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvDuration gets an environment variable as duration or returns a default value
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
