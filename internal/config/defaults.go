package config

import "time"

// Default configuration values for all services
const (
	// API Gateway defaults
	DefaultAPIPort         = "8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Matcher defaults
	DefaultMatcherInstanceID = "matcher-1"
	DefaultCycleInterval     = 30 * time.Second
	DefaultMaxBatchSize      = 500
	DefaultScoreThreshold    = 0.7
	DefaultMaxAlternates     = 2
	DefaultDurationWindow    = 20
	DefaultMetricsPort       = "9090"
	DefaultLogLevel          = "info"

	// Settlement defaults
	DefaultSettlementMode    = "direct"
	DefaultSubmitRatePerSec  = 50.0
	DefaultSubmitBurst       = 10
	DefaultSettlementTopic   = "matches"
	DefaultQueueBufferSize   = 1000
	DefaultQueueWorkers      = 10
	DefaultCycleLockTTL      = 5 * time.Minute
	DefaultRedisQueuePrefix  = "matcher:queue:"
	DefaultRedisPollInterval = time.Second

	// Storage defaults
	DefaultStorageType             = "inmemory"
	DefaultMongoDatabase           = "marketplace"
	DefaultMongoDemandCollection   = "demands"
	DefaultMongoResourceCollection = "resources"

	// Audit defaults
	DefaultAuditPath = "data/audit"
)
