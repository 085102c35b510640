package scheduler

import (
	"flag"
	"fmt"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/config"
	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/engine"
)

// Config holds the configuration for the cycle scheduler
type Config struct {
	InstanceID     string
	CycleInterval  time.Duration
	MaxBatchSize   int
	DurationWindow int // cycles in the rolling duration average
	LockTTL        time.Duration
	Engine         engine.Config
}

// DefaultConfig returns the scheduler defaults
func DefaultConfig() *Config {
	return &Config{
		InstanceID:     config.DefaultMatcherInstanceID,
		CycleInterval:  config.DefaultCycleInterval,
		MaxBatchSize:   config.DefaultMaxBatchSize,
		DurationWindow: config.DefaultDurationWindow,
		LockTTL:        config.DefaultCycleLockTTL,
		Engine:         engine.DefaultConfig(),
	}
}

// LoadConfig loads configuration from environment variables and command-line flags
func LoadConfig() (*Config, error) {
	engineCfg, err := config.LoadEngineConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Engine: engineCfg}
	flag.StringVar(&cfg.InstanceID, "instance-id", config.GetEnv("INSTANCE_ID", config.DefaultMatcherInstanceID), "Unique instance ID for this matcher")
	flag.DurationVar(&cfg.CycleInterval, "interval", config.GetEnvDuration("CYCLE_INTERVAL", config.DefaultCycleInterval), "Interval between allocation cycles")
	flag.IntVar(&cfg.MaxBatchSize, "max-batch", config.GetEnvInt("MAX_BATCH_SIZE", config.DefaultMaxBatchSize), "Maximum demands per allocation batch (0 = unbounded)")
	flag.IntVar(&cfg.DurationWindow, "duration-window", config.GetEnvInt("DURATION_WINDOW", config.DefaultDurationWindow), "Cycles in the rolling duration average")
	flag.DurationVar(&cfg.LockTTL, "lock-ttl", config.GetEnvDuration("CYCLE_LOCK_TTL", config.DefaultCycleLockTTL), "Distributed cycle lock TTL")
	flag.Float64Var(&cfg.Engine.ScoreThreshold, "threshold", cfg.Engine.ScoreThreshold, "Minimum score for an assignment")

	flag.Parse()

	return cfg, cfg.Validate()
}

// Validate validates the scheduler configuration
func (c *Config) Validate() error {
	if c.CycleInterval <= 0 {
		return fmt.Errorf("%w: cycle interval must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxBatchSize < 0 {
		return fmt.Errorf("%w: max batch size must not be negative", domain.ErrInvalidConfig)
	}
	if c.DurationWindow <= 0 {
		return fmt.Errorf("%w: duration window must be positive", domain.ErrInvalidConfig)
	}
	return c.Engine.Validate()
}
