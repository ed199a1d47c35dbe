package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/intentflow/engine/pkg/api"
)

type (
	// Config holds configuration settings for the orchestration service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Flow store
		Store StoreConfig

		// Outcome archive (blank disables archiving)
		ArchiveBucketURL string
		ArchivePrefix    string

		// Agent bridge
		AgentEndpoint string

		// Step deadlines (ms). Advisory budgets are clamped to this range
		StepTimeoutFloor   int64
		StepTimeoutCeiling int64

		// Recovery defaults applied when a plan does not override them
		Recovery api.RecoveryConfig

		// Planner
		MaxPromptLength int

		ShutdownTimeout time.Duration
	}

	// StoreConfig holds Redis connection settings for the flow store
	StoreConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisPrefix   = "intentflow"
	DefaultRedisDB       = 0

	DefaultStepTimeoutFloor   = 5 * api.Second
	DefaultStepTimeoutCeiling = 2 * api.Minute
	DefaultMaxPromptLength    = 2048
	DefaultShutdownTimeout    = 10 * time.Second

	MaxStepTimeout    = 24 * api.Hour
	MaxPromptLength   = 1 << 20
	MaxRetryDelay     = api.Hour
	MaxRecoveryTime   = 24 * api.Hour
	MaxShutdownMillis = 5 * api.Minute
)

var (
	ErrInvalidAPIPort       = errors.New("invalid API port")
	ErrInvalidTimeoutFloor  = errors.New("step timeout floor must be positive")
	ErrTimeoutCeilingSmall  = errors.New("step timeout ceiling must be >= floor")
	ErrInvalidPromptLength  = errors.New("max prompt length must be positive")
	ErrAgentEndpointMissing = errors.New("agent endpoint required")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// server, store, deadlines, and recovery behavior
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:  DefaultAPIHost,
		APIPort:  DefaultAPIPort,
		LogLevel: "info",
		Store: StoreConfig{
			Addr:   DefaultRedisEndpoint,
			DB:     DefaultRedisDB,
			Prefix: DefaultRedisPrefix,
		},
		ArchivePrefix:      "outcomes/",
		StepTimeoutFloor:   DefaultStepTimeoutFloor,
		StepTimeoutCeiling: DefaultStepTimeoutCeiling,
		Recovery:           api.DefaultRecoveryConfig(),
		MaxPromptLength:    DefaultMaxPromptLength,
		ShutdownTimeout:    DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any value cannot be parsed or is out of range
func (c *Config) LoadFromEnv() error {
	if host := os.Getenv("API_HOST"); host != "" {
		c.APIHost = host
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if endpoint := os.Getenv("AGENT_ENDPOINT"); endpoint != "" {
		c.AgentEndpoint = endpoint
	}
	if bucketURL := os.Getenv("ARCHIVE_BUCKET_URL"); bucketURL != "" {
		c.ArchiveBucketURL = bucketURL
	}
	if prefix := os.Getenv("ARCHIVE_PREFIX"); prefix != "" {
		c.ArchivePrefix = prefix
	}
	loadStoreFromEnv(&c.Store)

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"STEP_TIMEOUT_FLOOR", &c.StepTimeoutFloor, 0, MaxStepTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"STEP_TIMEOUT_CEILING", &c.StepTimeoutCeiling, 0, MaxStepTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MAX_PROMPT_LENGTH", &c.MaxPromptLength, 0, MaxPromptLength,
	); err != nil {
		return err
	}

	if err := loadEnvInt(
		"RECOVERY_BASE_DELAY", &c.Recovery.BaseRetryDelay, 0, MaxRetryDelay,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RECOVERY_MAX_DELAY", &c.Recovery.MaxRetryDelay, 0, MaxRetryDelay,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RECOVERY_MAX_TIME", &c.Recovery.MaxRecoveryTime, 0, MaxRecoveryTime,
	); err != nil {
		return err
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.StepTimeoutFloor <= 0 {
		return ErrInvalidTimeoutFloor
	}
	if c.StepTimeoutCeiling < c.StepTimeoutFloor {
		return ErrTimeoutCeilingSmall
	}
	if c.MaxPromptLength <= 0 {
		return ErrInvalidPromptLength
	}
	return c.Recovery.Validate()
}

func loadStoreFromEnv(s *StoreConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err == nil {
			s.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		s.Prefix = prefix
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
