package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/intentflow/engine/internal/config"
)

func TestConfigValidation(t *testing.T) {
	t.Run("valid_default_config", func(t *testing.T) {
		assert.NoError(t, config.NewDefaultConfig().Validate())
	})

	tests := []struct {
		name          string
		configMod     func(*config.Config)
		errorContains string
	}{
		{
			name: "invalid_api_port_zero",
			configMod: func(c *config.Config) {
				c.APIPort = 0
			},
			errorContains: "invalid API port",
		},
		{
			name: "invalid_api_port_too_high",
			configMod: func(c *config.Config) {
				c.APIPort = 70000
			},
			errorContains: "invalid API port",
		},
		{
			name: "zero_timeout_floor",
			configMod: func(c *config.Config) {
				c.StepTimeoutFloor = 0
			},
			errorContains: "timeout floor must be positive",
		},
		{
			name: "ceiling_below_floor",
			configMod: func(c *config.Config) {
				c.StepTimeoutCeiling = c.StepTimeoutFloor - 1
			},
			errorContains: "ceiling must be >= floor",
		},
		{
			name: "zero_prompt_length",
			configMod: func(c *config.Config) {
				c.MaxPromptLength = 0
			},
			errorContains: "prompt length must be positive",
		},
		{
			name: "broken_recovery_policy",
			configMod: func(c *config.Config) {
				c.Recovery.BackoffMultiplier = 0
			},
			errorContains: "multiplier must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.configMod(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := config.NewDefaultConfig()

	assert.Equal(t, config.DefaultAPIPort, cfg.APIPort)
	assert.Equal(t, config.DefaultAPIHost, cfg.APIHost)
	assert.Equal(t, config.DefaultStepTimeoutFloor, cfg.StepTimeoutFloor)
	assert.Equal(t, config.DefaultStepTimeoutCeiling, cfg.StepTimeoutCeiling)
	assert.Equal(t, config.DefaultMaxPromptLength, cfg.MaxPromptLength)
	assert.Equal(t, config.DefaultRedisEndpoint, cfg.Store.Addr)
	assert.Equal(t, config.DefaultRedisPrefix, cfg.Store.Prefix)
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("overrides_applied", func(t *testing.T) {
		t.Setenv("API_PORT", "9090")
		t.Setenv("API_HOST", "127.0.0.1")
		t.Setenv("REDIS_ADDR", "redis.internal:6379")
		t.Setenv("AGENT_ENDPOINT", "http://agent.internal/invoke")
		t.Setenv("STEP_TIMEOUT_FLOOR", "2000")
		t.Setenv("RECOVERY_MAX_TIME", "60000")

		cfg := config.NewDefaultConfig()
		assert.NoError(t, cfg.LoadFromEnv())
		assert.Equal(t, 9090, cfg.APIPort)
		assert.Equal(t, "127.0.0.1", cfg.APIHost)
		assert.Equal(t, "redis.internal:6379", cfg.Store.Addr)
		assert.Equal(t, "http://agent.internal/invoke", cfg.AgentEndpoint)
		assert.Equal(t, int64(2000), cfg.StepTimeoutFloor)
		assert.Equal(t, int64(60000), cfg.Recovery.MaxRecoveryTime)
	})

	t.Run("unparseable_value", func(t *testing.T) {
		t.Setenv("API_PORT", "not-a-number")
		cfg := config.NewDefaultConfig()
		assert.Error(t, cfg.LoadFromEnv())
	})

	t.Run("out_of_range_value", func(t *testing.T) {
		t.Setenv("API_PORT", "70000")
		cfg := config.NewDefaultConfig()
		assert.Error(t, cfg.LoadFromEnv())
	})
}
