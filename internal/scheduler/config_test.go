package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.Equal(t, 300*time.Second, cfg.DefaultTimeout)
	assert.True(t, cfg.RetryOnFailure)
	assert.False(t, cfg.StopOnFirstError)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.True(t, cfg.AutoSummarize)
	assert.Equal(t, 2000, cfg.SummaryMaxTokens)
	assert.Empty(t, cfg.DefaultModel)
	assert.True(t, cfg.EnableProgress)
	assert.NoError(t, cfg.Validate())
}

func TestPresets(t *testing.T) {
	high := HighConcurrencyConfig()
	assert.Equal(t, 10, high.MaxConcurrency)
	assert.Equal(t, 600*time.Second, high.DefaultTimeout)

	low := LowConcurrencyConfig()
	assert.Equal(t, 2, low.MaxConcurrency)
	assert.True(t, low.StopOnFirstError)

	seq := SequentialConfig()
	assert.Equal(t, 1, seq.MaxConcurrency)
	assert.True(t, seq.StopOnFirstError)

	for _, name := range []string{"", PresetDefault, PresetHighConcurrency, PresetLowConcurrency, PresetSequential} {
		cfg, err := PresetConfig(name)
		require.NoError(t, err, name)
		assert.NoError(t, cfg.Validate(), name)
	}

	_, err := PresetConfig("turbo")
	assert.ErrorContains(t, err, "unknown preset")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }, "max_concurrency"},
		{"negative timeout", func(c *Config) { c.DefaultTimeout = -time.Second }, "default_timeout"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }, "retry_delay"},
		{"negative summary budget", func(c *Config) { c.SummaryMaxTokens = -1 }, "summary_max_tokens"},
		{"negative max tasks", func(c *Config) { c.MaxTasks = -1 }, "max_tasks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestRetryBound(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.retryBound())
	cfg.RetryOnFailure = false
	assert.Equal(t, 0, cfg.retryBound())
}

func TestTimeoutFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.DefaultTimeout, cfg.timeoutFor(Task{}))
	assert.Equal(t, time.Second, cfg.timeoutFor(Task{Timeout: time.Second}))
}
