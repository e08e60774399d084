package scheduler

import (
	"fmt"
	"time"

	"github.com/nibzard/fanout-go/internal/summary"
)

// Default scheduler settings.
const (
	DefaultMaxConcurrency = 5
	DefaultTaskTimeout    = 300 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = time.Second
)

// Preset names accepted by PresetConfig.
const (
	PresetDefault         = "default"
	PresetHighConcurrency = "high-concurrency"
	PresetLowConcurrency  = "low-concurrency"
	PresetSequential      = "sequential"
)

// Config controls how a Scheduler runs tasks.
type Config struct {
	MaxConcurrency   int
	DefaultTimeout   time.Duration
	RetryOnFailure   bool
	StopOnFirstError bool
	MaxRetries       int
	RetryDelay       time.Duration
	AutoSummarize    bool
	SummaryMaxTokens int
	DefaultModel     string
	EnableProgress   bool
	// MaxTasks caps the number of tasks in one run. Zero means unlimited.
	MaxTasks int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:   DefaultMaxConcurrency,
		DefaultTimeout:   DefaultTaskTimeout,
		RetryOnFailure:   true,
		StopOnFirstError: false,
		MaxRetries:       DefaultMaxRetries,
		RetryDelay:       DefaultRetryDelay,
		AutoSummarize:    true,
		SummaryMaxTokens: summary.DefaultMaxTokens,
		EnableProgress:   true,
	}
}

// HighConcurrencyConfig runs up to 10 tasks at once with a longer timeout.
func HighConcurrencyConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 10
	cfg.DefaultTimeout = 600 * time.Second
	return cfg
}

// LowConcurrencyConfig runs 2 tasks at once and stops on the first failure.
func LowConcurrencyConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	cfg.StopOnFirstError = true
	return cfg
}

// SequentialConfig runs one task at a time and stops on the first failure.
func SequentialConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 1
	cfg.StopOnFirstError = true
	return cfg
}

// PresetConfig returns the named preset.
func PresetConfig(name string) (Config, error) {
	switch name {
	case "", PresetDefault:
		return DefaultConfig(), nil
	case PresetHighConcurrency:
		return HighConcurrencyConfig(), nil
	case PresetLowConcurrency:
		return LowConcurrencyConfig(), nil
	case PresetSequential:
		return SequentialConfig(), nil
	default:
		return Config{}, fmt.Errorf("unknown preset %q (valid: %s, %s, %s, %s)",
			name, PresetDefault, PresetHighConcurrency, PresetLowConcurrency, PresetSequential)
	}
}

// Validate checks the configuration for values the scheduler cannot use.
func (c Config) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must not be negative, got %s", c.DefaultTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay)
	}
	if c.SummaryMaxTokens < 0 {
		return fmt.Errorf("summary_max_tokens must not be negative, got %d", c.SummaryMaxTokens)
	}
	if c.MaxTasks < 0 {
		return fmt.Errorf("max_tasks must not be negative, got %d", c.MaxTasks)
	}
	return nil
}

// retryBound is the number of retries a failing task gets.
func (c Config) retryBound() int {
	if !c.RetryOnFailure {
		return 0
	}
	return c.MaxRetries
}

// timeoutFor returns the deadline for one attempt of task. Zero means none.
func (c Config) timeoutFor(task Task) time.Duration {
	if task.Timeout > 0 {
		return task.Timeout
	}
	return c.DefaultTimeout
}
