package config

import (
	"fmt"
	"time"

	"github.com/nibzard/fanout-go/internal/scheduler"
	"github.com/nibzard/fanout-go/internal/utils"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource

	userFile    string
	projectFile string
}

// Default values.
const (
	DefaultTasksFile = "tasks.json"
	DefaultLogDir    = "~/.fanout"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// DefaultAgentKey names the agent used for task types without their own entry.
	DefaultAgentKey = "default"
)

// Config holds the full configuration for fanout.
type Config struct {
	// Paths
	TasksFile string `toml:"tasks_file"`
	LogDir    string `toml:"log_dir"`

	// Scheduler
	Preset           string        `toml:"preset"`
	MaxConcurrency   int           `toml:"max_concurrency"`
	DefaultTimeout   time.Duration `toml:"default_timeout"`
	MaxRetries       int           `toml:"max_retries"`
	RetryDelay       time.Duration `toml:"retry_delay"`
	RetryOnFailure   bool          `toml:"retry_on_failure"`
	StopOnFirstError bool          `toml:"stop_on_first_error"`
	SummaryMaxTokens int           `toml:"summary_max_tokens"`
	AutoSummarize    bool          `toml:"auto_summarize"`
	DefaultModel     string        `toml:"default_model"`
	MaxTasks         int           `toml:"max_tasks"`

	// Agents keyed by task type.
	Agents AgentConfig `toml:"agents"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Project root (computed)
	ProjectRoot string `toml:"-"`

	// explicit records scheduler keys set by a file, env or flag, so a preset
	// only fills the rest.
	explicit map[string]bool
}

// AgentConfig holds agent-specific configuration.
// It is a map keyed by task type, with DefaultAgentKey as the fallback.
type AgentConfig map[string]Agent

// UnmarshalTOML merges [agents.<type>] tables into the map.
func (ac *AgentConfig) UnmarshalTOML(data interface{}) error {
	table, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("agents config must be a table")
	}
	if *ac == nil {
		*ac = AgentConfig{}
	}
	return mergeAgentTables(*ac, table)
}

// GetAgent returns the configuration for a given task type.
func (ac AgentConfig) GetAgent(taskType string) Agent {
	if ac == nil {
		return Agent{}
	}
	key := utils.NormalizeAgentName(taskType)
	if key == "" {
		return Agent{}
	}
	return ac[key]
}

// SetAgent sets the configuration for a given task type.
func (ac *AgentConfig) SetAgent(taskType string, config Agent) {
	key := utils.NormalizeAgentName(taskType)
	if key == "" {
		return
	}
	if *ac == nil {
		*ac = AgentConfig{}
	}
	(*ac)[key] = config
}

// PromptFormat specifies how the prompt is passed to the agent.
type PromptFormat string

const (
	// PromptFormatStdin passes the prompt via stdin.
	PromptFormatStdin PromptFormat = "stdin"
	// PromptFormatArg passes the prompt as a command-line argument.
	PromptFormatArg PromptFormat = "arg"
)

// Agent holds the command used to run one task type.
type Agent struct {
	Binary       string       `toml:"binary"`
	Model        string       `toml:"model"`
	Args         []string     `toml:"args"`          // Extra arguments passed to the agent binary
	PromptFormat PromptFormat `toml:"prompt_format"` // How to pass the prompt: "stdin" or "arg"
}

// schedulerKeys lists the keys that map onto scheduler.Config.
var schedulerKeys = []string{
	"max_concurrency",
	"default_timeout",
	"max_retries",
	"retry_delay",
	"retry_on_failure",
	"stop_on_first_error",
	"summary_max_tokens",
	"auto_summarize",
	"default_model",
	"max_tasks",
}

// markExplicit records that key was set by something other than the defaults.
func (c *Config) markExplicit(key string) {
	if c.explicit == nil {
		c.explicit = make(map[string]bool)
	}
	c.explicit[key] = true
}

// applySchedulerDefaults copies sc into the scheduler fields.
func (c *Config) applySchedulerDefaults(sc scheduler.Config) {
	c.MaxConcurrency = sc.MaxConcurrency
	c.DefaultTimeout = sc.DefaultTimeout
	c.MaxRetries = sc.MaxRetries
	c.RetryDelay = sc.RetryDelay
	c.RetryOnFailure = sc.RetryOnFailure
	c.StopOnFirstError = sc.StopOnFirstError
	c.SummaryMaxTokens = sc.SummaryMaxTokens
	c.AutoSummarize = sc.AutoSummarize
	c.DefaultModel = sc.DefaultModel
	c.MaxTasks = sc.MaxTasks
}
