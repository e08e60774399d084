package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nibzard/fanout-go/internal/utils"
)

const (
	envPrefix      = "FANOUT_"
	agentEnvPrefix = envPrefix + "AGENT_"
)

// loadFromEnv overrides config from FANOUT_* environment variables.
// If sources is non-nil, it tracks the source of each value.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) error {
	set := func(field string) {
		cfg.markExplicit(field)
		if sources != nil {
			sources[field] = SourceEnv
		}
	}
	str := func(name, field string, target *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*target = v
			set(field)
		}
	}
	flag := func(name, field string, target *bool) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*target = boolFromString(v)
			set(field)
		}
	}
	num := func(name, field string, target *int) error {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %q is not a number", envPrefix, name, v)
		}
		*target = i
		set(field)
		return nil
	}
	dur := func(name, field string, target *time.Duration) error {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return nil
		}
		d, err := utils.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*target = d
		set(field)
		return nil
	}

	str("TASKS", "tasks_file", &cfg.TasksFile)
	str("LOG_DIR", "log_dir", &cfg.LogDir)
	str("PRESET", "preset", &cfg.Preset)
	str("DEFAULT_MODEL", "default_model", &cfg.DefaultModel)
	flag("RETRY_ON_FAILURE", "retry_on_failure", &cfg.RetryOnFailure)
	flag("STOP_ON_FIRST_ERROR", "stop_on_first_error", &cfg.StopOnFirstError)
	flag("AUTO_SUMMARIZE", "auto_summarize", &cfg.AutoSummarize)

	for _, err := range []error{
		num("MAX_CONCURRENCY", "max_concurrency", &cfg.MaxConcurrency),
		num("MAX_RETRIES", "max_retries", &cfg.MaxRetries),
		num("SUMMARY_MAX_TOKENS", "summary_max_tokens", &cfg.SummaryMaxTokens),
		num("MAX_TASKS", "max_tasks", &cfg.MaxTasks),
		dur("DEFAULT_TIMEOUT", "default_timeout", &cfg.DefaultTimeout),
		dur("RETRY_DELAY", "retry_delay", &cfg.RetryDelay),
	} {
		if err != nil {
			return err
		}
	}

	// Logging configuration
	str("LOG_LEVEL", "log_level", &cfg.LogLevel)
	str("LOG_FORMAT", "log_format", &cfg.LogFormat)
	flag("LOG_TIMESTAMPS", "log_timestamps", &cfg.LogTimestamps)
	flag("LOG_CALLER", "log_caller", &cfg.LogCaller)

	loadAgentsFromEnv(cfg, sources)
	return nil
}

// loadAgentsFromEnv reads FANOUT_AGENT_<TYPE>_{BIN,MODEL,ARGS,PROMPT_FORMAT}.
func loadAgentsFromEnv(cfg *Config, sources map[string]ConfigSource) {
	suffixes := []string{"_PROMPT_FORMAT", "_BIN", "_MODEL", "_ARGS"}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(key, agentEnvPrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, agentEnvPrefix)
		for _, suffix := range suffixes {
			if !strings.HasSuffix(rest, suffix) {
				continue
			}
			name := utils.NormalizeAgentName(strings.TrimSuffix(rest, suffix))
			if name == "" {
				break
			}
			agent := cfg.Agents.GetAgent(name)
			switch suffix {
			case "_BIN":
				agent.Binary = value
			case "_MODEL":
				agent.Model = value
			case "_ARGS":
				agent.Args = utils.SplitAndTrim(value, ",")
			case "_PROMPT_FORMAT":
				agent.PromptFormat = PromptFormat(strings.ToLower(value))
			}
			cfg.Agents.SetAgent(name, agent)
			if sources != nil {
				sources["agents."+name] = SourceEnv
			}
			break
		}
	}
}
