package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/nibzard/fanout-go/internal/utils"
)

// agentFlag collects repeated -agent type=binary values.
type agentFlag map[string]string

func (a agentFlag) String() string {
	pairs := make([]string, 0, len(a))
	for k, v := range a {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (a agentFlag) Set(value string) error {
	name, binary, ok := strings.Cut(value, "=")
	name = utils.NormalizeAgentName(name)
	if !ok || name == "" || strings.TrimSpace(binary) == "" {
		return fmt.Errorf("expected type=binary, got %q", value)
	}
	a[name] = strings.TrimSpace(binary)
	return nil
}

// parseFlags defines and parses the global CLI flags. Values are bound to
// copies and only applied when the flag was given, so lower layers survive.
// If sources is non-nil, it tracks the source of each value.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("fanout", flag.ContinueOnError)
	}

	next := *cfg
	agents := agentFlag{}

	// Flag name to config field name.
	flagToField := map[string]string{
		"tasks":               "tasks_file",
		"log-dir":             "log_dir",
		"preset":              "preset",
		"max-concurrency":     "max_concurrency",
		"timeout":             "default_timeout",
		"max-retries":         "max_retries",
		"retry-delay":         "retry_delay",
		"retry":               "retry_on_failure",
		"stop-on-first-error": "stop_on_first_error",
		"summary-max-tokens":  "summary_max_tokens",
		"auto-summarize":      "auto_summarize",
		"model":               "default_model",
		"max-tasks":           "max_tasks",
		"log-level":           "log_level",
		"log-format":          "log_format",
		"log-timestamps":      "log_timestamps",
		"log-caller":          "log_caller",
	}

	// Paths
	fs.StringVar(&next.TasksFile, "tasks", cfg.TasksFile, "Path to task file (json, yaml, toml or hcl)")
	fs.StringVar(&next.LogDir, "log-dir", cfg.LogDir, "Log directory")

	// Scheduler
	fs.StringVar(&next.Preset, "preset", cfg.Preset, "Scheduler preset (default, high-concurrency, low-concurrency, sequential)")
	fs.IntVar(&next.MaxConcurrency, "max-concurrency", cfg.MaxConcurrency, "Maximum tasks running at once")
	fs.DurationVar(&next.DefaultTimeout, "timeout", cfg.DefaultTimeout, "Default per-attempt timeout")
	fs.IntVar(&next.MaxRetries, "max-retries", cfg.MaxRetries, "Retries per task after the first attempt")
	fs.DurationVar(&next.RetryDelay, "retry-delay", cfg.RetryDelay, "Delay before a retry")
	fs.BoolVar(&next.RetryOnFailure, "retry", cfg.RetryOnFailure, "Retry failed tasks")
	fs.BoolVar(&next.StopOnFirstError, "stop-on-first-error", cfg.StopOnFirstError, "Skip remaining tasks after the first failure")
	fs.IntVar(&next.SummaryMaxTokens, "summary-max-tokens", cfg.SummaryMaxTokens, "Token budget of the merged summary")
	fs.BoolVar(&next.AutoSummarize, "auto-summarize", cfg.AutoSummarize, "Build a merged summary after the run")
	fs.StringVar(&next.DefaultModel, "model", cfg.DefaultModel, "Model for tasks that do not name one")
	fs.IntVar(&next.MaxTasks, "max-tasks", cfg.MaxTasks, "Maximum tasks per run (0 = unlimited)")

	// Logging
	fs.StringVar(&next.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&next.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json, logfmt)")
	fs.BoolVar(&next.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Show timestamps in logs")
	fs.BoolVar(&next.LogCaller, "log-caller", cfg.LogCaller, "Show caller location in logs")

	// Agents
	fs.Var(agents, "agent", "Agent binary for a task type, as type=binary (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "agent" {
			for name, binary := range agents {
				agent := cfg.Agents.GetAgent(name)
				agent.Binary = binary
				cfg.Agents.SetAgent(name, agent)
				if sources != nil {
					sources["agents."+name] = SourceFlag
				}
			}
			return
		}
		field, ok := flagToField[f.Name]
		if !ok {
			return
		}
		if err := applyFlag(cfg, &next, field); err != nil && parseErr == nil {
			parseErr = err
		}
		cfg.markExplicit(field)
		if sources != nil {
			sources[field] = SourceFlag
		}
	})
	return parseErr
}

// applyFlag copies one field from the flag-bound copy into cfg.
func applyFlag(cfg, next *Config, field string) error {
	switch field {
	case "tasks_file":
		cfg.TasksFile = next.TasksFile
	case "log_dir":
		cfg.LogDir = next.LogDir
	case "preset":
		cfg.Preset = next.Preset
	case "max_concurrency":
		cfg.MaxConcurrency = next.MaxConcurrency
	case "default_timeout":
		cfg.DefaultTimeout = next.DefaultTimeout
	case "max_retries":
		cfg.MaxRetries = next.MaxRetries
	case "retry_delay":
		cfg.RetryDelay = next.RetryDelay
	case "retry_on_failure":
		cfg.RetryOnFailure = next.RetryOnFailure
	case "stop_on_first_error":
		cfg.StopOnFirstError = next.StopOnFirstError
	case "summary_max_tokens":
		cfg.SummaryMaxTokens = next.SummaryMaxTokens
	case "auto_summarize":
		cfg.AutoSummarize = next.AutoSummarize
	case "default_model":
		cfg.DefaultModel = next.DefaultModel
	case "max_tasks":
		cfg.MaxTasks = next.MaxTasks
	case "log_level":
		cfg.LogLevel = next.LogLevel
	case "log_format":
		cfg.LogFormat = next.LogFormat
	case "log_timestamps":
		cfg.LogTimestamps = next.LogTimestamps
	case "log_caller":
		cfg.LogCaller = next.LogCaller
	default:
		return fmt.Errorf("unknown config field %q", field)
	}
	return nil
}

