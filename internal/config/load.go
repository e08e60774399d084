package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/nibzard/fanout-go/internal/scheduler"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.fanout/fanout.toml or OS-specific config dir)
// 3. Project config file (fanout.toml or .fanout.toml in current directory)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := load(fs, args, nil)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
// Returns ConfigWithSources containing the config and a map of field names to their sources.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}
	return load(fs, args, sources)
}

func load(fs *flag.FlagSet, args []string, sources map[string]ConfigSource) (*ConfigWithSources, error) {
	cfg := &Config{}
	cws := &ConfigWithSources{Config: cfg, Sources: sources}

	// 1. Set defaults
	setDefaults(cfg)

	// 2. Try to load from user config file
	if userConfigFile := findUserConfigFile(); userConfigFile != "" {
		if err := loadConfigFile(cfg, userConfigFile, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
		cws.userFile = userConfigFile
	}

	// 3. Try to load from project config file (overrides user config)
	if projectConfigFile := findProjectConfigFile(); projectConfigFile != "" {
		if err := loadConfigFile(cfg, projectConfigFile, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
		cws.projectFile = projectConfigFile
	}

	// 4. Override from environment
	if err := loadFromEnv(cfg, sources); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// 5. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return cws, nil
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	fields := []string{"tasks_file", "log_dir", "preset"}
	fields = append(fields, schedulerKeys...)
	return append(fields, "log_level", "log_format", "log_timestamps", "log_caller")
}

// loadConfigFile decodes a TOML file over cfg. Only keys present in the file
// are touched, and those are recorded as explicit.
func loadConfigFile(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	for _, key := range md.Undecoded() {
		// [agents.*] is decoded by AgentConfig.UnmarshalTOML.
		if len(key) > 0 && key[0] == "agents" {
			continue
		}
		return fmt.Errorf("unknown config key %q", key.String())
	}
	for _, field := range configFields() {
		if !md.IsDefined(field) {
			continue
		}
		cfg.markExplicit(field)
		if sources != nil {
			sources[field] = source
		}
	}
	if sources != nil {
		for name := range cfg.Agents {
			if md.IsDefined("agents", name) {
				sources["agents."+name] = source
			}
		}
	}
	return nil
}

// finalizeConfig applies the preset, computes derived values and validates.
func finalizeConfig(cfg *Config) error {
	if cfg.Preset != "" {
		preset, err := scheduler.PresetConfig(cfg.Preset)
		if err != nil {
			return err
		}
		applyPreset(cfg, preset)
	}

	// Expand ~ in paths
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.TasksFile = expandPath(cfg.TasksFile)

	// Determine project root
	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		cfg.ProjectRoot = wd
	}

	if !filepath.IsAbs(cfg.TasksFile) {
		cfg.TasksFile = filepath.Join(cfg.ProjectRoot, cfg.TasksFile)
	}

	for name, agent := range cfg.Agents {
		switch agent.PromptFormat {
		case "", PromptFormatStdin, PromptFormatArg:
		default:
			return fmt.Errorf("agent %s: unknown prompt_format %q", name, agent.PromptFormat)
		}
	}

	if _, err := cfg.SchedulerConfig(); err != nil {
		return err
	}
	return nil
}

// applyPreset replaces the scheduler settings nobody set explicitly with the
// preset's values.
func applyPreset(cfg *Config, preset scheduler.Config) {
	set := *cfg
	cfg.applySchedulerDefaults(preset)
	for key := range cfg.explicit {
		switch key {
		case "max_concurrency":
			cfg.MaxConcurrency = set.MaxConcurrency
		case "default_timeout":
			cfg.DefaultTimeout = set.DefaultTimeout
		case "max_retries":
			cfg.MaxRetries = set.MaxRetries
		case "retry_delay":
			cfg.RetryDelay = set.RetryDelay
		case "retry_on_failure":
			cfg.RetryOnFailure = set.RetryOnFailure
		case "stop_on_first_error":
			cfg.StopOnFirstError = set.StopOnFirstError
		case "summary_max_tokens":
			cfg.SummaryMaxTokens = set.SummaryMaxTokens
		case "auto_summarize":
			cfg.AutoSummarize = set.AutoSummarize
		case "default_model":
			cfg.DefaultModel = set.DefaultModel
		case "max_tasks":
			cfg.MaxTasks = set.MaxTasks
		}
	}
}

// SchedulerConfig converts the loaded settings into a validated scheduler.Config.
func (c *Config) SchedulerConfig() (scheduler.Config, error) {
	sc := scheduler.Config{
		MaxConcurrency:   c.MaxConcurrency,
		DefaultTimeout:   c.DefaultTimeout,
		RetryOnFailure:   c.RetryOnFailure,
		StopOnFirstError: c.StopOnFirstError,
		MaxRetries:       c.MaxRetries,
		RetryDelay:       c.RetryDelay,
		AutoSummarize:    c.AutoSummarize,
		SummaryMaxTokens: c.SummaryMaxTokens,
		DefaultModel:     c.DefaultModel,
		EnableProgress:   true,
		MaxTasks:         c.MaxTasks,
	}
	if err := sc.Validate(); err != nil {
		return scheduler.Config{}, err
	}
	return sc, nil
}
