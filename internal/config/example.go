package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# fanout configuration file
# Values can be overridden by FANOUT_* environment variables or CLI flags

# Task file (relative to project root): .json, .yaml, .toml or .hcl
tasks_file = "tasks.json"

# Log directory (supports ~ expansion and %VAR% on Windows)
log_dir = "~/.fanout"

# Scheduler preset: default, high-concurrency, low-concurrency, sequential.
# Settings below override the preset.
# preset = "default"

max_concurrency = 5
default_timeout = "5m"
retry_on_failure = true
max_retries = 3
retry_delay = "1s"
stop_on_first_error = false

# Merged summary
auto_summarize = true
summary_max_tokens = 2000

# Model for tasks that do not name one (empty = pick by task complexity)
# default_model = "sonnet"

# Maximum tasks per run (0 = unlimited)
max_tasks = 0

log_level = "info"
log_format = "text"

# Agents are keyed by task type. [agents.default] serves every other type.
[agents.default]
binary = "claude"
args = ["-p"]
prompt_format = "arg"

# [agents.research]
# binary = "codex"
# model = "o3"
# prompt_format = "stdin"
`
}
