package agents

import (
	"errors"

	"github.com/nibzard/fanout-go/internal/config"
)

const (
	// MaxScanTokenSize is the longest stdout or stderr line accepted.
	MaxScanTokenSize = 1024 * 1024

	// ScanBufferSize is the initial scanner buffer size.
	ScanBufferSize = 64 * 1024
)

// ErrNoExecutor is returned by a Router that has no executor for a task type.
var ErrNoExecutor = errors.New("no executor for task type")

// Report is the JSON line an agent may print to describe its run.
type Report struct {
	Summary string `json:"summary"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Usage is the token usage an agent reports.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Config holds configuration for a command agent.
type Config struct {
	// Name labels the agent in logs and errors, usually the task type.
	Name string

	// Binary is the path to the agent binary.
	Binary string

	// Model pins the model for every task this agent runs (optional).
	Model string

	// Args are additional arguments passed before the prompt.
	Args []string

	// PromptFormat specifies how the prompt is passed to the agent (stdin or arg).
	PromptFormat config.PromptFormat

	// WorkDir is the working directory for the agent command.
	WorkDir string
}

// ConfigFromAgent converts a configured agent entry.
func ConfigFromAgent(name string, agent config.Agent, workDir string) Config {
	return Config{
		Name:         name,
		Binary:       agent.Binary,
		Model:        agent.Model,
		Args:         append([]string(nil), agent.Args...),
		PromptFormat: agent.PromptFormat,
		WorkDir:      workDir,
	}
}
