package config

import (
	"sort"

	"github.com/nibzard/fanout-go/internal/utils"
)

// AgentFor returns the agent configured for a task type, falling back to the
// [agents.default] entry. ok is false when neither has a binary.
func (c *Config) AgentFor(taskType string) (Agent, bool) {
	if agent := c.Agents.GetAgent(taskType); agent.Binary != "" {
		return agent, true
	}
	if agent := c.Agents.GetAgent(DefaultAgentKey); agent.Binary != "" {
		return agent, true
	}
	return Agent{}, false
}

// AgentTypes returns the configured agent keys in sorted order.
func (c *Config) AgentTypes() []string {
	types := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// GetAgentBinary returns the binary for the given task type, or "" when none is configured.
func (c *Config) GetAgentBinary(taskType string) string {
	agent, _ := c.AgentFor(taskType)
	return agent.Binary
}

// GetAgentModel returns the model pinned for the given task type.
func (c *Config) GetAgentModel(taskType string) string {
	agent, _ := c.AgentFor(taskType)
	return agent.Model
}

// GetAgentArgs returns extra args for the given task type.
func (c *Config) GetAgentArgs(taskType string) []string {
	agent, _ := c.AgentFor(taskType)
	if len(agent.Args) == 0 {
		return nil
	}
	copied := make([]string, len(agent.Args))
	copy(copied, agent.Args)
	return copied
}

// GetAgentPromptFormat returns the prompt format for the given task type.
// Returns "stdin" if not configured.
func (c *Config) GetAgentPromptFormat(taskType string) PromptFormat {
	if utils.NormalizeAgentName(taskType) == "" {
		return PromptFormatStdin
	}
	agent, _ := c.AgentFor(taskType)
	if agent.PromptFormat == "" {
		return PromptFormatStdin
	}
	return agent.PromptFormat
}
