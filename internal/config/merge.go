package config

import (
	"fmt"
	"strings"

	"github.com/nibzard/fanout-go/internal/utils"
)

// mergeAgentTables merges [agents.<type>] tables into target. Fields missing
// from a table keep the value a lower-priority file gave them.
func mergeAgentTables(target AgentConfig, table map[string]interface{}) error {
	for key, value := range table {
		raw, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("agents.%s must be a table", key)
		}
		name := utils.NormalizeAgentName(key)
		agent, err := decodeAgentConfig(target[name], raw)
		if err != nil {
			return fmt.Errorf("agent %s: %w", key, err)
		}
		target[name] = agent
	}
	return nil
}

// decodeAgentConfig applies raw TOML data on top of base.
func decodeAgentConfig(base Agent, raw map[string]interface{}) (Agent, error) {
	agent := base
	for key, v := range raw {
		switch key {
		case "binary", "model", "prompt_format":
			s, ok := v.(string)
			if !ok {
				return agent, fmt.Errorf("%s must be a string", key)
			}
			switch key {
			case "binary":
				agent.Binary = s
			case "model":
				agent.Model = s
			default:
				agent.PromptFormat = PromptFormat(strings.ToLower(strings.TrimSpace(s)))
			}
		case "args":
			args, err := parseArgsValue(v)
			if err != nil {
				return agent, err
			}
			agent.Args = args
		default:
			return agent, fmt.Errorf("unknown key %q", key)
		}
	}
	return agent, nil
}

// parseArgsValue parses the args field which can be a string array or comma-separated string.
func parseArgsValue(v interface{}) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return filterEmptyArgs(val), nil
	case []interface{}:
		args := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("args must be a string array")
			}
			args = append(args, s)
		}
		return filterEmptyArgs(args), nil
	case string:
		return utils.SplitAndTrim(val, ","), nil
	default:
		return nil, fmt.Errorf("args must be a string or string array")
	}
}

func filterEmptyArgs(args []string) []string {
	filtered := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	return filtered
}

// boolFromString parses a boolean from a string.
func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
