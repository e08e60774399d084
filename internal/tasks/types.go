package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nibzard/fanout-go/internal/utils"
)

// SchemaVersion is the task-set format version this package writes.
const SchemaVersion = 1

// File is a task-set document.
type File struct {
	SchemaVersion int        `json:"schema_version,omitempty" hcl:"schema_version,optional"`
	Name          string     `json:"name,omitempty" hcl:"name,optional"`
	Tasks         []TaskSpec `json:"tasks" hcl:"task,block"`
}

// TaskSpec is one task as written in a task-set file.
type TaskSpec struct {
	ID            string   `json:"id" hcl:"id,label"`
	Type          string   `json:"type" hcl:"type"`
	Prompt        string   `json:"prompt" hcl:"prompt"`
	Description   string   `json:"description,omitempty" hcl:"description,optional"`
	Dependencies  []string `json:"dependencies,omitempty" hcl:"dependencies,optional"`
	Priority      int      `json:"priority,omitempty" hcl:"priority,optional"`
	Timeout       Timeout  `json:"timeout,omitempty" hcl:"timeout,optional"`
	Model         string   `json:"model,omitempty" hcl:"model,optional"`
	ReturnSummary bool     `json:"return_summary,omitempty" hcl:"return_summary,optional"`
	AllowedTools  []string `json:"allowed_tools,omitempty" hcl:"allowed_tools,optional"`
	DeniedTools   []string `json:"denied_tools,omitempty" hcl:"denied_tools,optional"`
	MaxTokens     int      `json:"max_tokens,omitempty" hcl:"max_tokens,optional"`
}

// Timeout is a duration string ("90s") or a number of seconds.
type Timeout string

// UnmarshalJSON accepts both a string and a bare number of seconds.
func (t *Timeout) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = Timeout(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timeout must be a duration string or a number of seconds")
	}
	*t = Timeout(s)
	return nil
}

// Duration parses the timeout. An empty timeout is zero.
func (t Timeout) Duration() (time.Duration, error) {
	if strings.TrimSpace(string(t)) == "" {
		return 0, nil
	}
	d, err := utils.ParseDuration(string(t))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path string // Dotted path to the error location, e.g. tasks[2].timeout
	Err  error  // Underlying error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors collects every problem found in a task set.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	switch len(v) {
	case 0:
		return "no validation errors"
	case 1:
		return v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  %s", len(v), strings.Join(msgs, "\n  "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}
