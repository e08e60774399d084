package scheduler

import (
	"context"
	"time"

	"github.com/nibzard/fanout-go/internal/summary"
)

// Status is the state of a task within a run.
type Status string

// Task states. Pending tasks have not been examined yet; WaitingForDependencies
// tasks have at least one dependency that has not completed.
const (
	StatusPending                Status = "pending"
	StatusWaitingForDependencies Status = "waiting_for_dependencies"
	StatusRunning                Status = "running"
	StatusCompleted              Status = "completed"
	StatusFailed                 Status = "failed"
	StatusCancelled              Status = "cancelled"
	StatusSkipped                Status = "skipped"
)

// IsTerminal reports whether the status never transitions further.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusSkipped:
		return true
	default:
		return false
	}
}

// notStarted reports whether a task in this state has never been dispatched
// in its current attempt.
func (s Status) notStarted() bool {
	return s == StatusPending || s == StatusWaitingForDependencies
}

// TokenUsage counts the tokens a task consumed.
type TokenUsage = summary.TokenUsage

// Task is a unit of work handed to a subagent. Tasks are immutable once
// submitted to a run.
type Task struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Prompt        string        `json:"prompt"`
	Description   string        `json:"description,omitempty"`
	Dependencies  []string      `json:"dependencies,omitempty"`
	Priority      int           `json:"priority,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Model         string        `json:"model,omitempty"`
	ReturnSummary bool          `json:"return_summary,omitempty"`
	AllowedTools  []string      `json:"allowed_tools,omitempty"`
	DeniedTools   []string      `json:"denied_tools,omitempty"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
}

// HasDependencies reports whether the task declares any dependency.
func (t Task) HasDependencies() bool {
	return len(t.Dependencies) > 0
}

// Result is the outcome of one task.
type Result struct {
	TaskID      string         `json:"task_id"`
	Success     bool           `json:"success"`
	Output      string         `json:"output,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Retries     int            `json:"retries"`
	StartedAt   time.Time      `json:"started_at,omitempty"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
	TokenUsage  *TokenUsage    `json:"token_usage,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (r Result) summaryInput() summary.Input {
	return summary.Input{
		TaskID:     r.TaskID,
		Success:    r.Success,
		Output:     r.Output,
		Summary:    r.Summary,
		Error:      r.Error,
		Duration:   r.Duration,
		TokenUsage: r.TokenUsage,
	}
}

// TaskExecutionInfo is the scheduler's record of a task.
type TaskExecutionInfo struct {
	Task        Task       `json:"task"`
	Status      Status     `json:"status"`
	Retries     int        `json:"retries"`
	LastError   string     `json:"last_error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	WorkerID    string     `json:"worker_id,omitempty"`
}

func (i *TaskExecutionInfo) clone() TaskExecutionInfo {
	out := *i
	if i.Result != nil {
		r := *i.Result
		out.Result = &r
	}
	return out
}

// Progress is a derived snapshot of a run. Failed includes cancelled tasks;
// Pending includes tasks waiting for dependencies.
type Progress struct {
	Total        int      `json:"total"`
	Completed    int      `json:"completed"`
	Failed       int      `json:"failed"`
	Running      int      `json:"running"`
	Pending      int      `json:"pending"`
	Skipped      int      `json:"skipped"`
	Cancelled    int      `json:"cancelled"`
	CurrentTasks []string `json:"current_tasks,omitempty"`
	Percentage   float64  `json:"percentage"`
}

// Done reports whether every task has reached a terminal state.
func (p Progress) Done() bool {
	return p.Running == 0 && p.Pending == 0
}

// ExecutionResult aggregates the outcome of a run.
type ExecutionResult struct {
	RunID           string        `json:"run_id,omitempty"`
	Success         bool          `json:"success"`
	Results         []Result      `json:"results"`
	TotalDuration   time.Duration `json:"total_duration"`
	SuccessfulCount int           `json:"successful_count"`
	FailedCount     int           `json:"failed_count"`
	SkippedCount    int           `json:"skipped_count"`
	CancelledCount  int           `json:"cancelled_count"`
	MergedSummary   string        `json:"merged_summary,omitempty"`
	TotalTokenUsage TokenUsage    `json:"total_token_usage"`
	Strategy        Strategy      `json:"strategy"`
}

// Executor runs a single task. Implementations must honor ctx: it carries the
// task deadline and is cancelled when the run is cancelled.
type Executor interface {
	Execute(ctx context.Context, task Task) (*Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, task Task) (*Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, task Task) (*Result, error) {
	return f(ctx, task)
}

// ResultStore persists the final result of a run.
type ResultStore interface {
	SaveResult(result *ExecutionResult) error
}
