package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/nibzard/fanout-go/internal/scheduler"
	"github.com/nibzard/fanout-go/internal/summary"
)

// EchoExecutor completes every task without running anything. It backs
// dry runs and tests.
type EchoExecutor struct {
	// Delay is how long each task pretends to run.
	Delay time.Duration

	logWriter LogWriter
}

var _ scheduler.Executor = (*EchoExecutor)(nil)

// NewEchoExecutor creates an EchoExecutor that logs to logWriter.
func NewEchoExecutor(delay time.Duration, logWriter LogWriter) *EchoExecutor {
	return &EchoExecutor{Delay: delay, logWriter: normalizeLogWriter(logWriter)}
}

// Execute waits for Delay and echoes the task back.
func (e *EchoExecutor) Execute(ctx context.Context, task scheduler.Task) (*scheduler.Result, error) {
	if e.Delay > 0 {
		timer := time.NewTimer(e.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	output := fmt.Sprintf("[dry-run] %s (%s): %s", task.ID, task.Type, task.Prompt)
	if task.Model != "" {
		output += fmt.Sprintf(" [model %s]", task.Model)
	}
	_ = normalizeLogWriter(e.logWriter).Write(LogEvent{
		Type:      EventAgentOutput,
		Timestamp: time.Now().UTC(),
		TaskID:    task.ID,
		TaskType:  task.Type,
		Content:   output,
	})

	in := summary.EstimateTokens(task.Prompt)
	out := summary.EstimateTokens(output)
	return &scheduler.Result{
		TaskID:     task.ID,
		Success:    true,
		Output:     output,
		Summary:    fmt.Sprintf("Dry run of %s", task.ID),
		TokenUsage: &scheduler.TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
		Metadata:   map[string]any{"agent": "echo"},
	}, nil
}
