package agents

import (
	"fmt"
	"io"
	"sync"
)

// MultiplexedLogWriter writes agent output from concurrent tasks as plain
// text, each line prefixed with its task ID. Lifecycle events other than
// failures are ignored.
type MultiplexedLogWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewMultiplexedLogWriter creates a new multiplexed log writer.
func NewMultiplexedLogWriter(w io.Writer) *MultiplexedLogWriter {
	return &MultiplexedLogWriter{writer: w}
}

// Write writes a log event with a "[task_id] " prefix.
func (m *MultiplexedLogWriter) Write(event LogEvent) error {
	var line string
	switch event.Type {
	case EventAgentOutput:
		line = event.Content
	case EventStderr:
		line = "stderr: " + event.Content
	case EventError, EventTaskFailed:
		line = "ERROR: " + event.Content
	case EventReport:
		if event.Report == nil {
			return nil
		}
		line = "Summary: " + event.Report.Summary
	case EventCommand:
		if event.ExitCode == 0 {
			return nil
		}
		line = fmt.Sprintf("Command: %v (exit %d)", event.Command, event.ExitCode)
	default:
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if event.TaskID != "" {
		if _, err := fmt.Fprintf(m.writer, "[%s] ", event.TaskID); err != nil {
			return fmt.Errorf("write prefix: %w", err)
		}
	}
	_, err := fmt.Fprintln(m.writer, line)
	return err
}
