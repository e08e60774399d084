package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nibzard/fanout-go/internal/scheduler"
)

// Log event types written by executors. Scheduler lifecycle events keep their
// scheduler names, with run-level events prefixed by "run_".
const (
	EventCommand     = "command"
	EventAgentOutput = "agent_output"
	EventStderr      = "stderr"
	EventReport      = "report"
	EventError       = "error"

	EventRunStarted    = "run_started"
	EventRunCompleted  = "run_completed"
	EventRunCancelled  = "run_cancelled"
	EventTaskStarted   = string(scheduler.EventTaskStarted)
	EventTaskCompleted = string(scheduler.EventTaskCompleted)
	EventTaskFailed    = string(scheduler.EventTaskFailed)
	EventTaskRetry     = string(scheduler.EventTaskRetry)
	EventTaskSkipped   = string(scheduler.EventTaskSkipped)
	EventTaskCancelled = string(scheduler.EventTaskCancelled)
	EventProgress      = string(scheduler.EventProgress)
)

// LogEvent represents a single log event from a run or an agent.
type LogEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	RunID    string `json:"run_id,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
	TaskType string `json:"task_type,omitempty"`
	WorkerID string `json:"worker_id,omitempty"`

	// Content is the message, output line or error text.
	Content string `json:"content,omitempty"`

	// Command is the command that was run (for command events)
	Command []string `json:"command,omitempty"`

	// ExitCode is the command exit code (for command events)
	ExitCode int `json:"exit_code,omitempty"`

	TotalTasks int                 `json:"total_tasks,omitempty"`
	Retry      int                 `json:"retry,omitempty"`
	Duration   time.Duration       `json:"duration,omitempty"`
	Success    bool                `json:"success,omitempty"`
	Progress   *scheduler.Progress `json:"progress,omitempty"`
	Report     *Report             `json:"report,omitempty"`
}

// LogWriter writes log events.
type LogWriter interface {
	Write(event LogEvent) error
}

// IOStreamLogWriter writes log events to an io.Writer as JSON lines.
type IOStreamLogWriter struct {
	w      io.Writer
	indent string
}

// NewIOStreamLogWriter creates a new log writer that writes to an io.Writer.
func NewIOStreamLogWriter(w io.Writer) *IOStreamLogWriter {
	return &IOStreamLogWriter{w: w}
}

// SetIndent sets the indentation prefix for log output.
func (l *IOStreamLogWriter) SetIndent(indent string) {
	l.indent = indent
}

// Write writes a log event to the underlying writer.
func (l *IOStreamLogWriter) Write(event LogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}
	if l.indent != "" {
		data = append([]byte(l.indent), data...)
	}
	data = append(data, '\n')
	_, err = l.w.Write(data)
	return err
}

// MultiLogWriter writes to multiple log writers.
type MultiLogWriter struct {
	writers []LogWriter
}

// NewMultiLogWriter creates a new multi-log writer. Nil writers are skipped.
func NewMultiLogWriter(writers ...LogWriter) *MultiLogWriter {
	m := &MultiLogWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Write writes the event to all underlying writers, even after a failure.
func (m *MultiLogWriter) Write(event LogEvent) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NullLogWriter is a no-op log writer.
type NullLogWriter struct{}

// Write does nothing.
func (NullLogWriter) Write(event LogEvent) error {
	return nil
}

type lockedLogWriter struct {
	mu     sync.Mutex
	writer LogWriter
}

func (l *lockedLogWriter) Write(event LogEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Write(event)
}

// normalizeLogWriter makes writer safe for concurrent use by several tasks.
func normalizeLogWriter(writer LogWriter) LogWriter {
	switch writer.(type) {
	case nil:
		return NullLogWriter{}
	case NullLogWriter, *lockedLogWriter:
		return writer
	}
	return &lockedLogWriter{writer: writer}
}
