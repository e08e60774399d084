package agents

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ConsoleLogOptions holds configuration for console logging.
type ConsoleLogOptions struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	ReportCaller    bool
	Prefix          string
	Output          io.Writer // defaults to os.Stderr
}

// DefaultConsoleLogOptions returns default options for console logging.
func DefaultConsoleLogOptions() ConsoleLogOptions {
	return ConsoleLogOptions{
		Level:     log.InfoLevel,
		Formatter: log.TextFormatter,
		Prefix:    "fanout",
	}
}

// ConsoleLogWriter implements LogWriter using charmbracelet/log for
// colorful, leveled, human-readable console output.
type ConsoleLogWriter struct {
	logger *log.Logger
}

// NewConsoleLogger builds the charmbracelet logger described by opts.
func NewConsoleLogger(opts ConsoleLogOptions) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Prefix:          opts.Prefix,
	})
}

// NewConsoleLogWriter creates a new console log writer with the given options.
func NewConsoleLogWriter(opts ConsoleLogOptions) *ConsoleLogWriter {
	return &ConsoleLogWriter{logger: NewConsoleLogger(opts)}
}

// NewConsoleLogWriterWithLogger creates a new console log writer with a custom logger.
func NewConsoleLogWriterWithLogger(logger *log.Logger) *ConsoleLogWriter {
	return &ConsoleLogWriter{logger: logger}
}

// Logger returns the underlying logger so the scheduler can share it.
func (c *ConsoleLogWriter) Logger() *log.Logger {
	return c.logger
}

// Write writes a log event to the console using charmbracelet/log.
func (c *ConsoleLogWriter) Write(event LogEvent) error {
	msg := formatMessage(event)
	fields := extractFields(event)

	switch event.Type {
	case EventError, EventTaskFailed:
		c.logger.Error(msg, fields...)
	case EventRunCompleted:
		if event.Success {
			c.logger.Info(msg, fields...)
		} else {
			c.logger.Error(msg, fields...)
		}
	case EventTaskRetry, EventTaskSkipped, EventTaskCancelled, EventRunCancelled:
		c.logger.Warn(msg, fields...)
	case EventRunStarted, EventTaskStarted, EventTaskCompleted, EventCommand:
		c.logger.Info(msg, fields...)
	default:
		c.logger.Debug(msg, fields...)
	}
	return nil
}

// extractFields extracts structured fields from a LogEvent for charmbracelet/log.
func extractFields(event LogEvent) []any {
	var fields []any
	if event.TaskID != "" {
		fields = append(fields, "task", event.TaskID)
	}
	if event.WorkerID != "" {
		fields = append(fields, "worker", shortID(event.WorkerID))
	}
	if event.TotalTasks > 0 {
		fields = append(fields, "tasks", event.TotalTasks)
	}
	if event.Retry > 0 {
		fields = append(fields, "retry", event.Retry)
	}
	if event.Duration > 0 {
		fields = append(fields, "duration", event.Duration.Round(1e6))
	}
	if len(event.Command) > 0 {
		fields = append(fields, "command", strings.Join(event.Command, " "))
	}
	if event.ExitCode != 0 {
		fields = append(fields, "exit_code", event.ExitCode)
	}
	if p := event.Progress; p != nil {
		fields = append(fields, "done", fmt.Sprintf("%d/%d", p.Completed+p.Failed+p.Skipped, p.Total))
	}
	return fields
}

// formatMessage formats a log message from a LogEvent.
func formatMessage(event LogEvent) string {
	switch event.Type {
	case EventRunStarted:
		return "Run started"
	case EventRunCompleted:
		if event.Success {
			return "Run completed"
		}
		return "Run failed"
	case EventRunCancelled:
		return "Run cancelled"
	case EventTaskStarted:
		return "Task started"
	case EventTaskCompleted:
		return "Task completed"
	case EventTaskFailed:
		return withContent("Task failed", event.Content)
	case EventTaskRetry:
		return withContent("Retrying task", event.Content)
	case EventTaskSkipped:
		return withContent("Task skipped", event.Content)
	case EventTaskCancelled:
		return "Task cancelled"
	case EventProgress:
		return "Progress"
	case EventCommand:
		return "Running command"
	case EventReport:
		if event.Report != nil && event.Report.Summary != "" {
			return event.Report.Summary
		}
		return "Report received"
	}
	if event.Content != "" {
		return event.Content
	}
	return event.Type
}

func withContent(msg, content string) string {
	if content == "" {
		return msg
	}
	return msg + ": " + content
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ParseLogLevel parses a string log level to a charmbracelet/log Level.
func ParseLogLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// ParseLogFormatter parses a string formatter name to a charmbracelet/log Formatter.
func ParseLogFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// NewConsoleLogWriterFromConfig creates a ConsoleLogWriter from string configuration values.
func NewConsoleLogWriterFromConfig(level, format string, timestamps, caller bool, prefix string) *ConsoleLogWriter {
	return NewConsoleLogWriter(ConsoleLogOptions{
		Level:           ParseLogLevel(level),
		Formatter:       ParseLogFormatter(format),
		ReportTimestamp: timestamps,
		ReportCaller:    caller,
		Prefix:          prefix,
	})
}

// NewTestConsoleLogWriter creates a debug-level console writer on w without
// timestamps, for assertions in tests.
func NewTestConsoleLogWriter(w io.Writer) *ConsoleLogWriter {
	return NewConsoleLogWriter(ConsoleLogOptions{
		Level:     log.DebugLevel,
		Formatter: log.TextFormatter,
		Output:    w,
	})
}
