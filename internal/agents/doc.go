// Package agents runs scheduler tasks as external agent commands and turns
// scheduler lifecycle events into log events.
//
// A CommandExecutor runs one configured binary per task. The prompt is passed
// on stdin or as the last argument, and the model with --model. Each stdout
// line is streamed to a LogWriter. An agent may print a single JSON report
// line to describe its run:
//
//	{"summary": "Found 12 handlers", "usage": {"input_tokens": 900, "output_tokens": 120}}
//
// The last such line supplies the result summary and token usage; it is not
// part of the captured output.
//
// A Router picks an executor by task type and falls back to a default.
//
// Log events are written through LogWriter implementations: JSON lines
// (IOStreamLogWriter), console output via charmbracelet/log
// (ConsoleLogWriter), task-prefixed plain text (MultiplexedLogWriter), or any
// combination (MultiLogWriter). EventLogWriter adapts a LogWriter into a
// scheduler.EventHandler.
package agents
