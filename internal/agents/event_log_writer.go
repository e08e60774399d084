package agents

import (
	"sync"

	"github.com/nibzard/fanout-go/internal/scheduler"
)

// EventLogWriter forwards scheduler lifecycle events to a LogWriter.
type EventLogWriter struct {
	writer LogWriter

	mu  sync.Mutex
	err error
}

var _ scheduler.EventHandler = (*EventLogWriter)(nil)

// NewEventLogWriter creates an EventLogWriter.
func NewEventLogWriter(writer LogWriter) *EventLogWriter {
	return &EventLogWriter{writer: normalizeLogWriter(writer)}
}

// HandleEvent writes the event. Write errors do not stop the run; the first
// one is kept for Err.
func (e *EventLogWriter) HandleEvent(ev scheduler.Event) {
	if err := e.writer.Write(FromSchedulerEvent(ev)); err != nil {
		e.mu.Lock()
		if e.err == nil {
			e.err = err
		}
		e.mu.Unlock()
	}
}

// Err returns the first write error, if any.
func (e *EventLogWriter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// FromSchedulerEvent converts a scheduler event into a log event.
func FromSchedulerEvent(ev scheduler.Event) LogEvent {
	event := LogEvent{
		Type:       string(ev.Type),
		Timestamp:  ev.Time.UTC(),
		RunID:      ev.RunID,
		TaskID:     ev.TaskID,
		TaskType:   ev.TaskType,
		WorkerID:   ev.WorkerID,
		TotalTasks: ev.TotalTasks,
		Retry:      ev.RetryCount,
		Duration:   ev.Duration,
		Success:    ev.Success,
		Progress:   ev.Progress,
	}
	switch ev.Type {
	case scheduler.EventStarted:
		event.Type = EventRunStarted
	case scheduler.EventCompleted:
		event.Type = EventRunCompleted
	case scheduler.EventCancelled:
		event.Type = EventRunCancelled
	}
	switch {
	case ev.Error != "":
		event.Content = ev.Error
	case ev.Reason != "":
		event.Content = ev.Reason
	}
	return event
}
