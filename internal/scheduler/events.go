package scheduler

import "time"

// EventType identifies a lifecycle event.
type EventType string

const (
	EventStarted       EventType = "started"
	EventTaskStarted   EventType = "task_started"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
	EventTaskRetry     EventType = "task_retry"
	EventTaskSkipped   EventType = "task_skipped"
	EventTaskCancelled EventType = "task_cancelled"
	EventProgress      EventType = "progress"
	EventCompleted     EventType = "completed"
	EventCancelled     EventType = "cancelled"
)

// Event is a lifecycle notification. Only the fields relevant to Type are set.
type Event struct {
	Type       EventType     `json:"type"`
	Time       time.Time     `json:"time"`
	RunID      string        `json:"run_id,omitempty"`
	TaskID     string        `json:"task_id,omitempty"`
	TaskType   string        `json:"task_type,omitempty"`
	WorkerID   string        `json:"worker_id,omitempty"`
	TotalTasks int           `json:"total_tasks,omitempty"`
	RetryCount int           `json:"retry_count,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Error      string        `json:"error,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Success    bool          `json:"success,omitempty"`
	Progress   *Progress     `json:"progress,omitempty"`
}

// EventHandler receives lifecycle events. Handlers are called synchronously
// from the coordinator in transition order and must not block.
type EventHandler interface {
	HandleEvent(Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(Event)

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(e Event) {
	f(e)
}

// ChannelHandler forwards events to a channel. Progress events are dropped
// when the channel is full; every other event blocks until delivered.
type ChannelHandler chan Event

// HandleEvent sends e on the channel.
func (c ChannelHandler) HandleEvent(e Event) {
	if e.Type != EventProgress {
		c <- e
		return
	}
	select {
	case c <- e:
	default:
	}
}
