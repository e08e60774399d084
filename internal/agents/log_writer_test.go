package agents

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibzard/fanout-go/internal/scheduler"
)

type failingWriter struct{ err error }

func (f failingWriter) Write(LogEvent) error { return f.err }

func TestIOStreamLogWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewIOStreamLogWriter(&buf)
	w.SetIndent("  ")

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, w.Write(LogEvent{Type: EventAgentOutput, Timestamp: ts, TaskID: "t1", Content: "hi"}))

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "  {"))
	assert.True(t, strings.HasSuffix(line, "}\n"))

	var got LogEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &got))
	assert.Equal(t, "t1", got.TaskID)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.NotContains(t, line, "exit_code", "zero fields are omitted")
}

func TestMultiLogWriter(t *testing.T) {
	a, b := &recordingWriter{}, &recordingWriter{}
	boom := errors.New("boom")
	m := NewMultiLogWriter(a, nil, failingWriter{err: boom}, b)

	err := m.Write(LogEvent{Type: EventError})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1, "writers after a failure still receive the event")

	assert.NoError(t, NewMultiLogWriter().Write(LogEvent{}))
}

func TestNormalizeLogWriter(t *testing.T) {
	assert.Equal(t, NullLogWriter{}, normalizeLogWriter(nil))

	locked := normalizeLogWriter(&recordingWriter{})
	_, ok := locked.(*lockedLogWriter)
	assert.True(t, ok)
	assert.Same(t, locked, normalizeLogWriter(locked))
}

func TestFromSchedulerEvent(t *testing.T) {
	now := time.Now()
	progress := &scheduler.Progress{Total: 2, Completed: 1}

	tests := []struct {
		name string
		ev   scheduler.Event
		want LogEvent
	}{
		{
			name: "run started",
			ev:   scheduler.Event{Type: scheduler.EventStarted, Time: now, RunID: "r1", TotalTasks: 2},
			want: LogEvent{Type: EventRunStarted, Timestamp: now.UTC(), RunID: "r1", TotalTasks: 2},
		},
		{
			name: "run cancelled",
			ev:   scheduler.Event{Type: scheduler.EventCancelled, Time: now, Reason: "interrupted"},
			want: LogEvent{Type: EventRunCancelled, Timestamp: now.UTC(), Content: "interrupted"},
		},
		{
			name: "task failed",
			ev: scheduler.Event{
				Type: scheduler.EventTaskFailed, Time: now, TaskID: "t1", TaskType: "code",
				WorkerID: "w1", RetryCount: 2, Error: "exit 1", Duration: time.Second,
			},
			want: LogEvent{
				Type: EventTaskFailed, Timestamp: now.UTC(), TaskID: "t1", TaskType: "code",
				WorkerID: "w1", Retry: 2, Content: "exit 1", Duration: time.Second,
			},
		},
		{
			name: "progress",
			ev:   scheduler.Event{Type: scheduler.EventProgress, Time: now, Progress: progress},
			want: LogEvent{Type: EventProgress, Timestamp: now.UTC(), Progress: progress},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromSchedulerEvent(tt.ev))
		})
	}
}

func TestEventLogWriter(t *testing.T) {
	rec := &recordingWriter{}
	h := NewEventLogWriter(rec)
	h.HandleEvent(scheduler.Event{Type: scheduler.EventTaskStarted, TaskID: "t1"})
	h.HandleEvent(scheduler.Event{Type: scheduler.EventCompleted, Success: true})
	assert.NoError(t, h.Err())
	assert.Equal(t, []string{EventTaskStarted, EventRunCompleted}, rec.types())

	first, second := errors.New("first"), errors.New("second")
	failing := &sequenceWriter{errs: []error{first, second}}
	h = NewEventLogWriter(failing)
	h.HandleEvent(scheduler.Event{Type: scheduler.EventTaskStarted})
	h.HandleEvent(scheduler.Event{Type: scheduler.EventTaskStarted})
	assert.ErrorIs(t, h.Err(), first)
}

type sequenceWriter struct {
	errs []error
	n    int
}

func (s *sequenceWriter) Write(LogEvent) error {
	err := s.errs[s.n%len(s.errs)]
	s.n++
	return err
}
