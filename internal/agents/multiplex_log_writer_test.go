package agents

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestMultiplexedLogWriter_Write(t *testing.T) {
	tests := []struct {
		name  string
		event LogEvent
		want  string
	}{
		{
			name:  "agent output",
			event: LogEvent{Type: EventAgentOutput, TaskID: "t1", Content: "hello"},
			want:  "[t1] hello\n",
		},
		{
			name:  "stderr",
			event: LogEvent{Type: EventStderr, TaskID: "t1", Content: "warn"},
			want:  "[t1] stderr: warn\n",
		},
		{
			name:  "failure",
			event: LogEvent{Type: EventTaskFailed, TaskID: "t2", Content: "boom"},
			want:  "[t2] ERROR: boom\n",
		},
		{
			name:  "report",
			event: LogEvent{Type: EventReport, TaskID: "t1", Report: &Report{Summary: "done"}},
			want:  "[t1] Summary: done\n",
		},
		{
			name:  "failed command",
			event: LogEvent{Type: EventCommand, TaskID: "t1", Command: []string{"false"}, ExitCode: 1},
			want:  "[t1] Command: [false] (exit 1)\n",
		},
		{
			name:  "no task id",
			event: LogEvent{Type: EventError, Content: "run error"},
			want:  "ERROR: run error\n",
		},
		{
			name:  "successful command ignored",
			event: LogEvent{Type: EventCommand, TaskID: "t1", Command: []string{"true"}},
		},
		{
			name:  "lifecycle ignored",
			event: LogEvent{Type: EventTaskStarted, TaskID: "t1"},
		},
		{
			name:  "empty report ignored",
			event: LogEvent{Type: EventReport, TaskID: "t1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewMultiplexedLogWriter(&buf).Write(tt.event); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMultiplexedLogWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	writer := NewMultiplexedLogWriter(&buf)

	const tasks, lines = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < lines; j++ {
				_ = writer.Write(LogEvent{
					Type:    EventAgentOutput,
					TaskID:  fmt.Sprintf("t%d", id),
					Content: fmt.Sprintf("line %d", j),
				})
			}
		}(i)
	}
	wg.Wait()

	out := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(out) != tasks*lines {
		t.Fatalf("got %d lines, want %d", len(out), tasks*lines)
	}
	for _, line := range out {
		if !strings.HasPrefix(line, "[t") || !strings.Contains(line, "] line ") {
			t.Errorf("interleaved line: %q", line)
		}
	}
}
