package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTaskNotFound is returned when looking up an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskTimeout tags an attempt that ran past its deadline.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrCancelled is returned when a run is cancelled.
	ErrCancelled = errors.New("run cancelled")
	// ErrContext tags failures caused by the task's context or inputs.
	ErrContext = errors.New("context error")
	// ErrProvider tags failures reported by the agent or model provider.
	ErrProvider = errors.New("provider error")
	// ErrResourceLimitExceeded is returned when a run exceeds a configured limit.
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")
	// ErrRunInProgress is returned when Run is called while another run is active.
	ErrRunInProgress = errors.New("run already in progress")
)

// TaskFailedError records the failure of a single attempt.
type TaskFailedError struct {
	TaskID string
	Err    error
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

func (e *TaskFailedError) Unwrap() error {
	return e.Err
}

// RetriesExhaustedError is the final error of a task that failed every attempt.
type RetriesExhaustedError struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("task %s: retries exhausted after %d attempt(s): %v", e.TaskID, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// CircularDependencyError reports a dependency cycle. Cycle starts and ends
// with the same id.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Cycle, " → ")
}

// InvalidDependencyError reports a dependency on an unknown task.
type InvalidDependencyError struct {
	TaskID     string
	Dependency string
}

func (e *InvalidDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.TaskID, e.Dependency)
}

// DuplicateTaskError reports a task id that appears more than once.
type DuplicateTaskError struct {
	TaskID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task id %s", e.TaskID)
}

// ErrorKind classifies errors by how far their effect reaches.
type ErrorKind int

const (
	// TierUnknown is returned for nil and unclassified errors.
	TierUnknown ErrorKind = iota
	// TierBuild errors are found before any task runs.
	TierBuild
	// TierTask errors are isolated to one task and absorbed by retries.
	TierTask
	// TierRun errors end the whole run.
	TierRun
)

func (k ErrorKind) String() string {
	switch k {
	case TierBuild:
		return "build"
	case TierTask:
		return "task"
	case TierRun:
		return "run"
	default:
		return "unknown"
	}
}

// Kind classifies err.
func Kind(err error) ErrorKind {
	if err == nil {
		return TierUnknown
	}

	var (
		circular  *CircularDependencyError
		invalid   *InvalidDependencyError
		duplicate *DuplicateTaskError
		failed    *TaskFailedError
		exhausted *RetriesExhaustedError
	)
	switch {
	case errors.As(err, &circular), errors.As(err, &invalid), errors.As(err, &duplicate):
		return TierBuild
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrResourceLimitExceeded):
		return TierRun
	case errors.As(err, &failed), errors.As(err, &exhausted),
		errors.Is(err, ErrTaskTimeout), errors.Is(err, ErrProvider),
		errors.Is(err, ErrContext), errors.Is(err, ErrTaskNotFound):
		return TierTask
	default:
		return TierUnknown
	}
}
