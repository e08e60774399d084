// Package scheduler runs a set of subagent tasks against a bounded worker pool.
//
// It provides:
//   - ValidateDependencies: build-time checks for unknown ids, duplicates and cycles
//   - SelectStrategy: strategy and complexity heuristics for a task set
//   - Scheduler: dependency-aware execution with retries, timeouts,
//     cancellation, lifecycle events and progress snapshots
//
// Task state is owned by a single coordinator goroutine. Each attempt runs in
// its own goroutine and reports back over a per-attempt channel, so executors
// never touch the task table directly.
package scheduler
