package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nibzard/fanout-go/internal/pool"
	"github.com/nibzard/fanout-go/internal/summary"
)

type messageKind int

const (
	msgAcquired messageKind = iota
	msgAcquireFailed
	msgAttemptDone
	msgRetryReady
)

// message is the only way goroutines started by a run report back to the
// coordinator.
type message struct {
	kind     messageKind
	taskID   string
	worker   *pool.Worker
	result   *Result
	err      error
	started  time.Time
	finished time.Time
}

// outcome is what an executor returned for one attempt.
type outcome struct {
	result *Result
	err    error
}

// run is the coordinator state of a single RunWithStrategy call. Everything
// here is touched only by the coordinator goroutine.
type run struct {
	s          *Scheduler
	ctx        context.Context
	ready      []string
	dependents map[string][]string
	msgs       chan message
	inflight   int
	awaiting   map[string]bool
	cancelled  bool
	stopped    bool
	started    time.Time
}

func (r *run) loop() {
	done := r.ctx.Done()
	for {
		if !r.cancelled && r.ctx.Err() != nil {
			r.cancelAll()
			done = nil
		}
		r.schedule()
		if r.inflight == 0 {
			return
		}

		select {
		case m := <-r.msgs:
			r.inflight--
			r.handle(m)
		case <-done:
			done = nil
			r.cancelAll()
		}
	}
}

func (r *run) handle(m message) {
	switch m.kind {
	case msgAcquired:
		delete(r.awaiting, m.taskID)
		if !r.info(m.taskID).Status.notStarted() {
			r.release(m.worker)
			return
		}
		r.dispatch(m.taskID, m.worker)
	case msgAcquireFailed:
		delete(r.awaiting, m.taskID)
		if errors.Is(m.err, pool.ErrShuttingDown) && !r.cancelled && r.info(m.taskID).Status.notStarted() {
			r.fail(m.taskID, resourceError(m.taskID, m.err), nil)
		}
	case msgAttemptDone:
		r.finishAttempt(m)
	case msgRetryReady:
		delete(r.awaiting, m.taskID)
	}
}

func (r *run) info(id string) *TaskExecutionInfo {
	return r.s.tasks[id]
}

// schedule walks tasks in ready order, moving blocked tasks to
// WaitingForDependencies and acquiring workers for ready ones.
func (r *run) schedule() {
	if r.cancelled || r.stopped {
		return
	}
	for _, id := range r.ready {
		info := r.info(id)
		if !info.Status.notStarted() || r.awaiting[id] {
			continue
		}

		ready, blocker := r.dependencyState(info.Task)
		switch {
		case blocker != "":
			r.skip(id, fmt.Sprintf("dependency %s %s", blocker, r.info(blocker).Status))
		case !ready:
			if info.Status == StatusPending {
				r.s.update(id, func(i *TaskExecutionInfo) { i.Status = StatusWaitingForDependencies })
				r.publishProgress()
			}
		default:
			r.acquire(id)
		}
		if r.stopped {
			return
		}
	}
}

// dependencyState reports whether every dependency of t has completed, or
// the first dependency that can no longer complete.
func (r *run) dependencyState(t Task) (ready bool, blocker string) {
	ready = true
	for _, dep := range t.Dependencies {
		switch r.info(dep).Status {
		case StatusCompleted:
		case StatusFailed, StatusSkipped, StatusCancelled:
			return false, dep
		default:
			ready = false
		}
	}
	return ready, ""
}

func (r *run) acquire(id string) {
	worker, waiter, err := r.s.pool.PrepareAcquire(id)
	switch {
	case err != nil:
		r.fail(id, resourceError(id, err), nil)
	case worker != nil:
		r.dispatch(id, worker)
	default:
		r.s.logger.Debug("waiting for worker", "task", id)
		r.awaiting[id] = true
		r.inflight++
		go r.forward(id, waiter)
	}
}

// forward relays a queued acquire to the coordinator. A worker delivered
// after the run is cancelled goes straight back to the pool.
func (r *run) forward(id string, waiter *pool.Waiter) {
	select {
	case w, ok := <-waiter.C():
		if !ok {
			r.msgs <- message{kind: msgAcquireFailed, taskID: id, err: pool.ErrShuttingDown}
			return
		}
		r.msgs <- message{kind: msgAcquired, taskID: id, worker: w}
	case <-r.ctx.Done():
		if !waiter.Abandon() {
			if w, ok := <-waiter.C(); ok {
				r.release(w)
			}
		}
		r.msgs <- message{kind: msgAcquireFailed, taskID: id, err: r.ctx.Err()}
	}
}

func (r *run) release(w *pool.Worker) {
	if err := r.s.pool.Release(w.ID); err != nil {
		r.s.logger.Error("release worker", "worker", w.ID, "err", err)
	}
}

func (r *run) dispatch(id string, w *pool.Worker) {
	now := time.Now()
	var task Task
	var attempt int
	r.s.update(id, func(i *TaskExecutionInfo) {
		i.Status = StatusRunning
		i.WorkerID = w.ID
		if i.StartedAt == nil {
			i.StartedAt = &now
		}
		task = i.Task
		attempt = i.Retries + 1
	})

	r.s.logger.Debug("dispatch", "task", id, "worker", w.ID, "attempt", attempt)
	r.s.emit(Event{Type: EventTaskStarted, TaskID: id, TaskType: task.Type, WorkerID: w.ID})
	r.publishProgress()

	r.inflight++
	go r.attempt(task, w, attempt)
}

// attempt runs one execution of task and reports it. The executor is raced
// against the task deadline only; a result that arrives after it is
// discarded. Run cancellation reaches the executor through ctx, and a task
// that finishes anyway keeps its result.
func (r *run) attempt(task Task, w *pool.Worker, attempt int) {
	started := time.Now()
	ctx, span := r.s.tracer.Start(r.ctx, "scheduler.task", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.type", task.Type),
		attribute.Int("task.attempt", attempt),
		attribute.String("worker.id", w.ID),
	))

	timeout := r.s.cfg.timeoutFor(task)
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- outcome{err: fmt.Errorf("executor panic: %v", p)}
			}
		}()
		res, err := r.s.exec.Execute(ctx, task)
		ch <- outcome{result: res, err: err}
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var out outcome
	received := false
	select {
	case out = <-ch:
		received = true
	case <-deadline:
	}

	err := r.attemptError(ctx, out, received, timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	r.msgs <- message{
		kind:     msgAttemptDone,
		taskID:   task.ID,
		worker:   w,
		result:   out.result,
		err:      err,
		started:  started,
		finished: time.Now(),
	}
}

// attemptError classifies the outcome of an attempt. A successful result
// wins even if the run was cancelled or the deadline expired at the same
// moment. Errors returned after cancellation count as cancellation.
func (r *run) attemptError(ctx context.Context, out outcome, received bool, timeout time.Duration) error {
	if received && out.err == nil {
		if out.result == nil {
			return errors.New("executor returned no result")
		}
		if !out.result.Success {
			if out.result.Error != "" {
				return errors.New(out.result.Error)
			}
			return errors.New("task reported failure")
		}
		return nil
	}

	switch {
	case r.ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrCancelled, r.ctx.Err())
	case !received, errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTaskTimeout, timeout)
	default:
		return out.err
	}
}

func (r *run) finishAttempt(m message) {
	r.release(m.worker)

	info := r.info(m.taskID)
	res := Result{}
	if m.result != nil {
		res = *m.result
	}
	res.TaskID = m.taskID
	res.Retries = info.Retries
	res.StartedAt = m.started
	res.CompletedAt = m.finished
	if res.Duration == 0 {
		res.Duration = m.finished.Sub(m.started)
	}

	if m.err == nil {
		r.complete(m.taskID, &res)
		return
	}

	res.Success = false
	res.Error = m.err.Error()
	switch {
	case r.cancelled || errors.Is(m.err, ErrCancelled):
		r.cancelTask(m.taskID, &res)
	case info.Retries < r.s.cfg.retryBound() && !r.stopped:
		r.retry(m.taskID, m.err)
	default:
		r.fail(m.taskID, &TaskFailedError{TaskID: m.taskID, Err: m.err}, &res)
	}
}

func (r *run) complete(id string, res *Result) {
	now := time.Now()
	r.s.update(id, func(i *TaskExecutionInfo) {
		i.Status = StatusCompleted
		i.CompletedAt = &now
		i.Result = res
	})
	r.s.logger.Debug("task completed", "task", id, "duration", res.Duration)
	r.s.emit(Event{Type: EventTaskCompleted, TaskID: id, Duration: res.Duration})
	r.publishProgress()
}

func (r *run) retry(id string, err error) {
	var retries int
	r.s.update(id, func(i *TaskExecutionInfo) {
		i.Retries++
		i.Status = StatusPending
		i.LastError = err.Error()
		i.WorkerID = ""
		retries = i.Retries
	})
	r.s.logger.Warn("task failed, retrying", "task", id, "retry", retries, "err", err)
	r.s.emit(Event{Type: EventTaskRetry, TaskID: id, RetryCount: retries, Error: err.Error()})
	r.publishProgress()

	r.awaiting[id] = true
	r.inflight++
	go func() {
		timer := time.NewTimer(r.s.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.ctx.Done():
		}
		r.msgs <- message{kind: msgRetryReady, taskID: id}
	}()
}

// fail marks a task Failed, skips everything downstream of it and, with
// StopOnFirstError, skips every task that has not started.
func (r *run) fail(id string, taskErr error, res *Result) {
	info := r.info(id)
	final := &RetriesExhaustedError{TaskID: id, Attempts: info.Retries + 1, Err: taskErr}
	if res == nil {
		res = &Result{TaskID: id, Retries: info.Retries}
	}
	res.Success = false
	res.Error = final.Error()

	now := time.Now()
	r.s.update(id, func(i *TaskExecutionInfo) {
		i.Status = StatusFailed
		i.LastError = final.Error()
		i.CompletedAt = &now
		i.Result = res
	})
	r.s.logger.Error("task failed", "task", id, "attempts", final.Attempts, "err", taskErr)
	r.s.emit(Event{Type: EventTaskFailed, TaskID: id, Error: final.Error()})
	r.publishProgress()

	r.skipDependents(id)
	if r.s.cfg.StopOnFirstError && !r.stopped {
		r.stop()
	}
}

func (r *run) skipDependents(id string) {
	for _, dep := range r.dependents[id] {
		if r.info(dep).Status.notStarted() {
			r.skip(dep, fmt.Sprintf("dependency %s %s", id, r.info(id).Status))
		}
	}
}

func (r *run) skip(id, reason string) {
	now := time.Now()
	r.s.update(id, func(i *TaskExecutionInfo) {
		i.Status = StatusSkipped
		i.CompletedAt = &now
		i.Result = &Result{TaskID: id, Retries: i.Retries, Error: "skipped: " + reason}
	})
	r.s.logger.Info("task skipped", "task", id, "reason", reason)
	r.s.emit(Event{Type: EventTaskSkipped, TaskID: id, Reason: reason})
	r.publishProgress()
	r.skipDependents(id)
}

func (r *run) stop() {
	r.stopped = true
	r.s.logger.Warn("stopping after first error")
	for _, id := range r.s.order {
		if r.info(id).Status.notStarted() {
			r.skip(id, stopReason)
		}
	}
}

func (r *run) cancelAll() {
	r.cancelled = true
	for _, id := range r.s.order {
		if r.info(id).Status.notStarted() {
			r.cancelTask(id, nil)
		}
	}
}

func (r *run) cancelTask(id string, res *Result) {
	if res == nil {
		res = &Result{TaskID: id, Retries: r.info(id).Retries, Error: ErrCancelled.Error()}
	}
	now := time.Now()
	r.s.update(id, func(i *TaskExecutionInfo) {
		i.Status = StatusCancelled
		i.CompletedAt = &now
		i.Result = res
	})
	r.s.emit(Event{Type: EventTaskCancelled, TaskID: id})
	r.publishProgress()
}

func (r *run) publishProgress() {
	r.s.mu.Lock()
	p := r.s.computeProgress()
	r.s.progress = p
	r.s.mu.Unlock()

	if r.s.cfg.EnableProgress {
		r.s.emit(Event{Type: EventProgress, Progress: &p})
	}
}

// result aggregates the finished task table.
func (r *run) result(strategy Strategy) *ExecutionResult {
	out := &ExecutionResult{
		RunID:         r.s.RunID(),
		TotalDuration: time.Since(r.started),
		Strategy:      strategy,
	}

	inputs := make([]summary.Input, 0, len(r.s.order))
	for _, id := range r.s.order {
		info := r.info(id)
		res := Result{TaskID: id, Error: string(info.Status)}
		if info.Result != nil {
			res = *info.Result
		}
		out.Results = append(out.Results, res)
		inputs = append(inputs, res.summaryInput())

		switch info.Status {
		case StatusCompleted:
			out.SuccessfulCount++
		case StatusFailed:
			out.FailedCount++
		case StatusSkipped:
			out.SkippedCount++
		case StatusCancelled:
			out.CancelledCount++
		}
	}

	out.Success = out.FailedCount == 0 && !r.cancelled
	out.TotalTokenUsage = summary.TotalTokenUsage(inputs)
	if r.s.cfg.AutoSummarize {
		out.MergedSummary = r.s.summary.MergeSummaries(inputs)
	}
	return out
}

func resourceError(id string, err error) error {
	return &TaskFailedError{TaskID: id, Err: fmt.Errorf("%w: %v", ErrResourceLimitExceeded, err)}
}
