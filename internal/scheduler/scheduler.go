package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nibzard/fanout-go/internal/pool"
	"github.com/nibzard/fanout-go/internal/summary"
)

const tracerName = "github.com/nibzard/fanout-go/internal/scheduler"

// stopReason is recorded on tasks skipped by StopOnFirstError.
const stopReason = "stopped after first error"

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPool runs tasks on p instead of a pool created from the config. The
// size of p caps concurrency; single-agent and sequential runs shrink it to
// one worker for the run and restore it afterwards.
func WithPool(p *pool.Pool) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.pool = p
		}
	}
}

// WithLogger sets the logger for scheduler operations.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer for run and task spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithEventHandler registers a lifecycle event handler.
func WithEventHandler(h EventHandler) Option {
	return func(s *Scheduler) {
		if h != nil {
			s.handlers = append(s.handlers, h)
		}
	}
}

// WithResultStore persists every finished run to store.
func WithResultStore(store ResultStore) Option {
	return func(s *Scheduler) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRunID sets the id reported for runs. By default each run gets a
// random UUID.
func WithRunID(id string) Option {
	return func(s *Scheduler) {
		s.fixedRunID = id
	}
}

// Scheduler runs task sets against a worker pool.
type Scheduler struct {
	cfg        Config
	exec       Executor
	pool       *pool.Pool
	summary    *summary.Generator
	logger     *log.Logger
	tracer     trace.Tracer
	store      ResultStore
	handlers   []EventHandler
	fixedRunID string
	ownsPool   bool

	// mu guards the fields below. They are written only by the coordinator
	// of the active run.
	mu       sync.RWMutex
	tasks    map[string]*TaskExecutionInfo
	order    []string
	progress Progress
	runID    string
	cancel   context.CancelFunc
	running  bool
}

// New creates a scheduler.
func New(cfg Config, exec Executor, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	if exec == nil {
		return nil, errors.New("executor is required")
	}

	s := &Scheduler{
		cfg:     cfg,
		exec:    exec,
		summary: summary.New(cfg.SummaryMaxTokens),
		logger:  log.New(io.Discard),
		tracer:  noop.NewTracerProvider().Tracer(tracerName),
		tasks:   make(map[string]*TaskExecutionInfo),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.pool == nil {
		p, err := pool.New(cfg.MaxConcurrency)
		if err != nil {
			return nil, fmt.Errorf("create pool: %w", err)
		}
		s.pool = p
		s.ownsPool = true
	}
	return s, nil
}

// Config returns the scheduler configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Pool returns the pool tasks run on.
func (s *Scheduler) Pool() *pool.Pool {
	return s.pool
}

// Run executes tasks with an automatically selected strategy.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) (*ExecutionResult, error) {
	return s.RunWithStrategy(ctx, tasks, StrategyAdaptive)
}

// RunWithStrategy validates tasks and executes them until every task reaches
// a terminal state. Structural errors are returned before any task runs. A
// cancelled run returns ErrCancelled along with the partial result.
func (s *Scheduler) RunWithStrategy(ctx context.Context, tasks []Task, strategy Strategy) (*ExecutionResult, error) {
	if err := ValidateDependencies(tasks); err != nil {
		return nil, err
	}
	if s.cfg.MaxTasks > 0 && len(tasks) > s.cfg.MaxTasks {
		return nil, fmt.Errorf("%w: %d tasks exceeds max_tasks %d", ErrResourceLimitExceeded, len(tasks), s.cfg.MaxTasks)
	}
	if strategy == "" || strategy == StrategyAdaptive {
		strategy = SelectStrategy(tasks)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prepared := s.prepare(tasks)
	if err := s.begin(prepared, cancel); err != nil {
		return nil, err
	}
	defer s.end()

	size := poolSizeFor(strategy, s.cfg)
	if !s.ownsPool {
		callerSize := s.pool.Size()
		size = min(size, callerSize)
		defer func() {
			if err := s.pool.Resize(callerSize); err != nil {
				s.logger.Error("restore pool size", "size", callerSize, "err", err)
			}
		}()
	}
	if err := s.pool.Resize(size); err != nil {
		return nil, fmt.Errorf("resize pool: %w", err)
	}

	runID := s.RunID()
	runCtx, span := s.tracer.Start(runCtx, "scheduler.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.tasks", len(tasks)),
		attribute.String("run.strategy", string(strategy)),
	))
	defer span.End()

	s.logger.Info("run starting", "run", runID, "tasks", len(tasks), "strategy", strategy, "pool", s.pool.Size())

	r := &run{
		s:          s,
		ctx:        runCtx,
		dependents: Dependents(prepared),
		msgs:       make(chan message),
		awaiting:   make(map[string]bool),
		started:    time.Now(),
	}
	for _, t := range ReadyOrder(prepared) {
		r.ready = append(r.ready, t.ID)
	}

	s.emit(Event{Type: EventStarted, TotalTasks: len(tasks)})
	r.publishProgress()
	r.loop()

	result := r.result(strategy)
	span.SetAttributes(
		attribute.Int("run.completed", result.SuccessfulCount),
		attribute.Int("run.failed", result.FailedCount),
		attribute.Int("run.skipped", result.SkippedCount),
	)

	if s.store != nil {
		if err := s.store.SaveResult(result); err != nil {
			s.logger.Error("save result", "run", runID, "err", err)
		}
	}

	if r.cancelled {
		span.SetStatus(codes.Error, ErrCancelled.Error())
		s.logger.Warn("run cancelled", "run", runID, "duration", result.TotalDuration)
		s.emit(Event{Type: EventCancelled, Duration: result.TotalDuration})
		return result, ErrCancelled
	}

	if result.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("%d task(s) failed", result.FailedCount))
	}
	s.logger.Info("run finished", "run", runID, "success", result.Success,
		"completed", result.SuccessfulCount, "failed", result.FailedCount,
		"skipped", result.SkippedCount, "duration", result.TotalDuration)
	s.emit(Event{Type: EventCompleted, Success: result.Success, Duration: result.TotalDuration})
	return result, nil
}

// Cancel stops the active run. Tasks that have not started are cancelled;
// running tasks have their context cancelled. It is a no-op without an
// active run.
func (s *Scheduler) Cancel() {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Progress returns the latest progress snapshot.
func (s *Scheduler) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// RunID returns the id of the active or most recent run.
func (s *Scheduler) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// Task returns the execution record of a task in the active or most recent run.
func (s *Scheduler) Task(id string) (TaskExecutionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.tasks[id]
	if !ok {
		return TaskExecutionInfo{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return info.clone(), nil
}

// Tasks returns every execution record in submission order.
func (s *Scheduler) Tasks() []TaskExecutionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskExecutionInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].clone())
	}
	return out
}

// prepare copies tasks and fills in the model hint.
func (s *Scheduler) prepare(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Dependencies = append([]string(nil), t.Dependencies...)
		if t.Model == "" {
			if s.cfg.DefaultModel != "" {
				t.Model = s.cfg.DefaultModel
			} else {
				t.Model = RecommendedModel(EstimateComplexity(t))
			}
		}
		out[i] = t
	}
	return out
}

func (s *Scheduler) begin(tasks []Task, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunInProgress
	}
	s.running = true
	s.cancel = cancel
	s.runID = s.fixedRunID
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.tasks = make(map[string]*TaskExecutionInfo, len(tasks))
	s.order = make([]string, 0, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = &TaskExecutionInfo{Task: t, Status: StatusPending}
		s.order = append(s.order, t.ID)
	}
	s.progress = s.computeProgress()
	return nil
}

func (s *Scheduler) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.cancel = nil
}

// update applies fn to a task record under the write lock.
func (s *Scheduler) update(id string, fn func(*TaskExecutionInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tasks[id])
}

// computeProgress derives a snapshot from the task table. Caller holds mu.
func (s *Scheduler) computeProgress() Progress {
	p := Progress{Total: len(s.order)}
	for _, id := range s.order {
		info := s.tasks[id]
		switch info.Status {
		case StatusPending, StatusWaitingForDependencies:
			p.Pending++
		case StatusRunning:
			p.Running++
			p.CurrentTasks = append(p.CurrentTasks, id)
		case StatusCompleted:
			p.Completed++
		case StatusFailed:
			p.Failed++
		case StatusCancelled:
			p.Failed++
			p.Cancelled++
		case StatusSkipped:
			p.Skipped++
		}
	}
	if p.Total > 0 {
		p.Percentage = float64(p.Completed+p.Failed+p.Skipped) / float64(p.Total) * 100
	}
	return p
}

func (s *Scheduler) emit(e Event) {
	e.Time = time.Now()
	e.RunID = s.RunID()
	for _, h := range s.handlers {
		h.HandleEvent(e)
	}
}
