package agents

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nibzard/fanout-go/internal/config"
	"github.com/nibzard/fanout-go/internal/scheduler"
	"github.com/nibzard/fanout-go/internal/utils"
)

// Router dispatches tasks to executors by task type.
type Router struct {
	mu       sync.RWMutex
	byType   map[string]scheduler.Executor
	fallback scheduler.Executor
}

var _ scheduler.Executor = (*Router)(nil)

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{byType: make(map[string]scheduler.Executor)}
}

// Register sets the executor for a task type.
func (r *Router) Register(taskType string, exec scheduler.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[utils.NormalizeAgentName(taskType)] = exec
}

// SetDefault sets the executor used for unregistered task types.
func (r *Router) SetDefault(exec scheduler.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = exec
}

// Types returns the registered task types, sorted.
func (r *Router) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Lookup returns the executor for taskType.
func (r *Router) Lookup(taskType string) (scheduler.Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if exec, ok := r.byType[utils.NormalizeAgentName(taskType)]; ok {
		return exec, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w %q", ErrNoExecutor, taskType)
}

// Execute runs task with the executor registered for its type. A missing
// executor is reported as scheduler.ErrContext.
func (r *Router) Execute(ctx context.Context, task scheduler.Task) (*scheduler.Result, error) {
	exec, err := r.Lookup(task.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scheduler.ErrContext, err)
	}
	return exec.Execute(ctx, task)
}

// FromConfig builds a router with one CommandExecutor per configured agent.
// The "default" agent, if present, handles every other task type.
func FromConfig(cfg *config.Config, logWriter LogWriter) (*Router, error) {
	logWriter = normalizeLogWriter(logWriter)
	workDir := cfg.ProjectRoot
	if workDir == "" && cfg.TasksFile != "" {
		workDir = filepath.Dir(cfg.TasksFile)
	}

	router := NewRouter()
	for _, name := range cfg.AgentTypes() {
		agent := cfg.Agents.GetAgent(name)
		exec, err := NewCommandExecutor(ConfigFromAgent(name, agent, workDir), logWriter)
		if err != nil {
			return nil, err
		}
		if name == config.DefaultAgentKey {
			router.SetDefault(exec)
			continue
		}
		router.Register(name, exec)
	}
	return router, nil
}
