package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrShuttingDown is returned by acquire calls once the pool is draining.
	ErrShuttingDown = errors.New("pool is shutting down")
	// ErrWorkerNotFound is returned when releasing a worker the pool does not hold.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrInvalidPoolSize is returned when resizing to zero workers.
	ErrInvalidPoolSize = errors.New("invalid pool size")
	// ErrAcquireTimeout is returned by AcquireWait when its deadline passes.
	ErrAcquireTimeout = errors.New("acquire timed out")
)

// Worker is a reusable execution slot.
type Worker struct {
	ID          string    `json:"id"`
	Busy        bool      `json:"busy"`
	CurrentTask string    `json:"current_task,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsed    time.Time `json:"last_used"`
}

func newWorker(now time.Time) *Worker {
	return &Worker{
		ID:        uuid.New().String(),
		CreatedAt: now,
		LastUsed:  now,
	}
}

func (w *Worker) assign(taskID string, now time.Time) {
	w.Busy = true
	w.CurrentTask = taskID
	w.LastUsed = now
}

func (w *Worker) release(now time.Time) {
	w.Busy = false
	w.CurrentTask = ""
	w.LastUsed = now
}

// Status is a point-in-time view of the pool.
type Status struct {
	TotalWorkers     int  `json:"total_workers"`
	AvailableWorkers int  `json:"available_workers"`
	BusyWorkers      int  `json:"busy_workers"`
	WaitingRequests  int  `json:"waiting_requests"`
	ShuttingDown     bool `json:"shutting_down"`
	PoolSize         int  `json:"pool_size"`
}

// Pool bounds concurrent work by handing out a fixed set of reusable workers.
//
// Workers are kept in creation order; availability is tracked separately as a
// FIFO of worker ids. Requests that cannot be served immediately wait in a
// FIFO wait-list and are satisfied directly by Release.
type Pool struct {
	mu        sync.Mutex
	workers   map[string]*Worker
	order     []string
	available []string
	waiters   []*Waiter
	size      int
	draining  bool
	now       func() time.Time
}

// New creates a pool with size idle workers.
func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPoolSize, size)
	}
	p := &Pool{
		workers: make(map[string]*Worker, size),
		size:    size,
		now:     time.Now,
	}
	p.grow(size)
	return p, nil
}

// grow appends n idle workers. Caller holds mu.
func (p *Pool) grow(n int) {
	now := p.now()
	for i := 0; i < n; i++ {
		w := newWorker(now)
		p.workers[w.ID] = w
		p.order = append(p.order, w.ID)
		p.available = append(p.available, w.ID)
	}
}

// remove drops a worker from the arena. Caller holds mu.
func (p *Pool) remove(id string) {
	delete(p.workers, id)
	for i, wid := range p.order {
		if wid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Acquire returns a free worker assigned to taskID, or nil if none is free.
func (p *Pool) Acquire(taskID string) (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining {
		return nil, ErrShuttingDown
	}
	return p.takeAvailable(taskID), nil
}

// takeAvailable pops the oldest available worker. Caller holds mu.
func (p *Pool) takeAvailable(taskID string) *Worker {
	if len(p.available) == 0 {
		return nil
	}
	id := p.available[0]
	p.available = p.available[1:]
	w := p.workers[id]
	w.assign(taskID, p.now())
	snapshot := *w
	return &snapshot
}

// PrepareAcquire returns a free worker if there is one. Otherwise it enqueues
// and returns a Waiter that resolves once a worker is released to it.
func (p *Pool) PrepareAcquire(taskID string) (*Worker, *Waiter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining {
		return nil, nil, ErrShuttingDown
	}
	if w := p.takeAvailable(taskID); w != nil {
		return w, nil, nil
	}
	waiter := newWaiter(taskID)
	p.waiters = append(p.waiters, waiter)
	return nil, waiter, nil
}

// AcquireWait blocks until a worker is available, ctx is done, or the pool
// starts draining.
func (p *Pool) AcquireWait(ctx context.Context, taskID string) (*Worker, error) {
	w, waiter, err := p.PrepareAcquire(taskID)
	if err != nil || w != nil {
		return w, err
	}

	select {
	case w, ok := <-waiter.C():
		if !ok {
			return nil, ErrShuttingDown
		}
		return w, nil
	case <-ctx.Done():
		if !waiter.Abandon() {
			// Delivery won the race; hand the worker back.
			if w, ok := <-waiter.C(); ok {
				_ = p.Release(w.ID)
			}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrAcquireTimeout
		}
		return nil, ctx.Err()
	}
}

// Release returns a worker to the pool. The oldest live waiter receives it
// directly; otherwise it becomes available, or is retired if the pool is
// above its target size.
func (p *Pool) Release(workerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[workerID]
	if !ok || !w.Busy {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, workerID)
	}

	now := p.now()
	if len(p.workers) > p.size {
		p.remove(workerID)
		return nil
	}

	for len(p.waiters) > 0 {
		waiter := p.waiters[0]
		p.waiters = p.waiters[1:]
		w.assign(waiter.taskID, now)
		snapshot := *w
		if waiter.deliver(&snapshot) {
			return nil
		}
	}

	w.release(now)
	p.available = append(p.available, workerID)
	return nil
}

// Resize changes the target number of workers. Growing adds idle workers
// immediately; shrinking reclaims idle workers and retires busy ones as they
// are released.
func (p *Pool) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPoolSize, n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.size = n
	if total := len(p.workers); total < n {
		p.grow(n - total)
		p.serveWaiters()
		return nil
	}

	for len(p.workers) > n && len(p.available) > 0 {
		last := len(p.available) - 1
		id := p.available[last]
		p.available = p.available[:last]
		p.remove(id)
	}
	return nil
}

// serveWaiters hands available workers to queued waiters. Caller holds mu.
func (p *Pool) serveWaiters() {
	for len(p.waiters) > 0 && len(p.available) > 0 {
		waiter := p.waiters[0]
		p.waiters = p.waiters[1:]
		id := p.available[0]
		w := p.workers[id]
		w.assign(waiter.taskID, p.now())
		snapshot := *w
		if waiter.deliver(&snapshot) {
			p.available = p.available[1:]
			continue
		}
		w.release(p.now())
	}
}

// StartShutdown marks the pool as draining, drops every waiter and returns
// the number of busy workers.
func (p *Pool) StartShutdown() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.draining = true
	for _, waiter := range p.waiters {
		waiter.drop()
	}
	p.waiters = nil
	return p.busyLocked()
}

// IsShutdownComplete reports whether the pool is draining with no busy workers.
func (p *Pool) IsShutdownComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draining && p.busyLocked() == 0
}

func (p *Pool) busyLocked() int {
	return len(p.workers) - len(p.available)
}

// Size returns the target pool size.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Status returns a snapshot of the pool counters.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	waiting := 0
	for _, w := range p.waiters {
		if w.pending() {
			waiting++
		}
	}
	return Status{
		TotalWorkers:     len(p.workers),
		AvailableWorkers: len(p.available),
		BusyWorkers:      p.busyLocked(),
		WaitingRequests:  waiting,
		ShuttingDown:     p.draining,
		PoolSize:         p.size,
	}
}

// Workers returns copies of all workers in creation order.
func (p *Pool) Workers() []Worker {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Worker, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.workers[id])
	}
	return out
}

// Worker returns a copy of the worker with the given id.
func (p *Pool) Worker(id string) (Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[id]
	if !ok {
		return Worker{}, false
	}
	return *w, true
}
