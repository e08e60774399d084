package pool

import "sync"

type waiterState int

const (
	waiterPending waiterState = iota
	waiterDelivered
	waiterAbandoned
	waiterDropped
)

// Waiter is a single-use handle for a queued acquire. It resolves exactly
// once: either a worker is sent on C, or C is closed because the pool began
// draining.
type Waiter struct {
	taskID string
	ch     chan *Worker

	mu    sync.Mutex
	state waiterState
}

func newWaiter(taskID string) *Waiter {
	return &Waiter{
		taskID: taskID,
		ch:     make(chan *Worker, 1),
	}
}

// TaskID returns the task the waiter is acquiring for.
func (w *Waiter) TaskID() string {
	return w.taskID
}

// C returns the channel the worker is delivered on.
func (w *Waiter) C() <-chan *Worker {
	return w.ch
}

// Abandon gives up the wait. It returns false if a worker has already been
// delivered; the caller then owns that worker and must release it.
func (w *Waiter) Abandon() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case waiterPending:
		w.state = waiterAbandoned
		return true
	case waiterDelivered:
		return false
	default:
		return true
	}
}

func (w *Waiter) deliver(worker *Worker) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != waiterPending {
		return false
	}
	w.state = waiterDelivered
	w.ch <- worker
	return true
}

func (w *Waiter) drop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != waiterPending {
		return
	}
	w.state = waiterDropped
	close(w.ch)
}

func (w *Waiter) pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == waiterPending
}
