package async

import "sync"

// Dispatcher runs callbacks in the context that owns UI state.
type Dispatcher interface {
	Dispatch(fn func())
}

// Inline runs callbacks on the calling goroutine.
type Inline struct{}

// Dispatch runs fn immediately.
func (Inline) Dispatch(fn func()) { fn() }

// Queue buffers callbacks until the owning goroutine drains them.
// It is the dispatcher for event loops that must apply every state change
// on a single goroutine.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	notify  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Dispatch enqueues fn and wakes the owner.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Ready is signalled whenever callbacks are waiting.
func (q *Queue) Ready() <-chan struct{} {
	return q.notify
}

// Drain runs every queued callback in order on the calling goroutine and
// returns how many ran.
func (q *Queue) Drain() int {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return len(pending)
}
