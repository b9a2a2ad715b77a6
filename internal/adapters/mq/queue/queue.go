// Package queue provides the FIFO queues the notifier uses between
// detection, enrichment and display.
package queue

import (
	"context"
	"sync"

	"github.com/okian/lingoquest/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
	defaultQueueName     = "queue"
)

// Queue provides FIFO semantics with non-blocking and blocking enqueue and
// blocking dequeue.
type Queue[T any] interface {
	// Enqueue adds an item to the tail of the queue.
	// Returns false if the queue is full or closed and the item was not enqueued.
	Enqueue(ctx context.Context, e T) bool

	// EnqueueWait adds an item to the tail of the queue, waiting for space.
	// Returns false if ctx is done, the queue is closed, or the queue is
	// purged while it waits.
	EnqueueWait(ctx context.Context, e T) bool

	// Dequeue returns a channel that will receive items as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan T

	// Receive blocks until the head item is available and removes it.
	// Returns false when ctx is done or the queue is closed and drained.
	Receive(ctx context.Context) (T, bool)

	// Len returns the current number of queued items.
	Len(ctx context.Context) int

	// Purge discards every queued item and returns how many were dropped.
	Purge(ctx context.Context) int

	// Close gracefully shuts down the queue.
	// After closing, no new items can be enqueued and the dequeue channel will be closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue over a slice guarded by a mutex.
// A capacity of zero means the queue never fills.
type InMemoryQueue[T any] struct {
	settings

	mu     sync.Mutex
	items  []T
	closed bool
	purges uint64

	// Wake-up signals, buffered to one so a send never blocks.
	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}
}

type settings struct {
	capacity int
	name     string
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	s := settings{
		capacity: defaultQueueCapacity,
		name:     defaultQueueName,
	}
	for _, opt := range opts {
		opt(&s)
	}

	q := &InMemoryQueue[T]{
		settings: s,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	metrics.UpdateQueueCapacity(q.name, q.capacity)
	metrics.UpdateQueueSize(q.name, 0)

	return q
}

// Name returns the queue name used in metrics and logs.
func (q *InMemoryQueue[T]) Name() string { return q.name }

// Capacity returns the maximum number of queued items, zero when unbounded.
func (q *InMemoryQueue[T]) Capacity() int { return q.capacity }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (q *InMemoryQueue[T]) full() bool {
	return q.capacity > 0 && len(q.items) >= q.capacity
}

// push appends e; callers hold mu and have checked closed and full.
func (q *InMemoryQueue[T]) push(e T) {
	q.items = append(q.items, e)
	metrics.RecordQueueEnqueue(q.name)
	metrics.UpdateQueueSize(q.name, len(q.items))
	signal(q.notEmpty)
	if !q.full() {
		signal(q.notFull)
	}
}

// Enqueue adds an item to the queue without waiting.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, e T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.closed:
		metrics.RecordQueueEnqueueError(q.name, "closed")
		return false
	case ctx.Err() != nil:
		metrics.RecordQueueEnqueueError(q.name, "context_cancelled")
		return false
	case q.full():
		metrics.RecordQueueEnqueueError(q.name, "queue_full")
		return false
	}

	q.push(e)
	return true
}

// EnqueueWait adds an item to the queue, blocking while it is full.
func (q *InMemoryQueue[T]) EnqueueWait(ctx context.Context, e T) bool {
	q.mu.Lock()
	purges := q.purges
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			metrics.RecordQueueEnqueueError(q.name, "closed")
			return false
		}
		if q.purges != purges {
			// Pass the wake-up on to the next waiter.
			signal(q.notFull)
			q.mu.Unlock()
			metrics.RecordQueueEnqueueError(q.name, "purged")
			return false
		}
		if !q.full() {
			q.push(e)
			q.mu.Unlock()
			return true
		}
		q.mu.Unlock()

		select {
		case <-q.notFull:
		case <-q.done:
		case <-ctx.Done():
			metrics.RecordQueueEnqueueError(q.name, "context_cancelled")
			return false
		}
	}
}

// Dequeue returns a channel that will receive items as they become available.
// The forwarding goroutine holds at most one item in flight; use Receive when
// the consumer must not take an item before it is ready for it.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			e, ok := q.Receive(ctx)
			if !ok {
				return
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Receive blocks until an item is available, ctx is done, or the queue is
// closed and drained.
func (q *InMemoryQueue[T]) Receive(ctx context.Context) (T, bool) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			if len(q.items) > 0 {
				signal(q.notEmpty)
			}
			signal(q.notFull)
			size := len(q.items)
			q.mu.Unlock()

			metrics.RecordQueueDequeue(q.name)
			metrics.UpdateQueueSize(q.name, size)
			return e, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, false
		}

		select {
		case <-q.notEmpty:
		case <-q.done:
		case <-ctx.Done():
			return zero, false
		}
	}
}

// Len returns the current number of queued items.
func (q *InMemoryQueue[T]) Len(ctx context.Context) int {
	q.mu.Lock()
	size := len(q.items)
	q.mu.Unlock()

	metrics.UpdateQueueSize(q.name, size)
	return size
}

// Purge discards every queued item. Callers blocked in EnqueueWait give up
// their items too.
func (q *InMemoryQueue[T]) Purge(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.items)
	q.items = nil
	q.purges++
	signal(q.notFull)
	metrics.UpdateQueueSize(q.name, 0)
	return dropped
}

// Close gracefully shuts down the queue. Items already queued can still be
// received.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
