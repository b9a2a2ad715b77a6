// Package observable publishes a single current value to any number of
// subscribers with latest-value (conflated) delivery.
package observable

import (
	"context"
	"sync"
)

// Value holds the latest published value of T. Subscribers never block the
// publisher: a slow subscriber only ever sees the newest value.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	version uint64
	subs    map[chan T]struct{}
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[chan T]struct{}),
	}
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Version returns how many times the value has been stored.
func (v *Value[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Store publishes x to all subscribers.
func (v *Value[T]) Store(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = x
	v.version++
	for ch := range v.subs {
		offer(ch, x)
	}
}

// Update applies fn to the current value and publishes the result atomically.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current)
	v.version++
	for ch := range v.subs {
		offer(ch, v.current)
	}
	return v.current
}

// Subscribe returns a channel that first yields the current value and then
// every later value. The channel is closed once ctx is done.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()
	ch <- v.current
	v.subs[ch] = struct{}{}
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, ch)
		close(ch)
		v.mu.Unlock()
	}()

	return ch
}

// Subscribers returns the number of live subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}

// offer replaces any undelivered value in ch with x. Must be called with the
// write lock held, which makes this the only sender on ch.
func offer[T any](ch chan T, x T) {
	select {
	case ch <- x:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- x:
	default:
	}
}
