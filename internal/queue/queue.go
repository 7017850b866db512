// Package queue provides the unbounded FIFO that carries read requests from any
// number of producer goroutines to the single reader worker.
package queue

import (
	"sync"
	"time"
)

// compactThreshold is the number of consumed slots tolerated at the head of the
// backing slice before the remaining items are shifted down.
const compactThreshold = 64

// Queue is an unbounded FIFO queue. Enqueue, Drain and Len are safe for
// concurrent use; TryDequeue must only be called by one consumer, since a
// single wakeup token is shared by all waiters. There is no closed state: a
// Queue stays open for its whole lifetime.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	notify chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends v to the tail of the queue. It never blocks beyond the
// internal lock and always succeeds.
func (q *Queue[T]) Enqueue(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
		// A wakeup is already pending for the consumer.
	}
}

// TryDequeue removes and returns the head of the queue, waiting up to timeout
// for an item to arrive. It reports false if the timeout elapsed with the queue
// still empty. A non-positive timeout polls once without waiting.
func (q *Queue[T]) TryDequeue(timeout time.Duration) (T, bool) {
	if v, ok := q.pop(); ok {
		return v, true
	}
	if timeout <= 0 {
		var zero T
		return zero, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if v, ok := q.pop(); ok {
				return v, true
			}
		case <-timer.C:
			return q.pop()
		}
	}
}

// Drain removes and returns every queued item in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, len(q.items)-q.head)
	copy(out, q.items[q.head:])
	q.items = nil
	q.head = 0
	return out
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *Queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head == len(q.items) {
		return zero, false
	}

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return v, true
}
