// Package queue provides a bounded FIFO buffer safe for concurrent use.
package queue

import (
	"sync"
)

// Queue holds items until they are drained. When a limit is set and the
// queue is full, Push discards the oldest items.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped int
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue that keeps at most limit items. A limit of
// zero or less means unbounded.
func NewBounded[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Push appends items and returns how many old items were discarded to
// make room.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.limit <= 0 || len(q.items) <= q.limit {
		return 0
	}
	over := len(q.items) - q.limit
	clear(q.items[:over])
	q.items = q.items[over:]
	q.dropped += over
	return over
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped is the total number of items discarded by Push.
func (q *Queue[T]) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// GetAndEmpty returns all items in insertion order and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Drain passes every item to fn in order. Items fn fails on stay queued,
// ahead of anything pushed meanwhile, and the first error is returned.
func (q *Queue[T]) Drain(fn func(T) error) error {
	items := q.GetAndEmpty()
	for i, it := range items {
		if err := fn(it); err != nil {
			q.mu.Lock()
			q.items = append(append([]T(nil), items[i:]...), q.items...)
			q.mu.Unlock()
			return err
		}
	}
	return nil
}
