// Package loop runs the single cooperative update loop of the process.
package loop

import (
	"errors"
	"sync"
)

var ErrQueueFull = errors.New("queue full")

// Queue is a bounded FIFO safe for many producers and one consumer.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

func NewQueue[T any](limit int) *Queue[T] {
	if limit <= 0 {
		limit = 1
	}
	return &Queue[T]{items: make([]T, 0, limit), limit: limit}
}

// TryPush appends v or returns ErrQueueFull without blocking.
func (q *Queue[T]) TryPush(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.limit {
		return ErrQueueFull
	}
	q.items = append(q.items, v)
	return nil
}

// Drain removes and returns everything queued so far, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]T, 0, q.limit)
	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
