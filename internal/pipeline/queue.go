package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Pop once a closed queue has been drained,
// and by Push after Close.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded concurrent-safe FIFO connecting worker pools.
// Items buffered at Close time are still delivered; Pop reports
// ErrQueueClosed only after the queue is both closed and empty.
type Queue[T any] struct {
	ch chan T

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue holding at most size items.
func NewQueue[T any](size int) *Queue[T] {
	if size < 1 {
		size = 1
	}
	return &Queue[T]{ch: make(chan T, size)}
}

// Push enqueues item, blocking while the queue is full.
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues one item, waiting up to pollTimeout. ok is false when the
// poll timed out; err is non-nil when the queue is drained and closed or
// the context is done. The short poll lets workers observe shutdown
// promptly and report themselves idle.
func (q *Queue[T]) Pop(ctx context.Context, pollTimeout time.Duration) (item T, ok bool, err error) {
	var zero T

	timer := time.NewTimer(pollTimeout)
	defer timer.Stop()

	select {
	case item, open := <-q.ch:
		if !open {
			return zero, false, ErrQueueClosed
		}
		return item, true, nil
	case <-timer.C:
		return zero, false, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Close marks the queue complete. Buffered items remain poppable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}
