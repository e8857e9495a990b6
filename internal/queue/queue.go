// Package queue provides a growable FIFO used for session outboxes and the
// audit writer input.
package queue

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)

// growPercent is the fill level at which capacity doubles.
const growPercent = 70

// Queue is a thread-safe ring buffer that doubles its capacity when it is
// 70% full. A non-zero limit caps the number of queued items; Push fails
// with ErrFull beyond it.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	count  int
	limit  int
	closed bool
	ready  chan struct{}

	pushed  int64
	popped  int64
	rejects int64
	resizes int
}

// New creates a Queue with the given initial capacity and item limit
// (0 for unbounded).
func New[T any](initialCapacity, limit int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Queue[T]{
		items: make([]T, initialCapacity),
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Push appends v.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.rejects++
		return ErrClosed
	}
	if q.limit > 0 && q.count >= q.limit {
		q.rejects++
		return ErrFull
	}

	threshold := max(len(q.items)*growPercent/100, 1)
	if q.count+1 >= threshold {
		q.grow()
	}

	q.items[(q.head+q.count)%len(q.items)] = v
	q.count++
	q.pushed++
	q.signal()
	return nil
}

// Pop removes the oldest item, blocking until one is available. It returns
// ErrClosed once the queue is closed and empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if q.count > 0 {
			v := q.take()
			if q.count > 0 && !q.closed {
				q.signal()
			}
			q.mu.Unlock()
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			var zero T
			return zero, ErrClosed
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// PopBatch removes up to n items (all of them if n <= 0).
func (q *Queue[T]) PopBatch(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}
	if n <= 0 || n > q.count {
		n = q.count
	}
	out := make([]T, n)
	for i := range out {
		out[i] = q.take()
	}
	return out
}

// Close stops accepting items and wakes blocked consumers, which still
// receive whatever is queued. It reports whether this call closed the queue.
func (q *Queue[T]) Close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.closed = true
	close(q.ready)
	return true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Len      int   `json:"len"`
	Cap      int   `json:"cap"`
	Pushed   int64 `json:"pushed"`
	Popped   int64 `json:"popped"`
	Rejected int64 `json:"rejected"`
	Resizes  int   `json:"resizes"`
}

// Stats returns queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:      q.count,
		Cap:      len(q.items),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Rejected: q.rejects,
		Resizes:  q.resizes,
	}
}

// take pops the head. Caller holds mu and has checked count > 0.
func (q *Queue[T]) take() T {
	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.popped++
	return v
}

// signal wakes one consumer. Caller holds mu and the queue is open.
func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// grow doubles capacity, unwrapping the ring. Caller holds mu.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.items)*2)
	n := copy(next, q.items[q.head:])
	if n < q.count {
		copy(next[n:], q.items[:q.count-n])
	}
	q.items = next
	q.head = 0
	q.resizes++
}
