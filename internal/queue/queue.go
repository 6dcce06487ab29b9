// Package queue provides an unbounded FIFO mailbox between goroutines.
//
// Producers never block on Push; a single forwarding goroutine drains the
// backlog into Out in arrival order.
package queue

import "sync"

// Unbounded is a channel with an unlimited buffer.
type Unbounded[T any] struct {
	mu      sync.Mutex
	backlog []T
	signal  chan struct{}
	out     chan T
	done    chan struct{}
	once    sync.Once
}

// New starts the forwarding goroutine. Close must be called to stop it.
func New[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
	}
	go q.forward()
	return q
}

// Push enqueues v. It never blocks. Pushes after Close are discarded.
func (q *Unbounded[T]) Push(v T) {
	q.mu.Lock()
	select {
	case <-q.done:
		q.mu.Unlock()
		return
	default:
	}
	q.backlog = append(q.backlog, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Out is closed after Close once the forwarder exits. Items still queued at
// Close are dropped.
func (q *Unbounded[T]) Out() <-chan T {
	return q.out
}

// Len returns the number of items not yet received from Out.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Close stops the forwarder. Safe to call more than once.
func (q *Unbounded[T]) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		close(q.done)
		q.mu.Unlock()
	})
}

func (q *Unbounded[T]) forward() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.backlog) == 0 {
			q.mu.Unlock()
			select {
			case <-q.signal:
				continue
			case <-q.done:
				return
			}
		}
		next := q.backlog[0]
		var zero T
		q.backlog[0] = zero
		q.backlog = q.backlog[1:]
		q.mu.Unlock()

		select {
		case q.out <- next:
		case <-q.done:
			return
		}
	}
}
