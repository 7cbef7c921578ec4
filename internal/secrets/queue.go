// ABOUTME: Serialized worker queue in front of a secret Store
// ABOUTME: One goroutine runs all operations FIFO so the UI thread never blocks on keyring IPC

package secrets

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueClosed is returned by Do once Close has been called.
var ErrQueueClosed = errors.New("secret store queue closed")

type job struct {
	op   string
	fn   func(Store) error
	done chan error
}

// Queue serializes all access to a Store on a single worker goroutine.
// Operations for the same account therefore apply in submission order, and
// callers never wait on platform IPC unless they ask to.
type Queue struct {
	store Store

	mu     sync.Mutex
	jobs   chan job
	closed bool
	done   chan struct{}
}

func NewQueue(store Store) *Queue {
	q := &Queue{
		store: store,
		jobs:  make(chan job, 128),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.jobs {
		err := j.fn(q.store)
		if j.done != nil {
			j.done <- err
			continue
		}
		if err != nil {
			slog.Error("Secret store operation failed", "op", j.op, "backend", q.store.Backend(), "error", err)
		}
	}
}

// Submit enqueues a fire-and-forget operation. Failures are logged by the
// worker with the given op name; callers that need the error use Do.
func (q *Queue) Submit(op string, fn func(Store) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		slog.Warn("Secret store queue closed, dropping operation", "op", op)
		return
	}
	q.jobs <- job{op: op, fn: fn}
}

// Do enqueues an operation and blocks until the worker has run it, returning
// its error. Must not be called from inside another queued operation.
func (q *Queue) Do(fn func(Store) error) error {
	done := make(chan error, 1)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.jobs <- job{fn: fn, done: done}
	q.mu.Unlock()
	return <-done
}

// Close stops accepting work and waits for every queued operation to finish.
// Callers must drain the queue before process exit or trailing writes are
// lost.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	<-q.done
}

// Available reports whether the underlying backend can be used.
func (q *Queue) Available() bool { return q.store.Available() }

// Backend names the underlying backend.
func (q *Queue) Backend() string { return q.store.Backend() }
