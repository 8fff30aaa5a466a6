package cart

import (
	"context"
	"sync"
)

// syncOp is one remote cart call. run resolves the line state it needs when
// it executes, not when it is queued.
type syncOp struct {
	name string
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// syncQueue runs ops one at a time in the order they were pushed.
type syncQueue struct {
	exec func(op syncOp) error

	mu      sync.Mutex
	pending []syncOp
	running bool
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

func newSyncQueue(exec func(op syncOp) error) *syncQueue {
	q := &syncQueue{
		exec:    exec,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

// push appends op. It reports false once the queue is closed.
func (q *syncQueue) push(op syncOp) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, op)
	q.mu.Unlock()

	q.signal()
	return true
}

// do pushes op and waits for it to finish.
func (q *syncQueue) do(ctx context.Context, op syncOp) error {
	op.done = make(chan error, 1)
	if !q.push(op) {
		return errQueueClosed
	}
	select {
	case err := <-op.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *syncQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *syncQueue) loop() {
	defer close(q.stopped)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		op := q.pending[0]
		q.pending[0] = syncOp{}
		q.pending = q.pending[1:]
		q.running = true
		q.mu.Unlock()

		err := q.exec(op)
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		if op.done != nil {
			op.done <- err
		}
	}
}

// close stops accepting ops and waits until queued ones have run.
func (q *syncQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
	<-q.stopped
}

// size counts queued ops plus the one running.
func (q *syncQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.running {
		n++
	}
	return n
}
