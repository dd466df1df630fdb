package peerpump

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultQueueCapacity is the number of outbound messages a connection
// buffers before producers block.
const DefaultQueueCapacity = 32

var (
	// ErrQueueClosed is returned when the receiving side of a queue is gone.
	ErrQueueClosed = errors.New("queue closed")

	// ErrBufferFull is returned when the send buffer is full and cannot accept more messages.
	// This error indicates backpressure - the receiver is not consuming messages fast enough.
	ErrBufferFull = errors.New("send buffer full")
)

// Queue is a bounded FIFO of outbound messages between producers and the
// write loop of a single connection.
//
// Any number of goroutines may send. Exactly one consumer, the write loop,
// receives; when it is done it calls Close and every pending and future
// Send fails with ErrQueueClosed.
type Queue struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

// NewQueue returns a queue holding at most capacity messages.
// A non-positive capacity selects DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ch:   make(chan Message, capacity),
		done: make(chan struct{}),
	}
}

// Send enqueues msg, blocking while the queue is full.
func (q *Queue) Send(ctx context.Context, msg Message) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues msg without blocking.
func (q *Queue) TrySend(msg Message) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendTimeout enqueues msg, waiting at most timeout for space.
func (q *Queue) SendTimeout(msg Message, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-timer.C:
		return ErrBufferFull
	}
}

// Receive dequeues the oldest message, blocking while the queue is empty.
func (q *Queue) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-q.done:
		return Message{}, ErrQueueClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Close marks the receiving side as gone. Safe to call multiple times.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
	})
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
