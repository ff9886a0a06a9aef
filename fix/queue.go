package fix

import (
	"sync"
	"time"
)

// MessageQueue is a thread-safe, cancellable FIFO bridging the
// network event loop (producer) to a test thread (consumer). It is
// the synchronous-over-asynchronous bridge: a test
// thread blocks in WaitForMessage while network I/O proceeds
// elsewhere.
type MessageQueue struct {
	name string

	mu        sync.Mutex
	cond      *sync.Cond
	items     []*Message
	cancelled bool
}

// NewMessageQueue constructs an empty, not-yet-cancelled queue.
func NewMessageQueue(name string) *MessageQueue {
	q := &MessageQueue{name: name}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add enqueues message without blocking and wakes any waiter.
func (q *MessageQueue) Add(message *Message) {
	q.mu.Lock()
	q.items = append(q.items, message)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Cancel unblocks every current and future WaitForMessage call with
// InterruptedError. Idempotent.
func (q *MessageQueue) Cancel() {
	q.mu.Lock()
	q.cancelled = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// IsCancelled reports whether Cancel has been called.
func (q *MessageQueue) IsCancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}

// WaitForMessage blocks the caller until either a message becomes
// available (returned), the cancellation flag is set
// (InterruptedError), or timeout elapses (TimeoutError(title)).
//
// Blocks on a condition variable woken by Add/Cancel/the deadline
// timer, so the timeout is observed with sub-second resolution.
func (q *MessageQueue) WaitForMessage(title string, timeout time.Duration) (*Message, error) {
	deadline := time.Now().Add(timeout)

	timer := time.AfterFunc(timeout, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer timer.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.cancelled {
			return nil, &InterruptedError{Msg: "test cancelled"}
		}
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			return msg, nil
		}
		if !time.Now().Before(deadline) {
			return nil, &TimeoutError{Title: title}
		}
		q.cond.Wait()
	}
}

// Len reports the number of messages currently queued.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
