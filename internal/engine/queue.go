package engine

import "sync"

// pending is a queued request and where to deliver its result.
type pending struct {
	req   Request
	reply chan Result // buffered, size 1
}

func newPending(req Request) pending {
	return pending{req: req, reply: make(chan Result, 1)}
}

// requestQueue is a thread-safe FIFO queue of requests.
//
// Callers enqueue from any goroutine; the request loop dequeues. The queue
// uses a channel for signaling so the loop can wait on it alongside its
// ticker and context.
type requestQueue struct {
	mu      sync.Mutex
	entries []pending
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		entries: make([]pending, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds p to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(p pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.entries = append(q.entries, p)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front entry without blocking.
// Returns (pending{}, false) if the queue is empty.
func (q *requestQueue) TryDequeue() (pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return pending{}, false
	}

	p := q.entries[0]
	// Release the reply channel held by the backing array.
	q.entries[0] = pending{}

	if len(q.entries) == 1 {
		q.entries = q.entries[:0]
	} else {
		q.entries = q.entries[1:]
	}

	return p, true
}

// Wait returns a channel that signals when entries may be available.
// The channel is closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close stops accepting entries and returns those still queued so the
// caller can fail them. After Close, every receive from Wait reports a
// closed channel, even if a signal was buffered.
func (q *requestQueue) Close() []pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true

	// Drop a pending signal so waiters observe the close on their next receive.
	select {
	case <-q.signal:
	default:
	}
	close(q.signal)

	rest := q.entries
	q.entries = nil
	return rest
}
