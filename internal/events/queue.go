package events

import "sync"

// Queue buffers events for one consumer goroutine. It never drops an
// event, except that a coalesced kind keeps only its latest pending one.
// Push never blocks, so it is safe to call under a lock.
type Queue struct {
	mu       sync.Mutex
	pending  []Event
	coalesce map[Kind]bool
	ready    chan struct{}
	closed   bool
}

// NewQueue creates a queue that coalesces the given kinds.
func NewQueue(coalesce ...Kind) *Queue {
	q := &Queue{
		coalesce: make(map[Kind]bool, len(coalesce)),
		ready:    make(chan struct{}, 1),
	}
	for _, k := range coalesce {
		q.coalesce[k] = true
	}
	return q
}

// Emit implements Sink.
func (q *Queue) Emit(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if q.coalesce[ev.Kind] {
		for i, p := range q.pending {
			if p.Kind == ev.Kind {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
	}
	q.pending = append(q.pending, ev)

	select {
	case q.ready <- struct{}{}:
	default:
	}
	q.mu.Unlock()
}

// Ready is signalled after Emit and closed by Close.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Drain returns and clears the pending events in emit order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Run delivers events to fn until the queue is closed and drained.
func (q *Queue) Run(fn func(Event)) {
	for range q.ready {
		for _, ev := range q.Drain() {
			fn(ev)
		}
	}
	for _, ev := range q.Drain() {
		fn(ev)
	}
}

// Close stops Run once the pending events are delivered. Later events
// are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}
