package events

import "sync"

// Queue is an unbounded multi-producer, single-consumer FIFO of events.
// Push never blocks. Poll and Drain return immediately whether or not
// anything is pending. Events pushed by one goroutine come out in the order
// that goroutine pushed them.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends e and wakes the consumer.
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	// Coalesced: one pending signal is enough for any number of events.
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Poll removes and returns the oldest pending event, if any.
func (q *Queue) Poll() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	e := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return e, true
}

// Drain removes and returns every pending event in order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify returns a channel that receives a value after events are pushed.
// A receive does not guarantee events are still pending.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
