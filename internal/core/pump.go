package core

import (
	"context"
	"sync"
	"time"

	"github.com/vrsandeep/webpress/internal/events"
	"github.com/vrsandeep/webpress/internal/models"
)

const defaultHistory = 1024

// Broadcaster receives every drained event. *websocket.Hub implements it.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Pump is the single consumer of the event queue. It drains the queue when
// notified or on every tick, numbers each event and keeps a bounded history
// so HTTP pollers can catch up with Since.
type Pump struct {
	queue    *events.Queue
	out      Broadcaster
	interval time.Duration

	mu       sync.Mutex
	history  []models.ProgressUpdate
	capacity int
	nextSeq  int64
}

// NewPump creates a pump. out may be nil when nobody listens live.
func NewPump(queue *events.Queue, out Broadcaster, interval time.Duration, capacity int) *Pump {
	if capacity <= 0 {
		capacity = defaultHistory
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Pump{queue: queue, out: out, interval: interval, capacity: capacity}
}

// Run drains the queue until ctx is done, then flushes whatever is left.
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Flush()
			return
		case <-p.queue.Notify():
			p.Flush()
		case <-ticker.C:
			p.Flush()
		}
	}
}

// Flush drains every pending event, records it and forwards it. It returns
// the number of events handled.
func (p *Pump) Flush() int {
	evs := p.queue.Drain()
	if len(evs) == 0 {
		return 0
	}

	updates := make([]models.ProgressUpdate, len(evs))
	p.mu.Lock()
	for i, e := range evs {
		p.nextSeq++
		u := events.ToUpdate(e)
		u.Seq = p.nextSeq
		updates[i] = u
		if len(p.history) == p.capacity {
			copy(p.history, p.history[1:])
			p.history = p.history[:p.capacity-1]
		}
		p.history = append(p.history, u)
	}
	p.mu.Unlock()

	if p.out != nil {
		for _, u := range updates {
			p.out.BroadcastJSON(u)
		}
	}
	return len(updates)
}

// Since returns the recorded events with a sequence number greater than seq
// and the sequence number to pass next time.
func (p *Pump) Since(seq int64) ([]models.ProgressUpdate, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, u := range p.history {
		if u.Seq > seq {
			out := make([]models.ProgressUpdate, len(p.history)-i)
			copy(out, p.history[i:])
			return out, p.nextSeq
		}
	}
	return nil, p.nextSeq
}
