package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vpinscope.com/internal/vpinmetrics"
	"vpinscope.com/pkg/logger"
	"vpinscope.com/pkg/safe"
)

// Subscriber receives events in publish order. Send may block on network
// I/O; it runs on the subscriber's own pump goroutine, never on the
// ingestion path. Returning an error unregisters the subscriber.
type Subscriber interface {
	Send(ctx context.Context, ev Event) error
}

const (
	defaultQueueSize  = 256
	defaultBackfill   = 100
	defaultHistoryCap = 500
)

// Bus fans events out to concurrent subscribers, best-effort. Each
// subscriber gets a pump goroutine with a bounded FIFO queue, so one slow
// or broken consumer can neither stall publishing nor starve the others.
//
// A new subscriber is sent a backfill of the most recent readings
// strictly before any live event: registration and the history append
// share the bus mutex, and the pump drains the backfill before touching
// its live queue, so there is no duplicate and no gap.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]*pump
	history []Event // reading events only, bounded

	queueSize   int
	backfillMax int
	historyCap  int
}

type pump struct {
	id     string
	sub    Subscriber
	ch     chan Event
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBus() *Bus {
	return &Bus{
		subs:        make(map[string]*pump, 16),
		queueSize:   defaultQueueSize,
		backfillMax: defaultBackfill,
		historyCap:  defaultHistoryCap,
	}
}

// Subscribe registers s and returns its id. The backfill snapshot is
// taken under the same lock that registers the pump.
func (b *Bus) Subscribe(s Subscriber) string {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	p := &pump{id: id, sub: s, ch: make(chan Event, b.queueSize), ctx: ctx, cancel: cancel}

	b.mu.Lock()
	n := len(b.history)
	if n > b.backfillMax {
		n = b.backfillMax
	}
	backfill := make([]Event, n)
	copy(backfill, b.history[len(b.history)-n:])
	b.subs[id] = p
	b.mu.Unlock()

	vpinmetrics.Subscribers.Inc()
	safe.Go(func() { b.run(p, backfill) })
	return id
}

// Unsubscribe removes the subscriber; a no-op for unknown ids.
func (b *Bus) Unsubscribe(id string) {
	b.remove(id, "closed")
}

func (b *Bus) remove(id, why string) {
	b.mu.Lock()
	p, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	p.cancel()
	vpinmetrics.Subscribers.Dec()
	vpinmetrics.SubscriberDropsTotal.WithLabelValues(why).Inc()
}

func (b *Bus) run(p *pump, backfill []Event) {
	for _, ev := range backfill {
		if err := p.sub.Send(p.ctx, ev); err != nil {
			b.dropOnError(p, err)
			return
		}
	}
	for {
		select {
		case <-p.ctx.Done():
			return
		case ev := <-p.ch:
			if err := p.sub.Send(p.ctx, ev); err != nil {
				b.dropOnError(p, err)
				return
			}
		}
	}
}

func (b *Bus) dropOnError(p *pump, err error) {
	logger.Warn(p.ctx, "subscriber send failed, unregistering",
		zap.String("subscriber", p.id),
		zap.Error(err),
	)
	b.remove(p.id, "send_error")
}

// Publish enqueues ev to a snapshot of the subscriber set taken at call
// time. It never blocks: a subscriber whose queue is full is considered
// broken and unregistered. Reading events are appended to the bounded
// backfill history under the same lock as the snapshot.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	if ev.Type == EventReading {
		b.history = append(b.history, ev)
		if len(b.history) > b.historyCap {
			b.history = b.history[1:]
		}
	}
	snapshot := make([]*pump, 0, len(b.subs))
	for _, p := range b.subs {
		snapshot = append(snapshot, p)
	}
	b.mu.Unlock()

	for _, p := range snapshot {
		select {
		case p.ch <- ev:
		default:
			b.remove(p.id, "queue_full")
		}
	}
}

// RecentReadings returns up to limit reading payloads, oldest first.
// limit<=0 means all retained.
func (b *Bus) RecentReadings(limit int) []*ReadingPayload {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*ReadingPayload, 0, n)
	for _, ev := range b.history[len(b.history)-n:] {
		if rp, ok := ev.Payload.(*ReadingPayload); ok {
			out = append(out, rp)
		}
	}
	return out
}

// ResetHistory clears the backfill history. Called on a system reset so
// fresh subscribers do not replay pre-reset readings.
func (b *Bus) ResetHistory() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}

func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
