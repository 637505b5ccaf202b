// Package eventbus fans progress events out to in-process subscribers and
// relays them onto the message bus.
package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dukex/planflow/pkg/models"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

const allPlans = "*"

// Subscription is a bounded queue of events for one subscriber. When the
// queue is full the oldest event is dropped to make room.
type Subscription struct {
	// C delivers events in the order they were published. It is closed
	// when the subscription ends.
	C <-chan models.ProgressEvent

	id          uint64
	planID      string
	ch          chan models.ProgressEvent
	broadcaster *Broadcaster

	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

// PlanID returns the plan the subscription listens to, or "*" for all plans.
func (s *Subscription) PlanID() string {
	return s.planID
}

// Dropped returns how many events were discarded for this subscriber.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.broadcaster.Unsubscribe(s)
}

// deliver never blocks. Holding mu keeps concurrent publishers from
// interleaving the drop-oldest sequence and protects against sends on a
// closed channel.
func (s *Subscription) deliver(event models.ProgressEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}

	select {
	case s.ch <- event:
		return true
	default:
	}

	select {
	case <-s.ch:
	default:
	}

	s.dropped.Add(1)

	select {
	case s.ch <- event:
	default:
	}

	return false
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}

// Broadcaster delivers each published event to the subscribers of its plan
// and to every all-plans subscriber. Publish never blocks on a subscriber.
type Broadcaster struct {
	logger     *slog.Logger
	bufferSize int

	mu          sync.RWMutex
	nextID      uint64
	subscribers map[string]map[uint64]*Subscription
	closed      bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithBufferSize sets the per-subscriber queue length.
func WithBufferSize(size int) Option {
	return func(b *Broadcaster) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

func NewBroadcaster(logger *slog.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		logger:      logger.With("module", "broadcaster"),
		bufferSize:  DefaultBufferSize,
		subscribers: make(map[string]map[uint64]*Subscription),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers interest in the events of one plan.
func (b *Broadcaster) Subscribe(planID string) *Subscription {
	return b.subscribe(planID)
}

// SubscribeAll registers interest in the events of every plan.
func (b *Broadcaster) SubscribeAll() *Subscription {
	return b.subscribe(allPlans)
}

func (b *Broadcaster) subscribe(key string) *Subscription {
	ch := make(chan models.ProgressEvent, b.bufferSize)
	sub := &Subscription{
		C:           ch,
		planID:      key,
		ch:          ch,
		broadcaster: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.close()

		return sub
	}

	b.nextID++
	sub.id = b.nextID

	if b.subscribers[key] == nil {
		b.subscribers[key] = make(map[uint64]*Subscription)
	}

	b.subscribers[key][sub.id] = sub

	b.logger.Debug("Subscriber added", "plan_id", key, "subscriber_id", sub.id)

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()

	if subs, ok := b.subscribers[sub.planID]; ok {
		delete(subs, sub.id)

		if len(subs) == 0 {
			delete(b.subscribers, sub.planID)
		}
	}

	b.mu.Unlock()

	sub.close()
}

// Publish delivers event to the current subscribers. The subscriber list is
// copied before delivery so subscribing or unsubscribing never waits on it.
func (b *Broadcaster) Publish(event models.ProgressEvent) {
	b.mu.RLock()

	targets := make([]*Subscription, 0, len(b.subscribers[event.PlanID])+len(b.subscribers[allPlans]))
	for _, sub := range b.subscribers[event.PlanID] {
		targets = append(targets, sub)
	}

	for _, sub := range b.subscribers[allPlans] {
		targets = append(targets, sub)
	}

	b.mu.RUnlock()

	b.published.Add(1)

	for _, sub := range targets {
		if !sub.deliver(event) {
			b.dropped.Add(1)
			b.logger.Warn("Subscriber queue full, dropped oldest event",
				"plan_id", event.PlanID,
				"subscriber_id", sub.id,
				"dropped", sub.Dropped())
		}
	}
}

// Subscribers returns the number of subscribers of a plan, not counting
// all-plans subscribers.
func (b *Broadcaster) Subscribers(planID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers[planID])
}

// Stats reports published and dropped event counts.
func (b *Broadcaster) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// Close ends every subscription. Later subscriptions are returned closed.
func (b *Broadcaster) Close() {
	b.mu.Lock()

	b.closed = true
	subs := make([]*Subscription, 0)

	for _, group := range b.subscribers {
		for _, sub := range group {
			subs = append(subs, sub)
		}
	}

	b.subscribers = make(map[string]map[uint64]*Subscription)

	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
