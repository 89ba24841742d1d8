package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer bounds how far a subscriber may fall behind before it
// is disconnected. Publishers never block on slow consumers.
const subscriberBuffer = 64

// Bus fans events out to any number of subscribers. Each subscriber
// receives every event published after it subscribed, in publish order.
// Delivery is best-effort: a subscriber whose buffer fills up is closed
// and removed, and reconciles via the pull-based state queries.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	logger *logrus.Logger
}

// NewBus creates an event bus with no subscribers.
func NewBus(logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a new subscriber. The returned channel carries
// events until cancel is called or the subscriber falls too far behind,
// at which point the channel is closed. cancel is idempotent.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish wraps the payload in a timestamped event and delivers it to
// every current subscriber. Never blocks.
func (b *Bus) Publish(payload Payload) {
	event := New(payload)

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		select {
		case sub <- event:
		default:
			// Subscriber buffer is full; disconnect it rather than
			// stalling the publisher.
			delete(b.subs, id)
			close(sub)
			b.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"event_type": event.Type,
			}).Warn("Dropping slow event subscriber")
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
