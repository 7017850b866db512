package reader

import (
	"sync"

	"github.com/seantiz/asyncread/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Readings are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Broker fans fulfilled readings out to subscribers. It is safe for concurrent
// use.
//
// Once closed, the broker stays closed so that late subscribers (those
// subscribing after the worker exits) receive a closed channel instead of
// blocking forever.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan model.Reading
	nextID int
	closed bool
}

// NewBroker creates a new broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[int]chan model.Reading),
	}
}

// Subscribe returns a channel that receives fulfilled readings and an
// unsubscribe function. If the broker is already closed, the returned channel
// is immediately closed.
func (b *Broker) Subscribe() (<-chan model.Reading, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Reading, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish sends a reading to all subscribers. Readings are dropped for
// subscribers whose buffers are full.
func (b *Broker) Publish(r model.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- r:
		default:
			// Drop for slow subscribers so the worker never blocks here.
		}
	}
}

// Close signals that no more readings will be published. All subscriber
// channels are closed and future Subscribe calls return a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
