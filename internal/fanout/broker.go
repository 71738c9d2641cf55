package fanout

import (
	"log"
	"sync"

	"github.com/ymatsuda/bookmates-backend/internal/model"
)

const EventInsert = "INSERT"

// Event is what subscribers receive: one entry in the flat stream of
// message inserts. Subscribers filter locally by sender/receiver uid.
type Event struct {
	Type    string        `json:"type"`
	Message model.Message `json:"message"`
}

// Subscription is one consumer's view of the stream. The broker never
// blocks on a consumer: when the buffer fills, the subscription is
// dropped and done is closed. A dropped consumer must resubscribe and
// refetch (history or a recount) to close the gap - there is no replay.
type Subscription struct {
	name string
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// C delivers events in publish order.
func (s *Subscription) C() <-chan Event { return s.ch }

// Done is closed when the subscription is dropped or cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Broker is a topic-free in-process fan-out of message-insert events.
// A single dispatch loop serializes delivery, so per-sender insertion
// order is preserved for every subscriber that keeps up.
type Broker struct {
	register   chan *Subscription
	unregister chan *Subscription
	publish    chan Event
	quit       chan struct{}
}

func NewBroker() *Broker {
	return &Broker{
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		publish:    make(chan Event, 256),
		quit:       make(chan struct{}),
	}
}

// Run starts the dispatch loop. Call this in a goroutine.
func (b *Broker) Run() {
	subs := make(map[*Subscription]struct{})
	for {
		select {
		case sub := <-b.register:
			subs[sub] = struct{}{}
			log.Printf("fanout: %s subscribed (%d total)", sub.name, len(subs))

		case sub := <-b.unregister:
			if _, ok := subs[sub]; ok {
				delete(subs, sub)
				sub.close()
				log.Printf("fanout: %s unsubscribed (%d total)", sub.name, len(subs))
			}

		case evt := <-b.publish:
			for sub := range subs {
				select {
				case sub.ch <- evt:
				default:
					// Consumer buffer full: drop it rather than
					// stalling every other subscriber.
					delete(subs, sub)
					sub.close()
					log.Printf("fanout: %s dropped (slow consumer)", sub.name)
				}
			}

		case <-b.quit:
			for sub := range subs {
				sub.close()
			}
			return
		}
	}
}

// Stop terminates the dispatch loop and closes every subscription.
func (b *Broker) Stop() {
	close(b.quit)
}

// Subscribe registers a consumer. name is used only for logging.
func (b *Broker) Subscribe(name string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &Subscription{
		name: name,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	select {
	case b.register <- sub:
	case <-b.quit:
		sub.close()
	}
	return sub
}

// Unsubscribe removes the consumer and closes its Done channel.
func (b *Broker) Unsubscribe(sub *Subscription) {
	select {
	case b.unregister <- sub:
	case <-b.quit:
	}
}

// Publish enqueues an insert event for delivery to all subscribers.
// Callers publish only after the message is durably stored.
func (b *Broker) Publish(msg model.Message) {
	select {
	case b.publish <- Event{Type: EventInsert, Message: msg}:
	case <-b.quit:
	}
}
