package events

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind starts losing events rather than stalling
// the run that produced them.
const subscriberBuffer = 256

// Bus fans events out to per-session subscribers. Publish never blocks.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan *Event // session id -> subscriber channels
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan *Event)}
}

// Publish delivers the event to every subscriber of its session.
// Subscribers with full buffers are skipped; zero subscribers is fine.
func (b *Bus) Publish(e *Event) {
	b.mu.RLock()
	channels := b.subs[e.SessionID]
	b.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- e:
		default:
			// Subscriber is not keeping up; drop rather than block the run
		}
	}
}

// Subscribe returns a channel of events for the session and a cancel
// function that detaches and closes it
func (b *Bus) Subscribe(sessionID string) (<-chan *Event, func()) {
	ch := make(chan *Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[sessionID] = append(b.subs[sessionID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		channels := b.subs[sessionID]
		for i, c := range channels {
			if c == ch {
				b.subs[sessionID] = append(channels[:i], channels[i+1:]...)
				close(ch)
				break
			}
		}
		if len(b.subs[sessionID]) == 0 {
			delete(b.subs, sessionID)
		}
	}
	return ch, cancel
}

// SubscriberCount reports how many subscribers a session has (for tests
// and status output)
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
