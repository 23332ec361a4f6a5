package retry

import "sync"

// EventType distinguishes the two signals emitted by Execute.
type EventType string

const (
	TypeStatus  EventType = "status"
	TypeAttempt EventType = "attempt"
)

// State is carried by status events.
type State string

const (
	StateStart  State = "start"
	StateOK     State = "ok"
	StateFailed State = "failed"
)

// Event is a fire-and-forget progress signal for the presentation layer.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
}

// Publisher receives events. Publish must not block.
type Publisher interface {
	Publish(Event)
}

type discard struct{}

func (discard) Publish(Event) {}

// Discard drops every event.
var Discard Publisher = discard{}

// Broker fans events out to subscribers. Slow subscribers lose stale events
// rather than blocking Execute.
type Broker struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	lastStatus  *Event
	lastAttempt *Event
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[chan Event]struct{})}
}

func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Type {
	case TypeStatus:
		b.lastStatus = &ev
	case TypeAttempt:
		b.lastAttempt = &ev
	}
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribe returns a channel primed with the latest status and attempt.
// The caller must invoke cancel to release it.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	if b.lastStatus != nil {
		ch <- *b.lastStatus
	}
	if b.lastAttempt != nil {
		ch <- *b.lastAttempt
	}
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
