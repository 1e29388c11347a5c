// broker/broker.go
package broker

import (
	"sync"
)

const (
	EventSessionLoaded   = "session_loaded"
	EventSessionSaved    = "session_saved"
	EventSessionDeleted  = "session_deleted"
	EventSessionsCleared = "sessions_cleared"
)

// Event tells subscribers that a session changed.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
}

// UserTopic is the topic carrying session events for one user.
func UserTopic(userID string) string {
	return "sessions_" + userID
}

type Broker struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan Event),
	}
}

func (b *Broker) Subscribe(topic string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 16)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chans, ok := b.subscribers[topic]; ok {
		for i, c := range chans {
			if c == ch {
				b.subscribers[topic] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
		if len(b.subscribers[topic]) == 0 {
			delete(b.subscribers, topic)
		}
	}
}

// Publish delivers msg to every subscriber of topic. Slow subscribers with a
// full buffer miss the event rather than block the publisher. A nil broker
// drops everything.
func (b *Broker) Publish(topic string, msg Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}
