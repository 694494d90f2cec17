// Package events provides a fan-out broadcaster for media change
// notifications delivered to the admin UI over SSE.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types.
const (
	EventUpload = "upload"
	EventDelete = "delete"
	EventRename = "rename"
	EventFolder = "folder"
)

// Event describes one change to the media library.
type Event struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	Size      int64  `json:"size,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster fans events out to subscribers. Slow consumers drop events
// rather than block publishers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber channel.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Count returns the number of active subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers event to every subscriber that has buffer room.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up; drop.
		}
	}
}

// MarshalEvent serializes an event for the SSE data field.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
