package engine

import (
	"context"
	"sync"
)

// Session event types.
const (
	EventChanged    = "changed"
	EventSaved      = "saved"
	EventKeyChanged = "key_changed"
	EventMigrated   = "migrated"
	EventPrompt     = "prompt"
	EventResumed    = "resumed"
	EventFresh      = "fresh"
	EventValidated  = "validated"
	EventScored     = "scored"
	EventCelebrate  = "celebrate"
	EventSubmitted  = "submitted"
)

// Event is one session notification.
type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub fans events out to subscribers.
//
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewHub creates a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Publish delivers evt to every subscriber with room in its buffer.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel receiving events until ctx is done, after
// which the channel is closed.
func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}
