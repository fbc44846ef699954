package utils

import (
	"sync"
)

// Progress event types, mirrored by the browser's view model.
const (
	EventConnected = "connected"
	EventProgress  = "progress"
	EventComplete  = "complete"
	EventError     = "error"
)

// ProgressEvent is one update pushed to the batch's subscriber.
type ProgressEvent struct {
	Type         string `json:"type"`
	Total        int    `json:"total,omitempty"`
	Sent         int    `json:"sent,omitempty"`
	Failed       int    `json:"failed,omitempty"`
	CurrentEmail string `json:"currentEmail,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Terminal reports whether the subscriber should close its end after
// this event.
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

const subscriberBuffer = 64

// ProgressHub routes orchestrator events to browser subscribers, one
// subscriber slot per batch id. Subscribing again for the same batch
// replaces (and closes) the previous subscriber, so a second tab steals
// delivery from the first. Publishing with no subscriber drops the
// event: there is no buffering or replay across subscriptions.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[string]chan ProgressEvent
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subs: make(map[string]chan ProgressEvent),
	}
}

// Subscribe registers the caller as the batch's subscriber and returns
// the event channel. The channel is closed when a later subscriber
// replaces this one.
func (h *ProgressHub) Subscribe(batchID string) chan ProgressEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.subs[batchID]; ok {
		close(old)
	}

	ch := make(chan ProgressEvent, subscriberBuffer)
	h.subs[batchID] = ch
	return ch
}

// Unsubscribe removes the subscription if ch is still the current one.
func (h *ProgressHub) Unsubscribe(batchID string, ch chan ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.subs[batchID]; ok && current == ch {
		delete(h.subs, batchID)
	}
}

// Publish delivers the event to the batch's subscriber in publish order.
// It never blocks the orchestrator: with no subscriber, or a subscriber
// whose buffer is full, the event is dropped.
func (h *ProgressHub) Publish(batchID string, event ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[batchID]
	if !ok {
		return
	}

	// Non-blocking send under the lock so a concurrent Subscribe cannot
	// close the channel out from under us.
	select {
	case ch <- event:
	default:
	}
}
