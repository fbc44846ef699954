package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressHubDeliversInOrder(t *testing.T) {
	hub := NewProgressHub()
	ch := hub.Subscribe("batch-1")

	hub.Publish("batch-1", ProgressEvent{Type: EventProgress, Sent: 1})
	hub.Publish("batch-1", ProgressEvent{Type: EventProgress, Sent: 2})
	hub.Publish("batch-1", ProgressEvent{Type: EventComplete, Sent: 2})

	assert.Equal(t, 1, (<-ch).Sent)
	assert.Equal(t, 2, (<-ch).Sent)
	assert.Equal(t, EventComplete, (<-ch).Type)
}

func TestProgressHubPublishWithoutSubscriberDrops(t *testing.T) {
	hub := NewProgressHub()

	// Must not block or panic
	hub.Publish("nobody-listening", ProgressEvent{Type: EventProgress})
}

func TestProgressHubIsolatesBatches(t *testing.T) {
	hub := NewProgressHub()
	a := hub.Subscribe("batch-a")
	b := hub.Subscribe("batch-b")

	hub.Publish("batch-a", ProgressEvent{Type: EventProgress, Message: "for a"})

	assert.Equal(t, "for a", (<-a).Message)
	assert.Empty(t, b)
}

func TestProgressHubResubscribeClosesPrevious(t *testing.T) {
	hub := NewProgressHub()
	first := hub.Subscribe("batch-1")
	second := hub.Subscribe("batch-1")

	_, open := <-first
	assert.False(t, open, "first subscriber channel should be closed")

	hub.Publish("batch-1", ProgressEvent{Type: EventProgress, Sent: 5})
	assert.Equal(t, 5, (<-second).Sent)
}

func TestProgressHubUnsubscribeOnlyRemovesCurrent(t *testing.T) {
	hub := NewProgressHub()
	first := hub.Subscribe("batch-1")
	second := hub.Subscribe("batch-1")

	// Stale unsubscribe from the replaced channel must not evict the
	// live one
	hub.Unsubscribe("batch-1", first)
	hub.Publish("batch-1", ProgressEvent{Type: EventProgress, Sent: 3})
	require.Equal(t, 3, (<-second).Sent)

	hub.Unsubscribe("batch-1", second)
	hub.Publish("batch-1", ProgressEvent{Type: EventProgress, Sent: 4})
	assert.Empty(t, second)
}

func TestProgressEventTerminal(t *testing.T) {
	assert.True(t, ProgressEvent{Type: EventComplete}.Terminal())
	assert.True(t, ProgressEvent{Type: EventError}.Terminal())
	assert.False(t, ProgressEvent{Type: EventProgress}.Terminal())
	assert.False(t, ProgressEvent{Type: EventConnected}.Terminal())
}
