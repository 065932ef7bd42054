package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagrammer/internal/domain/entity"
)

func TestHubSubscribeUnsubscribe(t *testing.T) {
	h := NewHub()

	ch := h.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, h.Len())

	h.Unsubscribe(ch)
	assert.Equal(t, 0, h.Len())

	_, open := <-ch
	assert.False(t, open)

	// second unsubscribe must not panic on a closed channel
	h.Unsubscribe(ch)
}

func TestHubPublishMultipleClients(t *testing.T) {
	h := NewHub()
	ch1 := h.Subscribe()
	ch2 := h.Subscribe()
	defer h.Unsubscribe(ch1)
	defer h.Unsubscribe(ch2)

	h.Publish(entity.StatusEvent{ID: 42, Prompt: "web app", Status: entity.RequestStatusCompleted})

	for i, ch := range []chan entity.StatusEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, int64(42), ev.ID)
			assert.Equal(t, entity.RequestStatusCompleted, ev.Status)
		case <-time.After(time.Second):
			t.Fatalf("client %d timed out", i)
		}
	}
}

func TestHubPublishNoClients(t *testing.T) {
	NewHub().Publish(entity.StatusEvent{ID: 1})
}

func TestHubPublishDropsWhenFull(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	for i := 0; i < clientBuffer+5; i++ {
		h.Publish(entity.StatusEvent{ID: int64(i)})
	}
	assert.Len(t, ch, clientBuffer)
}
