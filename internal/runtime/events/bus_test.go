package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
)

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	got := make(chan []byte, 1)
	cancel, err := bus.Subscribe(context.Background(), "companion.document.download.response", func(payload []byte) {
		got <- payload
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bus.Publish("companion.document.download.response", map[string]any{
		"id":      "dl-1",
		"success": true,
	}))

	select {
	case payload := <-got:
		var decoded map[string]any
		require.NoError(t, jsoncodec.Unmarshal(payload, &decoded))
		assert.Equal(t, "dl-1", decoded["id"])
		assert.Equal(t, true, decoded["success"])
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the payload")
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	got := make(chan []byte, 1)
	cancel, err := bus.Subscribe(context.Background(), "companion.document.print.response", func(payload []byte) {
		got <- payload
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bus.Publish("companion.document.download.response", "wrong topic"))

	select {
	case <-got:
		t.Fatal("payload leaked across topics")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	got := make(chan []byte, 4)
	cancel, err := bus.Subscribe(context.Background(), "companion.topic", func(payload []byte) {
		got <- payload
	})
	require.NoError(t, err)
	cancel()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bus.Publish("companion.topic", "after cancel"))

	select {
	case <-got:
		t.Fatal("cancelled subscriber still received a payload")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(nil)
	require.NoError(t, bus.Close())

	assert.NoError(t, bus.Publish("companion.topic", "ignored"))
	assert.NoError(t, bus.Close())
}
