package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, userID uint) *Client {
	return &Client{
		Hub:           hub,
		UserID:        userID,
		Send:          make(chan []byte, 8),
		Topics:        make(map[string]bool),
		LastResetTime: time.Now(),
	}
}

func TestHub_RegisterAndPublish(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, 1)
	hub.Register(client)

	require.Eventually(t, func() bool {
		return hub.IsUserOnline(1)
	}, time.Second, 10*time.Millisecond)

	hub.Subscribe(1, TopicProducts)
	assert.Equal(t, 1, hub.SubscriberCount(TopicProducts))

	require.NoError(t, hub.Publish(TopicProducts, EventProductCreated, map[string]uint{"id": 7}))

	select {
	case msg := <-client.Send:
		assert.Contains(t, string(msg), EventProductCreated)
	case <-time.After(time.Second):
		t.Fatal("subscribed client never received the event")
	}
}

func TestHub_UnregisterTwiceKeepsOtherSessions(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Same user watching from two devices
	phone := newTestClient(hub, 1)
	laptop := newTestClient(hub, 1)
	hub.Register(phone)
	hub.Register(laptop)

	require.Eventually(t, func() bool {
		return hub.IsUserOnline(1)
	}, time.Second, 10*time.Millisecond)

	hub.Subscribe(1, TopicStock)

	// The buffer-full drop path and the read pump shutdown can both
	// request removal of the same session.
	hub.Unregister(phone)
	hub.Unregister(phone)

	require.Eventually(t, func() bool {
		select {
		case _, open := <-phone.Send:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "removed session's channel should be closed")

	// The surviving session still gets events
	require.NoError(t, hub.Publish(TopicStock, EventStockChanged, map[string]uint{"product_id": 3, "stock": 4}))

	select {
	case msg := <-laptop.Send:
		assert.Contains(t, string(msg), EventStockChanged)
	case <-time.After(time.Second):
		t.Fatal("surviving session never received the event")
	}

	assert.True(t, hub.IsUserOnline(1))
}

func TestHub_LastSessionDropsSubscriptions(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, 2)
	hub.Register(client)

	require.Eventually(t, func() bool {
		return hub.IsUserOnline(2)
	}, time.Second, 10*time.Millisecond)

	hub.Subscribe(2, TopicCategories)
	require.Equal(t, 1, hub.SubscriberCount(TopicCategories))

	hub.Unregister(client)

	require.Eventually(t, func() bool {
		return !hub.IsUserOnline(2)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.SubscriberCount(TopicCategories))
}
