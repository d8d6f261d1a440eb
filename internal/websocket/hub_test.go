package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrove/internal/models"
)

func waitOnline(t *testing.T, h *Hub, userID uuid.UUID) {
	t.Helper()
	require.Eventually(t, func() bool { return h.IsOnline(userID) }, time.Second, 5*time.Millisecond)
}

func TestPushReachesAllUserConnections(t *testing.T) {
	h := NewHub()
	go h.Run()

	userID := uuid.New()
	first := NewClient(h, userID, nil)
	second := NewClient(h, userID, nil)
	waitOnline(t, h, userID)

	n := &models.Notification{ID: uuid.New(), UserID: userID, Type: models.NotificationMention, Title: "Mentioned"}
	h.PushNotification(n)

	for _, c := range []*Client{first, second} {
		select {
		case raw := <-c.Send:
			var env struct {
				Type    string               `json:"type"`
				Payload *models.Notification `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(raw, &env))
			assert.Equal(t, "notification", env.Type)
			assert.Equal(t, n.ID, env.Payload.ID)
		case <-time.After(time.Second):
			t.Fatal("connection never received the push")
		}
	}
}

func TestOfflineRecipientIsSkipped(t *testing.T) {
	h := NewHub()
	go h.Run()

	// Delivery to an unknown user must not panic or block.
	h.PushNotification(&models.Notification{ID: uuid.New(), UserID: uuid.New()})
	assert.False(t, h.IsOnline(uuid.New()))
}

func TestFullBufferDropsConnection(t *testing.T) {
	h := NewHub()
	go h.Run()

	userID := uuid.New()
	c := NewClient(h, userID, nil)
	waitOnline(t, h, userID)

	// Nothing drains c.Send, so pushes beyond the buffer evict the
	// connection.
	for i := 0; i < cap(c.Send)+1; i++ {
		h.PushNotification(&models.Notification{ID: uuid.New(), UserID: userID})
	}

	require.Eventually(t, func() bool { return !h.IsOnline(userID) }, time.Second, 5*time.Millisecond)

	// The hub closes the channel on removal.
	drained := 0
	for range c.Send {
		drained++
	}
	assert.Equal(t, cap(c.Send), drained)
}

func TestUnregisterRemovesOnlyThatConnection(t *testing.T) {
	h := NewHub()
	go h.Run()

	userID := uuid.New()
	first := NewClient(h, userID, nil)
	_ = NewClient(h, userID, nil)
	waitOnline(t, h, userID)

	h.unregister <- first
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients[userID]) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, h.IsOnline(userID))
}
