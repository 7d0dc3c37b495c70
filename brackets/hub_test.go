package brackets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastToRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	room := TournamentRoom(7)
	subscriber := NewClient(hub, nil, room)
	other := NewClient(hub, nil, TournamentRoom(8))
	require.True(t, hub.Join(subscriber))
	require.True(t, hub.Join(other))
	assert.Eventually(t, func() bool { return hub.RoomSize(room) == 1 }, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, subscriber.ID)

	hub.BroadcastToRoom(room, NewMessage(MessageMatchUpdated, 7, map[string]int{"match_id": 3}))

	select {
	case raw := <-subscriber.Send:
		var msg struct {
			Type    string         `json:"type"`
			RoomID  string         `json:"room_id"`
			Payload map[string]int `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, MessageMatchUpdated, msg.Type)
		assert.Equal(t, "tournament-7", msg.RoomID)
		assert.Equal(t, 3, msg.Payload["match_id"])
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
	assert.Empty(t, other.Send)

	hub.Leave(subscriber)
	assert.Eventually(t, func() bool { return hub.RoomSize(room) == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-subscriber.Send
	assert.False(t, open)

	// broadcasting to an empty room is a no-op
	hub.BroadcastToRoom(room, NewMessage(MessageStandingsUpdated, 7, nil))
}

func TestHubStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := NewClient(hub, nil, TournamentRoom(1))
	require.True(t, hub.Join(client))
	cancel()
	<-stopped

	_, open := <-client.Send
	assert.False(t, open)
	assert.False(t, hub.Join(NewClient(hub, nil, TournamentRoom(1))))
	hub.Leave(client)
}
