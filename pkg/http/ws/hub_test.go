package ws

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishOnlyToSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	weekly := NewConnection(nil, zerolog.Nop())
	monthly := NewConnection(nil, zerolog.Nop())
	hub.Register(weekly)
	hub.Register(monthly)
	hub.Subscribe("weekly", weekly.ID)
	hub.Subscribe("monthly", monthly.ID)

	msg, err := NewMessage(TypeLeaderboardUpdate, LeaderboardUpdatePayload{Window: "weekly"})
	require.NoError(t, err)

	assert.Equal(t, 1, hub.Publish("weekly", msg))
	assert.Len(t, weekly.sendCh, 1)
	assert.Len(t, monthly.sendCh, 0)
}

func TestHub_UnregisterDropsSubscriptions(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := NewConnection(nil, zerolog.Nop())
	hub.Register(conn)
	hub.Subscribe("all_time", conn.ID)

	hub.Unregister(conn.ID)

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, 0, hub.Publish("all_time", Message{Type: TypePong}))
	assert.ErrorIs(t, conn.Send(Message{Type: TypePong}), ErrConnectionClosed)
}

func TestConnection_QueueFull(t *testing.T) {
	conn := NewConnection(nil, zerolog.Nop())
	for i := 0; i < sendQueueSize; i++ {
		require.NoError(t, conn.Send(Message{Type: TypePong}))
	}
	assert.ErrorIs(t, conn.Send(Message{Type: TypePong}), ErrSendQueueFull)
}
