package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *RedisBus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisBus(rdb)
}

func TestRedisBus_DeliversToEachRecipient(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	subA, err := bus.Subscribe(ctx, alice)
	require.NoError(t, err)
	defer subA.Close()
	subC, err := bus.Subscribe(ctx, carol)
	require.NoError(t, err)
	defer subC.Close()

	roomID := uuid.New()
	require.NoError(t, bus.Publish(ctx, RoomEvent{
		Type:     ParticipantJoined,
		RoomID:   roomID,
		RoomCode: "ABC123",
		ChildID:  &bob,
		At:       time.Now().UTC(),
		To:       []uuid.UUID{alice, alice, bob},
	}))

	msg, err := subA.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, Channel(alice), msg.Channel)

	var got RoomEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, ParticipantJoined, got.Type)
	assert.Equal(t, roomID, got.RoomID)
	require.NotNil(t, got.ChildID)
	assert.Equal(t, bob, *got.ChildID)

	// carol was not a recipient
	short, cancelShort := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancelShort()
	_, err = subC.ReceiveMessage(short)
	assert.Error(t, err)
}

func TestRedisBus_NoRecipients(t *testing.T) {
	bus := newBus(t)
	assert.NoError(t, bus.Publish(context.Background(), RoomEvent{Type: RoomClosed}))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), RoomEvent{Type: RoomCreated}))
}
