package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisBus publishes events on per-child Redis channels.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

// Publish sends ev to every recipient in one pipeline.
func (b *RedisBus) Publish(ctx context.Context, ev RoomEvent) error {
	if len(ev.To) == 0 {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	pipe := b.rdb.Pipeline()
	seen := make(map[uuid.UUID]bool, len(ev.To))
	for _, id := range ev.To {
		if seen[id] {
			continue
		}
		seen[id] = true
		pipe.Publish(ctx, Channel(id), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe opens the channel of childID. The caller closes the returned
// subscription.
func (b *RedisBus) Subscribe(ctx context.Context, childID uuid.UUID) (*redis.PubSub, error) {
	sub := b.rdb.Subscribe(ctx, Channel(childID))
	// Wait for the confirmation so no event published afterwards is lost.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel(childID), err)
	}
	return sub, nil
}
