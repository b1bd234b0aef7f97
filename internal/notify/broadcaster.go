package notify

import (
	"context"
	"fmt"
)

// Publisher is satisfied by the Redis client
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisBroadcaster fans kitchen tickets out over Redis pub/sub. Kitchen
// screens subscribe to their restaurant's channel.
type RedisBroadcaster struct {
	pub Publisher
}

func NewRedisBroadcaster(pub Publisher) *RedisBroadcaster {
	return &RedisBroadcaster{pub: pub}
}

// KitchenChannel is the pub/sub channel of one restaurant
func KitchenChannel(restaurantID int64) string {
	return fmt.Sprintf("kitchen:restaurant:%d", restaurantID)
}

func (b *RedisBroadcaster) NotifyRestaurant(ctx context.Context, restaurantID int64, payload []byte) error {
	if err := b.pub.Publish(ctx, KitchenChannel(restaurantID), payload); err != nil {
		return fmt.Errorf("publish to %s: %w", KitchenChannel(restaurantID), err)
	}
	return nil
}
