package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events on the user's Redis channel
// events:user:<id>, for delivery to whatever frontend subscribes there.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher over an existing Redis client
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// ChannelFor returns the Redis channel name for a user
func ChannelFor(userID uuid.UUID) string {
	return "events:user:" + userID.String()
}

// Publish marshals and publishes one event. No acknowledgment: a
// channel without subscribers drops the message and that is fine.
func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, ChannelFor(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
