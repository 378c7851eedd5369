// AngelaMos | 2026
// delivery.go

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const KindVerificationCode = "verification_code"

// Delivery is the message the chat bot consumes from the pub/sub channel.
type Delivery struct {
	ChatID    int64     `json:"chat_id"`
	Kind      string    `json:"kind"`
	Purpose   string    `json:"purpose"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	QueuedAt  time.Time `json:"queued_at"`
}

type Publisher interface {
	Publish(ctx context.Context, d Delivery) error
}

type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish delivery: %w", err)
	}

	return nil
}
