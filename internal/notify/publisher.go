// Package notify publishes per-account stream events over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Stream names subscribers listen on.
const (
	MainStream  = "mainStream"
	DriveStream = "driveStream"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Event is the envelope delivered on a stream channel.
type Event struct {
	Type string `json:"type"`
	Body any    `json:"body,omitempty"`
}

// RedisPublisher writes events to `{prefix}:{stream}:{accountID}` channels.
type RedisPublisher struct {
	client publisher
	prefix string
}

// NewRedisPublisher constructs a publisher over a go-redis client.
func NewRedisPublisher(client publisher, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel for stream and account.
func (p *RedisPublisher) Channel(stream string, accountID uuid.UUID) string {
	if p.prefix == "" {
		return fmt.Sprintf("%s:%s", stream, accountID)
	}
	return fmt.Sprintf("%s:%s:%s", p.prefix, stream, accountID)
}

// PublishMainStream sends an event on the account's general stream.
func (p *RedisPublisher) PublishMainStream(ctx context.Context, accountID uuid.UUID, eventType string, body any) error {
	return p.publish(ctx, MainStream, accountID, eventType, body)
}

// PublishDriveStream sends an event on the account's drive stream.
func (p *RedisPublisher) PublishDriveStream(ctx context.Context, accountID uuid.UUID, eventType string, body any) error {
	return p.publish(ctx, DriveStream, accountID, eventType, body)
}

func (p *RedisPublisher) publish(ctx context.Context, stream string, accountID uuid.UUID, eventType string, body any) error {
	payload, err := json.Marshal(Event{Type: eventType, Body: body})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	channel := p.Channel(stream, accountID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}
