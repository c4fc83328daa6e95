package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/lessonprogress/internal/model"
)

// DefaultChannel is the pub/sub channel events are published to
const DefaultChannel = "lessonprogress:events"

// RedisPublisher publishes events as JSON on a Redis pub/sub channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher creates a RedisPublisher. An empty channel uses DefaultChannel.
func NewRedisPublisher(client *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "events-redis")),
	}
}

// Channel returns the channel events are published to
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Notify publishes the event
func (p *RedisPublisher) Notify(ctx context.Context, event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode event",
			slog.String("event_id", event.ID),
			slog.Any("error", err))
		return
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Warn("failed to publish event",
			slog.String("event_id", event.ID),
			slog.String("channel", p.channel),
			slog.Any("error", err))
	}
}

// Subscribe streams decoded events from the channel until ctx is done.
// The returned channel is closed when the subscription ends.
func (p *RedisPublisher) Subscribe(ctx context.Context) (<-chan model.Event, error) {
	sub := p.client.Subscribe(ctx, p.channel)
	// Wait for confirmation so no event published after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan model.Event)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event model.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					p.logger.Warn("dropping undecodable event", slog.Any("error", err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
