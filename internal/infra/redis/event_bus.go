package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-player/internal/domain"
)

// EventBus routes lobby events through Redis pub/sub so a WebSocket served by
// one instance sees answers submitted through another.
type EventBus struct {
	client *redis.Client
	logger *zap.Logger
}

func NewEventBus(client *redis.Client, logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{client: client, logger: logger}
}

func (b *EventBus) Publish(ctx context.Context, event domain.LobbyEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(event.LobbyID), data).Err()
}

// Subscribe waits for the subscription to be confirmed before returning, so
// events published afterwards are never missed.
func (b *EventBus) Subscribe(ctx context.Context, lobbyID string) (<-chan domain.LobbyEvent, func(), error) {
	subCtx, cancelCtx := context.WithCancel(context.Background())
	pubsub := b.client.Subscribe(subCtx, b.channel(lobbyID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan domain.LobbyEvent, 8)
	msgs := pubsub.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.LobbyEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("invalid lobby event", zap.String("lobby_id", lobbyID), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	cancel := func() {
		cancelCtx()
		_ = pubsub.Close()
	}
	return out, cancel, nil
}

func (b *EventBus) channel(lobbyID string) string {
	return "quiz:lobby-events:" + lobbyID
}
