package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pharmalink/pharmalink/internal/shared"
)

const channel = "pharmalink:events"

// Bridge carries bus events over redis pub/sub so a publish on one
// process reaches listeners connected to another. All publishes go
// through redis; the local room only hears events via Run's
// subscription loop, so nobody is delivered twice.
type Bridge struct {
	bus    *Bus
	client *redis.Client
	logger *slog.Logger
}

func NewBridge(bus *Bus, client *redis.Client, logger *slog.Logger) *Bridge {
	return &Bridge{bus: bus, client: client, logger: logger}
}

// Publish serializes the event onto the shared redis channel.
func (b *Bridge) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		// Redis hiccups are worth retrying; callers check the sentinel.
		return fmt.Errorf("publish event: %v: %w", err, shared.ErrTransientStore)
	}
	return nil
}

// Run subscribes to the shared channel and feeds received events into
// the local bus until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed, so callers that
	// publish right after Run starts are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed bus event", "error", err)
				continue
			}
			b.bus.Publish(event)
		}
	}
}
