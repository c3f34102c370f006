package redis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EventRelay fans realtime envelopes out to every server instance over
// Redis pub/sub. Each instance, the publisher included, receives what is
// published and routes it to its own connected sessions.
type EventRelay struct {
	client  *Client
	channel string
}

// NewEventRelay creates a relay on the given channel
func NewEventRelay(client *Client, channel string) *EventRelay {
	return &EventRelay{client: client, channel: channel}
}

// Publish sends payload to all subscribed instances
func (r *EventRelay) Publish(ctx context.Context, payload []byte) error {
	if err := r.client.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to relay: %w", err)
	}
	return nil
}

// Subscribe starts delivering relayed payloads to handle until ctx is done.
// It returns once the subscription is confirmed by Redis.
func (r *EventRelay) Subscribe(ctx context.Context, handle func([]byte) error) error {
	sub := r.client.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to relay: %w", err)
	}

	go func() {
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handle([]byte(msg.Payload)); err != nil {
					log.Warn().Err(err).Str("channel", r.channel).Msg("failed to handle relayed event")
				}
			}
		}
	}()

	return nil
}
