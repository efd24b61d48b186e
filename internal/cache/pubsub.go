// ============================================================================
// cache/pubsub.go - Redis Pub/Sub fan-out of mirrored events
// ============================================================================
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/redis/go-redis/v9"
)

// PublishEvent records ev in the recent list and publishes it to the
// all, per-pair and per-kind channels.
func (r *RedisCache) PublishEvent(ctx context.Context, ev *models.PairEvent) error {
	if err := r.AddRecentEvent(ctx, ev); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	for _, channel := range ChannelsFor(ev) {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// ChannelsFor lists the channels an event is published on.
func ChannelsFor(ev *models.PairEvent) []string {
	return []string{
		constants.PubSubChannelAll,
		constants.PubSubChannelPairPrefix + strings.ToLower(ev.PairAddress),
		constants.PubSubChannelKindPrefix + ev.EventName.String(),
	}
}

// Subscribe delivers events from channel (or pattern, when it contains '*')
// to handler until ctx is cancelled.
func (r *RedisCache) Subscribe(ctx context.Context, channel string, handler func(*models.PairEvent)) error {
	var pubsub *redis.PubSub
	if strings.Contains(channel, "*") {
		pubsub = r.client.PSubscribe(ctx, channel)
	} else {
		pubsub = r.client.Subscribe(ctx, channel)
	}
	defer pubsub.Close()

	// wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	r.logger.WithField("channel", channel).Info("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.PairEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.WithError(err).Warn("error unmarshaling event")
				continue
			}
			handler(&ev)
		}
	}
}
