package feed

import (
	"context"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus relays changes through a Redis pub/sub channel so every instance
// sees writes made by its peers. Delivery to local subscribers happens only
// when the message comes back from Redis, including our own publishes.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	local   *LocalBus
	pubsub  *redis.PubSub
	wg      sync.WaitGroup
}

func NewRedisBus(ctx context.Context, rdb *redis.Client, channel string) (*RedisBus, error) {
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	bus := &RedisBus{
		rdb:     rdb,
		channel: channel,
		local:   NewLocalBus(),
		pubsub:  pubsub,
	}

	bus.wg.Add(1)
	go bus.relay()

	return bus, nil
}

func (v *RedisBus) relay() {
	defer v.wg.Done()
	for msg := range v.pubsub.Channel() {
		var change Change
		if err := jsoniter.UnmarshalFromString(msg.Payload, &change); err != nil {
			log.Warn().Err(err).Msg("An error occurred when decoding change notification...")
			continue
		}
		_ = v.local.Publish(context.Background(), change)
	}
}

func (v *RedisBus) Publish(ctx context.Context, change Change) error {
	raw, err := jsoniter.MarshalToString(change)
	if err != nil {
		return err
	}
	return v.rdb.Publish(ctx, v.channel, raw).Err()
}

func (v *RedisBus) Subscribe(filters ...Filter) *Subscription {
	return v.local.Subscribe(filters...)
}

func (v *RedisBus) Close() error {
	err := v.pubsub.Close()
	v.wg.Wait()
	_ = v.local.Close()
	return err
}
