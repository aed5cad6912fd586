package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus carries change messages over a Redis pub/sub channel shared by
// every context using the same durable tier.
type RedisBus struct {
	client  redis.UniversalClient
	channel string

	mu   sync.Mutex
	subs []*redisSubscription
}

type redisSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBus returns a RedisBus publishing on the given channel.
func NewRedisBus(client redis.UniversalClient, channel string) *RedisBus {
	return &RedisBus{
		client:  client,
		channel: channel,
	}
}

// Publish implements [Bus].
func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe implements [Bus]. Messages that fail to decode are dropped; the
// durable tier remains the source of truth on the next read.
func (b *RedisBus) Subscribe(handler Handler) (func(), error) {
	pubsub := b.client.Subscribe(context.Background(), b.channel)
	if _, err := pubsub.Receive(context.Background()); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					continue
				}
				handler(msg)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(sub.done)
			_ = pubsub.Close()
		})
	}
	return unsubscribe, nil
}

// Close implements [Bus]. It tears down every live subscription.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case <-sub.done:
		default:
			close(sub.done)
		}
		_ = sub.pubsub.Close()
	}
	return nil
}
