package eventhub

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const channelPrefix = "engram:events:"

// RedisBackplane fans events out across instances via Redis Pub/Sub,
// one channel per namespace.
type RedisBackplane struct {
	client *goredis.Client
}

// NewRedisBackplane connects to redisURL for cross-instance event fanout.
func NewRedisBackplane(redisURL string) (*RedisBackplane, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("event hub backplane: invalid redis URL: %w", err)
	}
	return &RedisBackplane{client: goredis.NewClient(opts)}, nil
}

func (b *RedisBackplane) Publish(ctx context.Context, namespace string, payload []byte) error {
	return b.client.Publish(ctx, channelPrefix+namespace, payload).Err()
}

// Subscribe listens on every namespace channel via a pattern subscription
// and invokes deliver for each message received, until ctx is done.
func (b *RedisBackplane) Subscribe(ctx context.Context, deliver func(namespace string, payload []byte)) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			namespace := msg.Channel[len(channelPrefix):]
			deliver(namespace, []byte(msg.Payload))
		}
	}
}

func (b *RedisBackplane) Close() error {
	return b.client.Close()
}
