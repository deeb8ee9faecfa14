package gateway

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBroker uses Redis pub/sub channels. Nothing is stored in Redis.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, topic, payload).Err()
}

// Subscribe treats topics containing '*' as patterns.
func (b *RedisBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	var plain, patterns []string
	for _, t := range topics {
		if strings.Contains(t, "*") {
			patterns = append(patterns, t)
		} else {
			plain = append(plain, t)
		}
	}

	ps := b.rdb.Subscribe(ctx)
	if len(plain) > 0 {
		if err := ps.Subscribe(ctx, plain...); err != nil {
			_ = ps.Close()
			return nil, err
		}
	}
	if len(patterns) > 0 {
		if err := ps.PSubscribe(ctx, patterns...); err != nil {
			_ = ps.Close()
			return nil, err
		}
	}

	out := make(chan Message, 8192)
	in := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: m.Channel, Payload: []byte(m.Payload)}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
