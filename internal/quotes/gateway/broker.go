package gateway

import "context"

type Message struct {
	Topic   string
	Payload []byte
}

// Broker moves encoded records between processes. Delivery is at-most-once:
// a slow subscriber loses messages instead of stalling publishers.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe delivers until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, topics []string) (<-chan Message, error)
	Close() error
}
