package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"quantfeed.com/internal/quotes/dynamic"
	"quantfeed.com/pkg/logger"
	"quantfeed.com/pkg/metrics"
)

const TopicPrefix = "record:"

// Topic is the broker topic a symbol's records are published on.
func Topic(symbol string) string { return TopicPrefix + strings.ToUpper(symbol) }

// Event is the decoded form of a published record.
type Event struct {
	Symbol  string         `json:"symbol"`
	Time    time.Time      `json:"time"`
	Value   any            `json:"value"`
	Primary string         `json:"primary"`
	Fields  map[string]any `json:"fields"`
}

func Encode(r *dynamic.Record) (topic string, payload []byte, err error) {
	payload, err = json.Marshal(r)
	if err != nil {
		return "", nil, err
	}
	return Topic(r.Symbol()), payload, nil
}

func Decode(payload []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(payload, &ev)
	return ev, err
}

// Publisher pushes records to a broker.
type Publisher struct {
	broker Broker
	name   string
}

func NewPublisher(broker Broker, name string) *Publisher {
	return &Publisher{broker: broker, name: name}
}

func (p *Publisher) Publish(ctx context.Context, r *dynamic.Record) error {
	topic, payload, err := Encode(r)
	if err == nil {
		err = p.broker.Publish(ctx, topic, payload)
	}
	if err != nil {
		metrics.PublishErrors.WithLabelValues(p.name).Inc()
		logger.Warn(ctx, "broker publish failed",
			zap.String("broker", p.name),
			zap.String("symbol", r.Symbol()),
			zap.Error(err),
		)
	}
	return err
}

// Run publishes every record from in until in closes or ctx is done.
// Publish failures are logged and counted, never fatal.
func (p *Publisher) Run(ctx context.Context, in <-chan *dynamic.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				return nil
			}
			_ = p.Publish(ctx, r)
		}
	}
}
