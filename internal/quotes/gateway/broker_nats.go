package gateway

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"
)

type NatsBroker struct {
	nc *nats.Conn
}

func NewNatsBroker(url string, opts ...nats.Option) (*NatsBroker, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsBroker{nc: nc}, nil
}

func (b *NatsBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.nc.Publish(topicToSubject(topic), payload)
}

func (b *NatsBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	out := make(chan Message, 8192)
	subs := make([]*nats.Subscription, 0, len(topics))

	for _, t := range topics {
		sub, err := b.nc.Subscribe(topicToSubject(t), func(m *nats.Msg) {
			msg := Message{
				Topic:   subjectToTopic(m.Subject),
				Payload: m.Data,
			}
			// never block the NATS callback
			select {
			case out <- msg:
			default:
			}
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}

	go func() {
		<-ctx.Done()
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		close(out)
	}()

	return out, nil
}

func (b *NatsBroker) Close() error {
	if b.nc != nil {
		_ = b.nc.Drain()
		b.nc.Close()
	}
	return nil
}

var (
	subjectEscaper   = strings.NewReplacer("%", "%25", ".", "%2E", "*", "%2A", ">", "%3E", " ", "%20", ":", "%3A", "/", "%2F")
	subjectUnescaper = strings.NewReplacer("%25", "%", "%2E", ".", "%2A", "*", "%3E", ">", "%20", " ", "%3A", ":", "%2F", "/")
)

// topicToSubject maps record:WIKI/BRK.B to record.WIKI.BRK%2EB: the first ':'
// and every '/' after it become token separators, anything NATS reserves
// inside a token is percent-escaped. Whole-token wildcards stay wildcards.
func topicToSubject(topic string) string {
	prefix, rest, ok := strings.Cut(topic, ":")
	if !ok {
		return escapeToken(topic)
	}
	tokens := append([]string{prefix}, strings.Split(rest, "/")...)
	for i, t := range tokens {
		tokens[i] = escapeToken(t)
	}
	return strings.Join(tokens, ".")
}

func subjectToTopic(subj string) string {
	tokens := strings.Split(subj, ".")
	for i, t := range tokens {
		tokens[i] = subjectUnescaper.Replace(t)
	}
	if len(tokens) == 1 {
		return tokens[0]
	}
	return tokens[0] + ":" + strings.Join(tokens[1:], "/")
}

func escapeToken(t string) string {
	if t == "*" || t == ">" {
		return t
	}
	return subjectEscaper.Replace(t)
}
