package messaging

import (
	"context"
	"strings"
)

// ChannelPublisher routes each event type to the broker channel "<prefix>.<eventType>".
type ChannelPublisher struct {
	broker Broker
	prefix string
}

func NewChannelPublisher(broker Broker, prefix string) *ChannelPublisher {
	return &ChannelPublisher{broker: broker, prefix: strings.TrimSuffix(prefix, ".")}
}

func (p *ChannelPublisher) Channel(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *ChannelPublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	return p.broker.Publish(ctx, p.Channel(eventType), payload)
}
