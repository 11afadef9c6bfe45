package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/pairly/messaging-service/config"
)

// NotifyExchange is the topic exchange carrying notification events for
// both peer nodes and the push gateway.
const NotifyExchange = "pairly.notify"

// Bus bundles the two halves of the message bus so fx can provide them as
// one unit.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewBus builds the AMQP-backed bus, or an in-process gochannel one when
// no broker URL is configured (single-node / development mode).
func NewBus(cfg *config.Config, logger watermill.LoggerAdapter) (*Bus, error) {
	if cfg.AMQP.URL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{}, logger)
		return &Bus{Publisher: ch, Subscriber: ch}, nil
	}

	amqpConfig := newTopicConfig(cfg.AMQP.URL)

	pub, err := amqp.NewPublisher(amqpConfig, logger)
	if err != nil {
		return nil, err
	}
	sub, err := amqp.NewSubscriber(amqpConfig, logger)
	if err != nil {
		return nil, err
	}
	return &Bus{Publisher: pub, Subscriber: sub}, nil
}

// newTopicConfig maps watermill topics onto a durable topic exchange:
// the watermill topic is the AMQP routing/binding key, the exchange is
// fixed. Each node gets its own queue so every instance sees every event.
func newTopicConfig(url string) amqp.Config {
	cfg := amqp.NewDurablePubSubConfig(url,
		amqp.GenerateQueueNameTopicNameWithSuffix("."+watermill.NewShortUUID()),
	)
	cfg.Exchange.GenerateName = func(string) string { return NotifyExchange }
	cfg.Exchange.Type = "topic"
	cfg.Exchange.Durable = true
	cfg.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	return cfg
}
