package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/rs/zerolog/log"
)

// SplitEventConsumer receives split-state events from Pulsar. Events that
// repeatedly fail processing land on the dead-letter topic.
type SplitEventConsumer struct {
	client   pulsar.Client
	consumer pulsar.Consumer
}

// NewSplitEventConsumer initializes the Pulsar client and a shared
// subscription on the split event topic.
func NewSplitEventConsumer(pulsarURL, topic, subscription string) (*SplitEventConsumer, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: pulsarURL})
	if err != nil {
		return nil, fmt.Errorf("could not create Pulsar client: %w", err)
	}

	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            topic,
		SubscriptionName: subscription,
		Type:             pulsar.Shared,
		DLQ: &pulsar.DLQPolicy{
			MaxDeliveries:   3,
			DeadLetterTopic: topic + "-dlq",
		},
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("could not create Pulsar consumer: %w", err)
	}

	return &SplitEventConsumer{client: client, consumer: consumer}, nil
}

// Receive blocks until the next decodable split event arrives. Payloads that
// fail to decode are acknowledged and dropped so a single bad message cannot
// wedge the subscription.
func (c *SplitEventConsumer) Receive(ctx context.Context) (SplitEvent, pulsar.Message, error) {
	for {
		msg, err := c.consumer.Receive(ctx)
		if err != nil {
			return SplitEvent{}, nil, fmt.Errorf("failed to receive message: %w", err)
		}

		var event SplitEvent
		if err := json.Unmarshal(msg.Payload(), &event); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID().String()).
				Msg("Error unmarshaling split event, dropping")
			c.consumer.Ack(msg)
			continue
		}
		return event, msg, nil
	}
}

// Ack acknowledges a message.
func (c *SplitEventConsumer) Ack(msg pulsar.Message) {
	c.consumer.Ack(msg)
}

// Nack negatively acknowledges a message for redelivery.
func (c *SplitEventConsumer) Nack(msg pulsar.Message) {
	c.consumer.Nack(msg)
}

// Close cleans up the Pulsar consumer and client.
func (c *SplitEventConsumer) Close() {
	c.consumer.Close()
	c.client.Close()
}
