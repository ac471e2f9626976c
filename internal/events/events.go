package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"
)

// Split-state event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionPaid    = "paid"
)

// SplitEvent announces a change to a shared subscription's split state. The
// notification layer may schedule reminders off the back of it; delivery is
// fire-and-forget and never rolls back the operation that produced it.
type SplitEvent struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	Action         string    `json:"action"`
	UserID         string    `json:"userId,omitempty"`
	Timestamp      int64     `json:"timestamp"`
}

// Notifier publishes split-state events.
type Notifier interface {
	Publish(event SplitEvent) error
	Close()
}

// EventPublisher is a Pulsar-backed Notifier.
type EventPublisher struct {
	client   pulsar.Client
	producer pulsar.Producer
}

// NewEventPublisher initializes the Pulsar client and producer.
func NewEventPublisher(pulsarURL, topic string) (*EventPublisher, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: pulsarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Pulsar client: %w", err)
	}

	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("could not create Pulsar producer: %w", err)
	}

	return &EventPublisher{client: client, producer: producer}, nil
}

// Publish sends a split event to Pulsar.
func (p *EventPublisher) Publish(event SplitEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UTC().Unix()
	}

	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not serialize event payload: %w", err)
	}

	_, err = p.producer.Send(context.Background(), &pulsar.ProducerMessage{
		Payload: message,
	})
	if err != nil {
		return fmt.Errorf("could not send event to Pulsar: %w", err)
	}
	return nil
}

// Close cleans up the Pulsar producer and client.
func (p *EventPublisher) Close() {
	p.producer.Close()
	p.client.Close()
}
