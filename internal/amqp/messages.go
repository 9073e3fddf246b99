package amqp

import (
	"github.com/rabbitmq/amqp091-go"

	"corredo/internal/events"
)

// toPublishing wraps an item event in a persistent JSON message.
func toPublishing(e events.ItemEvent) (amqp091.Publishing, error) {
	body, err := e.ToJSON()
	if err != nil {
		return amqp091.Publishing{}, err
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.ID.String(),
		Type:         string(e.Type),
		Timestamp:    e.Timestamp,
		Body:         body,
	}, nil
}
