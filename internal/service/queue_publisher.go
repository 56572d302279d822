package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/flight-seat-service/internal/queue"
)

// EventPublisher delivers seat events to downstream consumers.
type EventPublisher interface {
	PublishSeatEvent(ctx context.Context, event q.SeatEvent) error
}

// QueuePublisher publishes seat events to RabbitMQ. Each publish opens its
// own connection; errors are returned and the caller decides whether they
// matter. Messages are marked as persistent.
type QueuePublisher struct {
	URL string
}

// NewQueuePublisher returns a publisher for the broker at url.
func NewQueuePublisher(url string) *QueuePublisher {
	return &QueuePublisher{URL: url}
}

// PublishSeatEvent implements EventPublisher.
func (p *QueuePublisher) PublishSeatEvent(ctx context.Context, event q.SeatEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return errors.Annotate(err, "rabbitmq: dial")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Annotate(err, "rabbitmq: channel open")
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.SeatEventsQueue, // name
		true,              // durable
		false,             // autoDelete
		false,             // exclusive
		false,             // noWait
		nil,               // args
	); err != nil {
		return errors.Annotate(err, "rabbitmq: queue declare")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return errors.Annotate(err, "rabbitmq: marshal event")
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         event.Type,
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                // default exchange
		q.SeatEventsQueue, // routing key = queue name
		false,             // mandatory
		false,             // immediate
		pub,
	); err != nil {
		return errors.Annotate(err, "rabbitmq: publish")
	}
	return nil
}
