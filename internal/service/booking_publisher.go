// Package service holds the outbound integrations of the funnel.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/model"
	"github.com/iliyamo/ticket-funnel/internal/queue"
)

// BookingPublisher announces settled bookings on the booking.confirmed
// queue.  A connection is dialled per message; confirmations are rare
// next to browsing traffic.
type BookingPublisher struct {
	url string
	log *zap.Logger
	now func() time.Time
}

func NewBookingPublisher(url string, log *zap.Logger) *BookingPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingPublisher{url: url, log: log.Named("booking-publisher"), now: time.Now}
}

// PublishBookingConfirmed sends the record as a persistent JSON message.
// Errors are logged and returned; the booking stays confirmed either way.
func (p *BookingPublisher) PublishBookingConfirmed(ctx context.Context, rec model.BookingRecord) error {
	pub, err := p.message(rec)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.BookingConfirmedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		p.log.Warn("queue declare failed", zap.Error(err))
		return fmt.Errorf("declare %s: %w", queue.BookingConfirmedQueue, err)
	}

	if err := ch.PublishWithContext(ctx, "", queue.BookingConfirmedQueue, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.String("record_id", rec.ID), zap.Error(err))
		return fmt.Errorf("publish: %w", err)
	}
	p.log.Info("booking confirmed published", zap.String("record_id", rec.ID))
	return nil
}

func (p *BookingPublisher) message(rec model.BookingRecord) (amqp.Publishing, error) {
	now := p.now().UTC()
	body, err := json.Marshal(queue.NewBookingConfirmedEvent(rec, now))
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    rec.ID,
		Timestamp:    now,
		Body:         body,
	}, nil
}
