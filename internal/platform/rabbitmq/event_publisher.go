package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherai-chat/internal/model"
)

// EventPublisher writes chat events to a durable fanout exchange. The routing
// key is the event type so topic-minded consumers can still filter.
type EventPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewEventPublisher(conn *amqp.Connection, exchange string) (*EventPublisher, error) {
	p := &EventPublisher{conn: conn, exchange: exchange}
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *EventPublisher) Publish(ctx context.Context, event model.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(
		ctx,
		p.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         event.Type,
		},
	); err != nil {
		// drop the channel so the next publish reopens it
		_ = ch.Close()
		p.ch = nil
		return fmt.Errorf("publish event failed: %w", err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}

func (p *EventPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channelLocked()
}

func (p *EventPublisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeFanout,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange failed: %w", err)
	}
	p.ch = ch
	return ch, nil
}
