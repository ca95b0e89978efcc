package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"lumina-research/internal/library"
)

// LibraryEventPublisher journals library mutations to a durable queue so the
// persist worker can mirror them into mysql.
type LibraryEventPublisher struct {
	conn      *amqp.Connection
	queueName string
	timeout   time.Duration
}

func NewLibraryEventPublisher(conn *amqp.Connection, queueName string) *LibraryEventPublisher {
	return &LibraryEventPublisher{
		conn:      conn,
		queueName: queueName,
		timeout:   3 * time.Second,
	}
}

func (p *LibraryEventPublisher) Publish(ctx context.Context, ev library.Event) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := declareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal library event failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         string(ev.Kind),
			Timestamp:    time.Now(),
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish library event failed: %w", err)
	}
	return nil
}

// Listener adapts the publisher to library.Store.Subscribe. Publish failures
// are logged; the in-memory library stays authoritative.
func (p *LibraryEventPublisher) Listener() library.Listener {
	return func(ev library.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			log.Printf("journal %s %s%s failed: %v", ev.Kind, ev.DocumentID, ev.FolderID, err)
		}
	}
}
