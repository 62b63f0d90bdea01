package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"docuchat/internal/model"
)

// ChunkPublisher queues reply chunks for the delivery worker. A fresh
// channel per publish keeps the shared connection safe for concurrent
// callers.
type ChunkPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewChunkPublisher(conn *amqp.Connection, queueName string) *ChunkPublisher {
	return &ChunkPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ChunkPublisher) Publish(ctx context.Context, chunk model.ReplyChunk) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare delivery queue failed: %w", err)
	}

	payload, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal reply chunk failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish reply chunk failed: %w", err)
	}
	return nil
}
