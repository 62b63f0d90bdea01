package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"docuchat/internal/model"
)

// ChunkSender is the outbound side of the chat transport.
type ChunkSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// DeliveryWorker drains the reply queue and pushes each chunk to the chat
// platform. Consumption is single-threaded so a multi-chunk answer arrives
// in order.
type DeliveryWorker struct {
	conn      *amqp.Connection
	sender    ChunkSender
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDeliveryWorker(conn *amqp.Connection, sender ChunkSender, queueName string) *DeliveryWorker {
	return &DeliveryWorker{
		conn:      conn,
		sender:    sender,
		queueName: queueName,
	}
}

func (w *DeliveryWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open delivery channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare delivery queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume delivery queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handleDelivery(workerCtx, d)
			}
		}
	}()

	return nil
}

// handleDelivery pushes one chunk to the chat platform. A chunk that cannot
// be decoded is dropped outright; a failed send is requeued once and only
// dropped on its redelivery, so a transient outage does not punch a hole in
// a multi-chunk answer.
func (w *DeliveryWorker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var chunk model.ReplyChunk
	if err := json.Unmarshal(d.Body, &chunk); err != nil {
		logrus.WithError(err).Error("decode reply chunk failed")
		_ = d.Nack(false, false)
		return
	}

	if err := w.sender.Send(ctx, chunk.ChatID, chunk.Body); err != nil {
		requeue := !d.Redelivered
		logrus.WithFields(logrus.Fields{
			"chat_id": chunk.ChatID,
			"seq":     chunk.Seq,
			"total":   chunk.Total,
			"requeue": requeue,
		}).WithError(err).Error("deliver reply chunk failed")
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
}

func (w *DeliveryWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
