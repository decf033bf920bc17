package mq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — функция обработки сообщения.
//
// Handler может сам подтвердить сообщение (Ack/Reject). Если он этого
// не сделал, Consumer решает по возвращённой ошибке:
//   - nil — ack;
//   - ErrPermanent — reject без возврата в очередь (в DLQ);
//   - любая другая — reject с возвратом в очередь.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение с методами ack/reject.
type Delivery struct {
	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery

	settled bool
}

// NewDelivery оборачивает сырое сообщение.
func NewDelivery(raw amqp.Delivery) *Delivery {
	return &Delivery{Raw: raw}
}

// Ack подтверждает успешную обработку сообщения.
func (d *Delivery) Ack() error {
	if d.settled {
		return nil
	}
	d.settled = true
	return d.Raw.Ack(false)
}

// Reject отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отправить в DLQ.
func (d *Delivery) Reject(requeue bool) error {
	if d.settled {
		return nil
	}
	d.settled = true
	return d.Raw.Reject(requeue)
}

// Settled сообщает, подтверждено ли сообщение.
func (d *Delivery) Settled() bool {
	return d.settled
}

// ParseTaskID извлекает id task из тела сообщения.
// Некорректное тело — ErrPermanent: повтор не поможет.
func ParseTaskID(body []byte) (uuid.UUID, error) {
	id, err := uuid.ParseBytes(bytes.TrimSpace(body))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed task id %q: %v", ErrPermanent, body, err)
	}
	return id, nil
}

// Consumer потребляет сообщения из очереди RabbitMQ.
//
// Сообщения обрабатываются последовательно в одной горутине:
// пока handler не вернулся, следующее сообщение не читается.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество неподтверждённых сообщений у consumer.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает потребление сообщений. Блокируется до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx)
}

// consume — основной цикл потребления.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "error", err)
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started", "queue", c.queue)

		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", c.queue)
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) waitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
		return nil
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery

	err := c.conn.WithChannel(func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		var err error
		deliveries, err = ch.Consume(
			string(c.queue), // queue
			"",              // consumer tag (auto-generated)
			false,           // auto-ack (мы ack вручную)
			false,           // exclusive
			false,           // no-local
			false,           // no-wait
			nil,             // args
		)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	})
	return deliveries, err
}

// processDeliveries обрабатывает сообщения из канала.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	d := NewDelivery(raw)

	c.logger.Debug("received message",
		"queue", c.queue,
		"message_id", raw.MessageId,
		"redelivered", raw.Redelivered,
	)

	err := c.handler(ctx, d)
	if err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", raw.MessageId,
			"error", err,
		)
	}

	if d.Settled() {
		return
	}

	var settleErr error
	switch {
	case err == nil:
		settleErr = d.Ack()
	case errors.Is(err, ErrPermanent):
		settleErr = d.Reject(false)
	default:
		settleErr = d.Reject(true)
	}
	if settleErr != nil {
		c.logger.Error("failed to settle delivery", "queue", c.queue, "error", settleErr)
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}
