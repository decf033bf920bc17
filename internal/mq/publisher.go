package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mzacho/knapsack-service/internal/retry"
)

// MessageTypeTaskSubmitted — тип сообщения о новом task (AMQP-свойство type).
const MessageTypeTaskSubmitted = "task.submitted"

// publishPolicy — короткие повторы: публикация идёт внутри HTTP-запроса.
var publishPolicy = retry.Policy{
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsedTime:  10 * time.Second,
}

// Publisher публикует сообщения в RabbitMQ.
//
// Канал AMQP не потокобезопасен для публикации с подтверждениями,
// поэтому публикации сериализуются mu.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger

	mu sync.Mutex
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение и ждёт подтверждения брокера.
// Одна попытка; повторы — на стороне вызывающего.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			msg,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		// nil — канал не в режиме confirm.
		if confirm != nil {
			acked, err := confirm.WaitContext(ctx)
			if err != nil {
				return fmt.Errorf("wait confirm: %w", err)
			}
			if !acked {
				return ErrNotConfirmed
			}
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.MessageId,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishTaskSubmitted публикует id нового task. Потребитель: Worker.
//
// Тело сообщения — id task в виде строки UUID, без обёртки.
// Публикация повторяется с экспоненциальной задержкой.
func (p *Publisher) PublishTaskSubmitted(ctx context.Context, taskID uuid.UUID) error {
	msg := NewTaskSubmittedMessage(taskID, time.Now())

	return retry.Do(ctx, p.logger, "publish", publishPolicy, func() error {
		return p.Publish(ctx, ExchangeTasks, RoutingKeySubmitted, msg)
	})
}

// NewTaskSubmittedMessage собирает сообщение о новом task.
func NewTaskSubmittedMessage(taskID uuid.UUID, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    uuid.New().String(),
		Type:         MessageTypeTaskSubmitted,
		Timestamp:    now,
		Body:         []byte(taskID.String()),
	}
}
