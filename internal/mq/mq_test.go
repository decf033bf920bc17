package mq

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzacho/knapsack-service/internal/telemetry"
)

// fakeAcknowledger запоминает, как было подтверждено сообщение.
type fakeAcknowledger struct {
	acks    int
	rejects int
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.rejects++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.rejects++
	a.requeue = requeue
	return nil
}

func newRaw(ack *fakeAcknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)}
}

func TestParseTaskID(t *testing.T) {
	id := uuid.New()

	got, err := ParseTaskID([]byte(id.String()))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = ParseTaskID([]byte(" " + id.String() + "\n"))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, body := range []string{"", "not-a-uuid", `{"id":"x"}`} {
		_, err := ParseTaskID([]byte(body))
		assert.ErrorIs(t, err, ErrPermanent, "body %q", body)
	}
}

func TestNewTaskSubmittedMessage(t *testing.T) {
	id := uuid.New()
	now := time.Now()

	msg := NewTaskSubmittedMessage(id, now)

	assert.Equal(t, id.String(), string(msg.Body))
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, MessageTypeTaskSubmitted, msg.Type)
	assert.NotEmpty(t, msg.MessageId)
	assert.Equal(t, now, msg.Timestamp)

	parsed, err := ParseTaskID(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestDelivery_SettlesOnce(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := NewDelivery(newRaw(ack, ""))

	require.NoError(t, d.Ack())
	require.NoError(t, d.Reject(true))
	require.NoError(t, d.Ack())

	assert.True(t, d.Settled())
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.rejects)
}

func TestConsumer_HandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		handler     Handler
		wantAcks    int
		wantRejects int
		wantRequeue bool
	}{
		{
			name:     "success is acked",
			handler:  func(ctx context.Context, d *Delivery) error { return nil },
			wantAcks: 1,
		},
		{
			name: "permanent error goes to dlq",
			handler: func(ctx context.Context, d *Delivery) error {
				return fmt.Errorf("bad body: %w", ErrPermanent)
			},
			wantRejects: 1,
		},
		{
			name:        "transient error is requeued",
			handler:     func(ctx context.Context, d *Delivery) error { return errors.New("db down") },
			wantRejects: 1,
			wantRequeue: true,
		},
		{
			name: "handler settles itself",
			handler: func(ctx context.Context, d *Delivery) error {
				if err := d.Ack(); err != nil {
					return err
				}
				return errors.New("failed after ack")
			},
			wantAcks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			c := NewConsumer(nil, telemetry.DiscardLogger(), ConsumerConfig{
				Queue:   QueueProblemSubmitted,
				Handler: tt.handler,
			})

			c.handleDelivery(context.Background(), newRaw(ack, uuid.NewString()))

			assert.Equal(t, tt.wantAcks, ack.acks)
			assert.Equal(t, tt.wantRejects, ack.rejects)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
		})
	}
}

func TestNewConsumer_DefaultPrefetch(t *testing.T) {
	c := NewConsumer(nil, telemetry.DiscardLogger(), ConsumerConfig{Queue: QueueProblemSubmitted})
	assert.Equal(t, 1, c.prefetch)
}

func TestTopology_DeadLettersProblems(t *testing.T) {
	var args amqp.Table
	for _, q := range queues {
		if q.name == QueueProblemSubmitted {
			args = q.args
		}
	}
	require.NotNil(t, args)
	assert.Equal(t, string(ExchangeDLQ), args["x-dead-letter-exchange"])

	routed := map[Queue]bool{}
	for _, b := range bindings {
		routed[b.queue] = true
	}
	for _, q := range queues {
		assert.True(t, routed[q.name], "queue %s has no binding", q.name)
	}
}
