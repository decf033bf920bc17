package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeTasks Exchange = "knapsack.tasks"
	ExchangeDLQ   Exchange = "knapsack.dlq"
)

// Queues — имена очередей.
const (
	QueueProblemSubmitted Queue = "problem_submitted"
	QueueDLQProblems      Queue = "dlq.problems"
)

// Routing keys.
const (
	RoutingKeySubmitted   RoutingKey = "submitted"
	RoutingKeyDLQProblems RoutingKey = "problems"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

var exchanges = []exchangeDecl{
	{ExchangeTasks, amqp.ExchangeDirect},
	{ExchangeDLQ, amqp.ExchangeDirect},
}

var queues = []queueDecl{
	// problem_submitted — отклонённые сообщения (битый payload, неизвестный task) уходят в DLQ
	{QueueProblemSubmitted, amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQProblems),
	}},
	{QueueDLQProblems, nil},
}

var bindings = []bindingDecl{
	{QueueProblemSubmitted, RoutingKeySubmitted, ExchangeTasks},
	{QueueDLQProblems, RoutingKeyDLQProblems, ExchangeDLQ},
}

// SetupTopology объявляет exchanges, queues и bindings.
// Объявления идемпотентны, поэтому их выполняют и API, и Worker при старте.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		for _, ex := range exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range queues {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range bindings {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  knapsack RabbitMQ topology:

    knapsack.tasks (direct)
    └── problem_submitted [routing: submitted]
            Consumer: knapsack-worker
            DLQ: dlq.problems

    knapsack.dlq (direct)
    └── dlq.problems [routing: problems]
            Manual processing
`
}
