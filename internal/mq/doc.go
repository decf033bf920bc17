// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, publisher confirms)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений о новых tasks
//   - consumer.go   — потребление сообщений с ручным ack
//
// Сообщение task.submitted: тело — id task строкой UUID, persistent.
//
// Exchanges:
//   - knapsack.tasks — новые tasks
//   - knapsack.dlq   — dead letter queue
package mq
