package mq

import "errors"

var (
	// ErrPermanent — сообщение нельзя обработать ни сейчас, ни позже.
	// Consumer отклоняет такое сообщение без возврата в очередь (в DLQ).
	ErrPermanent = errors.New("permanent message failure")

	// ErrNotConfirmed — брокер ответил nack на публикацию.
	ErrNotConfirmed = errors.New("publish not confirmed by broker")

	// ErrNoChannel — канал закрыт или ещё не открыт (идёт reconnect).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrClosed — Connection закрыт вызовом Close.
	ErrClosed = errors.New("connection closed")
)
