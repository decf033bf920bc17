// Package retry повторяет операции над внешними системами
// (PostgreSQL, RabbitMQ) с экспоненциальной задержкой.
//
// Любая ошибка считается временной, пока её не обернули в Permanent.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mzacho/knapsack-service/internal/telemetry"
)

// Policy — параметры экспоненциальной задержки.
type Policy struct {
	// InitialInterval — первая задержка.
	InitialInterval time.Duration

	// MaxInterval — верхняя граница одной задержки.
	MaxInterval time.Duration

	// MaxElapsedTime — общее время на все попытки (0 — без ограничения).
	MaxElapsedTime time.Duration

	// MaxTries — максимум попыток (0 — без ограничения).
	MaxTries uint
}

// DefaultPolicy — задержка 500ms, удваивается до 30s, не дольше 2 минут.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
	}
}

// Forever — политика без ограничения по времени. Используется для
// подключения к брокеру и БД при старте, пока не отменён ctx.
func Forever() Policy {
	return Policy{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

func (p Policy) options(logger *slog.Logger, op string) []backoff.RetryOption {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithNotify(func(err error, delay time.Duration) {
			telemetry.RetriesTotal.WithLabelValues(op).Inc()
			logger.Warn("operation failed, retrying", "operation", op, "error", err, "delay", delay)
		}),
	}
	// backoff.Retry по умолчанию ограничивает время 15 минутами.
	opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsedTime))
	if p.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxTries))
	}
	return opts
}

// Do выполняет fn, повторяя её согласно policy.
func Do(ctx context.Context, logger *slog.Logger, op string, policy Policy, fn func() error) error {
	_, err := Value(ctx, logger, op, policy, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Value выполняет fn, повторяя её согласно policy, и возвращает результат.
func Value[T any](ctx context.Context, logger *slog.Logger, op string, policy Policy, fn func() (T, error)) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return backoff.Retry(ctx, fn, policy.options(logger, op)...)
}

// Permanent помечает ошибку как постоянную: повторов не будет,
// Do/Value вернут исходную ошибку.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
