// Package telemetry обеспечивает наблюдаемость сервисов knapsack.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//   - tracing.go — OpenTelemetry tracing
//
// API и worker используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
