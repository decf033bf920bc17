// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (сервис tasks, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (recovery, metrics, logging)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - knapsack_handler.go — обработчики для /knapsack
//
// Endpoints:
//
//	POST /knapsack       — принять задачу, 201 и представление task
//	GET  /knapsack/{id}  — состояние task (и решение, если оно есть)
package api
