// Package cli реализует инструмент командной строки для knapsack-сервиса.
//
// # Обзор
//
// CLI работает с API по HTTP и не импортирует внутренние пакеты системы.
// Типы ответов продублированы в client.go.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент: Submit, GetTask и Wait (опрос до completed/failed).
// Ошибки API возвращаются как *APIError с кодом и сообщением.
//
//	client := cli.NewClient("http://localhost:6543")
//	task, err := client.Submit(ctx, cli.Problem{Capacity: 10, Weights: w, Values: v})
//
// ## Output
//
// Таблица (text/tabwriter) по умолчанию или JSON с флагом --json.
// Данные пишутся в stdout, сообщения — в stderr, поэтому работает pipe:
//
//	knapsack get ID --json | jq .solution
//
// ## Commands
//
//   - submit: --capacity/--weights/--values или --file, опционально --wait
//   - get TASK_ID
//   - wait TASK_ID: --interval, --timeout
package cli
