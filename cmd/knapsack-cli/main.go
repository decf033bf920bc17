// Knapsack CLI — инструмент командной строки для отправки задач
// о рюкзаке и получения решений через HTTP API.
//
// Использование:
//
//	knapsack [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	submit  Отправить задачу
//	get     Показать task
//	wait    Дождаться завершения task
package main

import (
	"fmt"
	"os"

	"github.com/mzacho/knapsack-service/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
