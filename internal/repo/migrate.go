package repo

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

//go:embed schema.sql
var schema string

// statements разбивает схему на отдельные запросы.
func statements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Migrate создаёт таблицы, если их ещё нет. Повторный вызов ничего не меняет.
func Migrate(ctx context.Context, db DBTX, logger *slog.Logger) error {
	start := time.Now()
	for _, stmt := range statements(schema) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	logger.Info("database schema is up to date", "duration", time.Since(start))
	return nil
}
