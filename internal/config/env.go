// Package config читает настройки сервисов из переменных окружения.
//
// Каждая функция принимает значение по умолчанию, которое используется,
// если переменная не задана или не парсится.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// String возвращает значение первой заданной переменной из keys или def.
func String(def string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return def
}

// Int возвращает положительное целое из key или def.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer env", "key", key, "value", v)
		return def
	}
	return n
}

// Duration возвращает длительность из key (формат time.ParseDuration) или def.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid duration env", "key", key, "value", v)
		return def
	}
	return d
}

// Port возвращает адрес ":port" из key или ":def".
func Port(key string, def int) string {
	return ":" + strconv.Itoa(Int(key, def))
}
