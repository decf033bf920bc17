package api

import (
	"context"
	"log/slog"

	"github.com/mzacho/knapsack-service/internal/domain"
)

// TaskService — use-cases, которые обслуживает API. Реализуется service.Service.
type TaskService interface {
	Submit(ctx context.Context, problem domain.Problem) (*domain.Task, error)
	Query(ctx context.Context, rawID string) (*domain.Task, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks  TaskService
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks  TaskService
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		tasks:  cfg.Tasks,
		logger: cfg.Logger,
	}
}
