// Package service реализует приём задач и чтение их состояния.
//
// Submit сохраняет task и публикует его id в очередь; Query читает
// task и, если он завершён, его решение. HTTP API и CLI работают
// только через этот пакет.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mzacho/knapsack-service/internal/domain"
	"github.com/mzacho/knapsack-service/internal/repo"
	"github.com/mzacho/knapsack-service/internal/retry"
	"github.com/mzacho/knapsack-service/internal/telemetry"
)

var tracer = otel.Tracer("github.com/mzacho/knapsack-service/internal/service")

// Ошибки сервиса.
var (
	// ErrInvalidID — id task не является UUID.
	ErrInvalidID = errors.New("invalid task id")

	// ErrTaskNotFound — task с таким id не существует.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInconsistent — task completed, но решения нет.
	ErrInconsistent = errors.New("task is completed but has no solution")
)

// writePolicy — повторы записи внутри HTTP-запроса.
var writePolicy = retry.Policy{
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsedTime:  10 * time.Second,
}

// TaskStore — хранилище, нужное сервису. Реализуется repo.Store.
type TaskStore interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	GetSolutionByTask(ctx context.Context, taskID uuid.UUID) (*domain.Solution, error)
}

// Publisher — очередь задач. Реализуется mq.Publisher.
type Publisher interface {
	PublishTaskSubmitted(ctx context.Context, taskID uuid.UUID) error
}

// Config — зависимости Service.
type Config struct {
	Store     TaskStore
	Publisher Publisher
	Logger    *slog.Logger

	// Now — источник времени (для тестов). По умолчанию time.Now.
	Now func() time.Time
}

// Service — приём и чтение tasks.
type Service struct {
	store     TaskStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New создаёт Service.
func New(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    logger,
		now:       now,
	}
}

// Submit проверяет задачу, сохраняет task в статусе submitted и
// публикует его id в очередь.
//
// Некорректная задача — domain.ErrInvalidProblem, ничего не сохраняется.
// Если task сохранён, но публикация не удалась, task всё равно
// возвращается: sweeper в worker подберёт его позже.
func (s *Service) Submit(ctx context.Context, problem domain.Problem) (*domain.Task, error) {
	ctx, span := tracer.Start(ctx, "service.Submit", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	if err := problem.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid problem")
		return nil, err
	}

	task := domain.NewTask(problem, s.now())
	span.SetAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.Int("problem.items", problem.Len()),
	)

	err := retry.Do(ctx, s.logger, "create_task", writePolicy, func() error {
		err := s.store.CreateTask(ctx, task)
		if repo.IsPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist task")
		return nil, fmt.Errorf("create task: %w", err)
	}
	telemetry.TasksSubmitted.Inc()

	logger := s.logger.With("task_id", task.ID)
	if err := s.publisher.PublishTaskSubmitted(ctx, task.ID); err != nil {
		telemetry.PublishFailures.Inc()
		span.RecordError(err)
		logger.Error("task persisted but not published, left for recovery", "error", err)
		return task, nil
	}

	logger.Info("task submitted", "items", problem.Len())
	return task, nil
}

// Query возвращает task по строковому id. Для completed task
// заполняется Solution.
func (s *Service) Query(ctx context.Context, rawID string) (*domain.Task, error) {
	ctx, span := tracer.Start(ctx, "service.Query")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		span.SetStatus(codes.Error, "invalid id")
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, rawID)
	}
	span.SetAttributes(attribute.String("task.id", id.String()))

	task, err := s.store.GetTask(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get task")
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}

	if task.Status != domain.TaskStatusCompleted {
		return task, nil
	}

	solution, err := s.store.GetSolutionByTask(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		span.SetStatus(codes.Error, "missing solution")
		return nil, fmt.Errorf("%w: task %s", ErrInconsistent, id)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get solution")
		return nil, fmt.Errorf("get solution for task %s: %w", id, err)
	}

	task.Solution = solution
	return task, nil
}
