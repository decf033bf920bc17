package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzacho/knapsack-service/internal/domain"
)

// Store объединяет TaskRepo и SolutionRepo и добавляет операции,
// которые должны выполняться в одной транзакции.
type Store struct {
	pool      *pgxpool.Pool
	tasks     *TaskRepo
	solutions *SolutionRepo
}

// NewStore создаёт Store поверх пула соединений.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		tasks:     NewTaskRepo(pool),
		solutions: NewSolutionRepo(pool),
	}
}

// CreateTask сохраняет новый task.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	return s.tasks.Create(ctx, task)
}

// GetTask возвращает task без решения.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// GetSolutionByTask возвращает решение task.
func (s *Store) GetSolutionByTask(ctx context.Context, taskID uuid.UUID) (*domain.Solution, error) {
	return s.solutions.GetByTaskID(ctx, taskID)
}

// MarkStarted переводит task в started. См. TaskRepo.MarkStarted.
func (s *Store) MarkStarted(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Task, error) {
	return s.tasks.MarkStarted(ctx, id, now)
}

// MarkFailed переводит task в failed. См. TaskRepo.MarkFailed.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, now time.Time, reason string) error {
	return s.tasks.MarkFailed(ctx, id, now, reason)
}

// ListStale возвращает зависшие tasks. См. TaskRepo.ListStale.
func (s *Store) ListStale(ctx context.Context, status domain.TaskStatus, olderThan time.Time, limit int) ([]domain.Task, error) {
	return s.tasks.ListStale(ctx, status, olderThan, limit)
}

// CompleteTask сохраняет решение и переводит task в completed
// в одной транзакции.
//
// Статус меняется первым: если task уже не started, транзакция
// откатывается с ErrInvalidState и решение не записывается.
func (s *Store) CompleteTask(ctx context.Context, solution *domain.Solution, now time.Time) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := NewTaskRepo(tx).MarkCompleted(ctx, solution.TaskID, now); err != nil {
			return err
		}
		return NewSolutionRepo(tx).Create(ctx, solution)
	})
	if err != nil {
		// Решение уже есть: параллельное завершение успело раньше.
		if errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("complete task %s: %w", solution.TaskID, ErrInvalidState)
		}
		return fmt.Errorf("complete task %s: %w", solution.TaskID, err)
	}
	return nil
}
