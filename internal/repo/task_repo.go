package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mzacho/knapsack-service/internal/domain"
)

const taskColumns = `id, status, ts_submitted, ts_started, ts_completed, ts_failed, error,
	problem_capacity, problem_weights, problem_values`

// TaskRepo — репозиторий для работы с tasks.
type TaskRepo struct {
	db DBTX
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(db DBTX) *TaskRepo {
	return &TaskRepo{db: db}
}

// Create сохраняет новый task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, status, ts_submitted, problem_capacity, problem_weights, problem_values)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		task.ID,
		task.Status.String(),
		task.SubmittedAt,
		int32(task.Problem.Capacity),
		toInt4Array(task.Problem.Weights),
		toInt4Array(task.Problem.Values),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", mapWriteError(err))
	}
	return nil
}

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.db.QueryRow(ctx, query, id))
}

// MarkStarted переводит task из submitted в started и возвращает его.
//
// ErrNotFound — task не существует.
// ErrInvalidState — task уже started/completed/failed (повторная доставка).
func (r *TaskRepo) MarkStarted(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Task, error) {
	return r.transition(ctx, id, domain.TaskStatusSubmitted, domain.TaskStatusStarted,
		`ts_started = $4`, now)
}

// MarkCompleted переводит task из started в completed.
// Решение должно быть сохранено в той же транзакции (см. Store.CompleteTask).
func (r *TaskRepo) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.transition(ctx, id, domain.TaskStatusStarted, domain.TaskStatusCompleted,
		`ts_completed = $4`, now)
	return err
}

// MarkFailed переводит task из started в failed с причиной.
func (r *TaskRepo) MarkFailed(ctx context.Context, id uuid.UUID, now time.Time, reason string) error {
	_, err := r.transition(ctx, id, domain.TaskStatusStarted, domain.TaskStatusFailed,
		`ts_failed = $4, error = $5`, now, reason)
	return err
}

// ListStale возвращает tasks в статусе status, которые находятся в нём
// дольше, чем до момента olderThan. Старые — первыми.
func (r *TaskRepo) ListStale(ctx context.Context, status domain.TaskStatus, olderThan time.Time, limit int) ([]domain.Task, error) {
	var tsColumn string
	switch status {
	case domain.TaskStatusSubmitted:
		tsColumn = "ts_submitted"
	case domain.TaskStatusStarted:
		tsColumn = "ts_started"
	default:
		return nil, fmt.Errorf("list stale: %w: status %s is terminal", ErrInvalidState, status)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = $1 AND ` + tsColumn + ` < $2
		ORDER BY ` + tsColumn + ` ASC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, status.String(), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// transition выполняет условный UPDATE: строка меняется, только если
// текущий статус равен from. Так повторная доставка сообщения не может
// перевести task назад или дважды.
func (r *TaskRepo) transition(ctx context.Context, id uuid.UUID, from, to domain.TaskStatus, set string, args ...any) (*domain.Task, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	query := `UPDATE tasks SET status = $2, ` + set + `
		WHERE id = $1 AND status = $3
		RETURNING ` + taskColumns

	params := append([]any{id, to.String(), from.String()}, args...)
	task, err := scanTask(r.db.QueryRow(ctx, query, params...))
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("mark task %s: %w", to, err)
	}

	// Строка не обновилась: либо task нет, либо статус уже другой.
	var current string
	err = r.db.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task status: %w", err)
	}
	return nil, fmt.Errorf("%w: task %s is %s, expected %s", ErrInvalidState, id, current, from)
}

// --- Helpers ---

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var status string
	var taskError *string
	var capacity int32
	var weights, values []*int32

	err := row.Scan(
		&task.ID,
		&status,
		&task.SubmittedAt,
		&task.StartedAt,
		&task.CompletedAt,
		&task.FailedAt,
		&taskError,
		&capacity,
		&weights,
		&values,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if task.Status, err = domain.ParseTaskStatus(status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRow, err)
	}
	if taskError != nil {
		task.Error = *taskError
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: negative capacity %d", ErrCorruptRow, capacity)
	}
	task.Problem.Capacity = uint32(capacity)

	if task.Problem.Weights, err = fromInt4Array(weights); err != nil {
		return nil, fmt.Errorf("problem_weights: %w", err)
	}
	if task.Problem.Values, err = fromInt4Array(values); err != nil {
		return nil, fmt.Errorf("problem_values: %w", err)
	}

	return &task, nil
}

// toInt4Array конвертирует значения в int4[].
// Значения должны быть провалидированы (≤ domain.MaxStoredValue).
func toInt4Array(vals []uint32) []int32 {
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(v)
	}
	return out
}

// fromInt4Array конвертирует int4[] обратно.
//
// PostgreSQL разрешает NULL внутри integer[] NOT NULL, но мы их никогда
// не пишем, поэтому NULL или отрицательное значение — ErrCorruptRow.
func fromInt4Array(vals []*int32) ([]uint32, error) {
	out := make([]uint32, len(vals))
	for i, v := range vals {
		if v == nil {
			return nil, fmt.Errorf("%w: NULL element at %d", ErrCorruptRow, i)
		}
		if *v < 0 {
			return nil, fmt.Errorf("%w: negative element %d at %d", ErrCorruptRow, *v, i)
		}
		out[i] = uint32(*v)
	}
	return out, nil
}
