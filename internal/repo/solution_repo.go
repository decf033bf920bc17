package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mzacho/knapsack-service/internal/domain"
)

// SolutionRepo — репозиторий для работы с solutions.
type SolutionRepo struct {
	db DBTX
}

// NewSolutionRepo создаёт новый SolutionRepo.
func NewSolutionRepo(db DBTX) *SolutionRepo {
	return &SolutionRepo{db: db}
}

// Create сохраняет решение.
// Второе решение для того же task — ErrAlreadyExists.
func (r *SolutionRepo) Create(ctx context.Context, s *domain.Solution) error {
	query := `
		INSERT INTO solutions (id, packed_items, total_value, task_id)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query,
		s.ID,
		toInt4Array(s.PackedItems),
		int64(s.TotalValue),
		s.TaskID,
	)
	if err != nil {
		return fmt.Errorf("insert solution: %w", mapWriteError(err))
	}
	return nil
}

// GetByTaskID возвращает решение task.
func (r *SolutionRepo) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.Solution, error) {
	query := `SELECT id, packed_items, total_value, task_id FROM solutions WHERE task_id = $1`

	var s domain.Solution
	var items []*int32
	var total int64

	err := r.db.QueryRow(ctx, query, taskID).Scan(&s.ID, &items, &total, &s.TaskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan solution: %w", err)
	}

	if total < 0 {
		return nil, fmt.Errorf("%w: negative total_value %d", ErrCorruptRow, total)
	}
	s.TotalValue = uint64(total)

	if s.PackedItems, err = fromInt4Array(items); err != nil {
		return nil, fmt.Errorf("packed_items: %w", err)
	}
	return &s, nil
}
