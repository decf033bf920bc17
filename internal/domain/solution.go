package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Solution — найденное решение task.
type Solution struct {
	// ID — уникальный идентификатор решения.
	ID uuid.UUID `json:"id"`

	// TaskID — ссылка на task.
	TaskID uuid.UUID `json:"task_id"`

	// PackedItems — индексы выбранных предметов по возрастанию.
	PackedItems []uint32 `json:"packed_items"`

	// TotalValue — сумма ценностей выбранных предметов.
	TotalValue uint64 `json:"total_value"`
}

// NewSolution создаёт решение для task.
func NewSolution(taskID uuid.UUID, packedItems []uint32, totalValue uint64) *Solution {
	if packedItems == nil {
		packedItems = []uint32{}
	}
	return &Solution{
		ID:          uuid.New(),
		TaskID:      taskID,
		PackedItems: packedItems,
		TotalValue:  totalValue,
	}
}

// Verify проверяет решение против задачи:
// индексы в диапазоне и уникальны, TotalValue совпадает с суммой,
// суммарный вес не превышает вместимость.
func (s *Solution) Verify(p Problem) error {
	n := p.Len()
	seen := make(map[uint32]struct{}, len(s.PackedItems))

	var weight, value uint64
	for _, idx := range s.PackedItems {
		if int(idx) >= n {
			return fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidSolution, idx, n)
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: duplicate index %d", ErrInvalidSolution, idx)
		}
		seen[idx] = struct{}{}
		weight += uint64(p.Weights[idx])
		value += uint64(p.Values[idx])
	}

	if value != s.TotalValue {
		return fmt.Errorf("%w: total value %d, items sum to %d", ErrInvalidSolution, s.TotalValue, value)
	}
	if weight > uint64(p.Capacity) {
		return fmt.Errorf("%w: weight %d exceeds capacity %d", ErrInvalidSolution, weight, p.Capacity)
	}
	return nil
}
