package domain

import "fmt"

// TaskStatus — статус обработки task.
//
// Жизненный цикл:
//
//	submitted → started → completed
//	                    ↘ failed (решение не найдено после всех попыток)
//
// Переходы однонаправленные: статус нельзя пропустить или откатить.
type TaskStatus string

const (
	// TaskStatusSubmitted — task сохранён и поставлен в очередь.
	TaskStatusSubmitted TaskStatus = "submitted"

	// TaskStatusStarted — worker забрал task и запустил решатель.
	TaskStatusStarted TaskStatus = "started"

	// TaskStatusCompleted — решение сохранено.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed — решатель исчерпал попытки.
	TaskStatusFailed TaskStatus = "failed"
)

// Rank возвращает порядковый номер статуса в жизненном цикле.
// Completed и Failed — оба финальные и имеют одинаковый ранг.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusSubmitted:
		return 0
	case TaskStatusStarted:
		return 1
	case TaskStatusCompleted, TaskStatusFailed:
		return 2
	default:
		return -1
	}
}

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsValid проверяет, что статус известен.
func (s TaskStatus) IsValid() bool {
	return s.Rank() >= 0
}

// CanTransitionTo проверяет допустимость перехода s → next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusSubmitted:
		return next == TaskStatusStarted
	case TaskStatusStarted:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// String возвращает строковое представление TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// ParseTaskStatus парсит строку из БД в TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return status, nil
}
