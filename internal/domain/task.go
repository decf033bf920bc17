package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — отправленная задача о рюкзаке и состояние её обработки.
//
// Task создаётся сервисом приёма в статусе submitted.
// Дальше его меняет только Worker: started, затем completed или failed.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// Status — текущий статус.
	Status TaskStatus `json:"status"`

	// SubmittedAt — время приёма.
	SubmittedAt time.Time `json:"submitted_at"`

	// StartedAt — время перехода в started.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время сохранения решения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// FailedAt — время перехода в failed.
	FailedAt *time.Time `json:"failed_at,omitempty"`

	// Error — причина перехода в failed.
	Error string `json:"error,omitempty"`

	// Problem — входные данные, неизменяемы после создания.
	Problem Problem `json:"problem"`

	// Solution — заполняется только при чтении completed task.
	Solution *Solution `json:"solution,omitempty"`
}

// NewTask создаёт task в статусе submitted.
func NewTask(problem Problem, now time.Time) *Task {
	return &Task{
		ID:          uuid.New(),
		Status:      TaskStatusSubmitted,
		SubmittedAt: now.UTC().Truncate(time.Microsecond),
		Problem:     problem.Clone(),
	}
}

// IsFinished возвращает true, если task в финальном статусе.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// Duration возвращает время от старта до завершения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	switch {
	case t.CompletedAt != nil:
		return t.CompletedAt.Sub(*t.StartedAt)
	case t.FailedAt != nil:
		return t.FailedAt.Sub(*t.StartedAt)
	default:
		return 0
	}
}
