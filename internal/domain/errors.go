package domain

import "errors"

// Ошибки доменной модели.
var (
	// ErrInvalidProblem — задача не прошла валидацию (ошибка клиента).
	ErrInvalidProblem = errors.New("invalid problem")

	// ErrInvalidSolution — решение нарушает инварианты задачи.
	ErrInvalidSolution = errors.New("invalid solution")

	// ErrInvalidTransition — недопустимый переход статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
)
