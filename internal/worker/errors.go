package worker

import "errors"

// Ошибки воркера.
var (
	// ErrTaskNotFound — task из сообщения не найден в БД.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyHandled — task уже started или завершён, либо решается
	// этим воркером прямо сейчас.
	ErrAlreadyHandled = errors.New("task already handled")

	// ErrSolveFailed — решатель исчерпал попытки.
	ErrSolveFailed = errors.New("solve failed")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
