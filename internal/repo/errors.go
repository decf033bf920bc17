package repo

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")

	// ErrCorruptRow — строка в БД нарушает инварианты (например, NULL в массиве).
	ErrCorruptRow = errors.New("corrupt row")
)

// IsPermanent сообщает, что повтор операции не поможет.
// Всё остальное (сеть, таймауты, перегрузка) считается временным.
func IsPermanent(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrCorruptRow):
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Класс 23 — нарушение ограничений, класс 22 — некорректные данные.
		return pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) ||
			pgerrcode.IsDataException(pgErr.Code)
	}
	return false
}

// mapWriteError переводит ошибки PostgreSQL в ошибки репозитория.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrAlreadyExists
	}
	return err
}
