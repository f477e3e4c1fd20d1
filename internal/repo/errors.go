package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки хранилищ. Одинаковы для PostgreSQL и memory-реализаций;
// api.HandleRepoError переводит их в HTTP-статусы.
var (
	// ErrNotFound — записи нет.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — нарушение уникальности (ID, ключ идемпотентности,
	// пара runId/sequence в журнале).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — переход статуса невозможен (заявку уже взял другой воркер).
	ErrInvalidState = errors.New("invalid state")
)

// uniqueViolation — код ошибки PostgreSQL для нарушения уникальности.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
